// Package dump writes the abort report of a failed transfer: the record that
// was in flight, the cause and every row still buffered, so the rows can be
// replayed by hand.
//
// The report is JSON lines. The first line is the Header; each following
// line is one pending row as an object keyed by column. The file is
// compressed according to its extension or the configured algorithm.
package dump

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/stagesync/pkg/compression"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

// Report is the in-flight state of an aborted run.
type Report struct {
	Time     time.Time
	Step     string
	Attempts int
	Cause    error
	// Record is nil when the run aborted outside of a record step
	Record  models.Record
	Pending models.Batch
}

// Header is the first line of a report file.
type Header struct {
	Time        time.Time          `json:"time"`
	Step        string             `json:"step"`
	Attempts    int                `json:"attempts"`
	Cause       string             `json:"cause"`
	Record      gojson.RawMessage  `json:"record"`
	Schema      models.FieldSchema `json:"schema"`
	PendingRows int                `json:"pending_rows"`
}

// Write stores r at path and returns the path actually written. The
// algorithm's extension is appended when path does not already carry it.
func Write(path, algorithm string, r Report) (string, error) {
	algo, err := compression.ParseAlgorithm(algorithm)
	if err != nil {
		return "", err
	}
	if ext := algo.Extension(); ext != "" && !strings.HasSuffix(path, ext) {
		path += ext
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create abort report").WithDetail("path", path)
	}
	defer f.Close()

	if err := Encode(f, algo, r); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to sync abort report").WithDetail("path", path)
	}
	return path, nil
}

// Encode writes r to w compressed with algo.
func Encode(w io.Writer, algo compression.Algorithm, r Report) error {
	cw, err := compression.NewWriter(w, algo)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(cw)

	header := Header{
		Time:        r.Time,
		Step:        r.Step,
		Attempts:    r.Attempts,
		Record:      gojson.RawMessage("null"),
		Schema:      r.Pending.Schema,
		PendingRows: r.Pending.Len(),
	}
	if header.Time.IsZero() {
		header.Time = time.Now().UTC()
	}
	if r.Cause != nil {
		header.Cause = r.Cause.Error()
	}
	if r.Record != nil {
		header.Record = models.RecordJSON(r.Record)
	}

	line, err := gojson.Marshal(header)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode report header")
	}
	if err := writeLine(bw, line); err != nil {
		return err
	}

	for _, row := range r.Pending.Rows {
		doc := models.NewDocument(len(r.Pending.Schema))
		for i, col := range r.Pending.Schema {
			if i < len(row) {
				doc.Set(col, row[i])
			}
		}
		if err := writeLine(bw, models.RecordJSON(doc)); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write abort report")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish abort report")
	}
	return nil
}

func writeLine(w *bufio.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write abort report")
	}
	if err := w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write abort report")
	}
	return nil
}

// Read loads a report file written by Write. Rows are returned in the
// header's column order.
func Read(path string) (*Header, []models.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open abort report").WithDetail("path", path)
	}
	defer f.Close()

	rc, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read abort report")
		}
		return nil, nil, errors.New(errors.ErrorTypeData, "abort report is empty")
	}
	var header Header
	if err := gojson.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "invalid abort report header")
	}

	rows := make([]models.Row, 0, header.PendingRows)
	for scanner.Scan() {
		doc, err := models.ParseDocument(scanner.Bytes())
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "invalid abort report row").
				WithDetail("row", len(rows))
		}
		row := make(models.Row, len(header.Schema))
		for i, col := range header.Schema {
			row[i], _ = doc.Get(col)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read abort report")
	}
	return &header, rows, nil
}
