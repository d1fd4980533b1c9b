package testutil

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides base functionality for integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "stagesync-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	s.T().Logf("integration suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// WriteJSONLines writes n newline-delimited JSON objects with keys id, name
// and value to dir and returns the file path. Every tenth record has no
// value key.
func WriteJSONLines(t *testing.T, dir string, n int) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("records_%d.jsonl", n))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := bufio.NewWriter(file)
	for i := 1; i <= n; i++ {
		if i%10 == 0 {
			_, err = fmt.Fprintf(w, "{\"id\":%d,\"name\":\"record-%d\"}\n", i, i)
		} else {
			_, err = fmt.Fprintf(w, "{\"id\":%d,\"name\":\"record-%d\",\"value\":%.2f}\n", i, i, float64(i)*1.23)
		}
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
	return path
}
