package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/errors"
)

// Strategy selects how buffered rows are written to the destination staging area.
type Strategy string

const (
	// StrategyBulk writes each batch with one set-oriented transfer into the staging table
	StrategyBulk Strategy = "bulk"
	// StrategyStructured passes each batch as a single structured parameter to a procedure
	StrategyStructured Strategy = "structured"
)

// Config is the immutable run configuration. It is built once at startup and
// passed by value to the transfer engine; nothing reads configuration from
// process-wide state.
type Config struct {
	// Source describes where records are read from
	Source SourceConfig `yaml:"source" json:"source" mapstructure:"source"`
	// Destination describes the staging area and the merge procedure
	Destination DestinationConfig `yaml:"destination" json:"destination" mapstructure:"destination"`
	// Transfer holds the flush, retry and schema policy of the engine
	Transfer TransferConfig `yaml:"transfer" json:"transfer" mapstructure:"transfer"`
	// Logging configures the zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`
	// Observability configures metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// SourceConfig contains the settings handed to the source connector.
type SourceConfig struct {
	// Type selects the source connector (mongodb, postgresql, jsonl)
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// URI is the connection string of the source
	URI string `yaml:"uri" json:"uri" mapstructure:"uri"`
	// Database name for document stores
	Database string `yaml:"database" json:"database" mapstructure:"database"`
	// Collection name for document stores
	Collection string `yaml:"collection" json:"collection" mapstructure:"collection"`
	// Query is a JSON filter (mongodb) or a SELECT statement (postgresql)
	Query string `yaml:"query" json:"query" mapstructure:"query"`
	// PageSize is the number of records fetched per page
	PageSize int `yaml:"page_size" json:"page_size" mapstructure:"page_size"`
	// Path of the input file for file based sources
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// ConnectTimeout bounds the initial source connection
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout"`
}

// DestinationConfig contains the settings handed to the destination connector.
type DestinationConfig struct {
	// Type selects the destination connector (postgresql, mysql, snowflake, sqlite)
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// DSN is the driver specific connection string
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	// StagingTable receives bulk loads
	StagingTable string `yaml:"staging_table" json:"staging_table" mapstructure:"staging_table"`
	// TruncateStagingTable empties StagingTable before the run starts
	TruncateStagingTable bool `yaml:"truncate_staging_table" json:"truncate_staging_table" mapstructure:"truncate_staging_table"`
	// StagingProcedure receives structured-parameter batches
	StagingProcedure string `yaml:"staging_procedure" json:"staging_procedure" mapstructure:"staging_procedure"`
	// MergeProcedure reconciles staged rows into the final table; empty disables merging
	MergeProcedure string `yaml:"merge_procedure" json:"merge_procedure" mapstructure:"merge_procedure"`
	// Procedures maps emulated procedure names to SQL text (sqlite only)
	Procedures map[string]string `yaml:"procedures" json:"procedures" mapstructure:"procedures"`
	// CommandTimeout bounds a single flush or merge statement
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout" mapstructure:"command_timeout"`
}

// TransferConfig contains the engine policy values.
type TransferConfig struct {
	// Strategy selects bulk or structured flushing for the whole run
	Strategy Strategy `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
	// ChunkSize is the buffered row count that triggers a flush
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	// Fields is the ordered projection; empty infers it from the first record
	Fields []string `yaml:"fields" json:"fields" mapstructure:"fields"`
	// MaxRetries is the number of consecutive failed attempts that aborts the run
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	// RetryDelay is the pause before reconnecting after a failure
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// AbortDump configures where the in-flight state is written on a fatal abort
	AbortDump AbortDumpConfig `yaml:"abort_dump" json:"abort_dump" mapstructure:"abort_dump"`
}

// AbortDumpConfig configures the fatal abort report.
type AbortDumpConfig struct {
	// Path of the report file; empty disables the report
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Compression algorithm (none, gzip, zstd, snappy, lz4)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// MetricsAddr serves Prometheus metrics when set (e.g. ":9102")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing exports flush and merge spans
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// Default returns a Config populated with the built-in defaults:
// 1000 records per page, 5000 rows per chunk, bulk flushing, 10 retries
// 30 seconds apart.
func Default() Config {
	return Config{
		Source: SourceConfig{
			PageSize:       1000,
			ConnectTimeout: 30 * time.Second,
		},
		Destination: DestinationConfig{
			CommandTimeout: time.Hour,
			Procedures:     map[string]string{},
		},
		Transfer: TransferConfig{
			Strategy:   StrategyBulk,
			ChunkSize:  5000,
			MaxRetries: 10,
			RetryDelay: 30 * time.Second,
			AbortDump: AbortDumpConfig{
				Compression: "gzip",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks the configuration for correctness before a run starts.
func (c *Config) Validate() error {
	if c.Source.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "source.type is required")
	}
	if c.Source.PageSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "source.page_size must be positive")
	}
	if c.Destination.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "destination.type is required")
	}
	if err := c.Transfer.Validate(); err != nil {
		return err
	}

	switch c.Transfer.Strategy {
	case StrategyStructured:
		if c.Destination.StagingProcedure == "" {
			return errors.New(errors.ErrorTypeConfig, "destination.staging_procedure must be specified when the structured strategy is used")
		}
	case StrategyBulk:
		if c.Destination.StagingTable == "" {
			return errors.New(errors.ErrorTypeConfig, "destination.staging_table must be specified when the bulk strategy is used")
		}
	}
	return nil
}

// Validate checks the engine policy values.
func (t *TransferConfig) Validate() error {
	switch t.Strategy {
	case StrategyBulk, StrategyStructured:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "transfer.strategy must be %q or %q, got %q", StrategyBulk, StrategyStructured, t.Strategy)
	}
	if t.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "transfer.chunk_size must be positive")
	}
	if t.MaxRetries < 1 {
		return errors.New(errors.ErrorTypeConfig, "transfer.max_retries must be at least 1")
	}
	if t.RetryDelay < 0 {
		return errors.New(errors.ErrorTypeConfig, "transfer.retry_delay cannot be negative")
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if strings.TrimSpace(f) == "" {
			return errors.New(errors.ErrorTypeConfig, "transfer.fields cannot contain empty names")
		}
		if _, dup := seen[f]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "transfer.fields contains %q twice", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// MergeEnabled reports whether a merge procedure is configured.
func (d *DestinationConfig) MergeEnabled() bool {
	return d.MergeProcedure != ""
}

// Procedure returns the SQL text registered for an emulated procedure.
// Lookups are case-insensitive because configuration keys are normalized to
// lower case when loaded.
func (d *DestinationConfig) Procedure(name string) (string, bool) {
	sql, ok := d.Procedures[strings.ToLower(name)]
	if !ok {
		sql, ok = d.Procedures[name]
	}
	return sql, ok
}

// String renders a one-line summary suitable for startup logs; credentials
// in DSNs and URIs are omitted.
func (c *Config) String() string {
	return fmt.Sprintf("%s -> %s (strategy=%s chunk=%d page=%d retries=%d delay=%s)",
		c.Source.Type, c.Destination.Type, c.Transfer.Strategy, c.Transfer.ChunkSize,
		c.Source.PageSize, c.Transfer.MaxRetries, c.Transfer.RetryDelay)
}
