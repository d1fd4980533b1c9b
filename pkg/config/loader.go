package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/stagesync/pkg/errors"
)

// EnvPrefix is the prefix of environment variables that override file settings,
// e.g. STAGESYNC_DESTINATION_DSN overrides destination.dsn.
const EnvPrefix = "STAGESYNC"

// Load reads a YAML configuration file, substitutes ${VAR} references,
// applies STAGESYNC_* environment overrides and validates the result.
func Load(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults without validating it.
func Parse(data []byte) (Config, error) {
	v := newViper()

	content := substituteEnvVars(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(content)); err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	if cfg.Destination.Procedures == nil {
		cfg.Destination.Procedures = map[string]string{}
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file
func Save(filePath string, cfg Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// Marshal renders the configuration as YAML
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	return data, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every leaf key needs a default so AutomaticEnv can see it during Unmarshal.
	d := Default()
	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("source.uri", d.Source.URI)
	v.SetDefault("source.database", d.Source.Database)
	v.SetDefault("source.collection", d.Source.Collection)
	v.SetDefault("source.query", d.Source.Query)
	v.SetDefault("source.page_size", d.Source.PageSize)
	v.SetDefault("source.path", d.Source.Path)
	v.SetDefault("source.connect_timeout", d.Source.ConnectTimeout)

	v.SetDefault("destination.type", d.Destination.Type)
	v.SetDefault("destination.dsn", d.Destination.DSN)
	v.SetDefault("destination.staging_table", d.Destination.StagingTable)
	v.SetDefault("destination.truncate_staging_table", d.Destination.TruncateStagingTable)
	v.SetDefault("destination.staging_procedure", d.Destination.StagingProcedure)
	v.SetDefault("destination.merge_procedure", d.Destination.MergeProcedure)
	v.SetDefault("destination.procedures", d.Destination.Procedures)
	v.SetDefault("destination.command_timeout", d.Destination.CommandTimeout)

	v.SetDefault("transfer.strategy", string(d.Transfer.Strategy))
	v.SetDefault("transfer.chunk_size", d.Transfer.ChunkSize)
	v.SetDefault("transfer.fields", d.Transfer.Fields)
	v.SetDefault("transfer.max_retries", d.Transfer.MaxRetries)
	v.SetDefault("transfer.retry_delay", d.Transfer.RetryDelay)
	v.SetDefault("transfer.abort_dump.path", d.Transfer.AbortDump.Path)
	v.SetDefault("transfer.abort_dump.compression", d.Transfer.AbortDump.Compression)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.development", d.Logging.Development)

	v.SetDefault("observability.metrics_addr", d.Observability.MetricsAddr)
	v.SetDefault("observability.enable_tracing", d.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", d.Observability.TracingSampleRate)

	return v
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
