// Package config provides configuration types and defaults for invertix.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"invertix/internal/log"
)

// Config holds all tool-level configuration options for invertix.
// Per-run inputs (registration config, artifact path, output directory,
// threads, no-clobber) come from subcommand flags and are never read from
// this file.
type Config struct {
	Workers int             `mapstructure:"workers"` // job-level parallelism for build runs
	Engine  EngineConfig    `mapstructure:"engine"`
	Ledger  LedgerConfig    `mapstructure:"ledger"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// EngineConfig names the external engine executables. Both are resolved
// through PATH unless given as absolute paths.
type EngineConfig struct {
	// RegistrationBinary computes inverse transforms. Default: "elastix"
	RegistrationBinary string `mapstructure:"registration_binary"`

	// TransformationBinary applies transforms to artifacts. Default: "transformix"
	TransformationBinary string `mapstructure:"transformation_binary"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	// Filename is the ledger database file created inside each output
	// directory. Default: ".invertix.db"
	Filename string `mapstructure:"filename"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/invertix/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/invertix/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "invertix", "traces", "traces.jsonl")
}

// ValidateWorkers checks the worker count for errors.
func ValidateWorkers(workers int) error {
	if workers < 0 {
		return fmt.Errorf("workers must be >= 0 (0 means default), got %d", workers)
	}
	return nil
}

// ValidateEngine checks engine configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateEngine(engine EngineConfig) error {
	// Binaries default when empty; a value of only whitespace is a user error
	// caught at invocation time, not here.
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	// Validate SampleRate is in range [0.0, 1.0]
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	// Validate Exporter is a valid option
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		// OTLPEndpoint is required when Exporter is "otlp"
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks the whole configuration for errors.
func (c Config) Validate() error {
	if err := ValidateWorkers(c.Workers); err != nil {
		return err
	}
	if err := ValidateEngine(c.Engine); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Workers: 1,
		Engine: EngineConfig{
			RegistrationBinary:   "elastix",
			TransformationBinary: "transformix",
		},
		Ledger: LedgerConfig{
			Filename: ".invertix.db",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Invertix Configuration

# Number of parallel inversion jobs for build-inverse-transforms.
# The -t flag on the command line overrides this per run.
workers: 1

# External engine executables. Plain names resolve through PATH;
# absolute paths are used as given.
engine:
  registration_binary: elastix
  transformation_binary: transformix

# Run ledger settings. The ledger database is created inside each
# output directory and records run, job, and stage outcomes.
ledger:
  filename: .invertix.db

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/invertix/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces

# Feature flags
# flags:
#   strict-resume: false   # Verify no-clobber skips against the run ledger
#   engine-watch: false    # Publish heartbeats while an engine run is active
#   rewrite-diff: false    # Log a diff of every parameter rewrite at debug level
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
