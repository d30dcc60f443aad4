package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, "elastix", cfg.Engine.RegistrationBinary)
	require.Equal(t, "transformix", cfg.Engine.TransformationBinary)
	require.Equal(t, ".invertix.db", cfg.Ledger.Filename)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)

	require.NoError(t, cfg.Validate())
}

func TestValidateWorkers(t *testing.T) {
	require.NoError(t, ValidateWorkers(0))
	require.NoError(t, ValidateWorkers(1))
	require.NoError(t, ValidateWorkers(16))

	err := ValidateWorkers(-1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "workers must be >= 0")
}

func TestValidateTracing_SampleRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantErr bool
	}{
		{"zero is valid", 0.0, false},
		{"one is valid", 1.0, false},
		{"partial sampling", 0.25, false},
		{"negative invalid", -0.1, true},
		{"above one invalid", 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(TracingConfig{SampleRate: tt.rate})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateTracing_Exporter(t *testing.T) {
	for _, exporter := range []string{"", "none", "file", "stdout", "otlp"} {
		err := ValidateTracing(TracingConfig{Exporter: exporter, SampleRate: 1.0})
		require.NoError(t, err, "exporter %q should be valid", exporter)
	}

	err := ValidateTracing(TracingConfig{Exporter: "jaeger", SampleRate: 1.0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tracing.exporter")
}

func TestValidateTracing_OTLPEndpointRequired(t *testing.T) {
	err := ValidateTracing(TracingConfig{
		Enabled:    true,
		Exporter:   "otlp",
		SampleRate: 1.0,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "otlp_endpoint")

	err = ValidateTracing(TracingConfig{
		Enabled:      true,
		Exporter:     "otlp",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
	})
	require.NoError(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "registration_binary: elastix")
	require.Contains(t, content, "transformation_binary: transformix")
	require.Contains(t, content, "workers: 1")
	require.Contains(t, content, "strict-resume")
}
