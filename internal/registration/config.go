// Package registration models the forward registration output tree: the
// pipeline config document, per-volume metadata, and the fixed layout of
// stage and volume directories a registration run leaves behind.
package registration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"invertix/internal/paths"
)

// Config is the root structure for a registration pipeline config document.
type Config struct {
	// Stages lists stage directory names in forward registration order.
	Stages []string `yaml:"stages"`
	// RegistrationDirectory is the root of the forward registration output
	// tree, relative to the config document unless absolute.
	RegistrationDirectory string `yaml:"registration_directory"`

	path string
}

// LoadConfig parses a registration pipeline config document.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304 config path is user supplied
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("config %s names no stages", path)
	}
	if cfg.RegistrationDirectory == "" {
		return nil, fmt.Errorf("config %s has no registration_directory", path)
	}

	cfg.path = path
	return &cfg, nil
}

// Root returns the registration tree root resolved against the document.
func (c *Config) Root() string {
	return paths.ResolveAgainst(c.path, c.RegistrationDirectory)
}

// FirstStage returns the first forward stage. Its directory enumerates the
// volumes of the run.
func (c *Config) FirstStage() string {
	return c.Stages[0]
}
