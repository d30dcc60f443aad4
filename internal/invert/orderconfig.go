package invert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"invertix/internal/paths"
)

// OrderConfigName is the inversion order document written at the root of
// the inverted tree.
const OrderConfigName = "invert.yaml"

// OrderConfig records the inverted tree's stage order and the forward
// registration root it was produced from. The application engine walks
// InversionOrder front to back.
type OrderConfig struct {
	InversionOrder        []string `yaml:"inversion_order"`
	RegistrationDirectory string   `yaml:"registration_directory"`

	path string
}

// LoadOrderConfig parses an inversion order document.
func LoadOrderConfig(path string) (*OrderConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304 config path is user supplied
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg OrderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.InversionOrder) == 0 {
		return nil, fmt.Errorf("order config %s names no stages", path)
	}
	if cfg.RegistrationDirectory == "" {
		return nil, fmt.Errorf("order config %s has no registration_directory", path)
	}

	cfg.path = path
	return &cfg, nil
}

// Write persists the document atomically.
func (c *OrderConfig) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal order config: %w", err)
	}
	if err := paths.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("write order config: %w", err)
	}
	c.path = path
	return nil
}

// TreeRoot returns the inverted tree root: the directory holding the
// document.
func (c *OrderConfig) TreeRoot() string {
	return paths.ResolveAgainst(c.path, "")
}

// ForwardRoot returns the forward registration root resolved against the
// document.
func (c *OrderConfig) ForwardRoot() string {
	return paths.ResolveAgainst(c.path, c.RegistrationDirectory)
}
