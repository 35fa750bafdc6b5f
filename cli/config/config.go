package config

import (
	"fmt"
	"time"
)

// Config represents a brine.yaml configuration file.
// All values are optional and act as defaults for brine command flags.
// CLI flags always override config values.
type Config struct {
	Source   string        `yaml:"source"`
	MaxDepth int           `yaml:"max_depth"`
	Storage  StorageConfig `yaml:"storage"`
	Adapter  AdapterConfig `yaml:"adapter"`
}

// StorageConfig holds journal storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Validate checks storage configuration consistency.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case "", "file", "s3":
	default:
		return fmt.Errorf("unknown storage backend %q (want file or s3)", c.Backend)
	}
	if c.Backend != "" && c.Path == "" {
		return fmt.Errorf("storage backend %q requires a path", c.Backend)
	}
	return nil
}

// AdapterConfig holds capture notification defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks adapter configuration consistency.
func (c *AdapterConfig) Validate() error {
	switch c.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("unknown adapter type %q (want redis or webhook)", c.Type)
	}
	if c.Type != "" && c.URL == "" {
		return fmt.Errorf("adapter type %q requires a url", c.Type)
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Adapter.Validate()
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
