package config

import (
	"fmt"

	"github.com/kbukum/runkit/serve"
	"github.com/kbukum/runkit/validation"
)

// Config is the full configuration of the runkit service.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine        EngineConfig        `yaml:"engine" mapstructure:"engine"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Server        serve.Config        `yaml:"server" mapstructure:"server"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c.Engine); err != nil {
		return fmt.Errorf("config.engine: %w", err)
	}
	if err := validation.Validate(c.Observability); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	return nil
}

// Load reads the configuration of serviceName, applies defaults and
// validates it. A missing name falls back to serviceName.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
