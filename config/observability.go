package config

import (
	"time"

	"github.com/kbukum/runkit/observability"
)

// ObservabilityConfig controls OTLP export of run spans and metrics.
type ObservabilityConfig struct {
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
	// Endpoint is the OTLP HTTP collector host:port.
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ApplyDefaults fills the collector endpoint, sampling and export interval.
func (c *ObservabilityConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
}

// TracerConfig returns the tracer settings for svc.
func (c ObservabilityConfig) TracerConfig(svc *ServiceConfig) *observability.TracerConfig {
	return &observability.TracerConfig{Exporter: c.exporter(svc), SampleRate: c.SampleRate}
}

// MeterConfig returns the meter settings for svc.
func (c ObservabilityConfig) MeterConfig(svc *ServiceConfig) *observability.MeterConfig {
	return &observability.MeterConfig{Exporter: c.exporter(svc), Interval: c.Interval}
}

func (c ObservabilityConfig) exporter(svc *ServiceConfig) observability.Exporter {
	return observability.Exporter{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Environment:    svc.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
	}
}
