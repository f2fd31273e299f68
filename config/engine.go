package config

import (
	"time"

	"github.com/kbukum/runkit/runnable"
)

// EngineConfig holds the defaults applied to every top-level run a service
// starts.
type EngineConfig struct {
	// MaxConcurrency bounds batch and parallel fan-out. Zero is unbounded.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=0"`
	// RecursionLimit bounds nesting depth. Zero uses the engine default.
	RecursionLimit int `yaml:"recursion_limit" mapstructure:"recursion_limit" validate:"gte=0"`
	// Tags label every run.
	Tags []string `yaml:"tags" mapstructure:"tags"`
	// Retry wraps served runnables when enabled.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig mirrors runnable.RetryPolicy in config form.
type RetryConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" validate:"gte=0"`
	BackoffFactor  float64       `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"gte=0"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills unset retry fields from runnable.DefaultRetryPolicy.
func (c *EngineConfig) ApplyDefaults() {
	def := runnable.DefaultRetryPolicy()
	r := &c.Retry
	if r.MaxAttempts == 0 {
		r.MaxAttempts = def.MaxAttempts
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = def.InitialBackoff
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = def.MaxBackoff
	}
	if r.BackoffFactor == 0 {
		r.BackoffFactor = def.BackoffFactor
	}
}

// RunConfig builds the runnable.Config for a top-level run. opts are
// applied after the engine defaults.
func (c EngineConfig) RunConfig(opts ...runnable.Option) runnable.Config {
	base := []runnable.Option{
		runnable.WithTags(c.Tags...),
		runnable.WithMaxConcurrency(c.MaxConcurrency),
		runnable.WithRecursionLimit(c.RecursionLimit),
	}
	return runnable.NewConfig(append(base, opts...)...)
}

// Policy returns the retry policy described by c.
func (c RetryConfig) Policy() runnable.RetryPolicy {
	return runnable.RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		BackoffFactor:  c.BackoffFactor,
		Jitter:         c.Jitter,
	}
}

// Wrap applies the retry policy to r when retries are enabled.
func (c RetryConfig) Wrap(r runnable.Runnable) runnable.Runnable {
	if !c.Enabled {
		return r
	}
	return runnable.WithRetry(r, c.Policy())
}
