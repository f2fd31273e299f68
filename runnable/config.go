package runnable

import (
	"maps"
	"slices"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/validation"
)

// DefaultRecursionLimit is the nesting depth allowed when
// Config.RecursionLimit is zero.
const DefaultRecursionLimit = 25

// Config carries cross-cutting parameters through a call tree.
//
// A Config is treated as immutable: the engine derives a fresh copy for every
// nested run, so sibling branches never observe each other's changes. The
// context passed alongside it is the cancellation signal.
type Config struct {
	// Tags label every run in the tree.
	Tags []string `json:"tags,omitempty"`
	// Metadata is attached to every run in the tree.
	Metadata map[string]any `json:"metadata,omitempty"`
	// MaxConcurrency bounds Batch and Parallel fan-out. Zero is unbounded.
	MaxConcurrency int `json:"max_concurrency,omitempty" validate:"gte=0"`
	// RecursionLimit bounds nesting depth. Zero uses DefaultRecursionLimit.
	RecursionLimit int `json:"recursion_limit,omitempty" validate:"gte=0"`
	// Callbacks observe this run and every nested run.
	Callbacks []callbacks.Handler `json:"-"`
	// LocalCallbacks observe this run only.
	LocalCallbacks []callbacks.Handler `json:"-"`
	// Configurable holds opaque values for leaf units.
	Configurable map[string]any `json:"configurable,omitempty"`
	// RunName overrides the unit name of this run only.
	RunName string `json:"run_name,omitempty"`
	// RunID assigns the id of this run only. Empty generates one.
	RunID string `json:"run_id,omitempty" validate:"omitempty,uuid"`

	depth       int
	parentRunID string
}

// Option modifies a Config.
type Option func(*Config)

// NewConfig builds a Config from options.
func NewConfig(opts ...Option) Config {
	var c Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithTags appends tags.
func WithTags(tags ...string) Option {
	return func(c *Config) { c.Tags = appendUnique(c.Tags, tags...) }
}

// WithMetadata merges metadata, overwriting existing keys.
func WithMetadata(md map[string]any) Option {
	return func(c *Config) { c.Metadata = mergeMap(c.Metadata, md) }
}

// WithMaxConcurrency sets Config.MaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(c *Config) { c.MaxConcurrency = n }
}

// WithRecursionLimit sets Config.RecursionLimit.
func WithRecursionLimit(n int) Option {
	return func(c *Config) { c.RecursionLimit = n }
}

// WithCallbacks appends inheritable handlers.
func WithCallbacks(handlers ...callbacks.Handler) Option {
	return func(c *Config) { c.Callbacks = append(slices.Clip(c.Callbacks), handlers...) }
}

// WithLocalCallbacks appends handlers that observe only the next run.
func WithLocalCallbacks(handlers ...callbacks.Handler) Option {
	return func(c *Config) { c.LocalCallbacks = append(slices.Clip(c.LocalCallbacks), handlers...) }
}

// WithConfigurable merges configurable values, overwriting existing keys.
func WithConfigurable(values map[string]any) Option {
	return func(c *Config) { c.Configurable = mergeMap(c.Configurable, values) }
}

// WithRunName sets Config.RunName.
func WithRunName(name string) Option {
	return func(c *Config) { c.RunName = name }
}

// WithRunID sets Config.RunID.
func WithRunID(id string) Option {
	return func(c *Config) { c.RunID = id }
}

// Inherit starts from cfg, including its position in the call tree. Use it
// when a unit calls Invoke or Stream from inside its own logic so the nested
// runs stay linked to the caller. It should be the first option.
func Inherit(cfg Config) Option {
	return func(c *Config) { *c = cfg.Clone() }
}

// Clone returns a deep copy of the slices and maps of c.
func (c Config) Clone() Config {
	out := c
	out.Tags = slices.Clone(c.Tags)
	out.Metadata = maps.Clone(c.Metadata)
	out.Callbacks = slices.Clone(c.Callbacks)
	out.LocalCallbacks = slices.Clone(c.LocalCallbacks)
	out.Configurable = maps.Clone(c.Configurable)
	return out
}

// With returns a copy of c with opts applied.
func (c Config) With(opts ...Option) Config {
	out := c.Clone()
	for _, opt := range opts {
		opt(&out)
	}
	return out
}

// Validate checks the numeric limits and the run id format.
func (c Config) Validate() error {
	return validation.Validate(c)
}

// Depth returns the nesting depth of the run this config belongs to.
func (c Config) Depth() int { return c.depth }

// ParentRunID returns the id of the run that derived this config, or "" at
// the top of a call tree.
func (c Config) ParentRunID() string { return c.parentRunID }

func (c Config) recursionLimit() int {
	if c.RecursionLimit > 0 {
		return c.RecursionLimit
	}
	return DefaultRecursionLimit
}

// child derives the config passed to the unit of run runID. Per-run fields
// are not inherited.
func (c Config) child(runID string) Config {
	out := c.Clone()
	out.LocalCallbacks = nil
	out.RunName = ""
	out.RunID = ""
	out.depth = c.depth + 1
	out.parentRunID = runID
	return out
}

// MergeConfigs overlays override on base. Tags are unioned with base first,
// maps are merged with override winning, handlers are appended and scalar
// fields are replaced when set in override. The call-tree position of base
// is kept.
func MergeConfigs(base, override Config) Config {
	out := base.Clone()
	out.Tags = appendUnique(out.Tags, override.Tags...)
	out.Metadata = mergeMap(out.Metadata, override.Metadata)
	out.Configurable = mergeMap(out.Configurable, override.Configurable)
	out.Callbacks = append(out.Callbacks, override.Callbacks...)
	out.LocalCallbacks = append(out.LocalCallbacks, override.LocalCallbacks...)
	if override.MaxConcurrency != 0 {
		out.MaxConcurrency = override.MaxConcurrency
	}
	if override.RecursionLimit != 0 {
		out.RecursionLimit = override.RecursionLimit
	}
	if override.RunName != "" {
		out.RunName = override.RunName
	}
	if override.RunID != "" {
		out.RunID = override.RunID
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	dst = slices.Clip(dst)
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// mergeMap returns a new map with the entries of a overwritten by b.
func mergeMap(a, b map[string]any) map[string]any {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
