package runnable

import "context"

// Binding merges a bound configuration into every call of a unit. It does
// not create a run of its own: the engine resolves it to the wrapped unit.
type Binding struct {
	inner Runnable
	bound Config
}

// WithConfig binds cfg to r. Tags are unioned, handlers appended and scalar
// fields of cfg override the caller's; metadata and configurable keys set by
// the caller win over cfg. A RunID in cfg is dropped: a bound unit runs many
// times and each run gets its own id.
func WithConfig(r Runnable, cfg Config) *Binding {
	bound := cfg.Clone()
	bound.RunID = ""
	if b, ok := r.(*Binding); ok {
		return &Binding{inner: b.inner, bound: MergeConfigs(b.bound, bound)}
	}
	return &Binding{inner: r, bound: bound}
}

func (b *Binding) Name() string { return b.inner.Name() }

// Invoke delegates to the wrapped unit. The engine never calls it; it exists
// for callers that use a Binding outside the engine.
func (b *Binding) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	r, merged := b.resolve(cfg)
	return r.Invoke(ctx, input, merged)
}

func (b *Binding) resolve(cfg Config) (Runnable, Config) {
	merged := MergeConfigs(cfg, b.bound)
	merged.Metadata = mergeMap(b.bound.Metadata, cfg.Metadata)
	merged.Configurable = mergeMap(b.bound.Configurable, cfg.Configurable)
	return b.inner, merged
}
