// Package runnable composes units of work into pipelines that support four
// execution modes: Invoke, Batch, Stream and StreamEvents.
//
// A unit implements Runnable; it may additionally implement Streamer for
// native incremental output, Batcher for native batching and Kinder to label
// its runs. Combinators build larger units from smaller ones:
//
//   - Sequence: output of each step feeds the next (Pipe)
//   - Parallel: same input to every branch, output keyed by branch
//   - Branch: first matching condition wins, else the default
//   - Retry: bounded re-invocation with backoff (WithRetry)
//   - Fallbacks: ordered alternatives on failure (WithFallbacks)
//   - Passthrough, Assign, Pick: identity and map utilities
//   - Each: maps a unit over a slice input
//   - Lambda, Generator: wrap plain functions
//   - Binding: merges a bound Config into every call (WithConfig)
//
// Every call made through the engine functions (Invoke, InvokeConfig,
// Stream, StreamConfig, Batch) is one run: it checks the context, enforces
// the recursion limit, assigns a time-ordered run id and reports start, end,
// error and stream chunks to the handlers in Config.Callbacks. Combinators
// call their children only through the engine so that every nested unit is
// instrumented and parent run ids link the whole call tree.
//
// # Usage
//
//	upper := runnable.Func("upper", func(_ context.Context, s string) (string, error) {
//	    return strings.ToUpper(s), nil
//	})
//	exclaim := runnable.Func("exclaim", func(_ context.Context, s string) (string, error) {
//	    return s + "!", nil
//	})
//	out, err := runnable.Invoke(ctx, runnable.Pipe(upper, exclaim), "hi") // "HI!"
//
// Streams are pull-based. Nothing is produced until Next is called:
//
//	it, err := runnable.Stream(ctx, chain, input)
//	if err != nil { ... }
//	defer it.Close()
//	for {
//	    chunk, ok, err := it.Next(ctx)
//	    if err != nil || !ok { break }
//	    ...
//	}
//
// Cancellation is the context passed to every call. A cancelled context
// fails the call with a CANCELED AppError before any unit logic runs, and
// such errors are never retried or replaced by a fallback.
package runnable
