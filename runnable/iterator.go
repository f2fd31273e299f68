package runnable

import (
	"context"

	"github.com/kbukum/runkit/chunk"
)

// Iterator provides pull-based access to the chunks of a stream.
type Iterator interface {
	// Next returns the next chunk. Returns (nil, false, nil) when exhausted.
	Next(ctx context.Context) (any, bool, error)
	// Close releases any resources held by the iterator. Closing before
	// exhaustion abandons the stream.
	Close() error
}

// FromSlice returns an iterator over chunks.
func FromSlice(chunks ...any) Iterator {
	return &sliceIter{items: chunks}
}

// Collect drains it and closes it.
func Collect(ctx context.Context, it Iterator) ([]any, error) {
	defer it.Close()
	var out []any
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// Fold drains it, concatenating chunks with chunk.Concat, and closes it.
func Fold(ctx context.Context, it Iterator) (any, error) {
	defer it.Close()
	var acc any
	for i := 0; ; i++ {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return acc, nil
		}
		if i == 0 {
			acc = v
			continue
		}
		if acc, err = chunk.Concat(acc, v); err != nil {
			return nil, err
		}
	}
}

type sliceIter struct {
	items []any
	pos   int
}

func (it *sliceIter) Next(ctx context.Context) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if it.pos >= len(it.items) {
		return nil, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

func (it *sliceIter) Close() error { return nil }

// lazyIter opens its source on the first Next.
type lazyIter struct {
	open func(ctx context.Context) (Iterator, error)
	src  Iterator
	err  error
	done bool
}

func (it *lazyIter) Next(ctx context.Context) (any, bool, error) {
	if it.done {
		return nil, false, it.err
	}
	if it.src == nil {
		src, err := it.open(ctx)
		if err != nil {
			it.done, it.err = true, err
			return nil, false, err
		}
		it.src = src
	}
	return it.src.Next(ctx)
}

func (it *lazyIter) Close() error {
	it.done = true
	if it.src != nil {
		return it.src.Close()
	}
	return nil
}

// once returns an iterator yielding the result of fn as a single chunk.
func once(fn func(ctx context.Context) (any, error)) Iterator {
	return &lazyIter{open: func(ctx context.Context) (Iterator, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return FromSlice(v), nil
	}}
}

// result carries one chunk or error through a channel.
type result struct {
	val any
	err error
}

// channelIter reads results from a channel fed by producer goroutines.
type channelIter struct {
	ch     <-chan result
	closer func() error
}

func (it *channelIter) Next(ctx context.Context) (any, bool, error) {
	select {
	case r, open := <-it.ch:
		if !open {
			return nil, false, nil
		}
		if r.err != nil {
			return nil, false, r.err
		}
		return r.val, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (it *channelIter) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}
