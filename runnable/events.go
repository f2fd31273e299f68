package runnable

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/errors"
)

// Event phases.
const (
	PhaseStart  = "start"
	PhaseStream = "stream"
	PhaseEnd    = "end"
	PhaseError  = "error"
)

// EventData is the payload of an Event. Only the field of its phase is set.
type EventData struct {
	Input  any   `json:"input,omitempty"`
	Chunk  any   `json:"chunk,omitempty"`
	Output any   `json:"output,omitempty"`
	Error  error `json:"-"`
}

// Event is one lifecycle step of a run in a StreamEvents call tree. Event is
// named on_<kind>_<phase>, for example on_chain_start or on_llm_stream.
type Event struct {
	Event       string         `json:"event"`
	RunID       string         `json:"run_id"`
	ParentRunID string         `json:"parent_run_id,omitempty"`
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Data        EventData      `json:"data"`
}

// Phase returns the phase part of the event name.
func (e Event) Phase() string {
	prefix := "on_" + string(e.Kind) + "_"
	if len(e.Event) > len(prefix) && e.Event[:len(prefix)] == prefix {
		return e.Event[len(prefix):]
	}
	return ""
}

// EventFilter selects events by run name, kind and tags. An event passes
// when it matches any include list (or no include list is set) and matches
// no exclude list.
type EventFilter struct {
	IncludeNames []string
	IncludeKinds []Kind
	IncludeTags  []string
	ExcludeNames []string
	ExcludeKinds []Kind
	ExcludeTags  []string
}

// Match reports whether e passes the filter.
func (f EventFilter) Match(e Event) bool {
	if slices.Contains(f.ExcludeNames, e.Name) ||
		slices.Contains(f.ExcludeKinds, e.Kind) ||
		anyTag(f.ExcludeTags, e.Tags) {
		return false
	}
	if len(f.IncludeNames) == 0 && len(f.IncludeKinds) == 0 && len(f.IncludeTags) == 0 {
		return true
	}
	return slices.Contains(f.IncludeNames, e.Name) ||
		slices.Contains(f.IncludeKinds, e.Kind) ||
		anyTag(f.IncludeTags, e.Tags)
}

func anyTag(want, have []string) bool {
	for _, t := range want {
		if slices.Contains(have, t) {
			return true
		}
	}
	return false
}

// collector turns run notifications into events. It blocks until the
// consumer takes each event, which keeps production pull-driven.
type collector struct {
	out    chan<- Event
	stop   <-chan struct{}
	filter EventFilter
}

func (c *collector) emit(run callbacks.RunInfo, phase string, data EventData) {
	e := Event{
		Event:       fmt.Sprintf("on_%s_%s", run.Kind, phase),
		RunID:       run.RunID,
		ParentRunID: run.ParentRunID,
		Name:        run.Name,
		Kind:        Kind(run.Kind),
		Tags:        slices.Clone(run.Tags),
		Metadata:    run.Metadata,
		Data:        data,
	}
	if !c.filter.Match(e) {
		return
	}
	select {
	case c.out <- e:
	case <-c.stop:
	}
}

func (c *collector) OnStart(_ context.Context, run callbacks.RunInfo, input any) {
	c.emit(run, PhaseStart, EventData{Input: input})
}

func (c *collector) OnNewToken(_ context.Context, run callbacks.RunInfo, chunk any) {
	c.emit(run, PhaseStream, EventData{Chunk: chunk})
}

func (c *collector) OnEnd(_ context.Context, run callbacks.RunInfo, output any) {
	c.emit(run, PhaseEnd, EventData{Output: output})
}

func (c *collector) OnError(_ context.Context, run callbacks.RunInfo, err error) {
	c.emit(run, PhaseError, EventData{Error: err})
}

// EventIterator yields the events of a StreamEvents call.
type EventIterator struct {
	events <-chan Event
	done   <-chan error
	stop   chan struct{}
	cancel context.CancelFunc

	once     sync.Once
	finished bool
	err      error
}

// StreamEvents streams r on input and yields a lifecycle event for every run
// in the call tree instead of output chunks.
func StreamEvents(ctx context.Context, r Runnable, input any, opts ...Option) (*EventIterator, error) {
	return StreamEventsConfig(ctx, r, input, NewConfig(opts...), EventFilter{})
}

// StreamEventsConfig is StreamEvents with an explicit config and filter.
//
// The stream runs on its own goroutine and advances only while events are
// being pulled. Runs of Parallel branches abandoned after a sibling failed
// may have no terminal event.
func StreamEventsConfig(ctx context.Context, r Runnable, input any, cfg Config, filter EventFilter) (*EventIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(r.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event)
	done := make(chan error, 1)
	stop := make(chan struct{})
	col := &collector{out: events, stop: stop, filter: filter}
	cfg = cfg.With(WithCallbacks(col))

	go func() {
		defer close(events)
		it, err := StreamConfig(runCtx, r, input, cfg)
		if err != nil {
			done <- err
			return
		}
		defer it.Close()
		for {
			_, ok, err := it.Next(runCtx)
			if err != nil || !ok {
				done <- err
				return
			}
		}
	}()

	return &EventIterator{events: events, done: done, stop: stop, cancel: cancel}, nil
}

// Next returns the next event. Once the run is over it returns
// (Event{}, false, err) where err is the error of the top-level run, if any.
func (it *EventIterator) Next(ctx context.Context) (Event, bool, error) {
	if it.finished {
		return Event{}, false, it.err
	}
	select {
	case e, open := <-it.events:
		if open {
			return e, true, nil
		}
		it.finished = true
		select {
		case it.err = <-it.done:
		default:
		}
		return Event{}, false, it.err
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	}
}

// Close stops the run and waits for the producer to exit.
func (it *EventIterator) Close() error {
	it.once.Do(func() {
		close(it.stop)
		it.cancel()
		for range it.events {
		}
	})
	return nil
}

// Collect drains the iterator and closes it.
func (it *EventIterator) Collect(ctx context.Context) ([]Event, error) {
	defer it.Close()
	var out []Event
	for {
		e, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, e)
	}
}
