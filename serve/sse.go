package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/runkit/errors"
)

// SSE event names.
const (
	EventData  = "data"
	EventError = "error"
	EventEnd   = "end"
)

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE writes the event-stream headers. Streams are exempt from the
// server's write timeout.
func (s *Server) startSSE(c *gin.Context) *sseWriter {
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("Could not disable write deadline", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	sw := &sseWriter{w: c.Writer, flusher: c.Writer}
	sw.flusher.Flush()
	return sw
}

func (sw *sseWriter) event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Internal(fmt.Errorf("encode %s event: %w", name, err))
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

func (sw *sseWriter) comment(text string) {
	_, _ = fmt.Fprintf(sw.w, ": %s\n\n", text)
	sw.flusher.Flush()
}

// finishSSE writes the terminal event of a stream. Nothing is written once
// the client is gone.
func (s *Server) finishSSE(c *gin.Context, sw *sseWriter, runID string, err error) {
	ctx := c.Request.Context()
	if ctx.Err() != nil {
		s.log.Debug("Stream client disconnected", map[string]interface{}{
			"path":   c.Request.URL.Path,
			"run_id": runID,
		})
		return
	}
	if err != nil {
		appErr := errors.FromError(err)
		_ = c.Error(err)
		if s.metrics != nil {
			s.metrics.RecordError(ctx, string(appErr.Code), "serve")
		}
		_ = sw.event(EventError, appErr.ToResponse())
		return
	}
	_ = sw.event(EventEnd, gin.H{"run_id": runID})
}

type pulled[T any] struct {
	val T
	ok  bool
	err error
}

// pump pulls from next on its own goroutine and hands each result over an
// unbuffered channel, so a slow client still slows the producer. The
// goroutine owns the source and closes it when done.
func pump[T any](ctx context.Context, next func(context.Context) (T, bool, error), closeFn func() error) <-chan pulled[T] {
	ch := make(chan pulled[T])
	go func() {
		defer close(ch)
		defer closeFn()
		for {
			v, ok, err := next(ctx)
			select {
			case ch <- pulled[T]{val: v, ok: ok, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil || !ok {
				return
			}
		}
	}()
	return ch
}

// relay writes every pulled value as a data event, sending keep-alive
// comments while the source is quiet. It returns the source's terminal
// error, or the context error when the client goes away.
func relay[T any](ctx context.Context, sw *sseWriter, keepAlive time.Duration, items <-chan pulled[T], encode func(T) any) error {
	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			sw.comment(fmt.Sprintf("keepalive %d", time.Now().Unix()))
		case p, open := <-items:
			if !open {
				return ctx.Err()
			}
			if p.err != nil {
				return p.err
			}
			if !p.ok {
				return nil
			}
			if err := sw.event(EventData, encode(p.val)); err != nil {
				return err
			}
		}
	}
}
