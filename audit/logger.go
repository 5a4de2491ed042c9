// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Option configures a Logger
type Option func(*Logger)

// WithFallback sets where write failures are reported
func WithFallback(l zerolog.Logger) Option {
	return func(a *Logger) { a.fallback = l }
}

// WithQueueSize bounds the number of events waiting to be written
func WithQueueSize(n int) Option {
	return func(a *Logger) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithWriteTimeout bounds each store write
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Logger) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) Option {
	return func(a *Logger) { a.now = now }
}

// Logger writes events to a Store in the background.
type Logger struct {
	store        Store
	fallback     zerolog.Logger
	queueSize    int
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// New registers the event schema with store and starts the writer.
func New(ctx context.Context, store Store, opts ...Option) (*Logger, error) {
	l := &Logger{
		store:        store,
		fallback:     zerolog.Nop(),
		queueSize:    defaultQueueSize,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("audit: migrate store: %w", err)
	}

	l.queue = make(chan Event, l.queueSize)
	l.done = make(chan struct{})
	go l.run()
	return l, nil
}

// Record queues an event for data. It never blocks and never fails; a full
// queue or an unencodable payload is reported to the fallback logger.
func (l *Logger) Record(space string, flow Flow, requestID string, data any) {
	e := Event{Date: l.now(), RequestID: requestID, Flow: flow, Space: space}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			l.fail(e, fmt.Errorf("encode data: %w", err))
		} else {
			e.Data = raw
		}
	}
	l.Log(e)
}

// Log queues e.
func (l *Logger) Log(e Event) {
	if e.Date.IsZero() {
		e.Date = l.now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.fail(e, ErrClosed)
		return
	}
	select {
	case l.queue <- e:
	default:
		l.fail(e, fmt.Errorf("audit: queue full (%d)", l.queueSize))
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		l.write(e)
	}
}

func (l *Logger) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()
	if err := l.store.Create(ctx, e); err != nil {
		l.fail(e, err)
	}
}

func (l *Logger) fail(e Event, err error) {
	l.fallback.Error().
		Err(err).
		Str("space", e.Space).
		Str("requestId", e.RequestID).
		Str("flow", string(e.Flow)).
		RawJSON("data", rawOrNull(e.Data)).
		Msg("error logging event")
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

// Close stops accepting events and waits until queued events are written
// or ctx ends.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
