// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package audit records the request/response traffic of a worker.
//
// Audit logging is best-effort: a Logger never blocks or fails the calls it
// observes. Events are queued, written by a single goroutine in arrival
// order, and write failures are reported to a fallback zerolog logger only.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Flow tells whether an event records a request or its response.
type Flow string

const (
	FlowRequest  Flow = "request"
	FlowResponse Flow = "response"
)

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowRequest || f == FlowResponse
}

// SpaceExecute is the space of RPC execute traffic.
const SpaceExecute = "execute"

var (
	ErrInvalidFlow = errors.New("audit: invalid flow")
	ErrClosed      = errors.New("audit: logger closed")
)

// Event is one persisted audit record.
type Event struct {
	Date      time.Time       `json:"date"`
	RequestID string          `json:"requestId"`
	Flow      Flow            `json:"flow"`
	Space     string          `json:"space"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Query filters stored events. Zero fields match everything.
type Query struct {
	RequestID string
	Flow      Flow
	Space     string
	Since     time.Time
	Limit     int
}

// Match reports whether e satisfies q, ignoring Limit.
func (q Query) Match(e Event) bool {
	if q.RequestID != "" && e.RequestID != q.RequestID {
		return false
	}
	if q.Flow != "" && e.Flow != q.Flow {
		return false
	}
	if q.Space != "" && e.Space != q.Space {
		return false
	}
	if !q.Since.IsZero() && e.Date.Before(q.Since) {
		return false
	}
	return true
}

// Store is the append-only sink behind a Logger.
type Store interface {
	// Migrate registers the event schema. Called once before first use.
	Migrate(ctx context.Context) error
	Create(ctx context.Context, e Event) error
	// Find returns matching events, oldest first.
	Find(ctx context.Context, q Query) ([]Event, error)
}
