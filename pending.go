// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"sync"

	"github.com/google/uuid"
)

// newID returns a random correlation id.
func newID() string {
	return uuid.NewString()
}

// pendingTable tracks one waiter per outstanding call. An id is inserted
// once and removed by the first settlement; later settlements for the same
// id are dropped.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]chan *ExecuteResponse
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]chan *ExecuteResponse)}
}

// register adds a waiter for id. The returned channel receives at most one
// response.
func (t *pendingTable) register(id string) <-chan *ExecuteResponse {
	ch := make(chan *ExecuteResponse, 1)
	t.mu.Lock()
	t.calls[id] = ch
	t.mu.Unlock()
	return ch
}

// settle hands resp to its waiter. It reports false for unknown or
// already settled ids.
func (t *pendingTable) settle(resp *ExecuteResponse) bool {
	t.mu.Lock()
	ch, ok := t.calls[resp.ID]
	if ok {
		delete(t.calls, resp.ID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// forget drops the waiter for id without settling it.
func (t *pendingTable) forget(id string) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
