// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps events in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []Event
	migrated bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Migrate(context.Context) error {
	s.mu.Lock()
	s.migrated = true
	s.mu.Unlock()
	return nil
}

// Migrated reports whether Migrate has been called.
func (s *MemoryStore) Migrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.migrated
}

func (s *MemoryStore) Create(_ context.Context, e Event) error {
	if !e.Flow.Valid() {
		return ErrInvalidFlow
	}
	e.Data = append([]byte(nil), e.Data...)
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range s.events {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
