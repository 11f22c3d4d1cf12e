// Package store records request identifiers that have already settled, so
// the inbound router can tell a late duplicate response from a foreign
// message. Observational only: request resolution is keyed by the pending
// table alone.
package store

import (
	"context"
	"sync"
	"time"
)

type Journal interface {
	MarkSettled(ctx context.Context, requestID string, ttl time.Duration) error
	WasSettled(ctx context.Context, requestID string) (bool, error)
}

type MemoryJournal struct {
	mu      sync.RWMutex
	settled map[string]time.Time
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{settled: make(map[string]time.Time)}
}

func (m *MemoryJournal) MarkSettled(_ context.Context, requestID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled[requestID] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryJournal) WasSettled(_ context.Context, requestID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expireAt, ok := m.settled[requestID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expireAt), nil
}
