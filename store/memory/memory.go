// Package memory provides an in-process leave.Store.
package memory

import (
	"context"
	"sync"

	"github.com/warp/leave-tracker/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records []leave.Request
	saves   int

	// FailLoad and FailSave make the next calls fail, for error-path tests.
	FailLoad error
	FailSave error
}

func NewMemory(seed ...leave.Request) *Memory {
	return &Memory{records: leave.Dedupe(seed)}
}

// LoadAll returns a copy of the collection.
func (m *Memory) LoadAll(_ context.Context) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailLoad != nil {
		return nil, &leave.StoreError{Op: "load", Err: m.FailLoad}
	}
	out := make([]leave.Request, len(m.records))
	copy(out, m.records)
	return out, nil
}

// SaveAll replaces the collection.
func (m *Memory) SaveAll(_ context.Context, records []leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		return &leave.StoreError{Op: "save", Err: m.FailSave}
	}
	m.records = leave.Dedupe(records)
	m.saves++
	return nil
}

// Saves counts successful SaveAll calls.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
