// Package store provides cart.Store implementations.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/microgreen/storefront/cart"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	items []cart.LineItem
	saves int
	err   error
}

// NewMemory creates a store pre-populated with items, as if a previous
// session had saved them.
func NewMemory(items ...cart.LineItem) *Memory {
	return &Memory{items: slices.Clone(items)}
}

func (m *Memory) LoadItems(_ context.Context) ([]cart.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.items), nil
}

func (m *Memory) SaveItems(_ context.Context, items []cart.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = slices.Clone(items)
	m.saves++
	return nil
}

// Items returns what was last saved.
func (m *Memory) Items() []cart.LineItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

// Saves counts successful SaveItems calls.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
