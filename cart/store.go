package cart

import "context"

// Store persists the active item set between process restarts.
//
// Only active items are stored. The undo buffer is never persisted and
// always starts empty.
//
// IMPLEMENTATIONS:
//   - store/sqlite/sqlite.go: Durable SQLite storage
//   - cart/store/memory.go: In-memory, for tests and dev
type Store interface {
	// LoadItems returns the persisted active set in cart order.
	LoadItems(ctx context.Context) ([]LineItem, error)

	// SaveItems replaces the persisted active set. Called after every
	// mutation that touches active items.
	SaveItems(ctx context.Context, items []LineItem) error
}
