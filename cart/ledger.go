/*
ledger.go - Cart ledger with a time-bounded undo buffer

PURPOSE:
  The Ledger owns the active item set and the undo buffer ("recently
  removed"). All mutations go through it; readers get Snapshots.

CRITICAL INVARIANTS:
  1. ONE LINE PER PRODUCT: at most one LineItem per id in the active set
  2. POSITIVE QUANTITY: no LineItem is ever held or persisted with quantity <= 0
  3. DISJOINT: an id is never both active and in the undo buffer
  4. BOUNDED UNDO: the buffer holds at most UndoCapacity entries, newest first
  5. EXACT PURGE: an auto-purge only deletes the (id, removedAt) entry it was
     scheduled for, and is cancelled whenever that entry leaves by other means
  6. BOUNDED TOTAL: prices, quantities and line count stay within the limits
     in types.go, so totals cannot overflow int64

NO ERRORS:
  Unknown ids, quantities <= 0 and stale timer firings are no-ops. The UI
  never has to handle a failure from a cart action. Persistence failures
  are logged; the in-memory state stays authoritative.

PERSISTENCE:
  Only the active items are written to the Store, after every mutation
  that touches them. The undo buffer starts empty on every NewLedger.

EXAMPLE FLOW:
  1. AddItem(pea)        items=[pea x1]
  2. AddItem(pea)        items=[pea x2]
  3. RemoveItem(pea)     items=[]        removed=[pea x2 @t0]
  4. RestoreItem(pea)    items=[pea x2]  removed=[]   (purge timer cancelled)

SEE ALSO:
  - clock.go: Clock and ManualClock used for the purge timers
  - store.go: Store interface
  - checkout/session.go: Reads snapshots for pricing
*/
package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultUndoWindow is how long a removed item stays restorable.
	DefaultUndoWindow = 10 * time.Second

	// DefaultUndoCapacity is the maximum number of restorable items.
	DefaultUndoCapacity = 5
)

// Options configures a Ledger. Zero values select the defaults.
type Options struct {
	UndoWindow   time.Duration
	UndoCapacity int
	Clock        Clock
	Logger       *zap.Logger
}

// Ledger is the process-wide cart. Safe for concurrent use.
type Ledger struct {
	store        Store
	clock        Clock
	logger       *zap.Logger
	undoWindow   time.Duration
	undoCapacity int

	mu      sync.Mutex
	items   []LineItem
	removed []RemovedEntry
	purges  map[purgeKey]*pendingPurge

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// purgeKey identifies one removal. The same product removed twice has two
// different keys.
type purgeKey struct {
	id        ProductID
	removedAt int64
}

func keyOf(e RemovedEntry) purgeKey {
	return purgeKey{id: e.ID, removedAt: e.RemovedAt.UnixNano()}
}

type pendingPurge struct {
	timer Timer
}

// change records what a mutation touched.
type change uint8

const (
	itemsChanged change = 1 << iota
	removedChanged
)

// NewLedger creates a ledger and rehydrates the active set from store.
// A nil store keeps the cart in memory only.
func NewLedger(ctx context.Context, store Store, opts Options) (*Ledger, error) {
	l := &Ledger{
		store:        store,
		clock:        opts.Clock,
		logger:       opts.Logger,
		undoWindow:   opts.UndoWindow,
		undoCapacity: opts.UndoCapacity,
		purges:       make(map[purgeKey]*pendingPurge),
		observers:    make(map[int]func(Snapshot)),
	}
	if l.clock == nil {
		l.clock = SystemClock()
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.undoWindow <= 0 {
		l.undoWindow = DefaultUndoWindow
	}
	if l.undoCapacity <= 0 {
		l.undoCapacity = DefaultUndoCapacity
	}

	if store != nil {
		items, err := store.LoadItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		l.items = sanitize(items)
	}
	return l, nil
}

// sanitize enforces the active-set invariants on rehydrated data: lines with
// quantity <= 0 or an invalid price are dropped, duplicate ids are merged into
// the first occurrence, quantities are capped at MaxQuantity and lines beyond
// MaxLines are dropped.
func sanitize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice <= 0 || it.UnitPrice > MaxUnitPrice {
			continue
		}
		if i := slices.IndexFunc(out, func(o LineItem) bool { return o.ID == it.ID }); i >= 0 {
			out[i].Quantity = min(out[i].Quantity+min(it.Quantity, MaxQuantity), MaxQuantity)
			continue
		}
		if len(out) >= MaxLines {
			continue
		}
		it.Quantity = min(it.Quantity, MaxQuantity)
		out = append(out, it)
	}
	return out
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddItem increments the quantity of an existing line or inserts a new one
// with quantity 1. A pending undo entry for the same id is discarded.
// Candidates with an invalid price, lines already at MaxQuantity and new
// lines beyond MaxLines are ignored.
func (l *Ledger) AddItem(ctx context.Context, c Candidate) {
	if !c.Valid() {
		return
	}
	l.mutate(ctx, func() change {
		if i := l.indexOf(c.ID); i >= 0 {
			if l.items[i].Quantity >= MaxQuantity {
				return 0
			}
			l.items[i].Quantity++
		} else {
			if len(l.items) >= MaxLines {
				return 0
			}
			l.items = append(l.items, newLineItem(c))
		}
		ch := itemsChanged
		if l.dropRemovedLocked(c.ID) {
			ch |= removedChanged
		}
		return ch
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity <= 0
// behaves exactly like RemoveItem. Unknown ids and quantities above
// MaxQuantity are ignored.
func (l *Ledger) UpdateQuantity(ctx context.Context, id ProductID, quantity int) {
	l.mutate(ctx, func() change {
		if quantity <= 0 {
			return l.removeLocked(id)
		}
		i := l.indexOf(id)
		if i < 0 || quantity > MaxQuantity || l.items[i].Quantity == quantity {
			return 0
		}
		l.items[i].Quantity = quantity
		return itemsChanged
	})
}

// RemoveItem moves a line into the undo buffer and schedules its purge.
func (l *Ledger) RemoveItem(ctx context.Context, id ProductID) {
	l.mutate(ctx, func() change { return l.removeLocked(id) })
}

// RestoreItem moves an undo entry back into the active set with the quantity
// it had when removed.
func (l *Ledger) RestoreItem(ctx context.Context, id ProductID) {
	l.mutate(ctx, func() change {
		i := slices.IndexFunc(l.removed, func(e RemovedEntry) bool { return e.ID == id })
		if i < 0 || len(l.items) >= MaxLines {
			return 0
		}
		entry := l.removed[i]
		l.cancelPurgeLocked(entry)
		l.removed = slices.Delete(l.removed, i, i+1)

		// AddItem clears undo entries, so an active line with this id should
		// not exist. If it somehow does, the active line wins.
		if l.indexOf(id) < 0 {
			l.items = append(l.items, entry.LineItem)
		}
		return itemsChanged | removedChanged
	})
}

// ClearRecentlyRemoved empties the undo buffer and cancels all pending purges.
func (l *Ledger) ClearRecentlyRemoved() {
	l.mutate(context.Background(), func() change {
		if len(l.removed) == 0 {
			return 0
		}
		l.clearRemovedLocked()
		return removedChanged
	})
}

// ClearCart empties the active set and the undo buffer.
func (l *Ledger) ClearCart(ctx context.Context) {
	l.mutate(ctx, func() change {
		l.clearRemovedLocked()
		l.items = nil
		return itemsChanged | removedChanged
	})
}

// ConsumeItems takes ordered lines out of the active set. Each line's
// quantity is reduced by the ordered quantity and dropped at zero, without
// an undo entry. Units added after the order was priced stay in the cart.
func (l *Ledger) ConsumeItems(ctx context.Context, ordered []LineItem) {
	l.mutate(ctx, func() change {
		var ch change
		for _, o := range ordered {
			i := l.indexOf(o.ID)
			if i < 0 || o.Quantity <= 0 {
				continue
			}
			if left := l.items[i].Quantity - o.Quantity; left > 0 {
				l.items[i].Quantity = left
			} else {
				l.items = slices.Delete(l.items, i, i+1)
			}
			ch = itemsChanged
		}
		return ch
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// ItemQuantity returns the quantity of id in the active set, or 0.
func (l *Ledger) ItemQuantity(id ProductID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i].Quantity
	}
	return 0
}

// TotalItems is the sum of quantities.
func (l *Ledger) TotalItems() int { return l.Snapshot().TotalItems() }

// TotalPrice is the sum of UnitPrice * Quantity.
func (l *Ledger) TotalPrice() int64 { return l.Snapshot().TotalPrice() }

// IsInCart reports whether id is in the active set.
func (l *Ledger) IsInCart(id ProductID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexOf(id) >= 0
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers fn to be called with a fresh snapshot after every state
// change, including auto-purges. fn runs outside the ledger lock and may call
// back into the ledger. The returned func unregisters it.
func (l *Ledger) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	l.obsMu.Lock()
	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn
	l.obsMu.Unlock()

	return func() {
		l.obsMu.Lock()
		delete(l.observers, id)
		l.obsMu.Unlock()
	}
}

func (l *Ledger) notify(s Snapshot) {
	l.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(l.observers))
	for _, fn := range l.observers {
		fns = append(fns, fn)
	}
	l.obsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// =============================================================================
// INTERNALS (caller holds l.mu unless noted)
// =============================================================================

// mutate runs fn under the lock, persists when active items changed and
// notifies observers after unlocking.
func (l *Ledger) mutate(ctx context.Context, fn func() change) {
	l.mu.Lock()
	ch := fn()
	if ch == 0 {
		l.mu.Unlock()
		return
	}
	if ch&itemsChanged != 0 {
		l.persistLocked(ctx)
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snap)
}

func (l *Ledger) persistLocked(ctx context.Context) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveItems(ctx, slices.Clone(l.items)); err != nil {
		l.logger.Error("failed to persist cart",
			zap.Int("items", len(l.items)),
			zap.Error(err))
	}
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		Items:           slices.Clone(l.items),
		RecentlyRemoved: slices.Clone(l.removed),
	}
}

func (l *Ledger) indexOf(id ProductID) int {
	return slices.IndexFunc(l.items, func(it LineItem) bool { return it.ID == id })
}

func (l *Ledger) removeLocked(id ProductID) change {
	i := l.indexOf(id)
	if i < 0 {
		return 0
	}
	item := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)

	// Re-removing an id cannot leave two entries for it.
	l.dropRemovedLocked(id)

	entry := RemovedEntry{LineItem: item, RemovedAt: l.clock.Now()}
	l.removed = slices.Insert(l.removed, 0, entry)
	for len(l.removed) > l.undoCapacity {
		last := len(l.removed) - 1
		evicted := l.removed[last]
		l.removed = l.removed[:last]
		l.cancelPurgeLocked(evicted)
		l.logger.Debug("undo entry evicted",
			zap.Int64("product_id", int64(evicted.ID)),
			zap.Time("removed_at", evicted.RemovedAt))
	}
	l.schedulePurgeLocked(entry)
	return itemsChanged | removedChanged
}

// dropRemovedLocked discards every undo entry for id. Reports whether any
// entry was dropped.
func (l *Ledger) dropRemovedLocked(id ProductID) bool {
	dropped := false
	l.removed = slices.DeleteFunc(l.removed, func(e RemovedEntry) bool {
		if e.ID != id {
			return false
		}
		l.cancelPurgeLocked(e)
		dropped = true
		return true
	})
	return dropped
}

func (l *Ledger) clearRemovedLocked() {
	for _, e := range l.removed {
		l.cancelPurgeLocked(e)
	}
	l.removed = nil
}

func (l *Ledger) schedulePurgeLocked(e RemovedEntry) {
	key := keyOf(e)
	if old, ok := l.purges[key]; ok {
		old.timer.Stop()
	}
	p := &pendingPurge{}
	l.purges[key] = p
	p.timer = l.clock.AfterFunc(l.undoWindow, func() { l.expire(key, p) })
}

func (l *Ledger) cancelPurgeLocked(e RemovedEntry) {
	key := keyOf(e)
	if p, ok := l.purges[key]; ok {
		p.timer.Stop()
		delete(l.purges, key)
	}
}

// expire is the purge callback. Acquires l.mu itself. It only acts if p is
// still the registered purge for key, so a callback that lost a race with
// Stop cannot delete a restored or re-removed entry.
func (l *Ledger) expire(key purgeKey, p *pendingPurge) {
	l.mu.Lock()
	if l.purges[key] != p {
		l.mu.Unlock()
		return
	}
	delete(l.purges, key)

	i := slices.IndexFunc(l.removed, func(e RemovedEntry) bool { return keyOf(e) == key })
	if i < 0 {
		l.mu.Unlock()
		return
	}
	l.removed = slices.Delete(l.removed, i, i+1)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.Debug("undo entry expired", zap.Int64("product_id", int64(key.id)))
	l.notify(snap)
}

