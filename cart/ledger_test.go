package cart_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/cart/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var t0 = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*cart.Ledger, *cart.ManualClock, *store.Memory) {
	t.Helper()
	clock := cart.NewManualClock(t0)
	mem := store.NewMemory()
	l, err := cart.NewLedger(context.Background(), mem, cart.Options{Clock: clock})
	require.NoError(t, err)
	return l, clock, mem
}

func pea() cart.Candidate {
	return cart.Candidate{ID: 1, Name: "Pea microgreens", UnitPrice: 350, WeightLabel: "50 g", ImageRef: "/img/pea.jpg"}
}

func basil() cart.Candidate {
	return cart.Candidate{ID: 2, Name: "Basil microgreens", UnitPrice: 450, WeightLabel: "30 g", ImageRef: "/img/basil.jpg"}
}

func product(id int) cart.Candidate {
	return cart.Candidate{ID: cart.ProductID(id), Name: "product", UnitPrice: int64(100 * id)}
}

func removedIDs(s cart.Snapshot) []cart.ProductID {
	ids := make([]cart.ProductID, 0, len(s.RecentlyRemoved))
	for _, e := range s.RecentlyRemoved {
		ids = append(ids, e.ID)
	}
	return ids
}

// =============================================================================
// ADD / UPDATE / REMOVE
// =============================================================================

func TestLedger_AddItem_NewAndExisting(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	l.AddItem(ctx, pea())
	assert.Equal(t, 1, l.ItemQuantity(1))

	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())

	snap := l.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, cart.ProductID(1), snap.Items[0].ID, "insertion order is kept")
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "50 g", snap.Items[0].WeightLabel)
	assert.Equal(t, 3, l.TotalItems())
	assert.Equal(t, int64(350*2+450), l.TotalPrice())
	assert.True(t, l.IsInCart(2))
	assert.False(t, l.IsInCart(3))
	assert.Equal(t, 0, l.ItemQuantity(3))
}

func TestLedger_UpdateQuantity(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())

	l.UpdateQuantity(ctx, 1, 4)
	assert.Equal(t, 4, l.ItemQuantity(1))

	// Unknown id is a no-op
	l.UpdateQuantity(ctx, 99, 3)
	assert.False(t, l.IsInCart(99))
	assert.Len(t, l.Snapshot().Items, 1)
}

func TestLedger_UpdateQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -10} {
		l, _, _ := newTestLedger(t)
		ctx := context.Background()
		l.AddItem(ctx, pea())
		l.UpdateQuantity(ctx, 1, 3)

		l.UpdateQuantity(ctx, 1, q)

		snap := l.Snapshot()
		assert.Empty(t, snap.Items, "quantity %d should remove", q)
		require.Len(t, snap.RecentlyRemoved, 1)
		assert.Equal(t, 3, snap.RecentlyRemoved[0].Quantity, "undo entry keeps quantity at removal")
	}
}

func TestLedger_RemoveItem_MovesToUndoBuffer(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())

	clock.Advance(time.Second)
	l.RemoveItem(ctx, 1)

	snap := l.Snapshot()
	assert.False(t, l.IsInCart(1))
	require.Len(t, snap.RecentlyRemoved, 1)
	assert.Equal(t, cart.ProductID(1), snap.RecentlyRemoved[0].ID)
	assert.Equal(t, t0.Add(time.Second), snap.RecentlyRemoved[0].RemovedAt)
	assert.Equal(t, 1, clock.Pending(), "one purge scheduled")
}

func TestLedger_RemoveItem_UnknownIsNoop(t *testing.T) {
	l, clock, mem := newTestLedger(t)
	ctx := context.Background()

	l.RemoveItem(ctx, 42)

	assert.True(t, l.Snapshot().IsEmpty())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, mem.Saves(), "no-op must not write")
}

func TestLedger_UndoBuffer_NewestFirstCappedAtFive(t *testing.T) {
	// GIVEN: six products in the cart
	// WHEN: all six are removed one after another
	// THEN: the buffer holds the five newest; the oldest is gone immediately
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		l.AddItem(ctx, product(i))
	}

	for i := 1; i <= 6; i++ {
		l.RemoveItem(ctx, cart.ProductID(i))
		clock.Advance(100 * time.Millisecond)
	}

	snap := l.Snapshot()
	assert.Equal(t, []cart.ProductID{6, 5, 4, 3, 2}, removedIDs(snap))
	assert.Equal(t, 5, clock.Pending(), "evicted entry's timer is cancelled")

	l.RestoreItem(ctx, 1)
	assert.False(t, l.IsInCart(1), "evicted entry cannot be restored")
}

// =============================================================================
// RESTORE / EXPIRY
// =============================================================================

func TestLedger_RestoreWithinWindow(t *testing.T) {
	// GIVEN: pea x2 removed
	// WHEN: restored before the window elapses
	// THEN: pea x2 is active again and the stale purge never fires
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)

	clock.Advance(9 * time.Second)
	l.RestoreItem(ctx, 1)

	snap := l.Snapshot()
	assert.Equal(t, 2, l.ItemQuantity(1))
	assert.Empty(t, snap.RecentlyRemoved)
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, 2, l.ItemQuantity(1), "restored item is never wiped by the old timer")
}

func TestLedger_ExpiresExactlyAtWindow(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)

	clock.Advance(cart.DefaultUndoWindow - time.Nanosecond)
	require.Len(t, l.Snapshot().RecentlyRemoved, 1, "not purged early")

	clock.Advance(time.Nanosecond)
	assert.Empty(t, l.Snapshot().RecentlyRemoved, "purged at the window")

	l.RestoreItem(ctx, 1)
	assert.False(t, l.IsInCart(1), "restore after expiry is a no-op")
}

func TestLedger_CustomUndoWindowAndCapacity(t *testing.T) {
	clock := cart.NewManualClock(t0)
	l, err := cart.NewLedger(context.Background(), nil, cart.Options{
		Clock:        clock,
		UndoWindow:   3 * time.Second,
		UndoCapacity: 2,
	})
	require.NoError(t, err)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		l.AddItem(ctx, product(i))
		l.RemoveItem(ctx, cart.ProductID(i))
	}
	assert.Equal(t, []cart.ProductID{3, 2}, removedIDs(l.Snapshot()))

	clock.Advance(3 * time.Second)
	assert.Empty(t, l.Snapshot().RecentlyRemoved)
}

func TestLedger_AddItem_CancelsPendingUndo(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)

	l.AddItem(ctx, pea())

	snap := l.Snapshot()
	assert.Equal(t, 1, l.ItemQuantity(1), "re-adding starts a fresh line")
	assert.Empty(t, snap.RecentlyRemoved)
	assert.Equal(t, 0, clock.Pending())
}

func TestLedger_RepeatedRemoval_PurgesOnlyOwnEntry(t *testing.T) {
	// GIVEN: pea removed at t0, re-added, removed again at t0+5s
	// WHEN: t0+10s passes (first removal's deadline)
	// THEN: the second entry is still there until t0+15s
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)
	l.AddItem(ctx, pea())
	clock.Advance(5 * time.Second)
	l.RemoveItem(ctx, 1)

	clock.Advance(5 * time.Second)
	snap := l.Snapshot()
	require.Len(t, snap.RecentlyRemoved, 1)
	assert.Equal(t, t0.Add(5*time.Second), snap.RecentlyRemoved[0].RemovedAt)

	clock.Advance(5 * time.Second)
	assert.Empty(t, l.Snapshot().RecentlyRemoved)
}

func TestLedger_RemoveRestoreRemove_SameInstant(t *testing.T) {
	// Frozen clock: both removals share a timestamp. Only one purge may remain.
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)
	l.RestoreItem(ctx, 1)
	l.RemoveItem(ctx, 1)

	assert.Equal(t, 1, clock.Pending())
	clock.Advance(cart.DefaultUndoWindow)
	assert.Empty(t, l.Snapshot().RecentlyRemoved)
	assert.False(t, l.IsInCart(1))
}

func TestLedger_RestoreAppendsAtEnd(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())
	l.RemoveItem(ctx, 1)
	l.RestoreItem(ctx, 1)

	snap := l.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, cart.ProductID(2), snap.Items[0].ID)
	assert.Equal(t, cart.ProductID(1), snap.Items[1].ID)
}

func TestLedger_RestoreUnknownIsNoop(t *testing.T) {
	l, _, mem := newTestLedger(t)
	l.RestoreItem(context.Background(), 7)
	assert.True(t, l.Snapshot().IsEmpty())
	assert.Equal(t, 0, mem.Saves())
}

// =============================================================================
// CLEAR
// =============================================================================

func TestLedger_ClearRecentlyRemoved(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())
	l.RemoveItem(ctx, 1)
	l.RemoveItem(ctx, 2)
	require.Equal(t, 2, clock.Pending())

	l.ClearRecentlyRemoved()

	assert.Empty(t, l.Snapshot().RecentlyRemoved)
	assert.Equal(t, 0, clock.Pending(), "all purges cancelled")
}

func TestLedger_ClearCart(t *testing.T) {
	l, clock, mem := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())
	l.RemoveItem(ctx, 1)

	l.ClearCart(ctx)

	assert.True(t, l.Snapshot().IsEmpty())
	assert.Equal(t, 0, clock.Pending())
	assert.Empty(t, mem.Items())
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestLedger_PersistsActiveItemsOnly(t *testing.T) {
	l, _, mem := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.AddItem(ctx, basil())
	l.UpdateQuantity(ctx, 2, 3)
	l.RemoveItem(ctx, 1)

	saved := mem.Items()
	require.Len(t, saved, 1)
	assert.Equal(t, cart.ProductID(2), saved[0].ID)
	assert.Equal(t, 3, saved[0].Quantity)
	assert.Equal(t, 4, mem.Saves())

	// Undo-buffer-only changes do not write.
	l.ClearRecentlyRemoved()
	assert.Equal(t, 4, mem.Saves())
}

func TestLedger_Rehydrate(t *testing.T) {
	// GIVEN: a previous session saved items (including junk rows)
	// WHEN: a new ledger starts
	// THEN: active items are restored, junk is dropped, the undo buffer is empty
	mem := store.NewMemory(
		cart.LineItem{ID: 1, Name: "Pea", UnitPrice: 350, Quantity: 2},
		cart.LineItem{ID: 2, Name: "Basil", UnitPrice: 450, Quantity: 0},
		cart.LineItem{ID: 1, Name: "Pea", UnitPrice: 350, Quantity: 1},
	)

	l, err := cart.NewLedger(context.Background(), mem, cart.Options{Clock: cart.NewManualClock(t0)})
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Empty(t, snap.RecentlyRemoved)
}

func TestLedger_Rehydrate_EnforcesLimits(t *testing.T) {
	mem := store.NewMemory(
		cart.LineItem{ID: 1, Name: "Pea", UnitPrice: 350, Quantity: 30_000_000_000},
		cart.LineItem{ID: 2, Name: "Free", UnitPrice: 0, Quantity: 1},
		cart.LineItem{ID: 3, Name: "Gold", UnitPrice: cart.MaxUnitPrice + 1, Quantity: 1},
	)

	l, err := cart.NewLedger(context.Background(), mem, cart.Options{Clock: cart.NewManualClock(t0)})
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, cart.MaxQuantity, snap.Items[0].Quantity)
	assert.Equal(t, int64(350*cart.MaxQuantity), l.TotalPrice())
}

func TestLedger_ConsumeItems(t *testing.T) {
	// GIVEN: 3 peas and 1 basil, with broccoli in the undo buffer
	// WHEN: an order for 2 peas and 1 basil is consumed
	// THEN: 1 pea stays, basil is gone without an undo entry, broccoli is untouched
	l, _, mem := newTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.AddItem(ctx, pea())
	}
	l.AddItem(ctx, basil())
	l.AddItem(ctx, product(3))
	l.RemoveItem(ctx, 3)

	l.ConsumeItems(ctx, []cart.LineItem{
		{ID: 1, Quantity: 2},
		{ID: 2, Quantity: 5},
		{ID: 9, Quantity: 1},
	})

	snap := l.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	require.Len(t, snap.RecentlyRemoved, 1)
	assert.Equal(t, cart.ProductID(3), snap.RecentlyRemoved[0].ID)
	assert.Equal(t, snap.Items, mem.Items())
}

// =============================================================================
// LIMITS
// =============================================================================

func TestLedger_UpdateQuantity_AboveMaxIsIgnored(t *testing.T) {
	// GIVEN: 1 pea
	// WHEN: a quantity large enough to overflow price * quantity is set
	// THEN: nothing changes and the total stays exact
	l, _, mem := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())

	l.UpdateQuantity(ctx, 1, 30_000_000_000_000_000)
	assert.Equal(t, 1, l.ItemQuantity(1))
	assert.Equal(t, int64(350), l.TotalPrice())

	l.UpdateQuantity(ctx, 1, cart.MaxQuantity+1)
	assert.Equal(t, 1, l.ItemQuantity(1))

	l.UpdateQuantity(ctx, 1, cart.MaxQuantity)
	assert.Equal(t, cart.MaxQuantity, l.ItemQuantity(1))
	assert.Equal(t, cart.MaxQuantity, mem.Items()[0].Quantity)
}

func TestLedger_AddItem_StopsAtMaxQuantity(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	l.AddItem(ctx, pea())
	l.UpdateQuantity(ctx, 1, cart.MaxQuantity)

	l.AddItem(ctx, pea())
	assert.Equal(t, cart.MaxQuantity, l.ItemQuantity(1))
}

func TestLedger_AddItem_RejectsInvalidPrice(t *testing.T) {
	l, _, mem := newTestLedger(t)
	ctx := context.Background()

	for _, price := range []int64{0, -1, cart.MaxUnitPrice + 1, 5_000_000_000_000_000_000} {
		c := pea()
		c.UnitPrice = price
		l.AddItem(ctx, c)
	}

	assert.True(t, l.Snapshot().IsEmpty())
	assert.Zero(t, mem.Saves())

	c := pea()
	c.UnitPrice = cart.MaxUnitPrice
	l.AddItem(ctx, c)
	assert.True(t, l.IsInCart(1))
}

func TestLedger_MaxLines(t *testing.T) {
	// GIVEN: a cart holding MaxLines distinct products
	// WHEN: another product is added, or a removed one restored after refilling
	// THEN: the cart keeps MaxLines lines and the extra input is ignored
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	for id := 1; id <= cart.MaxLines; id++ {
		l.AddItem(ctx, product(id))
	}

	l.AddItem(ctx, product(cart.MaxLines+1))
	assert.False(t, l.IsInCart(cart.ProductID(cart.MaxLines+1)))
	assert.Len(t, l.Snapshot().Items, cart.MaxLines)

	l.AddItem(ctx, product(1))
	assert.Equal(t, 2, l.ItemQuantity(1), "existing lines still grow")

	l.RemoveItem(ctx, 1)
	l.AddItem(ctx, product(cart.MaxLines+1))
	l.RestoreItem(ctx, 1)
	assert.False(t, l.IsInCart(1))
	require.Len(t, l.Snapshot().RecentlyRemoved, 1, "entry stays restorable")
}

func TestLedger_Rehydrate_LoadFailure(t *testing.T) {
	mem := store.NewMemory()
	mem.FailWith(errors.New("disk gone"))

	_, err := cart.NewLedger(context.Background(), mem, cart.Options{})
	assert.ErrorContains(t, err, "disk gone")
}

func TestLedger_SaveFailure_LoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	mem := store.NewMemory()
	l, err := cart.NewLedger(context.Background(), mem, cart.Options{
		Clock:  cart.NewManualClock(t0),
		Logger: zap.New(core),
	})
	require.NoError(t, err)

	mem.FailWith(errors.New("readonly"))
	l.AddItem(context.Background(), pea())

	assert.True(t, l.IsInCart(1), "in-memory state stays authoritative")
	assert.Equal(t, 1, logs.FilterMessage("failed to persist cart").Len())
}

// =============================================================================
// OBSERVERS / SNAPSHOTS
// =============================================================================

func TestLedger_Subscribe(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	var seen []cart.Snapshot
	unsubscribe := l.Subscribe(func(s cart.Snapshot) { seen = append(seen, s) })

	l.AddItem(ctx, pea())
	l.RemoveItem(ctx, 1)
	l.RestoreItem(ctx, 99) // no-op, no notification
	clock.Advance(cart.DefaultUndoWindow)

	require.Len(t, seen, 3, "add, remove, expiry")
	assert.Len(t, seen[0].Items, 1)
	assert.Len(t, seen[1].RecentlyRemoved, 1)
	assert.True(t, seen[2].IsEmpty())

	unsubscribe()
	l.AddItem(ctx, pea())
	assert.Len(t, seen, 3)
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l, _, _ := newTestLedger(t)
	l.AddItem(context.Background(), pea())

	snap := l.Snapshot()
	snap.Items[0].Quantity = 100

	assert.Equal(t, 1, l.ItemQuantity(1))
}

// =============================================================================
// INVARIANTS OVER RANDOM SEQUENCES
// =============================================================================

func TestLedger_RandomSequences_HoldInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l, clock, mem := newTestLedger(t)
	ctx := context.Background()

	for step := 0; step < 2000; step++ {
		id := cart.ProductID(rng.Intn(8) + 1)
		switch rng.Intn(7) {
		case 0, 1:
			l.AddItem(ctx, product(int(id)))
		case 2:
			l.UpdateQuantity(ctx, id, rng.Intn(6)-2)
		case 3:
			l.RemoveItem(ctx, id)
		case 4:
			l.RestoreItem(ctx, id)
		case 5:
			clock.Advance(time.Duration(rng.Intn(4000)) * time.Millisecond)
		case 6:
			if rng.Intn(20) == 0 {
				l.ClearRecentlyRemoved()
			}
		}

		snap := l.Snapshot()
		require.LessOrEqual(t, len(snap.RecentlyRemoved), cart.DefaultUndoCapacity)

		active := map[cart.ProductID]bool{}
		var want int64
		for _, it := range snap.Items {
			require.Positive(t, it.Quantity, "step %d", step)
			require.False(t, active[it.ID], "duplicate line for %d", it.ID)
			active[it.ID] = true
			want += it.UnitPrice * int64(it.Quantity)
		}
		for i, e := range snap.RecentlyRemoved {
			require.False(t, active[e.ID], "id %d active and removed", e.ID)
			require.False(t, clock.Now().Sub(e.RemovedAt) >= cart.DefaultUndoWindow, "stale entry survived")
			if i > 0 {
				require.False(t, e.RemovedAt.After(snap.RecentlyRemoved[i-1].RemovedAt), "newest first")
			}
		}
		require.Equal(t, want, l.TotalPrice())
		require.Equal(t, len(snap.RecentlyRemoved), clock.Pending(), "one timer per undo entry")
		require.Equal(t, nilIfEmpty(snap.Items), nilIfEmpty(mem.Items()))
	}
}

func nilIfEmpty(items []cart.LineItem) []cart.LineItem {
	if len(items) == 0 {
		return nil
	}
	return items
}
