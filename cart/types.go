/*
Package cart provides the shopper's cart ledger.

PURPOSE:
  The Ledger is the only owner of cart state. It tracks the active line
  items a shopper has selected and a short, time-decaying list of items
  that were just removed so they can be restored with one click.

KEY CONCEPTS IN THIS FILE (types.go):
  - Candidate:    What the catalog hands over when a product is added
  - LineItem:     One product's presence in the cart (quantity >= 1)
  - RemovedEntry: A LineItem snapshot plus the moment it was removed
  - Snapshot:     Read-only view handed to pricing and rendering

MONEY:
  Prices are whole currency units (no minor units). int64 keeps
  subtotal arithmetic exact.

SEE ALSO:
  - ledger.go: Mutations, undo buffer, auto-purge
  - store.go: Persistence of the active item set
  - pricing/engine.go: Consumes Snapshot.Items
*/
package cart

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ProductID identifies a catalog product. Unique within the active set.
type ProductID int64

// =============================================================================
// LINE ITEMS
// =============================================================================

// Candidate is a product offered for addition to the cart.
// ImageRef is passed through untouched; the ledger never validates it.
type Candidate struct {
	ID          ProductID
	Name        string
	UnitPrice   int64
	WeightLabel string
	ImageRef    string
}

// Limits on what the ledger accepts. Together they bound a cart's total to
// MaxLines * MaxUnitPrice * MaxQuantity (about 10^12), far below int64
// overflow. Input outside them is ignored like any other invalid input.
const (
	// MaxUnitPrice is the highest unit price a candidate may carry.
	MaxUnitPrice = 10_000_000

	// MaxQuantity is the highest quantity of a single line.
	MaxQuantity = 999

	// MaxLines is the highest number of distinct products in the active set.
	MaxLines = 100
)

// Valid reports whether c carries a price the ledger accepts.
func (c Candidate) Valid() bool {
	return c.UnitPrice > 0 && c.UnitPrice <= MaxUnitPrice
}

// LineItem is one product in the active set.
//
// INVARIANT: 1 <= Quantity <= MaxQuantity. Any mutation that would drive it to zero or
// below removes the item instead.
type LineItem struct {
	ID          ProductID
	Name        string
	UnitPrice   int64
	WeightLabel string
	ImageRef    string
	Quantity    int
}

func newLineItem(c Candidate) LineItem {
	return LineItem{
		ID:          c.ID,
		Name:        c.Name,
		UnitPrice:   c.UnitPrice,
		WeightLabel: c.WeightLabel,
		ImageRef:    c.ImageRef,
		Quantity:    1,
	}
}

// LineTotal is UnitPrice * Quantity.
func (li LineItem) LineTotal() int64 { return li.UnitPrice * int64(li.Quantity) }

// RemovedEntry is an item held in the undo buffer.
type RemovedEntry struct {
	LineItem
	RemovedAt time.Time
}

// =============================================================================
// SNAPSHOT - Read view of ledger state
// =============================================================================

// Snapshot is a copy of the ledger state at one instant. Mutating it has no
// effect on the ledger.
type Snapshot struct {
	Items           []LineItem
	RecentlyRemoved []RemovedEntry // newest first
}

// TotalItems is the sum of quantities over the active set.
func (s Snapshot) TotalItems() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// TotalPrice is the sum of UnitPrice * Quantity over the active set.
func (s Snapshot) TotalPrice() int64 {
	var sum int64
	for _, it := range s.Items {
		sum += it.LineTotal()
	}
	return sum
}

// Item returns the active line item with the given id.
func (s Snapshot) Item(id ProductID) (LineItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return LineItem{}, false
}

// IsEmpty reports whether there is nothing in the cart and nothing to restore.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0 && len(s.RecentlyRemoved) == 0
}
