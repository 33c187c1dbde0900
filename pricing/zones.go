/*
Package pricing turns a cart into a payable total.

PURPOSE:
  Compute is a pure function of (active items, selected delivery zone,
  promo state). It owns no state; callers re-run it whenever an input
  changes.

FORMULA:
  subtotal    = sum(unitPrice * quantity)
  discount    = promo applied ? round(subtotal * percent / 100) : 0
  deliveryFee = subtotal >= zone.MinOrderForFreeDelivery ? 0 : zone.Price
  total       = subtotal - discount + deliveryFee

  Free delivery is judged on the subtotal BEFORE the discount.

ROUNDING:
  Half away from zero, done with decimal.Decimal so the result does not
  depend on float formatting. 705 * 10% = 70.5 -> 71.

SEE ALSO:
  - promo.go: Promo state machine (Empty -> Entered -> Applied)
  - checkout/session.go: Holds the selected zone and promo state
*/
package pricing

// =============================================================================
// DELIVERY ZONES - Static reference table
// =============================================================================

// DeliveryZone is one shipping-cost rule bucket.
type DeliveryZone struct {
	ID                      string
	Name                    string
	Price                   int64
	MinOrderForFreeDelivery int64
	EstimatedDuration       string
}

// FreeDeliveryRemaining is how much more subtotal is needed for free delivery
// in this zone. Zero once the threshold is met.
func (z DeliveryZone) FreeDeliveryRemaining(subtotal int64) int64 {
	if subtotal >= z.MinOrderForFreeDelivery {
		return 0
	}
	return z.MinOrderForFreeDelivery - subtotal
}

// Zones is an ordered zone table. The first zone is the default selection.
type Zones []DeliveryZone

// Find returns the zone with the given id.
func (zs Zones) Find(id string) (DeliveryZone, bool) {
	for _, z := range zs {
		if z.ID == id {
			return z, true
		}
	}
	return DeliveryZone{}, false
}

// Default returns the first zone.
func (zs Zones) Default() (DeliveryZone, bool) {
	if len(zs) == 0 {
		return DeliveryZone{}, false
	}
	return zs[0], true
}

// DefaultZones is the store's stock zone table.
func DefaultZones() Zones {
	return Zones{
		{ID: "mkad", Name: "Moscow (inside MKAD)", Price: 0, MinOrderForFreeDelivery: 2000, EstimatedDuration: "2 hours"},
		{ID: "outside-mkad", Name: "Moscow (outside MKAD)", Price: 350, MinOrderForFreeDelivery: 3000, EstimatedDuration: "2-3 hours"},
		{ID: "near-mo", Name: "Near Moscow region", Price: 450, MinOrderForFreeDelivery: 4000, EstimatedDuration: "3-4 hours"},
		{ID: "far-mo", Name: "Moscow region (up to 50 km)", Price: 600, MinOrderForFreeDelivery: 5000, EstimatedDuration: "4-5 hours"},
	}
}
