package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/microgreen/storefront/cart"
)

var hundred = decimal.NewFromInt(100)

// Totals is the priced order. Values are whole currency units.
type Totals struct {
	Subtotal    int64
	Discount    int64
	DeliveryFee int64
	Total       int64
}

// Compute prices items for zone with the given promo state. It does not
// modify items.
func Compute(items []cart.LineItem, zone DeliveryZone, promo Promo) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotal()
	}

	discount := Discount(subtotal, promo.Percent())

	var fee int64
	if subtotal < zone.MinOrderForFreeDelivery {
		fee = zone.Price
	}

	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       subtotal - discount + fee,
	}
}

// Discount is round(subtotal * percent / 100), rounding half away from zero.
func Discount(subtotal, percent int64) int64 {
	if percent == 0 || subtotal == 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(percent)).
		Div(hundred).
		Round(0).
		IntPart()
}
