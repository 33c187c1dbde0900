package pricing

import "golang.org/x/text/cases"

// =============================================================================
// PROMO CODE - The single recognized code
// =============================================================================

const (
	DefaultPromoCode    = "GREEN10"
	DefaultPromoPercent = 10
)

// PromoCode is a recognized code and the flat percentage it takes off the
// subtotal.
type PromoCode struct {
	Code    string
	Percent int64
}

// DefaultPromo returns GREEN10 at 10%.
func DefaultPromo() PromoCode {
	return PromoCode{Code: DefaultPromoCode, Percent: DefaultPromoPercent}
}

// Matches reports whether text is this code, ignoring case. Whitespace is
// significant.
func (p PromoCode) Matches(text string) bool {
	if p.Code == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(text) == fold.String(p.Code)
}

// =============================================================================
// PROMO STATE MACHINE
// =============================================================================

// PromoState is where the shopper's promo input stands.
type PromoState string

const (
	PromoEmpty   PromoState = "empty"
	PromoEntered PromoState = "entered"
	PromoApplied PromoState = "applied"
)

// Promo is the caller-owned promo input.
//
// TRANSITIONS:
//   Empty   --Edit(non-empty)-->  Entered
//   Entered --Apply(match)----->  Applied
//   Entered --Apply(no match)-->  Entered   (no error, no discount)
//   Applied --Edit(any)-------->  Entered   (discount dropped until re-applied)
//   Applied --Apply(match)----->  Applied   (idempotent)
//   any     --Edit("")--------->  Empty
//
// The zero value is Empty.
type Promo struct {
	text    string
	applied bool
	percent int64
}

// Text is the code as typed.
func (p Promo) Text() string { return p.text }

// State reports the current state.
func (p Promo) State() PromoState {
	switch {
	case p.applied:
		return PromoApplied
	case p.text == "":
		return PromoEmpty
	default:
		return PromoEntered
	}
}

// Applied reports whether the discount is active.
func (p Promo) Applied() bool { return p.applied }

// Percent is the active discount percentage, 0 unless Applied.
func (p Promo) Percent() int64 {
	if !p.applied {
		return 0
	}
	return p.percent
}

// Edit replaces the typed text. Every edit drops an applied discount, even
// one that leaves the text as it was.
func (p Promo) Edit(text string) Promo {
	return Promo{text: text}
}

// Apply validates the typed text against code. An unrecognized code leaves
// the state unchanged.
func (p Promo) Apply(code PromoCode) Promo {
	if p.applied || !code.Matches(p.text) {
		return p
	}
	return Promo{text: p.text, applied: true, percent: code.Percent}
}
