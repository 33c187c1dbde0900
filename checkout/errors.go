package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyCart is returned when placing an order with no active items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrUnknownZone is returned when selecting a zone id that is not configured.
	ErrUnknownZone = errors.New("unknown delivery zone")

	// ErrNoZones is returned by NewSession when the zone table is empty.
	ErrNoZones = errors.New("no delivery zones configured")

	// ErrUnknownPaymentMethod is returned for a payment method id that is not configured.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")

	// ErrMissingContact is returned when required contact fields are blank.
	ErrMissingContact = errors.New("missing contact details")

	// ErrInvalidTotals is returned when a non-empty cart prices to a
	// non-positive subtotal or a negative total.
	ErrInvalidTotals = errors.New("invalid order totals")

	// ErrOrderNotFound is returned when looking up an order id that was never recorded.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateOrder is returned when recording an order id twice.
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// ContactError lists the required contact fields that were left blank.
type ContactError struct {
	Missing []string
}

func (e *ContactError) Error() string {
	return fmt.Sprintf("missing contact details: %s", strings.Join(e.Missing, ", "))
}

func (e *ContactError) Unwrap() error {
	return ErrMissingContact
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid shopper input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrMissingContact) ||
		errors.Is(err, ErrUnknownPaymentMethod) ||
		errors.Is(err, ErrInvalidTotals)
}

// IsNotFound returns true if the error refers to a missing reference row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownZone) ||
		errors.Is(err, ErrOrderNotFound)
}
