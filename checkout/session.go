/*
Package checkout holds the shopper-side state around pricing.

PURPOSE:
  A Session keeps the selected delivery zone and the promo input, prices
  the ledger's current snapshot on demand, and turns a confirmed cart into
  an order acknowledgment.

STATE:
  zone   single choice from the configured table (default: first zone)
  promo  pricing.Promo state machine; only ApplyPromo can activate it

ORDER PLACEMENT:
  1. Snapshot the ledger; an empty active set is rejected
  2. Validate contact (name, phone, address) and payment method
  3. Price the snapshot with the selected zone and promo
  4. Record the acknowledgment (if a recorder is configured)
  5. Take the ordered lines out of the cart and reset the promo input

  Placements are serialized, so one cart is never ordered twice. Items
  added while an order is being recorded stay in the cart.

  No payment gateway is called. Totals come from this process's own ledger
  and reference tables. A subtotal that is not positive, or a negative total,
  is refused with ErrInvalidTotals.

SEE ALSO:
  - pricing/engine.go: Compute
  - cart/ledger.go: Source of snapshots
  - store/sqlite/sqlite.go: OrderRecorder implementation
*/
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/pricing"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// PaymentMethod is how the shopper intends to pay. Instant methods are paid
// online right after ordering; the rest are collected on delivery.
type PaymentMethod struct {
	ID          string
	Name        string
	Description string
	Instant     bool
}

// DefaultPaymentMethods returns the stock payment options.
func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "sbp", Name: "Faster Payments System (SBP)", Description: "Pay by QR code in your banking app", Instant: true},
		{ID: "cash", Name: "Cash on delivery", Description: "Pay the courier on delivery"},
		{ID: "card-on-delivery", Name: "Card on delivery", Description: "Pay by card through the courier's terminal"},
	}
}

// =============================================================================
// ORDER TYPES
// =============================================================================

// Contact is the delivery address form.
type Contact struct {
	Name      string
	Phone     string
	Address   string
	Apartment string
	Entrance  string
	Floor     string
	Comment   string
}

// Validate requires name, phone and address.
func (c Contact) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &ContactError{Missing: missing}
	}
	return nil
}

type OrderRequest struct {
	Contact         Contact
	PaymentMethodID string
}

// Order is the acknowledgment returned once an order is placed.
type Order struct {
	ID            string
	PlacedAt      time.Time
	Items         []cart.LineItem
	Zone          pricing.DeliveryZone
	PaymentMethod PaymentMethod
	Contact       Contact
	PromoCode     string // empty unless a discount was applied
	Totals        pricing.Totals
}

// OrderRecorder keeps placed orders. Optional.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, o Order) error
}

// Quote is everything the checkout page renders, priced from one snapshot.
type Quote struct {
	Cart                  cart.Snapshot
	Zone                  pricing.DeliveryZone
	Promo                 pricing.Promo
	Totals                pricing.Totals
	FreeDeliveryRemaining int64
}

// =============================================================================
// SESSION
// =============================================================================

type Options struct {
	Zones          pricing.Zones
	PromoCode      pricing.PromoCode
	PaymentMethods []PaymentMethod
	Recorder       OrderRecorder
	Logger         *zap.Logger
	Now            func() time.Time
	NewID          func() string
}

// Session is the process-wide checkout state. Safe for concurrent use.
type Session struct {
	ledger   *cart.Ledger
	zones    pricing.Zones
	code     pricing.PromoCode
	methods  []PaymentMethod
	recorder OrderRecorder
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	placeMu sync.Mutex

	mu    sync.Mutex
	zone  pricing.DeliveryZone
	promo pricing.Promo
}

// NewSession creates a session over ledger. Zero-valued options fall back to
// the stock zones, promo code and payment methods.
func NewSession(ledger *cart.Ledger, opts Options) (*Session, error) {
	s := &Session{
		ledger:   ledger,
		zones:    opts.Zones,
		code:     opts.PromoCode,
		methods:  opts.PaymentMethods,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.zones == nil {
		s.zones = pricing.DefaultZones()
	}
	if s.code == (pricing.PromoCode{}) {
		s.code = pricing.DefaultPromo()
	}
	if s.methods == nil {
		s.methods = DefaultPaymentMethods()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	zone, ok := s.zones.Default()
	if !ok {
		return nil, ErrNoZones
	}
	s.zone = zone
	return s, nil
}

// Zones returns the configured zone table.
func (s *Session) Zones() pricing.Zones { return s.zones }

// PaymentMethods returns the configured payment methods.
func (s *Session) PaymentMethods() []PaymentMethod { return s.methods }

// Zone returns the selected zone.
func (s *Session) Zone() pricing.DeliveryZone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone
}

// SelectZone switches the delivery zone. Nothing else changes.
func (s *Session) SelectZone(id string) error {
	z, ok := s.zones.Find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	s.mu.Lock()
	s.zone = z
	s.mu.Unlock()
	return nil
}

// Promo returns the promo input state.
func (s *Session) Promo() pricing.Promo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo
}

// EditPromo replaces the typed promo text.
func (s *Session) EditPromo(text string) pricing.Promo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promo = s.promo.Edit(text)
	return s.promo
}

// ApplyPromo validates the typed text. Unrecognized text is left as entered.
func (s *Session) ApplyPromo() pricing.Promo {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.promo.State()
	s.promo = s.promo.Apply(s.code)
	if before != pricing.PromoApplied && s.promo.Applied() {
		s.logger.Info("promo code applied", zap.String("code", s.promo.Text()))
	}
	return s.promo
}

// Totals prices the current cart.
func (s *Session) Totals() pricing.Totals {
	return s.Quote().Totals
}

// Quote prices the current cart and reports the free-delivery gap.
func (s *Session) Quote() Quote {
	snap := s.ledger.Snapshot()
	s.mu.Lock()
	zone, promo := s.zone, s.promo
	s.mu.Unlock()

	totals := pricing.Compute(snap.Items, zone, promo)
	return Quote{
		Cart:                  snap,
		Zone:                  zone,
		Promo:                 promo,
		Totals:                totals,
		FreeDeliveryRemaining: zone.FreeDeliveryRemaining(totals.Subtotal),
	}
}

// PlaceOrder confirms the current cart. On success the ordered lines leave
// the cart and the promo input is reset.
func (s *Session) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	s.placeMu.Lock()
	defer s.placeMu.Unlock()

	q := s.Quote()
	if len(q.Cart.Items) == 0 {
		return Order{}, ErrEmptyCart
	}
	if q.Totals.Subtotal <= 0 || q.Totals.Total < 0 {
		return Order{}, fmt.Errorf("%w: subtotal %d, total %d", ErrInvalidTotals, q.Totals.Subtotal, q.Totals.Total)
	}
	if err := req.Contact.Validate(); err != nil {
		return Order{}, err
	}
	method, ok := s.findMethod(req.PaymentMethodID)
	if !ok {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, req.PaymentMethodID)
	}

	order := Order{
		ID:            s.newID(),
		PlacedAt:      s.now(),
		Items:         q.Cart.Items,
		Zone:          q.Zone,
		PaymentMethod: method,
		Contact:       req.Contact,
		Totals:        q.Totals,
	}
	if q.Promo.Applied() {
		order.PromoCode = q.Promo.Text()
	}

	if s.recorder != nil {
		if err := s.recorder.RecordOrder(ctx, order); err != nil {
			return Order{}, fmt.Errorf("failed to record order: %w", err)
		}
	}

	s.ledger.ConsumeItems(ctx, order.Items)
	s.mu.Lock()
	s.promo = pricing.Promo{}
	s.mu.Unlock()

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("zone", order.Zone.ID),
		zap.String("payment_method", method.ID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total", order.Totals.Total))
	return order, nil
}

func (s *Session) findMethod(id string) (PaymentMethod, bool) {
	for _, m := range s.methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}
