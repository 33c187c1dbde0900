/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the cart and checkout model from the external API contract, allowing:
  - snake_case field names without tagging domain types
  - Derived values (line totals, counts) computed once, server-side
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Cart:
    LineItemDTO, RemovedEntryDTO, CartDTO, ItemStatusDTO
    AddItemRequest, UpdateQuantityRequest

  Catalog:
    ProductDTO

  Checkout:
    DeliveryZoneDTO, PaymentMethodDTO, PromoDTO, TotalsDTO, CheckoutDTO
    SelectZoneRequest, EditPromoRequest

  Orders:
    ContactDTO, PlaceOrderRequest, OrderDTO

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - cart/types.go, checkout/session.go: Domain types being mapped
*/
package api

import (
	"time"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/checkout"
	"github.com/microgreen/storefront/pricing"
)

// =============================================================================
// CART
// =============================================================================

// LineItemDTO represents one active cart line.
type LineItemDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unit_price"`
	WeightLabel string `json:"weight_label"`
	ImageRef    string `json:"image_ref,omitempty"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

// RemovedEntryDTO is a line in the undo buffer.
type RemovedEntryDTO struct {
	LineItemDTO
	RemovedAt string `json:"removed_at"`
}

// CartDTO is the full cart view returned by every cart endpoint.
type CartDTO struct {
	Items           []LineItemDTO     `json:"items"`
	RecentlyRemoved []RemovedEntryDTO `json:"recently_removed"`
	TotalItems      int               `json:"total_items"`
	TotalPrice      int64             `json:"total_price"`
}

// ItemStatusDTO answers "is this product in the cart, and how many".
type ItemStatusDTO struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
	InCart   bool  `json:"in_cart"`
}

// AddItemRequest adds one unit of a product. Products listed in the catalog
// are added at catalog values and the other fields are ignored. For any other
// id, Name and a UnitPrice in [1, cart.MaxUnitPrice] are required.
type AddItemRequest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	UnitPrice   int64  `json:"unit_price,omitempty"`
	WeightLabel string `json:"weight_label,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// UpdateQuantityRequest sets an absolute quantity. Zero or less removes;
// above cart.MaxQuantity is rejected.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// =============================================================================
// CATALOG
// =============================================================================

// ProductDTO is a catalog entry.
type ProductDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unit_price"`
	WeightLabel string `json:"weight_label"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// =============================================================================
// CHECKOUT
// =============================================================================

// DeliveryZoneDTO is a row of the delivery table.
type DeliveryZoneDTO struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Price                   int64  `json:"price"`
	MinOrderForFreeDelivery int64  `json:"min_order_for_free_delivery"`
	EstimatedDuration       string `json:"estimated_duration"`
}

// PaymentMethodDTO is a selectable payment option.
type PaymentMethodDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Instant     bool   `json:"instant"`
}

// PromoDTO reports the promo input state.
type PromoDTO struct {
	Code    string `json:"code"`
	State   string `json:"state"` // empty, entered, applied
	Applied bool   `json:"applied"`
	Percent int64  `json:"percent"`
}

// TotalsDTO is the price breakdown.
type TotalsDTO struct {
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	DeliveryFee int64 `json:"delivery_fee"`
	Total       int64 `json:"total"`
}

// CheckoutDTO is everything the checkout page renders.
type CheckoutDTO struct {
	Cart                  CartDTO         `json:"cart"`
	Zone                  DeliveryZoneDTO `json:"zone"`
	Promo                 PromoDTO        `json:"promo"`
	Totals                TotalsDTO       `json:"totals"`
	FreeDeliveryRemaining int64           `json:"free_delivery_remaining"`
}

// SelectZoneRequest switches the delivery zone.
type SelectZoneRequest struct {
	ZoneID string `json:"zone_id"`
}

// EditPromoRequest replaces the typed promo text.
type EditPromoRequest struct {
	Code string `json:"code"`
}

// =============================================================================
// ORDERS
// =============================================================================

// ContactDTO is the delivery form.
type ContactDTO struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Apartment string `json:"apartment,omitempty"`
	Entrance  string `json:"entrance,omitempty"`
	Floor     string `json:"floor,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// PlaceOrderRequest confirms the current cart. Totals are never accepted
// from the client; they are recomputed from the cart.
type PlaceOrderRequest struct {
	Contact         ContactDTO `json:"contact"`
	PaymentMethodID string     `json:"payment_method_id"`
}

// OrderDTO is a placed-order acknowledgment.
type OrderDTO struct {
	ID            string           `json:"id"`
	PlacedAt      string           `json:"placed_at"`
	Items         []LineItemDTO    `json:"items"`
	Zone          DeliveryZoneDTO  `json:"zone"`
	PaymentMethod PaymentMethodDTO `json:"payment_method"`
	Contact       ContactDTO       `json:"contact"`
	PromoCode     string           `json:"promo_code,omitempty"`
	Totals        TotalsDTO        `json:"totals"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toLineItemDTO(li cart.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:          int64(li.ID),
		Name:        li.Name,
		UnitPrice:   li.UnitPrice,
		WeightLabel: li.WeightLabel,
		ImageRef:    li.ImageRef,
		Quantity:    li.Quantity,
		LineTotal:   li.LineTotal(),
	}
}

func toLineItemDTOs(items []cart.LineItem) []LineItemDTO {
	dtos := make([]LineItemDTO, 0, len(items))
	for _, li := range items {
		dtos = append(dtos, toLineItemDTO(li))
	}
	return dtos
}

func toCartDTO(s cart.Snapshot) CartDTO {
	removed := make([]RemovedEntryDTO, 0, len(s.RecentlyRemoved))
	for _, e := range s.RecentlyRemoved {
		removed = append(removed, RemovedEntryDTO{
			LineItemDTO: toLineItemDTO(e.LineItem),
			RemovedAt:   e.RemovedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return CartDTO{
		Items:           toLineItemDTOs(s.Items),
		RecentlyRemoved: removed,
		TotalItems:      s.TotalItems(),
		TotalPrice:      s.TotalPrice(),
	}
}

func toProductDTO(c cart.Candidate) ProductDTO {
	return ProductDTO{
		ID:          int64(c.ID),
		Name:        c.Name,
		UnitPrice:   c.UnitPrice,
		WeightLabel: c.WeightLabel,
		ImageRef:    c.ImageRef,
	}
}

func toZoneDTO(z pricing.DeliveryZone) DeliveryZoneDTO {
	return DeliveryZoneDTO{
		ID:                      z.ID,
		Name:                    z.Name,
		Price:                   z.Price,
		MinOrderForFreeDelivery: z.MinOrderForFreeDelivery,
		EstimatedDuration:       z.EstimatedDuration,
	}
}

func toPaymentMethodDTO(m checkout.PaymentMethod) PaymentMethodDTO {
	return PaymentMethodDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Instant:     m.Instant,
	}
}

func toPromoDTO(p pricing.Promo) PromoDTO {
	return PromoDTO{
		Code:    p.Text(),
		State:   string(p.State()),
		Applied: p.Applied(),
		Percent: p.Percent(),
	}
}

func toTotalsDTO(t pricing.Totals) TotalsDTO {
	return TotalsDTO(t)
}

func toCheckoutDTO(q checkout.Quote) CheckoutDTO {
	return CheckoutDTO{
		Cart:                  toCartDTO(q.Cart),
		Zone:                  toZoneDTO(q.Zone),
		Promo:                 toPromoDTO(q.Promo),
		Totals:                toTotalsDTO(q.Totals),
		FreeDeliveryRemaining: q.FreeDeliveryRemaining,
	}
}

func toContactDTO(c checkout.Contact) ContactDTO {
	return ContactDTO(c)
}

func (c ContactDTO) toContact() checkout.Contact {
	return checkout.Contact(c)
}

func toOrderDTO(o checkout.Order) OrderDTO {
	return OrderDTO{
		ID:            o.ID,
		PlacedAt:      o.PlacedAt.UTC().Format(time.RFC3339),
		Items:         toLineItemDTOs(o.Items),
		Zone:          toZoneDTO(o.Zone),
		PaymentMethod: toPaymentMethodDTO(o.PaymentMethod),
		Contact:       toContactDTO(o.Contact),
		PromoCode:     o.PromoCode,
		Totals:        toTotalsDTO(o.Totals),
	}
}
