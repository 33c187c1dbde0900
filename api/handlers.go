/*
handlers.go - HTTP API handlers for the storefront cart and checkout

PURPOSE:
  Exposes the cart ledger and checkout session via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Cart:
    GET    /api/cart                      Cart snapshot with totals
    DELETE /api/cart                      Clear cart (and undo buffer)
    POST   /api/cart/items                Add one unit of a product
    GET    /api/cart/items/{id}           Quantity + in-cart flag
    PUT    /api/cart/items/{id}           Set quantity
    DELETE /api/cart/items/{id}           Remove (goes to undo buffer)
    POST   /api/cart/items/{id}/restore   Restore from undo buffer
    DELETE /api/cart/removed              Drop the undo buffer

  Reference data:
    GET    /api/products                  Demo catalog
    GET    /api/delivery-zones            Delivery table
    GET    /api/payment-methods           Payment options

  Checkout:
    GET    /api/checkout                  Zone, promo, totals, free-delivery hint
    PUT    /api/checkout/zone             Select delivery zone
    PUT    /api/checkout/promo            Edit promo text
    POST   /api/checkout/promo/apply      Apply promo text
    POST   /api/checkout/orders           Place order (rate limited)
    GET    /api/checkout/orders/{id}      Recorded order

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Ledger: the process-wide cart
  - Session: zone/promo state and order placement
  - Catalog: products addable by id
  - Orders: optional order lookup (the SQLite store)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (ledger, session)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, non-numeric id, out-of-range price or quantity,
         invalid order details
  - 404: Unknown product, zone or order
  - 409: Duplicate order id
  - 429: Order rate limit exceeded
  - 500: Internal errors

  Well-formed ids that are not in the cart are not errors: the ledger
  ignores them and the current cart is returned.

SECURITY NOTE:
  No authentication. One shopper per process.

SEE ALSO:
  - dto.go: Request/response data structures
  - catalog.go: Demo products
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/checkout"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// OrderLookup returns recorded orders. Implemented by store/sqlite.
type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (checkout.Order, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *cart.Ledger
	Session *checkout.Session
	Catalog Catalog
	Orders  OrderLookup

	logger *zap.Logger
}

// NewHandler creates a handler over the given cart and checkout session.
// The demo catalog is used until Catalog is replaced.
func NewHandler(ledger *cart.Ledger, session *checkout.Session, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Ledger:  ledger,
		Session: session,
		Catalog: DemoCatalog(),
		logger:  logger,
	}
}

// =============================================================================
// CART HANDLERS
// =============================================================================

// GetCart returns the current cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// ClearCart empties the cart and the undo buffer.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.Ledger.ClearCart(r.Context())
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// AddItem adds one unit of a product. Catalog products always use the
// catalog's name and price; client fields are only read for products the
// catalog does not list.
// POST /api/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, ok := h.Catalog.Find(cart.ProductID(req.ID))
	if !ok {
		if req.Name == "" {
			writeError(w, http.StatusNotFound, "Product not found", nil)
			return
		}
		c = cart.Candidate{
			ID:          cart.ProductID(req.ID),
			Name:        req.Name,
			UnitPrice:   req.UnitPrice,
			WeightLabel: req.WeightLabel,
			ImageRef:    req.ImageRef,
		}
		if !c.Valid() {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("unit_price must be between 1 and %d", cart.MaxUnitPrice), nil)
			return
		}
	}

	h.Ledger.AddItem(r.Context(), c)
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// GetItem reports whether a product is in the cart.
// GET /api/cart/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ItemStatusDTO{
		ID:       int64(id),
		Quantity: h.Ledger.ItemQuantity(id),
		InCart:   h.Ledger.IsInCart(id),
	})
}

// UpdateQuantity sets an item's quantity. Zero or less removes it.
// PUT /api/cart/items/{id}
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required", nil)
		return
	}
	if *req.Quantity > cart.MaxQuantity {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("quantity must not exceed %d", cart.MaxQuantity), nil)
		return
	}

	h.Ledger.UpdateQuantity(r.Context(), id, *req.Quantity)
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// RemoveItem moves an item to the undo buffer.
// DELETE /api/cart/items/{id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	h.Ledger.RemoveItem(r.Context(), id)
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// RestoreItem brings an item back from the undo buffer.
// POST /api/cart/items/{id}/restore
func (h *Handler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	h.Ledger.RestoreItem(r.Context(), id)
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// ClearRecentlyRemoved drops the undo buffer without touching active items.
// DELETE /api/cart/removed
func (h *Handler) ClearRecentlyRemoved(w http.ResponseWriter, r *http.Request) {
	h.Ledger.ClearRecentlyRemoved()
	writeJSON(w, http.StatusOK, toCartDTO(h.Ledger.Snapshot()))
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ProductDTO, 0, len(h.Catalog))
	for _, p := range h.Catalog {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListDeliveryZones returns the delivery table in display order.
func (h *Handler) ListDeliveryZones(w http.ResponseWriter, r *http.Request) {
	zones := h.Session.Zones()
	dtos := make([]DeliveryZoneDTO, 0, len(zones))
	for _, z := range zones {
		dtos = append(dtos, toZoneDTO(z))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPaymentMethods returns the payment options.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods := h.Session.PaymentMethods()
	dtos := make([]PaymentMethodDTO, 0, len(methods))
	for _, m := range methods {
		dtos = append(dtos, toPaymentMethodDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CHECKOUT HANDLERS
// =============================================================================

// GetCheckout returns the priced cart for the selected zone and promo.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toCheckoutDTO(h.Session.Quote()))
}

// SelectZone switches the delivery zone.
// PUT /api/checkout/zone
func (h *Handler) SelectZone(w http.ResponseWriter, r *http.Request) {
	var req SelectZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Session.SelectZone(req.ZoneID); err != nil {
		h.writeDomainError(w, "Failed to select zone", err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckoutDTO(h.Session.Quote()))
}

// EditPromo replaces the typed promo text. Changing the text drops an
// applied discount.
// PUT /api/checkout/promo
func (h *Handler) EditPromo(w http.ResponseWriter, r *http.Request) {
	var req EditPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.Session.EditPromo(req.Code)
	writeJSON(w, http.StatusOK, toCheckoutDTO(h.Session.Quote()))
}

// ApplyPromo validates the typed promo text. A wrong code is not an error;
// the response simply shows the promo still unapplied.
// POST /api/checkout/promo/apply
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	h.Session.ApplyPromo()
	writeJSON(w, http.StatusOK, toCheckoutDTO(h.Session.Quote()))
}

// PlaceOrder confirms the current cart.
// POST /api/checkout/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := h.Session.PlaceOrder(r.Context(), checkout.OrderRequest{
		Contact:         req.Contact.toContact(),
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to place order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// GetOrder returns a recorded order.
// GET /api/checkout/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		writeError(w, http.StatusNotImplemented, "Order history is not enabled", nil)
		return
	}

	order, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps checkout errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var contactErr *checkout.ContactError
	switch {
	case errors.As(err, &contactErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Code:    "missing_contact",
			Details: contactErr.Missing,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "empty_cart", Details: err.Error()})
	case checkout.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case checkout.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, checkout.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// productIDParam parses the {id} path parameter. On failure it writes a 400
// and returns false.
func productIDParam(w http.ResponseWriter, r *http.Request) (cart.ProductID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return 0, false
	}
	return cart.ProductID(id), true
}
