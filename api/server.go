/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap request logging (carries the request id)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the storefront frontend
  5. RateLimit:     Order placement only

ROUTE GROUPS:
  /api/cart/*             Cart ledger
  /api/checkout/*         Zone, promo, orders
  /api/products           Demo catalog
  /api/delivery-zones     Delivery table
  /api/payment-methods    Payment options
  /*                      Frontend, or an endpoint index page

STATIC FILE SERVING:
  The repository ships no frontend. When RouterOptions.StaticDir names a
  built one (server.static_dir), its files are served and unknown paths
  fall back to its index.html for client-side routing. Without it, / lists
  the API endpoints.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging, rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterOptions configures the parts of the router that vary per deployment.
type RouterOptions struct {
	// OrderLimiter throttles order placement. Nil leaves it unlimited.
	OrderLimiter *rate.Limiter
	// StaticDir is a built frontend to serve at /. Empty serves indexPage.
	StaticDir string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Cart routes
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Get("/items/{id}", h.GetItem)
			r.Put("/items/{id}", h.UpdateQuantity)
			r.Delete("/items/{id}", h.RemoveItem)
			r.Post("/items/{id}/restore", h.RestoreItem)
			r.Delete("/removed", h.ClearRecentlyRemoved)
		})

		// Reference data
		r.Get("/products", h.ListProducts)
		r.Get("/delivery-zones", h.ListDeliveryZones)
		r.Get("/payment-methods", h.ListPaymentMethods)

		// Checkout routes
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.GetCheckout)
			r.Put("/zone", h.SelectZone)
			r.Put("/promo", h.EditPromo)
			r.Post("/promo/apply", h.ApplyPromo)
			r.Get("/orders/{id}", h.GetOrder)
			r.Group(func(r chi.Router) {
				if opts.OrderLimiter != nil {
					r.Use(RateLimit(opts.OrderLimiter))
				}
				r.Post("/orders", h.PlaceOrder)
			})
		})
	})

	if opts.StaticDir != "" {
		r.Get("/*", spaHandler(opts.StaticDir))
	} else {
		r.Get("/", serveIndexPage)
	}
	return r
}

// spaHandler serves files from dir. Paths with no matching file get
// dir/index.html so client-side routes survive a reload.
func spaHandler(dir string) http.HandlerFunc {
	root := http.Dir(dir)
	files := http.FileServer(root)
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		f, err := root.Open(path.Clean("/" + r.URL.Path))
		if errors.Is(err, fs.ErrNotExist) {
			http.ServeFile(w, r, index)
			return
		}
		if err == nil {
			f.Close()
		}
		files.ServeHTTP(w, r)
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Microgreen Storefront</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Microgreen Storefront API</h1>
<ul>
<li><a href="/api/products">/api/products</a> - Products</li>
<li><a href="/api/cart">/api/cart</a> - Cart</li>
<li><a href="/api/checkout">/api/checkout</a> - Checkout summary</li>
<li><a href="/api/delivery-zones">/api/delivery-zones</a> - Delivery zones</li>
<li><a href="/api/payment-methods">/api/payment-methods</a> - Payment methods</li>
</ul>
</body>
</html>`

func serveIndexPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}
