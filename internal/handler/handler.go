// Package handler exposes the storefront over HTTP: catalog, session, cart,
// checkout and order tracking endpoints. Bodies are JSON encoded with jx.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/checkout"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/product"
	"github.com/xenking/comeia-checkout/internal/events"
	"github.com/xenking/comeia-checkout/internal/gateway"
)

// DefaultKeepAlive is the interval of SSE comment frames on idle streams.
const DefaultKeepAlive = 15 * time.Second

// BoletoIssuer issues the payment slip shown for boleto orders.
type BoletoIssuer interface {
	IssueBoleto(orderID string, now time.Time) gateway.Boleto
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string

	// KeepAlive is the SSE keep-alive interval. Zero selects DefaultKeepAlive.
	KeepAlive time.Duration
}

// Deps are the services the Handler delegates to.
type Deps struct {
	Products product.Repository
	Carts    cart.Store
	Identity *identity.Service
	Checkout *checkout.Service
	Hub      *events.Hub
	Boletos  BoletoIssuer
}

// Handler serves the HTTP API.
type Handler struct {
	products product.Repository
	carts    cart.Store
	identity *identity.Service
	checkout *checkout.Service
	hub      *events.Hub
	boletos  BoletoIssuer

	imageBaseURL string
	keepAlive    time.Duration
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	return &Handler{
		products:     deps.Products,
		carts:        deps.Carts,
		identity:     deps.Identity,
		checkout:     deps.Checkout,
		hub:          deps.Hub,
		boletos:      deps.Boletos,
		imageBaseURL: cfg.ImageBaseURL,
		keepAlive:    cfg.KeepAlive,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/categories", h.listCategories)

	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("GET /api/auth/me", h.authed(h.me))

	mux.HandleFunc("GET /api/cart", h.authed(h.getCart))
	mux.HandleFunc("POST /api/cart/items", h.authed(h.addCartItem))
	mux.HandleFunc("PUT /api/cart/items/{productId}", h.authed(h.setCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{productId}", h.authed(h.removeCartItem))
	mux.HandleFunc("DELETE /api/cart", h.authed(h.clearCart))

	mux.HandleFunc("POST /api/checkout", h.authed(h.submitCheckout))
	mux.HandleFunc("GET /api/orders", h.authed(h.listOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.authed(h.getOrder))
	mux.HandleFunc("GET /api/orders/{id}/events", h.authed(h.orderEvents))
	mux.HandleFunc("POST /api/orders/{id}/retry", h.authed(h.retryOrder))
}

// Routes returns a mux serving the API.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}
