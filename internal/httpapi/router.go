// Package httpapi exposes the catalogue, dealer registry and order allocation
// over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-dealer-router/internal/allocation"
	"github.com/safar/go-dealer-router/internal/catalog"
	"github.com/safar/go-dealer-router/internal/logger"
)

type Deps struct {
	Catalog   *catalog.Service
	Allocator *allocation.Allocator
	Logger    *logger.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Service string
	Version string
}

func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	h := &handlers{
		catalog:   deps.Catalog,
		allocator: deps.Allocator,
		log:       log,
		service:   deps.Service,
		version:   deps.Version,
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		requestLogging(log),
		recoverer(log),
	)

	r.Get("/health", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
	})

	r.Route("/dealers", func(r chi.Router) {
		r.Post("/", h.createDealer)
		r.Get("/", h.listDealers)
		r.Get("/nearby", h.nearbyDealers)
		r.Get("/{id}", h.getDealer)
		r.Put("/{id}/inventory/{productId}", h.setInventory)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
	})

	return r
}
