package httpapi

import (
	"net/http"
	"time"

	"github.com/safar/go-dealer-router/internal/allocation"
	"github.com/safar/go-dealer-router/internal/catalog"
	"github.com/safar/go-dealer-router/internal/geo"
	"github.com/safar/go-dealer-router/internal/logger"
	"github.com/safar/go-dealer-router/internal/models"
)

type handlers struct {
	catalog   *catalog.Service
	allocator *allocation.Allocator
	log       *logger.Logger
	service   string
	version   string
}

func (h *handlers) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req.toModel())
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	result, err := h.catalog.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *handlers) createDealer(w http.ResponseWriter, r *http.Request) {
	var req createDealerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	dealer, err := h.catalog.CreateDealer(r.Context(), req.toModel())
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dealer)
}

func (h *handlers) listDealers(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	result, err := h.catalog.ListDealers(r.Context(), page, pageSize)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) nearbyDealers(w http.ResponseWriter, r *http.Request) {
	lat, err := parseQueryFloat(r, "latitude", true)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}
	lon, err := parseQueryFloat(r, "longitude", true)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}
	radius, err := parseQueryFloat(r, "radiusKm", false)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	dealers, err := h.catalog.NearbyDealers(r.Context(), geo.Point{Latitude: lat, Longitude: lon}, radius)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, dealers)
}

func (h *handlers) getDealer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	dealer, err := h.catalog.GetDealer(r.Context(), id)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, dealer)
}

func (h *handlers) setInventory(w http.ResponseWriter, r *http.Request) {
	dealerID, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}
	productID, err := parseUUIDParam(r, "productId")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	var req setInventoryRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	item, err := h.catalog.SetInventory(r.Context(), dealerID, productID, *req.Quantity)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	order, err := h.allocator.Allocate(r.Context(), req.toAllocation())
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *handlers) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseQueryInt(r, "limit", catalog.DefaultPageSize, 1, catalog.MaxPageSize)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}
	status := models.OrderStatus(r.URL.Query().Get("status"))

	result, err := h.catalog.ListOrders(r.Context(), status, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	order, err := h.catalog.GetOrder(r.Context(), id)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *handlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	order, err := h.catalog.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(r.Context(), h.log, w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   h.service,
		Version:   h.version,
	}

	status := http.StatusOK
	if err := h.catalog.Ping(r.Context()); err != nil {
		h.log.Error(r.Context(), "health.store_unreachable", err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := parseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := parseQueryInt(r, "page_size", catalog.DefaultPageSize, 1, catalog.MaxPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
