package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/exdash/exdash/internal/domain"
	"github.com/exdash/exdash/internal/feed"
	"github.com/exdash/exdash/internal/platform/exchange"
)

// OrderHandler proxies order entry to the exchange REST API and serves the
// in-memory open-order table.
type OrderHandler struct {
	api     *exchange.Client
	manager *feed.Manager
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(api *exchange.Client, manager *feed.Manager, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		api:     api,
		manager: manager,
		logger:  logger.With(slog.String("handler", "order")),
	}
}

// ListOrders returns the user's open orders as tracked by the user-order
// channel.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.OpenOrders())
}

// PlaceOrder submits a new order to the exchange.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order body")
		return
	}
	if req.Symbol == "" || !req.Side.Valid() || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "symbol, side, and positive quantity are required")
		return
	}
	if req.OrderType == domain.OrderTypeLimit && req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "limit orders require a positive price")
		return
	}

	order, err := h.api.SubmitOrder(r.Context(), req)
	if err != nil {
		h.writeOrderError(w, "submit", err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ModifyOrder changes price/quantity of an open order.
// PUT /api/orders/{id}
func (h *OrderHandler) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "order id is required")
		return
	}

	var req domain.OrderModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid modify body")
		return
	}
	if req.Price <= 0 && req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "price or quantity must be positive")
		return
	}

	order, err := h.api.ModifyOrder(r.Context(), id, req)
	if err != nil {
		h.writeOrderError(w, "modify", err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// CancelOrder cancels a single open order.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "order id is required")
		return
	}

	if err := h.api.CancelOrder(r.Context(), id); err != nil {
		h.writeOrderError(w, "cancel", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
}

// writeOrderError maps exchange errors to HTTP responses.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, verb string, err error) {
	h.logger.Error("order "+verb+" failed", slog.String("error", err.Error()))

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrOrderRejected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "exchange request failed")
	}
}
