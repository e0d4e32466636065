package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/exdash/exdash/internal/feed"
)

// MarketHandler serves the read-side market projections and the symbol /
// display-settings switches.
type MarketHandler struct {
	manager *feed.Manager
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler backed by the feed manager.
func NewMarketHandler(manager *feed.Manager, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		manager: manager,
		logger:  logger.With(slog.String("handler", "market")),
	}
}

// GetDepth returns the padded top-N view of the bucketed book.
// GET /api/depth?levels=n
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	levels := queryInt(r, "levels", 0)
	writeJSON(w, http.StatusOK, h.manager.Depth(levels))
}

// GetTrades returns the newest-first recent-trade buffer.
// GET /api/trades
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.RecentTrades())
}

// GetCandles returns the visible candle window, open candle included.
// GET /api/candles?count=n
func (h *MarketHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", 0)
	writeJSON(w, http.StatusOK, h.manager.VisibleCandles(count))
}

// symbolRequest is the body of a symbol-switch request.
type symbolRequest struct {
	Symbol string `json:"symbol"`
}

// SwitchSymbol switches the active symbol, tearing down all sessions and
// resetting every store.
// POST /api/symbol
func (h *MarketHandler) SwitchSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if err := h.manager.SetSymbol(r.Context(), req.Symbol); err != nil {
		h.logger.Error("symbol switch failed",
			slog.String("symbol", req.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to switch symbol")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"symbol": req.Symbol})
}

// settingsRequest carries optional display-setting changes. Zero values
// leave the corresponding setting untouched.
type settingsRequest struct {
	BucketSize      float64 `json:"bucketSize"`
	IntervalSeconds int64   `json:"intervalSeconds"`
}

// UpdateSettings changes the book bucket size and/or candle interval.
// PUT /api/settings
func (h *MarketHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	if req.BucketSize < 0 || req.IntervalSeconds < 0 {
		writeError(w, http.StatusBadRequest, "settings must be positive")
		return
	}
	if req.BucketSize == 0 && req.IntervalSeconds == 0 {
		writeError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	if req.BucketSize > 0 {
		if err := h.manager.SetBucketSize(r.Context(), req.BucketSize); err != nil {
			h.logger.Error("bucket size change failed", slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "failed to change bucket size")
			return
		}
	}
	if req.IntervalSeconds > 0 {
		interval := time.Duration(req.IntervalSeconds) * time.Second
		if err := h.manager.SetInterval(r.Context(), interval); err != nil {
			h.logger.Error("interval change failed", slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "failed to change interval")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
