// Package handler implements the HTTP handlers for the market API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/shopspring/decimal"
)

// MarketHandler serves the aggregate market view and the market-level
// mutations: manual price overrides and session skips.
type MarketHandler struct {
	engine *engine.Engine
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(e *engine.Engine) *MarketHandler {
	return &MarketHandler{engine: e}
}

// GetMarket returns the full aggregate snapshot: prices, histories, stats,
// daily references, session clock, chances, and the activity feed.
//
// GET /api/market
func (h *MarketHandler) GetMarket(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.engine.Snapshot(c.Request.Context()))
}

type overridePriceRequest struct {
	Ticker string          `json:"ticker" binding:"required"`
	Price  decimal.Decimal `json:"price"`
}

// OverridePrice applies a manual price to a ticker.  The value passes
// through the same band clamps as a generated tick.
//
// POST /api/market/price
func (h *MarketHandler) OverridePrice(c *gin.Context) {
	var req overridePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid request body")
		return
	}

	entry, err := h.engine.OverridePrice(c.Request.Context(), domain.Ticker(req.Ticker), req.Price)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, entry)
}

type skipSessionsRequest struct {
	Count int `json:"count" binding:"required"`
}

// SkipSessions advances the session clock by 1..20 steps.
//
// POST /api/sessions/skip
func (h *MarketHandler) SkipSessions(c *gin.Context) {
	var req skipSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid request body")
		return
	}

	res, err := h.engine.SkipSessions(c.Request.Context(), req.Count)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}
