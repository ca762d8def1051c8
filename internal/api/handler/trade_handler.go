package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/api/middleware"
	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/shopspring/decimal"
)

// TradeHandler serves the trade execution endpoint for both markets.
type TradeHandler struct {
	engine *engine.Engine
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(e *engine.Engine) *TradeHandler {
	return &TradeHandler{engine: e}
}

type tradeRequest struct {
	Market       string          `json:"market" binding:"required"`
	Side         string          `json:"side" binding:"required"`
	Ticker       string          `json:"ticker"`
	InstrumentID string          `json:"instrument_id"`
	Outcome      string          `json:"outcome"`
	Amount       decimal.Decimal `json:"amount"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ExecuteTrade runs one BUY or SELL against the caller's account.
// This endpoint only parses; every business rule lives in the engine.
//
// POST /api/trades
func (h *TradeHandler) ExecuteTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid request body")
		return
	}

	res, err := h.engine.ExecuteTrade(c.Request.Context(), domain.TradeRequest{
		GuestID:      middleware.GuestID(c),
		Market:       domain.MarketKind(req.Market),
		Side:         domain.Side(req.Side),
		Ticker:       domain.Ticker(req.Ticker),
		InstrumentID: req.InstrumentID,
		Outcome:      domain.Outcome(req.Outcome),
		Amount:       req.Amount,
		Quantity:     req.Quantity,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, res)
}
