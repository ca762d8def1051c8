package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/api/middleware"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/shopspring/decimal"
)

// AccountHandler serves the guest-scoped account and portfolio endpoints.
// Guest identity comes from the middleware; unknown ids are auto-created.
type AccountHandler struct {
	engine *engine.Engine
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(e *engine.Engine) *AccountHandler {
	return &AccountHandler{engine: e}
}

// GetAccount returns (creating if necessary) the caller's account.
//
// GET /api/account
func (h *AccountHandler) GetAccount(c *gin.Context) {
	acct, err := h.engine.GetOrCreateAccount(c.Request.Context(), middleware.GuestID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, acct)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit adds paper cash to the caller's balance.
//
// POST /api/account/deposit
func (h *AccountHandler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid request body")
		return
	}

	acct, err := h.engine.Deposit(c.Request.Context(), middleware.GuestID(c), req.Amount)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, acct)
}

type usernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// SetUsername updates the caller's display name.
//
// POST /api/account/username
func (h *AccountHandler) SetUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid request body")
		return
	}

	acct, err := h.engine.SetUsername(c.Request.Context(), middleware.GuestID(c), req.Username)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, acct)
}

// Reset replaces the caller's account with a fresh default one.
//
// POST /api/account/reset
func (h *AccountHandler) Reset(c *gin.Context) {
	acct, err := h.engine.ResetAccount(c.Request.Context(), middleware.GuestID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, acct)
}

// SyntheticPortfolio returns the caller's spot book marked at live prices.
//
// GET /api/portfolio/synthetic
func (h *AccountHandler) SyntheticPortfolio(c *gin.Context) {
	pf, err := h.engine.SyntheticPortfolioFor(c.Request.Context(), middleware.GuestID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, pf)
}

// PredictionPortfolio returns the caller's contract book marked at live
// chance-derived prices, plus realized P&L.
//
// GET /api/portfolio/prediction
func (h *AccountHandler) PredictionPortfolio(c *gin.Context) {
	pf, err := h.engine.PredictionPortfolioFor(c.Request.Context(), middleware.GuestID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, pf)
}
