package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Engine error → HTTP mapping
// ──────────────────────────────────────────────────────────────────────────────

// respondEngineError translates an engine error into the HTTP contract:
// malformed input → 400, solvency → 402, inventory → 409, unknown symbol →
// 404, anything else → 500 with the detail withheld.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case domain.IsInvalidInput(err):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_FUNDS", err.Error())
	case domain.IsRejection(err):
		respondError(c, http.StatusConflict, "ERR_REJECTED", err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
	}
}
