// Package middleware holds the gin middleware shared by the API routes:
// guest identity and per-IP rate limiting.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/memdexlab/memdex/internal/domain"
)

// HeaderGuestID is the request/response header carrying the guest token.
const HeaderGuestID = "X-Guest-ID"

// contextGuestKey is the gin context key set by GuestIDMiddleware.
const contextGuestKey = "guestID"

// GuestIDMiddleware resolves the caller's guest identity.  The id is an
// opaque bearer token, not a credential: a missing header gets a fresh
// server-issued UUID (echoed back so the client can keep it), a malformed
// one is rejected, and a well-formed unknown one passes through — the engine
// auto-creates the account.
func GuestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderGuestID)
		if id == "" {
			id = uuid.NewString()
			c.Header(HeaderGuestID, id)
		} else if !domain.ValidGuestID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   domain.ErrInvalidGuestID.Error(),
				"code":    "ERR_VALIDATION",
			})
			return
		}
		c.Set(contextGuestKey, id)
		c.Next()
	}
}

// GuestID returns the guest id resolved by GuestIDMiddleware.
func GuestID(c *gin.Context) string {
	return c.GetString(contextGuestKey)
}
