// Package api wires the gin router: routes, middleware, CORS.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/api/handler"
	"github.com/memdexlab/memdex/internal/api/middleware"
	"github.com/memdexlab/memdex/internal/config"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/memdexlab/memdex/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Engine *engine.Engine
	Hub    *ws.Hub
	Cfg    *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	marketH := handler.NewMarketHandler(deps.Engine)
	accountH := handler.NewAccountHandler(deps.Engine)
	tradeH := handler.NewTradeHandler(deps.Engine)

	// ── Shared middleware ─────────────────────────────────────────────────────
	guestMW := middleware.GuestIDMiddleware()
	mutateRL := middleware.RateLimitMiddleware(deps.Cfg.Market.RateLimitRPS)

	api := r.Group("/api")
	{
		// ── Market (shared state, no identity needed) ─────────────────────────
		market := api.Group("/market")
		{
			market.GET("", marketH.GetMarket)
			market.POST("/price", mutateRL, marketH.OverridePrice)
		}
		api.POST("/sessions/skip", mutateRL, marketH.SkipSessions)

		// ── Guest-scoped routes ───────────────────────────────────────────────
		guest := api.Group("")
		guest.Use(guestMW)
		{
			account := guest.Group("/account")
			{
				account.GET("", accountH.GetAccount)
				account.POST("/deposit", mutateRL, accountH.Deposit)
				account.POST("/username", mutateRL, accountH.SetUsername)
				account.POST("/reset", mutateRL, accountH.Reset)
			}

			portfolio := guest.Group("/portfolio")
			{
				portfolio.GET("/synthetic", accountH.SyntheticPortfolio)
				portfolio.GET("/prediction", accountH.PredictionPortfolio)
			}

			guest.POST("/trades", mutateRL, tradeH.ExecuteTrade)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Guest-ID, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Guest-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
