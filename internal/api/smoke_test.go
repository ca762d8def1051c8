package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/memdexlab/memdex/internal/api"
	"github.com/memdexlab/memdex/internal/api/middleware"
	"github.com/memdexlab/memdex/internal/config"
	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/memdexlab/memdex/internal/repository"
)

// newTestRouter builds the full HTTP stack over a throwaway file store.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(context.Background(), store, domain.DefaultStartingCash, log)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "development"},
		Market: config.MarketConfig{StartingCash: 1000, RateLimitRPS: 100},
	}
	return api.SetupRouter(api.RouterDeps{Engine: eng, Cfg: cfg})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, guestID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if guestID != "" {
		req.Header.Set(middleware.HeaderGuestID, guestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func TestSmoke_HealthAndMarket(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(t, r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/market", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("market = %d: %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if !env.Success {
		t.Fatal("market response not successful")
	}
	var snap struct {
		Tickers     []json.RawMessage `json:"tickers"`
		Instruments []json.RawMessage `json:"instruments"`
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Tickers) != 4 || len(snap.Instruments) != 8 {
		t.Errorf("snapshot roster: %d tickers / %d instruments, want 4/8", len(snap.Tickers), len(snap.Instruments))
	}
}

func TestSmoke_GuestIdentity(t *testing.T) {
	r := newTestRouter(t)

	// No header: the server issues an id and echoes it back.
	w := doJSON(t, r, http.MethodGet, "/api/account", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("account = %d: %s", w.Code, w.Body.String())
	}
	issued := w.Header().Get(middleware.HeaderGuestID)
	if !domain.ValidGuestID(issued) {
		t.Fatalf("issued guest id %q is not well-formed", issued)
	}

	// Malformed header: rejected before touching the engine.
	w = doJSON(t, r, http.MethodGet, "/api/account", "!!", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed guest id = %d, want 400", w.Code)
	}

	// Unknown but well-formed: auto-created with starting cash.
	w = doJSON(t, r, http.MethodGet, "/api/account", "smoke-guest-001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("fresh account = %d", w.Code)
	}
	var acct struct {
		CashBalance string `json:"cash_balance"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &acct); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acct.CashBalance != "1000" {
		t.Errorf("starting cash = %s, want 1000", acct.CashBalance)
	}
}

func TestSmoke_TradeLifecycle(t *testing.T) {
	r := newTestRouter(t)
	const guest = "smoke-guest-002"

	w := doJSON(t, r, http.MethodPost, "/api/trades", guest,
		`{"market":"SYNTHETIC","side":"BUY","ticker":"DDR5","amount":200}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("buy = %d: %s", w.Code, w.Body.String())
	}

	// Over-stake → 402.
	w = doJSON(t, r, http.MethodPost, "/api/trades", guest,
		`{"market":"SYNTHETIC","side":"BUY","ticker":"DDR5","amount":5000}`)
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("over-stake = %d, want 402: %s", w.Code, w.Body.String())
	}
	if env := decode(t, w); env.Code != "ERR_INSUFFICIENT_FUNDS" {
		t.Errorf("code = %q", env.Code)
	}

	// Oversell → 409.
	w = doJSON(t, r, http.MethodPost, "/api/trades", guest,
		`{"market":"SYNTHETIC","side":"SELL","ticker":"NAND","quantity":5}`)
	if w.Code != http.StatusConflict {
		t.Errorf("oversell = %d, want 409: %s", w.Code, w.Body.String())
	}

	// Unknown ticker → 404.
	w = doJSON(t, r, http.MethodPost, "/api/trades", guest,
		`{"market":"SYNTHETIC","side":"BUY","ticker":"SRAM","amount":10}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown ticker = %d, want 404: %s", w.Code, w.Body.String())
	}

	// Portfolio reflects the opened lot.
	w = doJSON(t, r, http.MethodGet, "/api/portfolio/synthetic", guest, "")
	if w.Code != http.StatusOK {
		t.Fatalf("portfolio = %d", w.Code)
	}
	var pf struct {
		Positions []json.RawMessage `json:"positions"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &pf); err != nil {
		t.Fatalf("decode portfolio: %v", err)
	}
	if len(pf.Positions) != 1 {
		t.Errorf("open lots = %d, want 1", len(pf.Positions))
	}
}

func TestSmoke_SessionsAndOverride(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/skip", "", `{"count":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("skip = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Applied   int `json:"applied"`
		SkipCount int `json:"skip_count"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &res); err != nil {
		t.Fatalf("decode skip result: %v", err)
	}
	if res.Applied != 2 || res.SkipCount != 2 {
		t.Errorf("applied=%d skipCount=%d, want 2/2", res.Applied, res.SkipCount)
	}

	// Out-of-range batch → 400.
	w = doJSON(t, r, http.MethodPost, "/api/sessions/skip", "", `{"count":99}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("skip 99 = %d, want 400", w.Code)
	}

	// Manual override goes through the band clamps.
	w = doJSON(t, r, http.MethodPost, "/api/market/price", "", `{"ticker":"DDR4","price":"26.5"}`)
	if w.Code != http.StatusOK {
		t.Errorf("override = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/market/price", "", `{"ticker":"DDR4","price":"-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative override = %d, want 400", w.Code)
	}
}
