// Package engine is the single-writer market-state core: it owns the price
// and chance ledgers, the session clock, and every guest account.  One mutex
// serialises all operations; ledgers and accounts are never touched outside
// it.  Every mutation persists its documents synchronously before the
// broadcast fires, so a restart can only lose the push, never the state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/ledger"
	"github.com/memdexlab/memdex/internal/repository"
	"github.com/memdexlab/memdex/internal/walk"
	"github.com/shopspring/decimal"
)

// Broadcaster is the minimal interface the engine needs from the WS hub.
// Injected post-construction to break the wiring cycle.
type Broadcaster interface {
	BroadcastSnapshot(snap *Snapshot)
}

// Engine is the market-state core.  All exported methods lock internally and
// return deep copies; callers never see live internal state.
type Engine struct {
	mu sync.Mutex

	store repository.DocumentStore
	log   *slog.Logger

	rng *rand.Rand
	gen *walk.Generator

	startingCash decimal.Decimal

	prices   *ledger.PriceLedger
	chances  *ledger.ChanceLedger
	session  *domain.SessionState
	accounts map[string]*domain.Account
	activity []domain.ActivityEntry

	broadcaster Broadcaster
}

// New loads (or seeds) the full market state from the store.  Any document
// that is missing, unreadable, or fails validation is rebuilt from defaults
// and the repaired version is written back immediately, so the next boot is
// clean.
func New(ctx context.Context, store repository.DocumentStore, startingCash decimal.Decimal, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store:        store,
		log:          log,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		gen:          walk.NewUnseeded(),
		startingCash: startingCash.Round(domain.CashPrecision),
		accounts:     make(map[string]*domain.Account),
	}

	now := time.Now().UTC()
	if err := e.load(ctx, now); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	return e, nil
}

// SetBroadcaster injects the WS hub dependency post-construction.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// ──────────────────────────────────────────────────────────────────────────────
// Load & recovery
// ──────────────────────────────────────────────────────────────────────────────

// load rebuilds all four state documents.  Per document: absent → defaults,
// unreadable or invalid → defaults plus a warning, readable but imperfect →
// sanitized.  Anything that deviated from what was stored is persisted back.
func (e *Engine) load(ctx context.Context, now time.Time) error {
	// Prices first: the session clock's references depend on them.
	var priceState ledger.PriceState
	dirty := loadDoc(e, ctx, repository.DocPrices, &priceState)
	var repaired bool
	e.prices, repaired = ledger.RestorePriceLedger(priceState, now)
	if e.persistIfDirty(ctx, repository.DocPrices, e.prices.Export(), dirty || repaired, now) {
		e.log.Warn("price ledger repaired on load")
	}

	var chanceState ledger.ChanceState
	dirty = loadDoc(e, ctx, repository.DocChances, &chanceState)
	e.chances, repaired = ledger.RestoreChanceLedger(chanceState, now)
	if e.persistIfDirty(ctx, repository.DocChances, e.chances.Export(), dirty || repaired, now) {
		e.log.Warn("chance ledger repaired on load")
	}

	var sessionState *domain.SessionState
	dirty = loadDoc(e, ctx, repository.DocSession, &sessionState)
	e.session, repaired = ledger.RestoreSession(sessionState, e.prices.CurrentPrices(), now)
	if e.persistIfDirty(ctx, repository.DocSession, e.session, dirty || repaired, now) {
		e.log.Warn("session clock repaired on load")
	}

	var accountState map[string]*domain.Account
	dirty = loadDoc(e, ctx, repository.DocAccounts, &accountState)
	repaired = e.restoreAccounts(accountState, now)
	if e.persistIfDirty(ctx, repository.DocAccounts, e.accounts, dirty || repaired, now) {
		e.log.Warn("accounts repaired on load", "count", len(e.accounts))
	}
	return nil
}

// loadDoc reads one document into out.  Returns true when the stored version
// must be rewritten: it was absent or could not be decoded (out keeps its
// zero value, which the Restore* functions turn into defaults).
func loadDoc[T any](e *Engine, ctx context.Context, name string, out *T) bool {
	_, err := repository.LoadDocument(ctx, e.store, name, out)
	if err == nil {
		return false
	}
	if !repository.IsNotFound(err) {
		e.log.Warn("document unreadable, rebuilding from defaults", "doc", name, "error", err)
	}
	return true
}

// persistIfDirty writes the document when dirty and reports whether it did.
func (e *Engine) persistIfDirty(ctx context.Context, name string, data any, dirty bool, now time.Time) bool {
	if !dirty {
		return false
	}
	if err := repository.SaveDocument(ctx, e.store, name, data, now); err != nil {
		e.log.Error("persist failed", "doc", name, "error", err)
	}
	return true
}

// ──────────────────────────────────────────────────────────────────────────────
// Persistence & broadcast (called under e.mu)
// ──────────────────────────────────────────────────────────────────────────────

// persistLocked writes the named documents.  A write failure is logged and
// swallowed: memory is the source of truth and stays ahead of disk.
func (e *Engine) persistLocked(ctx context.Context, now time.Time, docs ...string) {
	for _, name := range docs {
		var data any
		switch name {
		case repository.DocPrices:
			data = e.prices.Export()
		case repository.DocChances:
			data = e.chances.Export()
		case repository.DocSession:
			data = e.session
		case repository.DocAccounts:
			data = e.accounts
		default:
			continue
		}
		if err := repository.SaveDocument(ctx, e.store, name, data, now); err != nil {
			e.log.Error("persist failed", "doc", name, "error", err)
		}
	}
}

// broadcastLocked builds a snapshot under the lock and pushes it from a
// goroutine so a slow hub never blocks the engine.
func (e *Engine) broadcastLocked() {
	if e.broadcaster == nil {
		return
	}
	snap := e.snapshotLocked()
	go e.broadcaster.BroadcastSnapshot(snap)
}

// recordActivityLocked appends to the engine-wide feed, newest last.
func (e *Engine) recordActivityLocked(entry domain.ActivityEntry) {
	e.activity = append(e.activity, entry)
	if len(e.activity) > domain.ActivityFeedCap {
		e.activity = e.activity[len(e.activity)-domain.ActivityFeedCap:]
	}
}
