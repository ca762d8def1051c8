package engine

import (
	"context"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/repository"
	"github.com/shopspring/decimal"
)

// maxSkipBatch bounds a single skip request.
const maxSkipBatch = 20

// SkipResult reports the outcome of a skip batch.
type SkipResult struct {
	Applied   int             `json:"applied"`
	SkipCount int             `json:"skip_count"`
	Session   SessionSnapshot `json:"session"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SkipSessions
// ──────────────────────────────────────────────────────────────────────────────

// SkipSessions advances the session clock n times (1..20).  Each advance, in
// order: tick every ticker's price, nudge every instrument's chance by its
// ticker's price delta, settle due DAILY lots, and on a slot-0 crossing
// resync the daily reference prices and reset DAILY chances.  State is
// persisted and broadcast once per batch, not per step.
func (e *Engine) SkipSessions(ctx context.Context, n int) (*SkipResult, error) {
	if n < 1 || n > maxSkipBatch {
		return nil, domain.ErrInvalidSkipCount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		e.advanceOnceLocked(now)
	}

	// Live marks moved; refresh derived P&L before it is persisted.
	for _, acct := range e.accounts {
		e.recomputePnLLocked(acct)
	}

	e.persistLocked(ctx, now,
		repository.DocPrices, repository.DocChances,
		repository.DocSession, repository.DocAccounts)
	e.broadcastLocked()

	return &SkipResult{
		Applied:   n,
		SkipCount: e.session.SkipCount,
		Session: SessionSnapshot{
			SkipCount:     e.session.SkipCount,
			SlotIndex:     e.session.LastSlotIndex,
			LastSessionAt: e.session.LastSessionAt,
		},
	}, nil
}

// advanceOnceLocked runs a single session step under e.mu.
func (e *Engine) advanceOnceLocked(now time.Time) {
	slot := e.session.Advance()

	deltas := make(map[domain.Ticker]decimal.Decimal, len(domain.Tickers()))
	for _, t := range domain.Tickers() {
		current, _ := e.prices.Current(t)
		base, _ := domain.BasePrice(t)
		next := e.gen.Next(current, base)
		_, delta, err := e.prices.Record(t, next, domain.SourceSessionSkip, now)
		if err != nil {
			e.log.Error("session price tick failed", "ticker", t, "error", err)
			continue
		}
		deltas[t] = delta
	}

	for _, in := range domain.Instruments() {
		if _, err := e.chances.Bump(in.ID, deltas[in.Ticker], e.rng, now); err != nil {
			e.log.Error("chance bump failed", "instrument", in.ID, "error", err)
		}
	}

	e.settleDueLocked(now)

	if slot == 0 {
		// New trading day: refresh references, reset daily chances.
		e.session.PriceToBeat = e.prices.CurrentPrices()
		e.chances.ResetDaily(now)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// settleDueLocked sweeps every account for DAILY lots held for at least 3
// sessions.  YES wins only when the current price strictly exceeds the lot's
// frozen target; a tie goes to NO.  Winners collect $1 per contract, losers
// forfeit their stake, and either way the lot closes with a SETTLEMENT order.
func (e *Engine) settleDueLocked(now time.Time) {
	for _, acct := range e.accounts {
		settled := false
		kept := acct.Prediction.Positions[:0]
		for _, p := range acct.Prediction.Positions {
			in, ok := domain.InstrumentByID(p.InstrumentID)
			if !ok || in.Period != domain.PeriodDaily ||
				e.session.SkipCount-p.OpenedAtSession < domain.DailySettleAfterSessions {
				kept = append(kept, p)
				continue
			}

			current, _ := e.prices.Current(in.Ticker)
			winner := domain.OutcomeNo
			if current.GreaterThan(p.TargetPrice) {
				winner = domain.OutcomeYes
			}

			payout := decimal.Zero
			settlePrice := decimal.Zero
			if p.Outcome == winner {
				payout = p.Contracts.Round(domain.CashPrecision) // $1 per contract
				settlePrice = decimal.NewFromInt(1)
				acct.CashBalance = acct.CashBalance.Add(payout)
			}
			realized := payout.Sub(p.InvestedAmount)
			acct.RealizedPnL = acct.RealizedPnL.Add(realized)

			order := domain.Order{
				ID:           acct.Prediction.NextOrderID,
				Type:         domain.OrderSettlement,
				InstrumentID: p.InstrumentID,
				Outcome:      p.Outcome,
				Quantity:     p.Contracts,
				Price:        settlePrice,
				Amount:       payout,
				RealizedPnL:  realized,
				CreatedAt:    now,
			}
			acct.Prediction.NextOrderID++
			appendOrder(&acct.Prediction.Orders, order)

			e.recordActivityLocked(domain.ActivityEntry{
				Who:       acct.Username,
				Type:      domain.OrderSettlement,
				Market:    domain.MarketPrediction,
				Symbol:    in.DisplayTicker + " " + string(p.Outcome),
				Quantity:  p.Contracts,
				Amount:    payout,
				CreatedAt: now,
			})
			settled = true
		}
		acct.Prediction.Positions = kept
		if settled {
			acct.UpdatedAt = now
			e.recomputePnLLocked(acct)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual price override
// ──────────────────────────────────────────────────────────────────────────────

// OverridePrice applies a manual price to a ticker.  The raw value goes
// through the same double clamp as any other tick, the ticker's instruments
// get their chance nudge, and the updated state is persisted and broadcast.
func (e *Engine) OverridePrice(ctx context.Context, t domain.Ticker, raw decimal.Decimal) (domain.PriceEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	entry, delta, err := e.prices.Record(t, raw, domain.SourceManual, now)
	if err != nil {
		return domain.PriceEntry{}, err
	}

	for _, in := range domain.Instruments() {
		if in.Ticker != t {
			continue
		}
		if _, err := e.chances.Bump(in.ID, delta, e.rng, now); err != nil {
			e.log.Error("chance bump failed", "instrument", in.ID, "error", err)
		}
	}

	// Live marks moved; refresh derived P&L.
	for _, acct := range e.accounts {
		e.recomputePnLLocked(acct)
	}

	e.persistLocked(ctx, now, repository.DocPrices, repository.DocChances, repository.DocAccounts)
	e.broadcastLocked()
	return entry, nil
}
