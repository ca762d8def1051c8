package engine

import (
	"context"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Account lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// GetOrCreateAccount returns the account for a guest id, creating a fresh
// default one on first contact.  A malformed id is the only failure mode.
func (e *Engine) GetOrCreateAccount(ctx context.Context, guestID string) (*domain.Account, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, created := e.accountLocked(guestID)
	if created {
		e.persistLocked(ctx, time.Now().UTC(), repository.DocAccounts)
	}
	return acct.Clone(), nil
}

// Deposit adds paper cash to an account.  Amount must be positive; it is
// rounded to cents before applying.
func (e *Engine) Deposit(ctx context.Context, guestID string, amount decimal.Decimal) (*domain.Account, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	acct, _ := e.accountLocked(guestID)
	acct.CashBalance = acct.CashBalance.Add(amount.Round(domain.CashPrecision))
	acct.UpdatedAt = now

	e.persistLocked(ctx, now, repository.DocAccounts)
	e.broadcastLocked()
	return acct.Clone(), nil
}

// SetUsername updates the display name shown in the activity feed.
func (e *Engine) SetUsername(ctx context.Context, guestID, username string) (*domain.Account, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}
	if !domain.ValidUsername(username) {
		return nil, domain.ErrInvalidUsername
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	acct, _ := e.accountLocked(guestID)
	acct.Username = username
	acct.UpdatedAt = now

	e.persistLocked(ctx, now, repository.DocAccounts)
	return acct.Clone(), nil
}

// ResetAccount replaces one guest's account with a fresh default.  Positions,
// orders, and realized P&L are gone; market state is untouched.
func (e *Engine) ResetAccount(ctx context.Context, guestID string) (*domain.Account, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	acct := domain.NewAccount(guestID, e.startingCash, now)
	e.accounts[guestID] = acct

	e.persistLocked(ctx, now, repository.DocAccounts)
	e.broadcastLocked()
	return acct.Clone(), nil
}

// accountLocked fetches or lazily creates an account under e.mu.
func (e *Engine) accountLocked(guestID string) (*domain.Account, bool) {
	if acct, ok := e.accounts[guestID]; ok {
		return acct, false
	}
	acct := domain.NewAccount(guestID, e.startingCash, time.Now().UTC())
	e.accounts[guestID] = acct
	return acct, true
}

// ──────────────────────────────────────────────────────────────────────────────
// Portfolio views
// ──────────────────────────────────────────────────────────────────────────────

// SyntheticPositionView is an open spot lot marked against the live price.
type SyntheticPositionView struct {
	domain.SyntheticPosition
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// SyntheticPortfolio is the spot-book view for one guest.
type SyntheticPortfolio struct {
	Positions     []SyntheticPositionView `json:"positions"`
	Orders        []domain.Order          `json:"orders"`
	TotalValue    decimal.Decimal         `json:"total_value"`
	TotalInvested decimal.Decimal         `json:"total_invested"`
	UnrealizedPnL decimal.Decimal         `json:"unrealized_pnl"`
}

// PredictionPositionView is an open contract lot marked against the live
// chance-derived contract price.
type PredictionPositionView struct {
	domain.PredictionPosition
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// PredictionPortfolio is the prediction-book view for one guest.
type PredictionPortfolio struct {
	Positions     []PredictionPositionView `json:"positions"`
	Orders        []domain.Order           `json:"orders"`
	TotalValue    decimal.Decimal          `json:"total_value"`
	TotalInvested decimal.Decimal          `json:"total_invested"`
	UnrealizedPnL decimal.Decimal          `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal          `json:"realized_pnl"`
}

// SyntheticPortfolioFor returns the live-marked spot book for a guest.
func (e *Engine) SyntheticPortfolioFor(ctx context.Context, guestID string) (*SyntheticPortfolio, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, created := e.accountLocked(guestID)
	if created {
		e.persistLocked(ctx, time.Now().UTC(), repository.DocAccounts)
	}

	out := &SyntheticPortfolio{
		Orders:        append([]domain.Order(nil), acct.Synthetic.Orders...),
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		UnrealizedPnL: decimal.Zero,
	}
	for _, p := range acct.Synthetic.Positions {
		price, _ := e.prices.Current(p.Ticker)
		value := p.Units.Mul(price).Round(domain.CashPrecision)
		view := SyntheticPositionView{
			SyntheticPosition: p,
			CurrentPrice:      price,
			MarketValue:       value,
			UnrealizedPnL:     value.Sub(p.InvestedAmount),
		}
		out.Positions = append(out.Positions, view)
		out.TotalValue = out.TotalValue.Add(value)
		out.TotalInvested = out.TotalInvested.Add(p.InvestedAmount)
	}
	out.UnrealizedPnL = out.TotalValue.Sub(out.TotalInvested)
	return out, nil
}

// PredictionPortfolioFor returns the live-marked prediction book for a guest.
func (e *Engine) PredictionPortfolioFor(ctx context.Context, guestID string) (*PredictionPortfolio, error) {
	if !domain.ValidGuestID(guestID) {
		return nil, domain.ErrInvalidGuestID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, created := e.accountLocked(guestID)
	if created {
		e.persistLocked(ctx, time.Now().UTC(), repository.DocAccounts)
	}

	out := &PredictionPortfolio{
		Orders:        append([]domain.Order(nil), acct.Prediction.Orders...),
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   acct.RealizedPnL,
	}
	for _, p := range acct.Prediction.Positions {
		price := e.contractPriceLocked(p.InstrumentID, p.Outcome)
		value := p.Contracts.Mul(price).Round(domain.CashPrecision)
		view := PredictionPositionView{
			PredictionPosition: p,
			CurrentPrice:       price,
			MarketValue:        value,
			UnrealizedPnL:      value.Sub(p.InvestedAmount),
		}
		out.Positions = append(out.Positions, view)
		out.TotalValue = out.TotalValue.Add(value)
		out.TotalInvested = out.TotalInvested.Add(p.InvestedAmount)
	}
	out.UnrealizedPnL = out.TotalValue.Sub(out.TotalInvested)
	return out, nil
}

// contractPriceLocked marks one instrument side at the live chance.
func (e *Engine) contractPriceLocked(instrumentID string, o domain.Outcome) decimal.Decimal {
	chance, ok := e.chances.Chance(instrumentID)
	if !ok {
		return decimal.Zero
	}
	return domain.ContractPrice(chance, o)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sanitize-on-load
// ──────────────────────────────────────────────────────────────────────────────

// restoreAccounts rebuilds the account map from a loaded document, treating
// every field as untrusted.  Returns whether any repair was applied.
func (e *Engine) restoreAccounts(loaded map[string]*domain.Account, now time.Time) bool {
	e.accounts = make(map[string]*domain.Account, len(loaded))
	repaired := false
	for guestID, acct := range loaded {
		if acct == nil || !domain.ValidGuestID(guestID) {
			repaired = true
			continue
		}
		acct.GuestID = guestID
		if sanitizeAccount(acct, now) {
			repaired = true
		}
		e.recomputePnLLocked(acct)
		e.accounts[guestID] = acct
	}
	return repaired
}

// sanitizeAccount repairs one account in place: invalid usernames fall back
// to the default, negative cash clamps to zero, malformed lots and orders are
// dropped, id counters recover as max+1, and caps are re-enforced.  Derived
// P&L is recomputed by the caller.  Returns whether anything changed.
func sanitizeAccount(a *domain.Account, now time.Time) bool {
	repaired := false

	if !domain.ValidUsername(a.Username) {
		a.Username = "guest"
		repaired = true
	}
	if a.CashBalance.IsNegative() {
		a.CashBalance = decimal.Zero
		repaired = true
	}
	a.CashBalance = a.CashBalance.Round(domain.CashPrecision)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
		repaired = true
	}

	// Synthetic lots.
	synPos := a.Synthetic.Positions[:0]
	for _, p := range a.Synthetic.Positions {
		base, ok := domain.BasePrice(p.Ticker)
		if !ok || !p.Units.IsPositive() || !p.InvestedAmount.IsPositive() {
			repaired = true
			continue
		}
		if !p.AvgEntryPrice.IsPositive() || !domain.InBand(p.AvgEntryPrice, base) {
			repaired = true
			continue
		}
		synPos = append(synPos, p)
	}
	a.Synthetic.Positions = synPos

	// Prediction lots.
	predPos := a.Prediction.Positions[:0]
	for _, p := range a.Prediction.Positions {
		if _, ok := domain.InstrumentByID(p.InstrumentID); !ok {
			repaired = true
			continue
		}
		if !p.Outcome.IsValid() || !p.Contracts.IsPositive() || !p.InvestedAmount.IsPositive() {
			repaired = true
			continue
		}
		if !p.TargetPrice.IsPositive() || p.OpenedAtSession < 0 {
			repaired = true
			continue
		}
		predPos = append(predPos, p)
	}
	a.Prediction.Positions = predPos

	if fixOrders(&a.Synthetic.Orders) || fixOrders(&a.Prediction.Orders) {
		repaired = true
	}

	if fixNextIDs(&a.Synthetic.NextPositionID, &a.Synthetic.NextOrderID, synMaxIDs(a)) {
		repaired = true
	}
	if fixNextIDs(&a.Prediction.NextPositionID, &a.Prediction.NextOrderID, predMaxIDs(a)) {
		repaired = true
	}
	return repaired
}

// fixOrders drops malformed order records and re-enforces the cap.
func fixOrders(orders *[]domain.Order) bool {
	repaired := false
	kept := (*orders)[:0]
	for _, o := range *orders {
		if o.ID <= 0 || o.CreatedAt.IsZero() {
			repaired = true
			continue
		}
		switch o.Type {
		case domain.OrderBuy, domain.OrderSell, domain.OrderSettlement:
		default:
			repaired = true
			continue
		}
		kept = append(kept, o)
	}
	if len(kept) > domain.OrderHistoryCap {
		kept = kept[len(kept)-domain.OrderHistoryCap:]
		repaired = true
	}
	*orders = kept
	return repaired
}

type maxIDs struct{ pos, ord int64 }

func synMaxIDs(a *domain.Account) maxIDs {
	var m maxIDs
	for _, p := range a.Synthetic.Positions {
		if p.ID > m.pos {
			m.pos = p.ID
		}
	}
	for _, o := range a.Synthetic.Orders {
		if o.ID > m.ord {
			m.ord = o.ID
		}
	}
	return m
}

func predMaxIDs(a *domain.Account) maxIDs {
	var m maxIDs
	for _, p := range a.Prediction.Positions {
		if p.ID > m.pos {
			m.pos = p.ID
		}
	}
	for _, o := range a.Prediction.Orders {
		if o.ID > m.ord {
			m.ord = o.ID
		}
	}
	return m
}

// fixNextIDs recovers id counters as max(existing)+1 when the stored counter
// is missing or would collide.
func fixNextIDs(nextPos, nextOrd *int64, m maxIDs) bool {
	repaired := false
	if *nextPos <= m.pos {
		*nextPos = m.pos + 1
		repaired = true
	}
	if *nextOrd <= m.ord {
		*nextOrd = m.ord + 1
		repaired = true
	}
	return repaired
}

// recomputePnLLocked rebuilds the derived portfolio P&L from open lots and
// live marks.  Stored values are never trusted.
func (e *Engine) recomputePnLLocked(a *domain.Account) {
	pnl := decimal.Zero
	for _, p := range a.Synthetic.Positions {
		price, _ := e.prices.Current(p.Ticker)
		pnl = pnl.Add(p.Units.Mul(price).Round(domain.CashPrecision).Sub(p.InvestedAmount))
	}
	for _, p := range a.Prediction.Positions {
		price := e.contractPriceLocked(p.InstrumentID, p.Outcome)
		pnl = pnl.Add(p.Contracts.Mul(price).Round(domain.CashPrecision).Sub(p.InvestedAmount))
	}
	a.PortfolioPnL = pnl
}
