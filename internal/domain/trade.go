package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketKind selects which of the two paper markets a trade touches.
type MarketKind string

const (
	MarketSynthetic  MarketKind = "SYNTHETIC"
	MarketPrediction MarketKind = "PREDICTION"
)

// IsValid reports whether k names a recognised market.
func (k MarketKind) IsValid() bool {
	return k == MarketSynthetic || k == MarketPrediction
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid reports whether s is a recognised side.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeRequest — value object used by the engine's trade executor
// ──────────────────────────────────────────────────────────────────────────────

// TradeRequest carries the validated inputs for one trade.  It is constructed
// by the API parse step, which is the only place untrusted input is handled;
// the engine assumes structural validity and enforces business rules.
//
// For a BUY, Amount is the USD stake.  For a SELL, Quantity is the number of
// units/contracts to close; a synthetic SELL may instead carry Amount
// (sell-by-value), converted to units at the current price.
type TradeRequest struct {
	GuestID      string
	Market       MarketKind
	Side         Side
	Ticker       Ticker  // synthetic trades
	InstrumentID string  // prediction trades
	Outcome      Outcome // prediction trades
	Amount       decimal.Decimal
	Quantity     decimal.Decimal
}

// Validate applies the structural rules common to both markets.
func (r *TradeRequest) Validate() error {
	if !ValidGuestID(r.GuestID) {
		return ErrInvalidGuestID
	}
	if !r.Market.IsValid() {
		return ErrInvalidMarket
	}
	if !r.Side.IsValid() {
		return ErrInvalidSide
	}
	switch r.Market {
	case MarketSynthetic:
		if !r.Ticker.IsValid() {
			return ErrUnknownTicker
		}
	case MarketPrediction:
		if _, ok := InstrumentByID(r.InstrumentID); !ok {
			return ErrUnknownInstrument
		}
		if !r.Outcome.IsValid() {
			return ErrInvalidOutcome
		}
	}
	switch r.Side {
	case SideBuy:
		if !r.Amount.IsPositive() {
			return ErrInvalidAmount
		}
	case SideSell:
		if !r.Quantity.IsPositive() && !(r.Market == MarketSynthetic && r.Amount.IsPositive()) {
			return ErrInvalidAmount
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeResult
// ──────────────────────────────────────────────────────────────────────────────

// TradeResult is returned to the caller after a successful execution.
type TradeResult struct {
	Order       Order           `json:"order"`
	FillPrice   decimal.Decimal `json:"fill_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Account     *Account        `json:"account"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ActivityEntry — engine-wide recent-orders feed
// ──────────────────────────────────────────────────────────────────────────────

// ActivityEntry is one row of the engine-wide activity feed shown to all
// viewers.  Guest identity is reduced to the display name.
type ActivityEntry struct {
	Who       string          `json:"who"`
	Type      OrderType       `json:"type"`
	Market    MarketKind      `json:"market"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// ActivityFeedCap bounds the engine-wide activity feed.
const ActivityFeedCap = 50
