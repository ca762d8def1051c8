package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Precision & limits
// ──────────────────────────────────────────────────────────────────────────────

const (
	// QuantityPrecision is the number of decimal places kept for units and
	// contracts.
	QuantityPrecision = 4

	// CashPrecision is the number of decimal places kept for USD amounts.
	CashPrecision = 2

	// OrderHistoryCap is the maximum number of order records retained per
	// account per book (most recent kept).
	OrderHistoryCap = 500
)

// SellEpsilon is the tolerance applied to inventory checks so repeated
// partial sells with 4dp rounding can still close a position exactly.
var SellEpsilon = decimal.NewFromFloat(0.01)

// DefaultStartingCash is the paper-money balance granted to a fresh account.
var DefaultStartingCash = decimal.NewFromInt(1000)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	guestIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)
)

// ValidUsername reports whether u is 3–20 chars of alphanumerics/underscore.
func ValidUsername(u string) bool {
	return usernameRe.MatchString(u)
}

// ValidGuestID reports whether id has the surface format of a guest token:
// 8–64 chars of alphanumerics, hyphen, or underscore.  This is the only
// validation performed — the id is an opaque bearer token, not a credential.
func ValidGuestID(id string) bool {
	return guestIDRe.MatchString(id)
}

// ──────────────────────────────────────────────────────────────────────────────
// Position lots
// ──────────────────────────────────────────────────────────────────────────────

// SyntheticPosition is one BUY-created batch of spot-market units with its
// own cost basis.  Multiple lots per ticker may coexist; partial sells rewrite
// the lot with proportionally reduced quantity and invested amount.
type SyntheticPosition struct {
	ID             int64           `json:"id"`
	Ticker         Ticker          `json:"ticker"`
	Units          decimal.Decimal `json:"units"`
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	OpenedAt       time.Time       `json:"opened_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PredictionPosition is one BUY-created batch of binary contracts.  Each lot
// freezes its own settlement anchors (TargetPrice, OpenedAtSession), which is
// why prediction lots are never merged with other lots of the same side.
type PredictionPosition struct {
	ID              int64           `json:"id"`
	InstrumentID    string          `json:"instrument_id"`
	Outcome         Outcome         `json:"outcome"`
	Contracts       decimal.Decimal `json:"contracts"`
	AvgEntryPrice   decimal.Decimal `json:"avg_entry_price"`
	InvestedAmount  decimal.Decimal `json:"invested_amount"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	OpenedAtSession int             `json:"opened_at_session"`
	OpenedAt        time.Time       `json:"opened_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────────────────────────────────

// OrderType is the action an order record logs.
type OrderType string

const (
	OrderBuy        OrderType = "BUY"
	OrderSell       OrderType = "SELL"
	OrderSettlement OrderType = "SETTLEMENT"
)

// Order is an immutable append-only log entry for one executed action.
// Capped retention per account per book; never mutated, only appended and
// trimmed from the oldest end.
type Order struct {
	ID           int64           `json:"id"`
	Type         OrderType       `json:"type"`
	Ticker       Ticker          `json:"ticker,omitempty"`
	InstrumentID string          `json:"instrument_id,omitempty"`
	Outcome      Outcome         `json:"outcome,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Books & account
// ──────────────────────────────────────────────────────────────────────────────

// SyntheticBook holds a guest's spot-market lots and order history.
type SyntheticBook struct {
	Positions      []SyntheticPosition `json:"positions"`
	Orders         []Order             `json:"orders"`
	NextPositionID int64               `json:"next_position_id"`
	NextOrderID    int64               `json:"next_order_id"`
}

// PredictionBook holds a guest's prediction-market lots and order history.
type PredictionBook struct {
	Positions      []PredictionPosition `json:"positions"`
	Orders         []Order              `json:"orders"`
	NextPositionID int64                `json:"next_position_id"`
	NextOrderID    int64                `json:"next_order_id"`
}

// Account is the per-guest ledger: cash, two position books, and the
// permanent realized-P&L accumulator.  PortfolioPnL is derived from open
// lots and live marks — it is rebuilt on every load and mutation, never
// trusted from storage.
type Account struct {
	GuestID      string          `json:"guest_id"`
	Username     string          `json:"username"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	Synthetic    SyntheticBook   `json:"synthetic"`
	Prediction   PredictionBook  `json:"prediction"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	PortfolioPnL decimal.Decimal `json:"portfolio_pnl"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewAccount creates a fresh default account for a guest id.
func NewAccount(guestID string, startingCash decimal.Decimal, now time.Time) *Account {
	return &Account{
		GuestID:     guestID,
		Username:    "guest",
		CashBalance: startingCash.Round(CashPrecision),
		Synthetic:   SyntheticBook{NextPositionID: 1, NextOrderID: 1},
		Prediction:  PredictionBook{NextPositionID: 1, NextOrderID: 1},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SyntheticUnits sums open units for a ticker across all lots.
func (a *Account) SyntheticUnits(t Ticker) decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Synthetic.Positions {
		if p.Ticker == t {
			total = total.Add(p.Units)
		}
	}
	return total
}

// PredictionContracts sums open contracts for an instrument+outcome pair.
func (a *Account) PredictionContracts(instrumentID string, o Outcome) decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Prediction.Positions {
		if p.InstrumentID == instrumentID && p.Outcome == o {
			total = total.Add(p.Contracts)
		}
	}
	return total
}

// Clone returns a deep copy safe to hand out of the engine's lock.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Synthetic.Positions = append([]SyntheticPosition(nil), a.Synthetic.Positions...)
	cp.Synthetic.Orders = append([]Order(nil), a.Synthetic.Orders...)
	cp.Prediction.Positions = append([]PredictionPosition(nil), a.Prediction.Positions...)
	cp.Prediction.Orders = append([]Order(nil), a.Prediction.Orders...)
	return &cp
}
