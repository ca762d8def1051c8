// Package domain defines the core business entities and types for the
// memdex paper-trading simulator: memory-commodity tickers, prediction
// instruments, guest accounts, position lots, and the session clock state.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Ticker is a tradable memory-commodity symbol in the synthetic spot market.
type Ticker string

const (
	TickerDDR5 Ticker = "DDR5"
	TickerDDR4 Ticker = "DDR4"
	TickerHBM3 Ticker = "HBM3"
	TickerNAND Ticker = "NAND"
)

// PriceBandPct is the hard bound on how far a price may sit from its base
// price, and on how far a single step may move from the previous price (±5 %).
var PriceBandPct = decimal.NewFromFloat(0.05)

// PricePrecision is the number of decimal places stored for ticker prices.
const PricePrecision = 3

// PriceHistoryCap is the maximum number of history entries kept per ticker.
const PriceHistoryCap = 100

// basePrices anchors the bounded random walk for every ticker.
var basePrices = map[Ticker]decimal.Decimal{
	TickerDDR5: decimal.NewFromFloat(38.067),
	TickerDDR4: decimal.NewFromFloat(26.413),
	TickerHBM3: decimal.NewFromFloat(512.500),
	TickerNAND: decimal.NewFromFloat(4.812),
}

// tickerOrder fixes the iteration order for snapshots and session ticks.
var tickerOrder = []Ticker{TickerDDR5, TickerDDR4, TickerHBM3, TickerNAND}

// Tickers returns the fixed roster in display order.
func Tickers() []Ticker {
	out := make([]Ticker, len(tickerOrder))
	copy(out, tickerOrder)
	return out
}

// BasePrice returns the immutable base price for a ticker and whether the
// ticker is part of the roster.
func BasePrice(t Ticker) (decimal.Decimal, bool) {
	p, ok := basePrices[t]
	return p, ok
}

// IsValid reports whether t names a ticker in the roster.
func (t Ticker) IsValid() bool {
	_, ok := basePrices[t]
	return ok
}

// ──────────────────────────────────────────────────────────────────────────────
// PriceSource
// ──────────────────────────────────────────────────────────────────────────────

// PriceSource records what triggered a price mutation.
type PriceSource string

const (
	SourceSeed        PriceSource = "seed"
	SourceManual      PriceSource = "manual"
	SourceSessionSkip PriceSource = "session-skip"
	SourceAPI         PriceSource = "api"
)

// IsValid reports whether s is a recognised price source.
func (s PriceSource) IsValid() bool {
	switch s {
	case SourceSeed, SourceManual, SourceSessionSkip, SourceAPI:
		return true
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// PriceEntry & stats
// ──────────────────────────────────────────────────────────────────────────────

// PriceEntry is one immutable point in a ticker's price history.
// Insertion order is chronological; entries are never mutated after creation.
type PriceEntry struct {
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
	Source PriceSource     `json:"source"`
}

// PriceStats holds derived statistics for one ticker's history.
// Recomputed on every accepted price mutation; never persisted as truth.
type PriceStats struct {
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
	Mean       decimal.Decimal `json:"mean"`
	Count      int             `json:"count"`
	LastUpdate time.Time       `json:"last_update"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Band helpers
// ──────────────────────────────────────────────────────────────────────────────

// BandUpper returns the highest 3dp price allowed within ±5 % of ref.
// Rounded down so the rounded price never exceeds the exact bound.
func BandUpper(ref decimal.Decimal) decimal.Decimal {
	return ref.Mul(decimal.NewFromInt(1).Add(PriceBandPct)).RoundDown(PricePrecision)
}

// BandLower returns the lowest 3dp price allowed within ±5 % of ref.
// Rounded up so the rounded price never undercuts the exact bound.
func BandLower(ref decimal.Decimal) decimal.Decimal {
	return ref.Mul(decimal.NewFromInt(1).Sub(PriceBandPct)).RoundUp(PricePrecision)
}

// ClampToBand forces p into the ±5 % band around ref, at 3dp.
func ClampToBand(p, ref decimal.Decimal) decimal.Decimal {
	if hi := BandUpper(ref); p.GreaterThan(hi) {
		return hi
	}
	if lo := BandLower(ref); p.LessThan(lo) {
		return lo
	}
	return p.Round(PricePrecision)
}

// InBand reports whether p lies within the ±5 % band around ref.
func InBand(p, ref decimal.Decimal) bool {
	return !p.GreaterThan(BandUpper(ref)) && !p.LessThan(BandLower(ref))
}
