// Package ledger implements the engine's owned state structures: the price
// ledger, the chance ledger, and session-clock restoration.  Ledgers are
// plain single-writer state — the engine serialises access; nothing here
// locks.  Every Restore* function treats its input as untrusted and repairs
// or regenerates whatever fails validation.
package ledger

import (
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/walk"
	"github.com/shopspring/decimal"
)

// backfillEntries is how many seeded history points a regenerated ticker gets.
const backfillEntries = 30

// ──────────────────────────────────────────────────────────────────────────────
// State types (persisted shape)
// ──────────────────────────────────────────────────────────────────────────────

// TickerPrices is the persisted per-ticker price state.
type TickerPrices struct {
	Current decimal.Decimal     `json:"current"`
	History []domain.PriceEntry `json:"history"`
	Stats   domain.PriceStats   `json:"stats"`
}

// PriceState is the persisted shape of the whole price ledger.
type PriceState map[domain.Ticker]TickerPrices

// ──────────────────────────────────────────────────────────────────────────────
// PriceLedger
// ──────────────────────────────────────────────────────────────────────────────

// PriceLedger owns the current price and capped rolling history for every
// ticker in the roster, plus derived statistics.
type PriceLedger struct {
	tickers map[domain.Ticker]*TickerPrices
}

// NewPriceLedger builds a fresh ledger with seeded walk histories so charts
// are populated from the first request.
func NewPriceLedger(now time.Time) *PriceLedger {
	l := &PriceLedger{tickers: make(map[domain.Ticker]*TickerPrices)}
	for _, t := range domain.Tickers() {
		l.regenerate(t, now)
	}
	return l
}

// RestorePriceLedger rebuilds a ledger from a loaded snapshot.  Every
// historical entry is re-validated against the double-clamp rule relative to
// its chronological predecessor; a ticker keeping fewer than 2 valid entries
// has its entire history regenerated via the seeded walk.  Returns the ledger
// and whether any repair was applied (the caller should persist when true).
func RestorePriceLedger(state PriceState, now time.Time) (*PriceLedger, bool) {
	l := &PriceLedger{tickers: make(map[domain.Ticker]*TickerPrices)}
	repaired := false

	for _, t := range domain.Tickers() {
		base, _ := domain.BasePrice(t)
		loaded, ok := state[t]
		if !ok {
			l.regenerate(t, now)
			repaired = true
			continue
		}

		valid := make([]domain.PriceEntry, 0, len(loaded.History))
		for _, e := range loaded.History {
			if e.At.IsZero() || !e.Price.IsPositive() {
				continue
			}
			if !domain.InBand(e.Price, base) {
				continue
			}
			if len(valid) > 0 && !domain.InBand(e.Price, valid[len(valid)-1].Price) {
				continue
			}
			src := e.Source
			if !src.IsValid() {
				src = domain.SourceSeed
			}
			valid = append(valid, domain.PriceEntry{
				Price:  e.Price.Round(domain.PricePrecision),
				At:     e.At,
				Source: src,
			})
		}

		if len(valid) < 2 {
			l.regenerate(t, now)
			repaired = true
			continue
		}
		if len(valid) != len(loaded.History) {
			repaired = true
		}
		if len(valid) > domain.PriceHistoryCap {
			valid = valid[len(valid)-domain.PriceHistoryCap:]
			repaired = true
		}

		ts := &TickerPrices{Current: valid[len(valid)-1].Price, History: valid}
		ts.Stats = computeStats(valid)
		if !loaded.Current.Equal(ts.Current) {
			repaired = true
		}
		l.tickers[t] = ts
	}
	return l, repaired
}

// regenerate replaces a ticker's state with a fresh seeded backfill.
func (l *PriceLedger) regenerate(t domain.Ticker, now time.Time) {
	base, _ := domain.BasePrice(t)
	g := walk.NewSeeded(walk.SeedFor(t))
	history := g.Backfill(base, backfillEntries, now)
	ts := &TickerPrices{
		Current: history[len(history)-1].Price,
		History: history,
	}
	ts.Stats = computeStats(history)
	l.tickers[t] = ts
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// Record applies a raw price to a ticker.  The raw value is clamped first to
// ±5 % of the previous price, then to ±5 % of the base price — step bound
// before base bound, so multi-step drift toward a band edge is not falsely
// rejected while the base band stays a hard ceiling/floor.  Returns the
// accepted entry and the signed delta versus the previous price.
func (l *PriceLedger) Record(t domain.Ticker, raw decimal.Decimal, source domain.PriceSource, now time.Time) (domain.PriceEntry, decimal.Decimal, error) {
	ts, ok := l.tickers[t]
	if !ok {
		return domain.PriceEntry{}, decimal.Zero, domain.ErrUnknownTicker
	}
	if !raw.IsPositive() {
		return domain.PriceEntry{}, decimal.Zero, domain.ErrInvalidPrice
	}
	base, _ := domain.BasePrice(t)

	prev := ts.Current
	price := domain.ClampToBand(raw.Round(domain.PricePrecision), prev)
	price = domain.ClampToBand(price, base)

	entry := domain.PriceEntry{Price: price, At: now, Source: source}
	ts.History = append(ts.History, entry)
	if len(ts.History) > domain.PriceHistoryCap {
		ts.History = ts.History[len(ts.History)-domain.PriceHistoryCap:]
	}
	ts.Current = price
	ts.Stats = computeStats(ts.History)

	return entry, price.Sub(prev), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// Current returns the live price for a ticker.
func (l *PriceLedger) Current(t domain.Ticker) (decimal.Decimal, bool) {
	ts, ok := l.tickers[t]
	if !ok {
		return decimal.Zero, false
	}
	return ts.Current, true
}

// CurrentPrices returns a copy of every ticker's live price.
func (l *PriceLedger) CurrentPrices() map[domain.Ticker]decimal.Decimal {
	out := make(map[domain.Ticker]decimal.Decimal, len(l.tickers))
	for t, ts := range l.tickers {
		out[t] = ts.Current
	}
	return out
}

// History returns a copy of a ticker's history, oldest first.
func (l *PriceLedger) History(t domain.Ticker) []domain.PriceEntry {
	ts, ok := l.tickers[t]
	if !ok {
		return nil
	}
	return append([]domain.PriceEntry(nil), ts.History...)
}

// Stats returns the derived statistics for a ticker.
func (l *PriceLedger) Stats(t domain.Ticker) domain.PriceStats {
	ts, ok := l.tickers[t]
	if !ok {
		return domain.PriceStats{}
	}
	return ts.Stats
}

// Export returns a deep copy of the ledger in its persisted shape.
func (l *PriceLedger) Export() PriceState {
	out := make(PriceState, len(l.tickers))
	for t, ts := range l.tickers {
		out[t] = TickerPrices{
			Current: ts.Current,
			History: append([]domain.PriceEntry(nil), ts.History...),
			Stats:   ts.Stats,
		}
	}
	return out
}

// computeStats derives min/max/mean/count from a non-empty history.
func computeStats(history []domain.PriceEntry) domain.PriceStats {
	if len(history) == 0 {
		return domain.PriceStats{}
	}
	min := history[0].Price
	max := history[0].Price
	sum := decimal.Zero
	for _, e := range history {
		if e.Price.LessThan(min) {
			min = e.Price
		}
		if e.Price.GreaterThan(max) {
			max = e.Price
		}
		sum = sum.Add(e.Price)
	}
	return domain.PriceStats{
		Min:        min,
		Max:        max,
		Mean:       sum.Div(decimal.NewFromInt(int64(len(history)))).Round(domain.PricePrecision),
		Count:      len(history),
		LastUpdate: history[len(history)-1].At,
	}
}
