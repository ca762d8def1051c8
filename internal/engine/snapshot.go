package engine

import (
	"context"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot — the aggregate market view served over HTTP and pushed over WS
// ──────────────────────────────────────────────────────────────────────────────

// TickerSnapshot is one ticker's slice of the aggregate view.
type TickerSnapshot struct {
	Ticker      domain.Ticker       `json:"ticker"`
	Price       decimal.Decimal     `json:"price"`
	BasePrice   decimal.Decimal     `json:"base_price"`
	PriceToBeat decimal.Decimal     `json:"price_to_beat"`
	History     []domain.PriceEntry `json:"history"`
	Stats       domain.PriceStats   `json:"stats"`
}

// InstrumentSnapshot is one prediction instrument's slice of the view.
type InstrumentSnapshot struct {
	Instrument domain.Instrument    `json:"instrument"`
	Chance     int                  `json:"chance"`
	YesPrice   decimal.Decimal      `json:"yes_price"`
	NoPrice    decimal.Decimal      `json:"no_price"`
	History    []domain.ChancePoint `json:"history"`
}

// SessionSnapshot is the public shape of the session clock.
type SessionSnapshot struct {
	SkipCount     int       `json:"skip_count"`
	SlotIndex     int       `json:"slot_index"`
	LastSessionAt time.Time `json:"last_session_at"`
}

// Snapshot is the full aggregate market state.  Everything inside is a deep
// copy; holders may keep it indefinitely.
type Snapshot struct {
	Tickers     []TickerSnapshot       `json:"tickers"`
	Instruments []InstrumentSnapshot   `json:"instruments"`
	Session     SessionSnapshot        `json:"session"`
	Activity    []domain.ActivityEntry `json:"activity"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Snapshot returns the aggregate market view.
func (e *Engine) Snapshot(_ context.Context) *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked assembles the view under e.mu.
func (e *Engine) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Session: SessionSnapshot{
			SkipCount:     e.session.SkipCount,
			SlotIndex:     e.session.LastSlotIndex,
			LastSessionAt: e.session.LastSessionAt,
		},
		Activity:    append([]domain.ActivityEntry(nil), e.activity...),
		GeneratedAt: time.Now().UTC(),
	}

	for _, t := range domain.Tickers() {
		price, _ := e.prices.Current(t)
		base, _ := domain.BasePrice(t)
		snap.Tickers = append(snap.Tickers, TickerSnapshot{
			Ticker:      t,
			Price:       price,
			BasePrice:   base,
			PriceToBeat: e.session.PriceToBeat[t],
			History:     e.prices.History(t),
			Stats:       e.prices.Stats(t),
		})
	}

	for _, in := range domain.Instruments() {
		chance, _ := e.chances.Chance(in.ID)
		snap.Instruments = append(snap.Instruments, InstrumentSnapshot{
			Instrument: in,
			Chance:     chance,
			YesPrice:   domain.YesPrice(chance),
			NoPrice:    domain.NoPrice(chance),
			History:    e.chances.History(in.ID),
		})
	}
	return snap
}
