package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Period is the settlement horizon of a prediction instrument.
type Period string

const (
	PeriodDaily   Period = "DAILY"
	PeriodMonthly Period = "MONTHLY"
)

// Outcome is the side of a binary prediction contract.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// IsValid reports whether o is a recognised outcome.
func (o Outcome) IsValid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

const (
	// ChanceMin and ChanceMax bound the implied probability so contract
	// prices never hit the degenerate 0.00 / 1.00 edges.
	ChanceMin = 1
	ChanceMax = 99

	// ChanceDefault is the reset value for DAILY instruments at the first
	// daily slot.
	ChanceDefault = 50

	// ChanceHistoryCap is the maximum number of chance history points kept
	// per instrument.
	ChanceHistoryCap = 160

	// DailySettleAfterSessions is how many sessions a DAILY prediction lot
	// must be held before the sweeper settles it.
	DailySettleAfterSessions = 3
)

// ──────────────────────────────────────────────────────────────────────────────
// Instrument
// ──────────────────────────────────────────────────────────────────────────────

// Instrument is a binary YES/NO prediction contract tied to a ticker and a
// settlement period.  The set is fixed for the process lifetime.
type Instrument struct {
	ID            string `json:"id"`
	Ticker        Ticker `json:"ticker"`
	DisplayTicker string `json:"display_ticker"`
	Period        Period `json:"period"`
}

var instruments = []Instrument{
	{ID: "ddr5-daily", Ticker: TickerDDR5, DisplayTicker: "DDR5/D", Period: PeriodDaily},
	{ID: "ddr5-monthly", Ticker: TickerDDR5, DisplayTicker: "DDR5/M", Period: PeriodMonthly},
	{ID: "ddr4-daily", Ticker: TickerDDR4, DisplayTicker: "DDR4/D", Period: PeriodDaily},
	{ID: "ddr4-monthly", Ticker: TickerDDR4, DisplayTicker: "DDR4/M", Period: PeriodMonthly},
	{ID: "hbm3-daily", Ticker: TickerHBM3, DisplayTicker: "HBM3/D", Period: PeriodDaily},
	{ID: "hbm3-monthly", Ticker: TickerHBM3, DisplayTicker: "HBM3/M", Period: PeriodMonthly},
	{ID: "nand-daily", Ticker: TickerNAND, DisplayTicker: "NAND/D", Period: PeriodDaily},
	{ID: "nand-monthly", Ticker: TickerNAND, DisplayTicker: "NAND/M", Period: PeriodMonthly},
}

var instrumentByID = func() map[string]Instrument {
	m := make(map[string]Instrument, len(instruments))
	for _, in := range instruments {
		m[in.ID] = in
	}
	return m
}()

// Instruments returns the fixed instrument roster in display order.
func Instruments() []Instrument {
	out := make([]Instrument, len(instruments))
	copy(out, instruments)
	return out
}

// InstrumentByID looks up an instrument by id.
func InstrumentByID(id string) (Instrument, bool) {
	in, ok := instrumentByID[id]
	return in, ok
}

// ──────────────────────────────────────────────────────────────────────────────
// Chance & contract pricing
// ──────────────────────────────────────────────────────────────────────────────

// ChancePoint is one immutable point in an instrument's chance history.
type ChancePoint struct {
	Chance int       `json:"chance"`
	At     time.Time `json:"at"`
}

// ClampChance forces c into the [1, 99] band.
func ClampChance(c int) int {
	if c < ChanceMin {
		return ChanceMin
	}
	if c > ChanceMax {
		return ChanceMax
	}
	return c
}

// YesPrice converts a chance into the YES contract price (0.01–0.99).
func YesPrice(chance int) decimal.Decimal {
	return decimal.NewFromInt(int64(ClampChance(chance))).Div(decimal.NewFromInt(100))
}

// NoPrice converts a chance into the NO contract price (0.01–0.99).
func NoPrice(chance int) decimal.Decimal {
	return decimal.NewFromInt(int64(100 - ClampChance(chance))).Div(decimal.NewFromInt(100))
}

// ContractPrice returns the price for the given side of an instrument.
func ContractPrice(chance int, o Outcome) decimal.Decimal {
	if o == OutcomeYes {
		return YesPrice(chance)
	}
	return NoPrice(chance)
}
