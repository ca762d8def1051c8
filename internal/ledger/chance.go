package ledger

import (
	"math/rand"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/shopspring/decimal"
)

// chanceStepMax is the largest single nudge applied per price tick.
const chanceStepMax = 5

// ──────────────────────────────────────────────────────────────────────────────
// State types (persisted shape)
// ──────────────────────────────────────────────────────────────────────────────

// InstrumentChance is the persisted per-instrument chance state.
// Invariant: History is non-empty and History[last].Chance == Current.
type InstrumentChance struct {
	Current int                  `json:"current"`
	History []domain.ChancePoint `json:"history"`
}

// ChanceState is the persisted shape of the whole chance ledger.
type ChanceState map[string]InstrumentChance

// ──────────────────────────────────────────────────────────────────────────────
// ChanceLedger
// ──────────────────────────────────────────────────────────────────────────────

// ChanceLedger owns the 1–99 implied probability and its rolling history for
// every prediction instrument.
type ChanceLedger struct {
	byID map[string]*InstrumentChance
}

// NewChanceLedger builds a fresh ledger with every instrument at 50.
func NewChanceLedger(now time.Time) *ChanceLedger {
	l := &ChanceLedger{byID: make(map[string]*InstrumentChance)}
	for _, in := range domain.Instruments() {
		l.byID[in.ID] = &InstrumentChance{
			Current: domain.ChanceDefault,
			History: []domain.ChancePoint{{Chance: domain.ChanceDefault, At: now}},
		}
	}
	return l
}

// RestoreChanceLedger rebuilds a ledger from a loaded snapshot, clamping
// chances into [1,99], dropping out-of-band or timestamp-less history points,
// and re-anchoring the history tail to the current value.  Instruments
// missing from the snapshot are reset to 50.  Returns the ledger and whether
// any repair was applied.
func RestoreChanceLedger(state ChanceState, now time.Time) (*ChanceLedger, bool) {
	l := &ChanceLedger{byID: make(map[string]*InstrumentChance)}
	repaired := false

	for _, in := range domain.Instruments() {
		loaded, ok := state[in.ID]
		if !ok {
			l.byID[in.ID] = &InstrumentChance{
				Current: domain.ChanceDefault,
				History: []domain.ChancePoint{{Chance: domain.ChanceDefault, At: now}},
			}
			repaired = true
			continue
		}

		current := domain.ClampChance(loaded.Current)
		if current != loaded.Current {
			repaired = true
		}

		valid := make([]domain.ChancePoint, 0, len(loaded.History))
		for _, p := range loaded.History {
			if p.At.IsZero() || p.Chance < domain.ChanceMin || p.Chance > domain.ChanceMax {
				continue
			}
			valid = append(valid, p)
		}
		if len(valid) != len(loaded.History) {
			repaired = true
		}
		if len(valid) == 0 || valid[len(valid)-1].Chance != current {
			valid = append(valid, domain.ChancePoint{Chance: current, At: now})
			repaired = true
		}
		if len(valid) > domain.ChanceHistoryCap {
			valid = valid[len(valid)-domain.ChanceHistoryCap:]
			repaired = true
		}

		l.byID[in.ID] = &InstrumentChance{Current: current, History: valid}
	}
	return l, repaired
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// Bump nudges an instrument's chance after a price tick of its underlying
// ticker.  Direction follows the sign of priceDelta (a coin flip on zero),
// magnitude is uniform in 1..5, and the result is clamped to [1,99].
func (l *ChanceLedger) Bump(instrumentID string, priceDelta decimal.Decimal, rng *rand.Rand, now time.Time) (int, error) {
	st, ok := l.byID[instrumentID]
	if !ok {
		return 0, domain.ErrUnknownInstrument
	}

	dir := priceDelta.Sign()
	if dir == 0 {
		if rng.Intn(2) == 0 {
			dir = 1
		} else {
			dir = -1
		}
	}
	step := (rng.Intn(chanceStepMax) + 1) * dir

	st.Current = domain.ClampChance(st.Current + step)
	st.History = append(st.History, domain.ChancePoint{Chance: st.Current, At: now})
	if len(st.History) > domain.ChanceHistoryCap {
		st.History = st.History[len(st.History)-domain.ChanceHistoryCap:]
	}
	return st.Current, nil
}

// ResetDaily snaps every DAILY instrument back to 50 and truncates its
// history.  Called at each slot-0 crossing, the start of a trading day.
func (l *ChanceLedger) ResetDaily(now time.Time) {
	for _, in := range domain.Instruments() {
		if in.Period != domain.PeriodDaily {
			continue
		}
		st := l.byID[in.ID]
		st.Current = domain.ChanceDefault
		st.History = []domain.ChancePoint{{Chance: domain.ChanceDefault, At: now}}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// Chance returns the live chance for an instrument.
func (l *ChanceLedger) Chance(instrumentID string) (int, bool) {
	st, ok := l.byID[instrumentID]
	if !ok {
		return 0, false
	}
	return st.Current, true
}

// History returns a copy of an instrument's chance history, oldest first.
func (l *ChanceLedger) History(instrumentID string) []domain.ChancePoint {
	st, ok := l.byID[instrumentID]
	if !ok {
		return nil
	}
	return append([]domain.ChancePoint(nil), st.History...)
}

// Export returns a deep copy of the ledger in its persisted shape.
func (l *ChanceLedger) Export() ChanceState {
	out := make(ChanceState, len(l.byID))
	for id, st := range l.byID {
		out[id] = InstrumentChance{
			Current: st.Current,
			History: append([]domain.ChancePoint(nil), st.History...),
		}
	}
	return out
}
