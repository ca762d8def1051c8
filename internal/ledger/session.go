package ledger

import (
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/shopspring/decimal"
)

// RestoreSession rebuilds the session clock from a loaded snapshot.
// A nil or structurally broken snapshot yields a fresh clock aligned to now;
// an off-slot anchor is realigned to the nearest slot boundary without
// changing the skip count.  Price-to-beat entries for unknown tickers are
// dropped and missing or non-positive references resync to the current price.
// Returns the state and whether any repair was applied.
func RestoreSession(loaded *domain.SessionState, prices map[domain.Ticker]decimal.Decimal, now time.Time) (*domain.SessionState, bool) {
	if loaded == nil || loaded.LastSessionAt.IsZero() {
		st := domain.NewSessionState(now)
		for t, p := range prices {
			st.PriceToBeat[t] = p
		}
		return st, true
	}

	st := loaded.Clone()
	repaired := false

	if st.SkipCount < 0 {
		st.SkipCount = 0
		repaired = true
	}
	if st.LastSlotIndex < 0 || st.LastSlotIndex > 2 {
		st.LastSlotIndex = 0
		repaired = true
	}
	if st.Realign() {
		repaired = true
	}

	if st.PriceToBeat == nil {
		st.PriceToBeat = make(map[domain.Ticker]decimal.Decimal)
		repaired = true
	}
	for t := range st.PriceToBeat {
		if !t.IsValid() {
			delete(st.PriceToBeat, t)
			repaired = true
		}
	}
	for t, p := range prices {
		if ref, ok := st.PriceToBeat[t]; !ok || !ref.IsPositive() {
			st.PriceToBeat[t] = p
			repaired = true
		}
	}
	return st, repaired
}
