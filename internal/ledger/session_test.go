package ledger_test

import (
	"testing"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/ledger"
	"github.com/shopspring/decimal"
)

// TestAdvance_SlotProgression walks the clock through two full days and
// checks slot ordering, day rollover, and the monotonic skip counter.
func TestAdvance_SlotProgression(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // exactly slot 0
	st := domain.NewSessionState(start)

	if st.LastSlotIndex != 0 {
		t.Fatalf("initial slot = %d, want 0", st.LastSlotIndex)
	}

	wantSlots := []int{1, 2, 0, 1, 2, 0}
	for i, want := range wantSlots {
		got := st.Advance()
		if got != want {
			t.Fatalf("advance %d: slot = %d, want %d", i, got, want)
		}
		if st.SkipCount != i+1 {
			t.Fatalf("advance %d: skipCount = %d, want %d", i, st.SkipCount, i+1)
		}
		if st.LastSessionAt.Hour() != domain.SessionSlotHours[want] {
			t.Fatalf("advance %d: anchor hour = %d, want %d", i, st.LastSessionAt.Hour(), domain.SessionSlotHours[want])
		}
	}

	// Two slot-2 → slot-0 rollovers later, the calendar day moved ahead by 2.
	if got := st.LastSessionAt.Day(); got != start.Day()+2 {
		t.Errorf("day = %d, want %d", got, start.Day()+2)
	}
}

// TestNearestSlot picks the nearest of the three daily slots by minute
// distance, including across midnight.
func TestNearestSlot(t *testing.T) {
	cases := []struct {
		name     string
		ref      time.Time
		wantSlot int
		wantHour int
		wantDay  int
	}{
		{"exact slot 1", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), 1, 14, 2},
		{"just after slot 0", time.Date(2026, 3, 2, 10, 25, 0, 0, time.UTC), 0, 10, 2},
		{"between 0 and 1, closer to 1", time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), 1, 14, 2},
		{"late evening rolls to last slot", time.Date(2026, 3, 2, 19, 45, 0, 0, time.UTC), 2, 18, 2},
		{"early morning snaps back to prior day slot 2", time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), 2, 18, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot, at := domain.NearestSlot(tc.ref)
			if slot != tc.wantSlot {
				t.Errorf("slot = %d, want %d", slot, tc.wantSlot)
			}
			if at.Hour() != tc.wantHour || at.Day() != tc.wantDay {
				t.Errorf("aligned = %v, want day %d hour %d", at, tc.wantDay, tc.wantHour)
			}
		})
	}
}

// TestRealign_DriftedAnchor snaps a hand-edited off-slot anchor back to the
// nearest boundary without touching the skip counter.
func TestRealign_DriftedAnchor(t *testing.T) {
	st := domain.NewSessionState(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	st.SkipCount = 7
	st.LastSessionAt = time.Date(2026, 3, 2, 14, 37, 0, 0, time.UTC) // drifted
	st.LastSlotIndex = 0                                             // and mislabeled

	if !st.Realign() {
		t.Fatal("drifted anchor should report realignment")
	}
	if st.LastSlotIndex != 1 || st.LastSessionAt.Hour() != 14 || st.LastSessionAt.Minute() != 0 {
		t.Errorf("realigned to slot %d at %v, want slot 1 at 14:00", st.LastSlotIndex, st.LastSessionAt)
	}
	if st.SkipCount != 7 {
		t.Errorf("skipCount changed by realign: %d", st.SkipCount)
	}

	if st.Realign() {
		t.Error("second realign must be a no-op")
	}
}

// TestRestoreSession_RepairsSnapshot covers the untrusted-load paths: nil
// snapshot, negative counters, unknown priceToBeat keys, and missing refs.
func TestRestoreSession_RepairsSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	prices := map[domain.Ticker]decimal.Decimal{
		domain.TickerDDR5: decimal.NewFromFloat(38.1),
		domain.TickerDDR4: decimal.NewFromFloat(26.4),
		domain.TickerHBM3: decimal.NewFromFloat(510.0),
		domain.TickerNAND: decimal.NewFromFloat(4.8),
	}

	st, repaired := ledger.RestoreSession(nil, prices, now)
	if !repaired {
		t.Error("nil snapshot must be flagged repaired")
	}
	if st.SkipCount != 0 || len(st.PriceToBeat) != len(prices) {
		t.Errorf("fresh session: skipCount=%d refs=%d", st.SkipCount, len(st.PriceToBeat))
	}

	bad := &domain.SessionState{
		SkipCount:     -4,
		LastSlotIndex: 9,
		LastSessionAt: time.Date(2026, 3, 2, 14, 12, 0, 0, time.UTC),
		PriceToBeat: map[domain.Ticker]decimal.Decimal{
			domain.Ticker("SRAM"): decimal.NewFromInt(1),      // unknown → dropped
			domain.TickerDDR5:     decimal.NewFromInt(-5),     // non-positive → resync
			domain.TickerDDR4:     decimal.NewFromFloat(25.9), // kept as-is
		},
	}
	st, repaired = ledger.RestoreSession(bad, prices, now)
	if !repaired {
		t.Fatal("broken snapshot must be flagged repaired")
	}
	if st.SkipCount != 0 {
		t.Errorf("negative skipCount clamped to %d, want 0", st.SkipCount)
	}
	if st.LastSlotIndex != 1 || st.LastSessionAt.Minute() != 0 {
		t.Errorf("anchor not realigned: slot %d at %v", st.LastSlotIndex, st.LastSessionAt)
	}
	if _, ok := st.PriceToBeat[domain.Ticker("SRAM")]; ok {
		t.Error("unknown ticker survived in priceToBeat")
	}
	if !st.PriceToBeat[domain.TickerDDR5].Equal(prices[domain.TickerDDR5]) {
		t.Error("non-positive reference should resync to current price")
	}
	if !st.PriceToBeat[domain.TickerDDR4].Equal(decimal.NewFromFloat(25.9)) {
		t.Error("valid reference should be preserved")
	}
}
