package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Session slots
// ──────────────────────────────────────────────────────────────────────────────

// SessionSlotHours are the three fixed daily trading slots, in UTC hours.
// Slot index 0 is the first slot of the trading day; crossing it resyncs the
// price-to-beat references and resets DAILY instrument chances.
var SessionSlotHours = [3]int{10, 14, 18}

// SlotTime returns the wall-clock instant of the given slot index on the
// calendar day of ref (UTC).
func SlotTime(ref time.Time, slot int) time.Time {
	ref = ref.UTC()
	return time.Date(ref.Year(), ref.Month(), ref.Day(), SessionSlotHours[slot], 0, 0, 0, time.UTC)
}

// NearestSlot returns the slot index and aligned instant closest (by absolute
// minute distance) to ref, considering the previous, same, and next calendar
// day so midnight-adjacent timestamps realign correctly.
func NearestSlot(ref time.Time) (int, time.Time) {
	ref = ref.UTC()
	bestSlot := 0
	bestAt := SlotTime(ref, 0)
	bestDist := absDuration(ref.Sub(bestAt))

	for _, dayOff := range []int{-1, 0, 1} {
		day := ref.AddDate(0, 0, dayOff)
		for slot := range SessionSlotHours {
			at := SlotTime(day, slot)
			if d := absDuration(ref.Sub(at)); d < bestDist {
				bestSlot, bestAt, bestDist = slot, at, d
			}
		}
	}
	return bestSlot, bestAt
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// SessionState
// ──────────────────────────────────────────────────────────────────────────────

// SessionState is the process-wide session clock: a monotonically increasing
// skip counter, the slot-indexed wall-clock anchor of the last advance, and
// the per-ticker daily reference prices.  Mutated only by session-advance
// operations.
type SessionState struct {
	SkipCount     int                        `json:"skip_count"`
	LastSlotIndex int                        `json:"last_slot_index"`
	LastSessionAt time.Time                  `json:"last_session_at"`
	PriceToBeat   map[Ticker]decimal.Decimal `json:"price_to_beat"`
}

// NewSessionState builds a fresh clock aligned to the slot nearest now.
func NewSessionState(now time.Time) *SessionState {
	slot, at := NearestSlot(now)
	return &SessionState{
		LastSlotIndex: slot,
		LastSessionAt: at,
		PriceToBeat:   make(map[Ticker]decimal.Decimal),
	}
}

// Advance moves the clock forward by exactly one slot: the same day's next
// slot, or slot 0 of the next calendar day after the last slot.  SkipCount
// increments by one.  Returns the new slot index.
func (s *SessionState) Advance() int {
	next := s.LastSlotIndex + 1
	day := s.LastSessionAt
	if next > 2 {
		next = 0
		day = day.AddDate(0, 0, 1)
	}
	s.LastSlotIndex = next
	s.LastSessionAt = SlotTime(day, next)
	s.SkipCount++
	return next
}

// Realign snaps the anchor to the nearest real slot boundary without touching
// SkipCount.  Used at load time to correct clock skew or hand-edited state.
// Returns true when the anchor moved.
func (s *SessionState) Realign() bool {
	slot, at := NearestSlot(s.LastSessionAt)
	if slot == s.LastSlotIndex && at.Equal(s.LastSessionAt) {
		return false
	}
	s.LastSlotIndex = slot
	s.LastSessionAt = at
	return true
}

// Clone returns a deep copy safe to hand out of the engine's lock.
func (s *SessionState) Clone() *SessionState {
	cp := *s
	cp.PriceToBeat = make(map[Ticker]decimal.Decimal, len(s.PriceToBeat))
	for k, v := range s.PriceToBeat {
		cp.PriceToBeat[k] = v
	}
	return &cp
}
