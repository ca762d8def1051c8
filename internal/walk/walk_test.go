package walk_test

import (
	"testing"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/walk"
	"github.com/shopspring/decimal"
)

// TestNext_StaysInBothBands runs a long walk and checks that every step stays
// within ±5 % of the base price and ±5 % of the previous price.
func TestNext_StaysInBothBands(t *testing.T) {
	base := decimal.NewFromFloat(38.067)
	g := walk.NewSeeded(42)

	price := base
	for i := 0; i < 2000; i++ {
		next := g.Next(price, base)

		if !domain.InBand(next, base) {
			t.Fatalf("step %d: price %s outside ±5%% of base %s", i, next, base)
		}
		if !domain.InBand(next, price) {
			t.Fatalf("step %d: price %s outside ±5%% of previous %s", i, next, price)
		}
		price = next
	}
}

// TestNext_UnseededStaysInBand holds the unseeded constructor to the same
// band guarantees as the seeded one.
func TestNext_UnseededStaysInBand(t *testing.T) {
	base := decimal.NewFromFloat(4.812)
	g := walk.NewUnseeded()

	price := base
	for i := 0; i < 200; i++ {
		next := g.Next(price, base)
		if !domain.InBand(next, base) || !domain.InBand(next, price) {
			t.Fatalf("step %d: price %s violates a band", i, next)
		}
		price = next
	}
}

// TestNext_Deterministic confirms that two generators with the same seed
// produce identical walks.
func TestNext_Deterministic(t *testing.T) {
	base := decimal.NewFromFloat(26.413)
	g1 := walk.NewSeeded(7)
	g2 := walk.NewSeeded(7)

	p1, p2 := base, base
	for i := 0; i < 100; i++ {
		p1 = g1.Next(p1, base)
		p2 = g2.Next(p2, base)
		if !p1.Equal(p2) {
			t.Fatalf("step %d: seeded walks diverged: %s vs %s", i, p1, p2)
		}
	}
}

// TestNext_RevertsTowardBase starts the walk pinned at the band edge and
// verifies mean reversion pulls the long-run average back toward base.
func TestNext_RevertsTowardBase(t *testing.T) {
	base := decimal.NewFromFloat(100)
	g := walk.NewSeeded(99)

	price := domain.BandUpper(base) // start at +5%
	sum := decimal.Zero
	const steps = 500
	for i := 0; i < steps; i++ {
		price = g.Next(price, base)
		sum = sum.Add(price)
	}
	mean := sum.Div(decimal.NewFromInt(steps))

	// Mean of a reverting walk should sit well inside the band, not at the edge.
	if mean.GreaterThan(decimal.NewFromFloat(104)) {
		t.Errorf("long-run mean %s stuck near upper band; reversion not working", mean)
	}
	if mean.LessThan(decimal.NewFromFloat(96)) {
		t.Errorf("long-run mean %s below expected reverting range", mean)
	}
}

// TestBackfill_SelfConsistent verifies a seeded backfill produces the
// requested number of chronological entries, each within ±5 % of base and of
// its predecessor — the property the price-ledger load repair depends on.
func TestBackfill_SelfConsistent(t *testing.T) {
	base := decimal.NewFromFloat(512.5)
	until := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	g := walk.NewSeeded(walk.SeedFor(domain.TickerHBM3))
	entries := g.Backfill(base, 40, until)

	if len(entries) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(entries))
	}
	if !entries[len(entries)-1].At.Equal(until) {
		t.Errorf("last entry at %v, want %v", entries[len(entries)-1].At, until)
	}

	prev := base
	for i, e := range entries {
		if e.Source != domain.SourceSeed {
			t.Errorf("entry %d: source = %s, want seed", i, e.Source)
		}
		if i > 0 && !entries[i-1].At.Before(e.At) {
			t.Errorf("entry %d: timestamps not strictly increasing", i)
		}
		if !domain.InBand(e.Price, base) {
			t.Errorf("entry %d: price %s outside base band", i, e.Price)
		}
		if !domain.InBand(e.Price, prev) {
			t.Errorf("entry %d: price %s outside step band of %s", i, e.Price, prev)
		}
		prev = e.Price
	}

	// Same seed → identical backfill.
	again := walk.NewSeeded(walk.SeedFor(domain.TickerHBM3)).Backfill(base, 40, until)
	for i := range entries {
		if !entries[i].Price.Equal(again[i].Price) {
			t.Fatalf("entry %d: backfill not deterministic: %s vs %s", i, entries[i].Price, again[i].Price)
		}
	}
}
