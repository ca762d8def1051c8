// Package walk implements the bounded mean-reverting random walk that drives
// ticker prices.  Every generated price is guaranteed to sit within ±5 % of
// both the ticker's base price and the immediately preceding price, so walk
// output always satisfies the price-band invariant without further checks.
package walk

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	// maxShockPct is the half-width of the uniform random shock per step.
	maxShockPct = 0.03

	// reversionStrength scales the pull back toward the base price.
	reversionStrength = 0.5

	// maxStepPct caps the combined percentage move of a single step.
	maxStepPct = 0.05

	// backfillSpacing is the gap between generated history entries.
	backfillSpacing = 4 * time.Hour
)

// ──────────────────────────────────────────────────────────────────────────────
// Generator
// ──────────────────────────────────────────────────────────────────────────────

// Generator produces next-tick prices from its own PRNG.  A seeded Generator
// is fully deterministic, which the history backfill relies on; the live
// engine uses an unseeded one.
type Generator struct {
	rng *rand.Rand
}

// New wraps an existing PRNG.
func New(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NewSeeded returns a deterministic Generator for the given seed.
func NewSeeded(seed int64) *Generator {
	return New(rand.New(rand.NewSource(seed)))
}

// NewUnseeded returns a time-seeded Generator for live, non-reproducible use.
func NewUnseeded() *Generator {
	return New(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// SeedFor derives a stable per-ticker seed (FNV-1a of the symbol) so each
// ticker's regenerated history is deterministic but distinct.
func SeedFor(t domain.Ticker) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t))
	return int64(h.Sum64())
}

// Next produces the next price for a ticker: a uniform shock blended with a
// mean-reversion term proportional to (base-current)/base, the combined step
// capped at ±5 %, and the result clamped to ±5 % of both the previous price
// and the base price.  Always returns a valid in-band price.
func (g *Generator) Next(current, base decimal.Decimal) decimal.Decimal {
	shock := (g.rng.Float64()*2 - 1) * maxShockPct

	cur := current.InexactFloat64()
	b := base.InexactFloat64()
	reversion := 0.0
	if b != 0 {
		reversion = reversionStrength * (b - cur) / b
	}

	step := shock + reversion
	if step > maxStepPct {
		step = maxStepPct
	} else if step < -maxStepPct {
		step = -maxStepPct
	}

	raw := current.Mul(decimal.NewFromFloat(1 + step))
	next := domain.ClampToBand(raw, current)
	return domain.ClampToBand(next, base)
}

// Backfill generates n seeded history entries for a ticker, spaced 4h apart
// and ending at until.  The walk starts at the base price, so every entry is
// within ±5 % of both base and its predecessor.
func (g *Generator) Backfill(base decimal.Decimal, n int, until time.Time) []domain.PriceEntry {
	if n <= 0 {
		return nil
	}
	entries := make([]domain.PriceEntry, 0, n)
	price := base.Round(domain.PricePrecision)
	for i := 0; i < n; i++ {
		price = g.Next(price, base)
		entries = append(entries, domain.PriceEntry{
			Price:  price,
			At:     until.Add(-time.Duration(n-1-i) * backfillSpacing),
			Source: domain.SourceSeed,
		})
	}
	return entries
}
