package ledger_test

import (
	"testing"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/ledger"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// pinPrice drives a ticker's current price to a known value by recording it
// repeatedly until the step clamp lets it through.
func pinPrice(t *testing.T, l *ledger.PriceLedger, ticker domain.Ticker, target decimal.Decimal) {
	t.Helper()
	for i := 0; i < 50; i++ {
		cur, _ := l.Current(ticker)
		if cur.Equal(target) {
			return
		}
		if _, _, err := l.Record(ticker, target, domain.SourceManual, testNow); err != nil {
			t.Fatalf("pinPrice: %v", err)
		}
	}
	cur, _ := l.Current(ticker)
	if !cur.Equal(target) {
		t.Fatalf("pinPrice: could not reach %s, stuck at %s", target, cur)
	}
}

// TestRecord_ScenarioA replays spec scenario A: DDR5 base 38.067, raw inputs
// 50 / 40 / 36.  The first call must clamp to base×1.05 = 39.970; every stored
// price must stay within ±5 % of base and of the previous price.
func TestRecord_ScenarioA(t *testing.T) {
	l := ledger.NewPriceLedger(testNow)
	base, _ := domain.BasePrice(domain.TickerDDR5)
	pinPrice(t, l, domain.TickerDDR5, base.Round(domain.PricePrecision))

	raws := []decimal.Decimal{
		decimal.NewFromInt(50),
		decimal.NewFromInt(40),
		decimal.NewFromInt(36),
	}

	prev, _ := l.Current(domain.TickerDDR5)
	for i, raw := range raws {
		entry, _, err := l.Record(domain.TickerDDR5, raw, domain.SourceManual, testNow)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !domain.InBand(entry.Price, base) {
			t.Errorf("record %d: price %s outside base band of %s", i, entry.Price, base)
		}
		if !domain.InBand(entry.Price, prev) {
			t.Errorf("record %d: price %s outside step band of %s", i, entry.Price, prev)
		}
		prev = entry.Price
	}

	// First raw (50) far above both bands → clamps to exactly base×1.05 at 3dp.
	hist := l.History(domain.TickerDDR5)
	first := hist[len(hist)-3]
	want := decimal.NewFromFloat(39.970)
	if !first.Price.Equal(want) {
		t.Errorf("first clamped price = %s, want %s", first.Price, want)
	}
}

// TestRecord_StepBoundBeforeBaseBound verifies the clamp ordering: a price
// near the lower base edge rising back toward base is limited by the step
// bound, not rejected by the base bound.
func TestRecord_StepBoundBeforeBaseBound(t *testing.T) {
	l := ledger.NewPriceLedger(testNow)
	base, _ := domain.BasePrice(domain.TickerDDR4)

	low := domain.BandLower(base)
	pinPrice(t, l, domain.TickerDDR4, low)

	// Ask for base×1.05: must move at most one +5% step from `low`, which is
	// still below the base upper bound.
	entry, delta, err := l.Record(domain.TickerDDR4, domain.BandUpper(base), domain.SourceManual, testNow)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !entry.Price.Equal(domain.BandUpper(low)) {
		t.Errorf("price = %s, want step-bounded %s", entry.Price, domain.BandUpper(low))
	}
	if !delta.IsPositive() {
		t.Errorf("delta = %s, want positive", delta)
	}
}

// TestRecord_UnknownTickerAndBadPrice covers the reject paths.
func TestRecord_UnknownTickerAndBadPrice(t *testing.T) {
	l := ledger.NewPriceLedger(testNow)

	if _, _, err := l.Record(domain.Ticker("SRAM"), decimal.NewFromInt(10), domain.SourceAPI, testNow); err != domain.ErrUnknownTicker {
		t.Errorf("unknown ticker: err = %v, want ErrUnknownTicker", err)
	}
	if _, _, err := l.Record(domain.TickerDDR5, decimal.Zero, domain.SourceAPI, testNow); err != domain.ErrInvalidPrice {
		t.Errorf("zero price: err = %v, want ErrInvalidPrice", err)
	}
}

// TestRecord_HistoryCap checks eviction of the oldest entries at capacity.
func TestRecord_HistoryCap(t *testing.T) {
	l := ledger.NewPriceLedger(testNow)
	base, _ := domain.BasePrice(domain.TickerNAND)

	for i := 0; i < domain.PriceHistoryCap+20; i++ {
		if _, _, err := l.Record(domain.TickerNAND, base, domain.SourceAPI, testNow.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	hist := l.History(domain.TickerNAND)
	if len(hist) != domain.PriceHistoryCap {
		t.Errorf("history length = %d, want cap %d", len(hist), domain.PriceHistoryCap)
	}
	if st := l.Stats(domain.TickerNAND); st.Count != domain.PriceHistoryCap {
		t.Errorf("stats count = %d, want %d", st.Count, domain.PriceHistoryCap)
	}
}

// TestRestore_RoundTripCleanState confirms a clean export restores without
// repair and with identical values (the idempotent-reload property).
func TestRestore_RoundTripCleanState(t *testing.T) {
	l := ledger.NewPriceLedger(testNow)
	state := l.Export()

	restored, repaired := ledger.RestorePriceLedger(state, testNow.Add(time.Hour))
	if repaired {
		t.Error("clean state should restore without repair")
	}
	for _, tk := range domain.Tickers() {
		a, _ := l.Current(tk)
		b, _ := restored.Current(tk)
		if !a.Equal(b) {
			t.Errorf("%s: current %s != restored %s", tk, a, b)
		}
		if len(l.History(tk)) != len(restored.History(tk)) {
			t.Errorf("%s: history length changed on restore", tk)
		}
	}
}

// TestRestore_RegeneratesCorruptHistory feeds a hand-edited snapshot whose
// entries violate the band invariants and expects a full seeded regeneration.
func TestRestore_RegeneratesCorruptHistory(t *testing.T) {
	base, _ := domain.BasePrice(domain.TickerDDR5)
	state := ledger.PriceState{
		domain.TickerDDR5: ledger.TickerPrices{
			Current: decimal.NewFromInt(999),
			History: []domain.PriceEntry{
				{Price: decimal.NewFromInt(999), At: testNow, Source: domain.SourceManual},
				{Price: decimal.NewFromInt(-3), At: testNow, Source: domain.SourceManual},
				{Price: base, At: time.Time{}, Source: domain.SourceManual}, // zero timestamp
			},
		},
	}

	restored, repaired := ledger.RestorePriceLedger(state, testNow)
	if !repaired {
		t.Fatal("corrupt snapshot must be flagged as repaired")
	}

	hist := restored.History(domain.TickerDDR5)
	if len(hist) < 2 {
		t.Fatalf("regenerated history too short: %d", len(hist))
	}
	prev := decimal.Decimal{}
	for i, e := range hist {
		if !domain.InBand(e.Price, base) {
			t.Errorf("entry %d: %s outside base band after repair", i, e.Price)
		}
		if i > 0 && !domain.InBand(e.Price, prev) {
			t.Errorf("entry %d: %s outside step band after repair", i, e.Price)
		}
		prev = e.Price
	}
	cur, _ := restored.Current(domain.TickerDDR5)
	if !cur.Equal(hist[len(hist)-1].Price) {
		t.Error("current price must equal last history entry after repair")
	}
}

// TestRestore_DropsOutOfBandTail keeps the valid prefix when only some
// entries are bad, rather than regenerating everything.
func TestRestore_DropsOutOfBandTail(t *testing.T) {
	base, _ := domain.BasePrice(domain.TickerHBM3)
	good1 := base.Round(domain.PricePrecision)
	good2 := domain.ClampToBand(base.Mul(decimal.NewFromFloat(1.01)), base)

	state := ledger.PriceState{
		domain.TickerHBM3: ledger.TickerPrices{
			Current: decimal.NewFromInt(1), // stale; restore recomputes from history
			History: []domain.PriceEntry{
				{Price: good1, At: testNow, Source: domain.SourceSeed},
				{Price: good2, At: testNow.Add(time.Minute), Source: domain.SourceAPI},
				{Price: base.Mul(decimal.NewFromInt(3)), At: testNow.Add(2 * time.Minute), Source: domain.SourceManual},
			},
		},
	}

	restored, repaired := ledger.RestorePriceLedger(state, testNow)
	if !repaired {
		t.Fatal("expected repair flag for dropped entry")
	}
	hist := restored.History(domain.TickerHBM3)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2 surviving entries", len(hist))
	}
	cur, _ := restored.Current(domain.TickerHBM3)
	if !cur.Equal(good2) {
		t.Errorf("current = %s, want last valid entry %s", cur, good2)
	}
}
