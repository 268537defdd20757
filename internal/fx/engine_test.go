package fx

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type countingProvider struct {
	rate  float64
	err   error
	calls int
}

func (p *countingProvider) MidMarket(_ context.Context) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.rate, nil
}

func TestQuoteSpreadTiers(t *testing.T) {
	cases := []struct {
		amountUSD   float64
		wantPercent float64
	}{
		{50, 0.95},
		{500, 0.75},
		{5000, 0.55},
		{100, 0.75},  // boundary: not strictly below
		{1000, 0.75}, // boundary: not strictly above
	}

	for _, tc := range cases {
		provider := &countingProvider{rate: 56.0}
		engine := NewEngine(provider, time.Minute)

		q, err := engine.Quote(context.Background(), tc.amountUSD)
		if err != nil {
			t.Fatalf("quote %v: %v", tc.amountUSD, err)
		}
		if math.Abs(q.SpreadPercent-tc.wantPercent) > 1e-9 {
			t.Fatalf("amount %v: expected spread %v%%, got %v%%", tc.amountUSD, tc.wantPercent, q.SpreadPercent)
		}
	}
}

func TestQuoteRateDerivation(t *testing.T) {
	provider := &countingProvider{rate: 56.0}
	engine := NewEngine(provider, time.Minute)

	q, err := engine.Quote(context.Background(), 500)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if q.MidMarket != 56.0 {
		t.Fatalf("expected mid 56.0, got %v", q.MidMarket)
	}
	wantRate := 56.0 * (1 - q.SpreadPercent/100)
	if math.Abs(q.PBXRate-wantRate) > 1e-9 {
		t.Fatalf("expected rate %v, got %v", wantRate, q.PBXRate)
	}
	if math.Abs(q.SpreadPHPPerUSD-(q.MidMarket-q.PBXRate)) > 1e-9 {
		t.Fatalf("spread php %v does not match mid-rate delta", q.SpreadPHPPerUSD)
	}
}

func TestSpreadPercentStaysInBand(t *testing.T) {
	for _, amount := range []float64{0.01, 1, 99.99, 100, 101, 999, 1000, 1001, 1e6} {
		p := SpreadPercent(amount)
		if p < minSpreadPercent || p > maxSpreadPercent {
			t.Fatalf("amount %v: spread %v%% outside [%v%%, %v%%]", amount, p, minSpreadPercent, maxSpreadPercent)
		}
	}
}

func TestMidMarketCacheWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	provider := &countingProvider{rate: 56.0}
	engine := NewEngine(provider, time.Minute, WithClock(clock))
	ctx := context.Background()

	first, err := engine.Quote(ctx, 200)
	if err != nil {
		t.Fatalf("first quote: %v", err)
	}

	// Rate moves upstream, but we are within the freshness window.
	provider.rate = 57.0
	now = now.Add(59 * time.Second)

	second, err := engine.Quote(ctx, 200)
	if err != nil {
		t.Fatalf("second quote: %v", err)
	}
	if second.MidMarket != first.MidMarket {
		t.Fatalf("expected cache hit, mid changed %v -> %v", first.MidMarket, second.MidMarket)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", provider.calls)
	}

	// Past the window the slot is refetched and overwritten.
	now = now.Add(2 * time.Second)
	third, err := engine.Quote(ctx, 200)
	if err != nil {
		t.Fatalf("third quote: %v", err)
	}
	if third.MidMarket != 57.0 {
		t.Fatalf("expected refreshed mid 57.0, got %v", third.MidMarket)
	}
	if provider.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", provider.calls)
	}
}

func TestQuoteInvalidAmount(t *testing.T) {
	engine := NewEngine(&countingProvider{rate: 56.0}, time.Minute)
	ctx := context.Background()

	for _, amount := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if _, err := engine.Quote(ctx, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestQuoteProviderFailure(t *testing.T) {
	provider := &countingProvider{err: ErrRateUnavailable}
	engine := NewEngine(provider, time.Minute)

	if _, err := engine.Quote(context.Background(), 100); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}
