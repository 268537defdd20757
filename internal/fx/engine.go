package fx

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrInvalidAmount rejects quote requests for non-positive or non-finite amounts.
var ErrInvalidAmount = errors.New("amount must be a positive finite number")

// Spread schedule: a base percentage of mid-market, bumped for small transfers
// and discounted for large ones, clamped to a fixed band.
const (
	baseSpreadPercent     = 0.75
	smallTransferBump     = 0.20
	largeTransferDiscount = 0.20
	minSpreadPercent      = 0.40
	maxSpreadPercent      = 1.50

	smallTransferThresholdUSD = 100.0
	largeTransferThresholdUSD = 1000.0
)

// Quote is the USD->PHP rate offered for a given transfer amount.
// SpreadPercent is expressed as a percentage, not a fraction.
type Quote struct {
	MidMarket       float64
	PBXRate         float64
	SpreadPHPPerUSD float64
	SpreadPercent   float64
	Timestamp       time.Time
}

// Engine computes quotes from a volatile mid-market rate and a deterministic
// spread. The mid-market value is held in a single shared cache slot with a
// freshness window, so concurrent callers within the window observe the same
// value and the upstream source is not hammered.
type Engine struct {
	provider RateProvider
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine's clock. Test hook.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds a quote engine with the given provider and cache freshness window.
func NewEngine(provider RateProvider, ttl time.Duration, opts ...EngineOption) *Engine {
	e := &Engine{provider: provider, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Quote produces the rate offered for sending amountUSD.
func (e *Engine) Quote(ctx context.Context, amountUSD float64) (Quote, error) {
	if amountUSD <= 0 || math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) {
		return Quote{}, ErrInvalidAmount
	}

	mid, err := e.midMarket(ctx)
	if err != nil {
		return Quote{}, err
	}

	percent := SpreadPercent(amountUSD)
	spreadPhp := mid * percent / 100

	return Quote{
		MidMarket:       mid,
		PBXRate:         mid - spreadPhp,
		SpreadPHPPerUSD: spreadPhp,
		SpreadPercent:   percent,
		Timestamp:       e.now().UTC(),
	}, nil
}

// SpreadPercent returns the spread percentage applied to a transfer of the
// given size: smaller transfers cost more, larger transfers cost less.
func SpreadPercent(amountUSD float64) float64 {
	percent := baseSpreadPercent
	if amountUSD < smallTransferThresholdUSD {
		percent += smallTransferBump
	}
	if amountUSD > largeTransferThresholdUSD {
		percent -= largeTransferDiscount
	}
	if percent < minSpreadPercent {
		percent = minSpreadPercent
	}
	if percent > maxSpreadPercent {
		percent = maxSpreadPercent
	}
	return percent
}

// midMarket returns the cached rate while it is younger than the freshness
// window, fetching and overwriting the slot otherwise. The lock is held across
// the fetch so one warm process performs at most one upstream call per window.
func (e *Engine) midMarket(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !e.fetchedAt.IsZero() && now.Sub(e.fetchedAt) < e.ttl {
		return e.cached, nil
	}

	rate, err := e.provider.MidMarket(ctx)
	if err != nil {
		return 0, err
	}

	e.cached = rate
	e.fetchedAt = now
	return rate, nil
}
