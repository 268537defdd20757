package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRateUnavailable indicates the upstream mid-market source is unreachable,
// unconfigured, or returned a response lacking the PHP rate.
var ErrRateUnavailable = errors.New("fx rate unavailable")

// RateProvider supplies the USD->PHP mid-market rate.
type RateProvider interface {
	MidMarket(ctx context.Context) (float64, error)
}

// StaticProvider serves a fixed rate. Selected explicitly via FX_PROVIDER=static
// for offline demos; it is never a silent fallback for a failing live source.
type StaticProvider struct {
	Rate float64
}

// MidMarket returns the configured rate.
func (p StaticProvider) MidMarket(_ context.Context) (float64, error) {
	if p.Rate <= 0 {
		return 0, fmt.Errorf("%w: static rate not configured", ErrRateUnavailable)
	}
	return p.Rate, nil
}

// HTTPProvider fetches the mid-market rate from an exchange-rate API returning
// a JSON body with a rates.PHP field.
type HTTPProvider struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPProvider builds a provider for the given endpoint. apiKey may be empty
// for keyless sandbox endpoints.
func NewHTTPProvider(url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// MidMarket performs the upstream call. Any transport failure, non-2xx status
// or missing rate field surfaces as ErrRateUnavailable.
func (p *HTTPProvider) MidMarket(ctx context.Context) (float64, error) {
	if p.url == "" {
		return 0, fmt.Errorf("%w: rate url not configured", ErrRateUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: upstream status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}

	rate, ok := body.Rates["PHP"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: response missing PHP rate", ErrRateUnavailable)
	}
	return rate, nil
}
