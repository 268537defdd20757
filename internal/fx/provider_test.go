package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProviderFetchesPHPRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("expected apikey header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"USD","rates":{"PHP":56.42,"EUR":0.92}}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "test-key")
	rate, err := provider.MidMarket(context.Background())
	if err != nil {
		t.Fatalf("mid market: %v", err)
	}
	if rate != 56.42 {
		t.Fatalf("expected 56.42, got %v", rate)
	}
}

func TestHTTPProviderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "")
	if _, err := provider.MidMarket(context.Background()); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestHTTPProviderMissingRateField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "")
	if _, err := provider.MidMarket(context.Background()); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestHTTPProviderUnconfigured(t *testing.T) {
	provider := NewHTTPProvider("", "")
	if _, err := provider.MidMarket(context.Background()); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}
