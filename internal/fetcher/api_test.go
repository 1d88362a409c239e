package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestAPI(t *testing.T, srvURL, key string) *API {
	t.Helper()
	return NewAPI(APIOptions{
		BaseURL: srvURL,
		APIKey:  key,
		Timeout: time.Second,
		Retry:   RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: instantSleep},
	}, noopLogger())
}

func TestAPIFetchMissingKeyIsPermanent(t *testing.T) {
	api := newTestAPI(t, "http://localhost", "")
	_, err := api.Fetch(context.Background(), "laptop", 100)
	if !IsPermanent(err) {
		t.Fatalf("missing api key must be a permanent error, got %v", err)
	}
}

func TestAPIFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apiKey"); got != "secret" {
			t.Errorf("apiKey = %q, want secret", got)
		}
		if got := r.URL.Query().Get("pageSize"); got != "50" {
			t.Errorf("pageSize = %q, want 50", got)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 3,
			"products": []map[string]any{
				{"sku": 6534009, "name": "Example Laptop", "salePrice": 479.99, "regularPrice": 679.99, "onSale": true, "url": "https://retailer.example/6534009.p"},
				{"sku": 6541234, "name": "Clearance Desktop", "salePrice": 199.99, "regularPrice": 0, "url": "https://retailer.example/6541234.p"},
				{"sku": 0, "name": "", "salePrice": 10},
			},
		})
	}))
	defer srv.Close()

	products, err := newTestAPI(t, srv.URL, "secret").Fetch(context.Background(), "laptop", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2 (malformed entry skipped)", len(products))
	}

	if products[0].SKU != "6534009" {
		t.Fatalf("SKU = %q", products[0].SKU)
	}
	if products[0].CurrentPrice.String() != "479.99" {
		t.Fatalf("CurrentPrice = %s", products[0].CurrentPrice)
	}

	// Zero regular price falls back to the sale price.
	if !products[1].RegularPrice.Equal(products[1].CurrentPrice) {
		t.Fatalf("regular %s should equal current %s", products[1].RegularPrice, products[1].CurrentPrice)
	}
}

func TestAPIFetchAuthFailureIsPermanentAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestAPI(t, srv.URL, "revoked").Fetch(context.Background(), "laptop", 100)
	if !IsPermanent(err) {
		t.Fatalf("auth failure must be permanent, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failure must not be retried, calls = %d", calls.Load())
	}
}

func TestAPIFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"products": []map[string]any{}})
	}))
	defer srv.Close()

	products, err := newTestAPI(t, srv.URL, "secret").Fetch(context.Background(), "laptop", 100)
	if err != nil {
		t.Fatalf("Fetch should succeed after retry: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("got %d products, want 0", len(products))
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestAPIFetchCapsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageSize"); got != "100" {
			t.Errorf("pageSize = %q, want 100 (api maximum)", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"products": []map[string]any{}})
	}))
	defer srv.Close()

	if _, err := newTestAPI(t, srv.URL, "secret").Fetch(context.Background(), "laptop", 500); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}
