package reebelo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"priceradar/pkg/config"
)

func testConfig(baseURL string) config.ReebeloConfig {
	return config.ReebeloConfig{
		BaseURL:        baseURL,
		APIKey:         "key",
		Currency:       "AUD",
		RequestTimeout: 5 * time.Second,
		PageInterval:   time.Millisecond,
		RateLimitDelay: 5 * time.Millisecond,
		MaxRetries:     3,
		Concurrency:    2,
	}
}

func offerJSON(price float64, stock int) string {
	return fmt.Sprintf(`{"price":%.2f,"reebeloOffer":{"attributes":{"condition":"Good","storage":"256GB","color":"Blue"},"stock":%d,"url":"https://reebelo.example/o"}}`, price, stock)
}

func TestFetchOffersWalksAllPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"publishedOffers":[%s],"hasNextPage":true}`, offerJSON(120.00, 2))
		case "2":
			fmt.Fprintf(w, `{"publishedOffers":[%s],"hasNextPage":false}`, offerJSON(115.50, 1))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := client.FetchOffers(context.Background(), []string{"S1"})
	if err != nil {
		t.Fatalf("FetchOffers: %v", err)
	}

	if result.Processed != 1 || result.Succeeded != 1 {
		t.Fatalf("expected one processed and succeeded key, got %+v", result)
	}
	if len(result.Offers) != 2 {
		t.Fatalf("expected offers from both pages, got %d", len(result.Offers))
	}
	for _, o := range result.Offers {
		if o.SourceSKU != "S1" || o.Competitor != CompetitorName || o.Currency != "AUD" {
			t.Fatalf("unexpected offer: %+v", o)
		}
		if o.Storage != "256GB" || o.Condition != "Good" {
			t.Fatalf("attributes not carried through: %+v", o)
		}
	}
}

func TestFetchOffersRetriesSamePageOn429(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.URL.Query().Get("page") != "1" {
			t.Errorf("retry must hit the same page, got page %s", r.URL.Query().Get("page"))
		}
		fmt.Fprintf(w, `{"publishedOffers":[%s],"hasNextPage":false}`, offerJSON(99.00, 1))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := client.FetchOffers(context.Background(), []string{"S1"})
	if err != nil {
		t.Fatalf("FetchOffers: %v", err)
	}
	if len(result.KeyErrors) != 0 {
		t.Fatalf("a recovered 429 must not be a key error: %+v", result.KeyErrors)
	}
	if len(result.Offers) != 1 {
		t.Fatalf("expected the retried page's offer, got %d", len(result.Offers))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestFetchOffersGivesUpAfterRepeated429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := client.FetchOffers(context.Background(), []string{"S1"})
	if err != nil {
		t.Fatalf("a bad sku never fails the batch: %v", err)
	}
	if result.Succeeded != 0 || len(result.KeyErrors) != 1 {
		t.Fatalf("expected the sku recorded as a key error, got %+v", result)
	}
}

func TestFetchOffersContainsBadSKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "BAD" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"publishedOffers":[%s],"hasNextPage":false}`, offerJSON(50.00, 1))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := client.FetchOffers(context.Background(), []string{"OK", "BAD"})
	if err != nil {
		t.Fatalf("FetchOffers: %v", err)
	}
	if result.Processed != 2 || result.Succeeded != 1 {
		t.Fatalf("expected one good and one skipped key, got %+v", result)
	}
	if len(result.KeyErrors) != 1 || result.KeyErrors[0].Key != "BAD" {
		t.Fatalf("expected BAD recorded as a key error, got %+v", result.KeyErrors)
	}
	if len(result.Offers) != 1 {
		t.Fatalf("expected the good sku's offer, got %d", len(result.Offers))
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	cfg := testConfig("https://example.com")
	cfg.APIKey = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected missing api key to be rejected")
	}
}

func TestNormalizeOfferDropsBadPrices(t *testing.T) {
	if _, ok := normalizeOffer([]byte(`{"price":-1}`), "S1", "AUD"); ok {
		t.Fatal("negative price must be dropped")
	}
	if _, ok := normalizeOffer([]byte(`not json`), "S1", "AUD"); ok {
		t.Fatal("undecodable offer must be dropped")
	}

	offer, ok := normalizeOffer([]byte(`{"price":10,"reebeloOffer":{"stock":-3}}`), "S1", "AUD")
	if !ok {
		t.Fatal("valid offer dropped")
	}
	if offer.Stock != 0 {
		t.Fatalf("negative stock must clamp to zero, got %d", offer.Stock)
	}
}
