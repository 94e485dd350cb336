package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealradar/internal/listing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const tokenJSON = `{"access_token": "tok-123", "expires_in": 7200}`

const searchJSON = `{
	"total": 2,
	"itemSummaries": [
		{
			"itemId": "v1|111|0",
			"title": "Vintage Camera",
			"shortDescription": "Works great",
			"itemWebUrl": "https://example.com/111",
			"condition": "Used",
			"image": {"imageUrl": "https://example.com/111.jpg"},
			"price": {"value": "80.00"},
			"marketingPrice": {
				"originalPrice": {"value": "100.00"},
				"discountPercentage": "99"
			},
			"seller": {"feedbackPercentage": "98.7", "feedbackScore": 1543}
		},
		{
			"itemId": "v1|222|0",
			"title": "Broken fields",
			"price": {"value": "not-a-number"},
			"seller": {"feedbackPercentage": "200", "feedbackScore": -5}
		},
		{
			"itemId": "",
			"title": "No id, dropped"
		}
	]
}`

// newTestClient spins up a marketplace stub. The search handler is
// swappable per test; the token endpoint always succeeds.
func newTestClient(t *testing.T, search http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s", r.Method)
		}
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("token request missing basic auth")
		}
		w.Write([]byte(tokenJSON))
	})
	mux.HandleFunc("/buy/browse/v1/item_summary/search", search)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestSearchTransformsFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("search auth header = %q", got)
		}
		if got := r.URL.Query().Get("filter"); got != "buyingOptions:{FIXED_PRICE}" {
			t.Errorf("deal filter = %q", got)
		}
		w.Write([]byte(searchJSON))
	})

	items, err := c.Search(context.Background(), listing.TypeDeal, "camera", 0, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (id-less one dropped), got %d", len(items))
	}

	first := items[0]
	if first.ID != "v1|111|0" || first.Title != "Vintage Camera" {
		t.Errorf("identity fields wrong: %+v", first)
	}
	if first.Price != 80 || first.OriginalPrice != 100 {
		t.Errorf("prices wrong: %v / %v", first.Price, first.OriginalPrice)
	}
	// Discount is recomputed from the price pair, not trusted from the feed
	if first.DiscountPercentage != 20 {
		t.Errorf("discount = %d, want 20", first.DiscountPercentage)
	}
	if first.SellerReputation != 98.7 || first.SellerFeedback != 1543 {
		t.Errorf("seller fields wrong: %v / %d", first.SellerReputation, first.SellerFeedback)
	}

	// Defensive defaults on the malformed item
	second := items[1]
	if second.Price != 0 || second.SellerReputation != 100 || second.SellerFeedback != 0 {
		t.Errorf("defensive defaults wrong: %+v", second)
	}
}

func TestSearchAuctionEndTime(t *testing.T) {
	end := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "buyingOptions:{AUCTION}" {
			t.Errorf("auction filter = %q", got)
		}
		w.Write([]byte(`{"itemSummaries": [
			{"itemId": "a1", "title": "Live", "bidCount": 7, "itemEndDate": "` + end.Format(time.RFC3339) + `"},
			{"itemId": "a2", "title": "Bad date", "itemEndDate": "tomorrow-ish"}
		]}`))
	})

	items, err := c.Search(context.Background(), listing.TypeAuction, "watch", 0, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].EndTime.Equal(end) || items[0].BidCount != 7 {
		t.Errorf("auction fields wrong: %+v", items[0])
	}
	if !items[1].EndTime.IsZero() {
		t.Error("unparseable end date should leave EndTime zero")
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemSummaries": [], "total": 0}`))
	})

	items, err := c.Search(context.Background(), listing.TypeDeal, "nonsense", 0, 20)
	if err != nil {
		t.Fatalf("empty result should not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestSearchAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Search(context.Background(), listing.TypeDeal, "camera", 0, 20)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}

	// The cached token must be dropped so the next call renegotiates
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		t.Error("token not invalidated after auth failure")
	}
}

func TestSearchServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Search(context.Background(), listing.TypeDeal, "camera", 0, 20)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrAuth) {
		t.Error("transient failure must stay distinct from auth failure")
	}
}

func TestTokenReused(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Write([]byte(tokenJSON))
	})
	mux.HandleFunc("/buy/browse/v1/item_summary/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemSummaries": []}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), listing.TypeDeal, "camera", 0, 20); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", tokenCalls)
	}
}

func TestTokenRejectedIsAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "wrong"}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = c.Search(context.Background(), listing.TypeDeal, "camera", 0, 20)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth from rejected credentials, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{ClientID: "id", ClientSecret: "s"}, discardLogger()); err == nil {
		t.Error("missing base URL should fail")
	}
	if _, err := New(Config{BaseURL: "https://x"}, discardLogger()); err == nil {
		t.Error("missing credentials should fail")
	}
}
