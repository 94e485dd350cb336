// Package source wraps the external marketplace search API behind a
// uniform Search call. Provider-specific field shapes are normalized into
// the canonical listing.Listing here and nowhere else.
package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"dealradar/internal/listing"
)

var (
	// ErrAuth means the marketplace rejected our credentials. Callers must
	// not retry per-keyword; the whole cycle is doomed.
	ErrAuth = errors.New("marketplace auth failed")

	// ErrUnavailable is a transient transport or server failure for one
	// request. Callers may drop the keyword and continue.
	ErrUnavailable = errors.New("marketplace unavailable")
)

// Config holds marketplace client configuration.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	PageSize     int
}

// Client talks to the marketplace search API. It caches the bearer token
// until shortly before expiry and never mutates anything it returns.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	logger     *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a marketplace client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("marketplace base URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("marketplace credentials are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		logger:     logger.With("component", "source"),
	}, nil
}

// Search runs one keyword search and returns normalized listings. An empty
// result is ([], nil), not an error. Auctions are requested with the
// auction buying option filter; deals with fixed price plus discount data.
func (c *Client) Search(ctx context.Context, itemType listing.ItemType, keyword string, offset, limit int) ([]listing.Listing, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", keyword)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if itemType == listing.TypeAuction {
		q.Set("filter", "buyingOptions:{AUCTION}")
	} else {
		q.Set("filter", "buyingOptions:{FIXED_PRICE}")
	}

	reqURL := c.baseURL + "/buy/browse/v1/item_summary/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.invalidateToken()
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	items := make([]listing.Listing, 0, len(sr.ItemSummaries))
	for _, raw := range sr.ItemSummaries {
		l, ok := c.transform(itemType, raw)
		if !ok {
			continue
		}
		items = append(items, l)
	}
	return items, nil
}

// --- wire types ---

type searchResponse struct {
	ItemSummaries []itemSummary `json:"itemSummaries"`
	Total         int           `json:"total"`
}

type itemSummary struct {
	ItemID           string `json:"itemId"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	ItemWebURL       string `json:"itemWebUrl"`
	Condition        string `json:"condition"`
	BidCount         int    `json:"bidCount"`
	ItemEndDate      string `json:"itemEndDate"`
	Image            struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	Price struct {
		Value string `json:"value"`
	} `json:"price"`
	MarketingPrice struct {
		OriginalPrice struct {
			Value string `json:"value"`
		} `json:"originalPrice"`
		DiscountPercentage string `json:"discountPercentage"`
	} `json:"marketingPrice"`
	Seller struct {
		FeedbackPercentage string `json:"feedbackPercentage"`
		FeedbackScore      int    `json:"feedbackScore"`
	} `json:"seller"`
}

func (c *Client) transform(itemType listing.ItemType, raw itemSummary) (listing.Listing, bool) {
	if raw.ItemID == "" {
		return listing.Listing{}, false
	}

	l := listing.Listing{
		ID:               raw.ItemID,
		Type:             itemType,
		Title:            raw.Title,
		Description:      raw.ShortDescription,
		ImageURL:         raw.Image.ImageURL,
		URL:              raw.ItemWebURL,
		Price:            parseAmount(raw.Price.Value),
		OriginalPrice:    parseAmount(raw.MarketingPrice.OriginalPrice.Value),
		SellerReputation: parsePercent(raw.Seller.FeedbackPercentage),
		SellerFeedback:   max(raw.Seller.FeedbackScore, 0),
		Condition:        raw.Condition,
	}

	if itemType == listing.TypeAuction {
		l.BidCount = max(raw.BidCount, 0)
		if raw.ItemEndDate != "" {
			if t, err := time.Parse(time.RFC3339, raw.ItemEndDate); err == nil {
				l.EndTime = t
			} else {
				c.logger.Warn("unparseable auction end date", "item_id", raw.ItemID, "end_date", raw.ItemEndDate)
			}
		}
	}

	// The source's own discountPercentage is ignored: inconsistent feeds
	// have been observed, the price pair is the truth.
	l.RecomputeDiscount()
	return l, true
}

func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parsePercent(s string) float64 {
	v := parseAmount(s)
	if v > 100 {
		return 100
	}
	return v
}

// --- token handling ---

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.baseURL+"/oauth/api_scope")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identity/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: token status %d", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token status %d", ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decoding token: %v", ErrUnavailable, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.token = tr.AccessToken
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	c.tokenExpiry = time.Now().Add(ttl - 30*time.Second)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
