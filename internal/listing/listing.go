package listing

import (
	"math"
	"time"
)

// ItemType distinguishes the two marketplace flows.
type ItemType string

const (
	TypeDeal    ItemType = "deal"
	TypeAuction ItemType = "auction"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == TypeDeal || t == TypeAuction
}

// Listing is the canonical representation of one marketplace item.
// Auction-only fields (BidCount, EndTime) are zero for deals.
type Listing struct {
	ID                 string    `json:"id"`
	Type               ItemType  `json:"type"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
	URL                string    `json:"url,omitempty"`
	Price              float64   `json:"price"`
	OriginalPrice      float64   `json:"original_price,omitempty"`
	DiscountPercentage int       `json:"discount_percentage"`
	SellerReputation   float64   `json:"seller_reputation"`
	SellerFeedback     int       `json:"seller_feedback"`
	Condition          string    `json:"condition,omitempty"`
	BidCount           int       `json:"bid_count,omitempty"`
	EndTime            time.Time `json:"end_time,omitempty"`

	// AI enrichment, nil until a qualification pass sets them.
	RarityScore *int `json:"rarity_score,omitempty"`
	RiskScore   *int `json:"risk_score,omitempty"`
}

// RecomputeDiscount derives DiscountPercentage from the price pair,
// overriding whatever the source reported.
func (l *Listing) RecomputeDiscount() {
	if l.OriginalPrice > l.Price && l.OriginalPrice > 0 {
		l.DiscountPercentage = int(math.Round((l.OriginalPrice - l.Price) / l.OriginalPrice * 100))
	} else {
		l.DiscountPercentage = 0
	}
}

// Active reports whether the listing should appear in curated views.
// Deals are always active; an auction is active only while its end time
// is known and still in the future.
func (l Listing) Active(now time.Time) bool {
	if l.Type != TypeAuction {
		return true
	}
	return !l.EndTime.IsZero() && l.EndTime.After(now)
}

// TimeLeft returns the remaining auction time, clamped at zero.
func (l Listing) TimeLeft(now time.Time) time.Duration {
	if l.EndTime.IsZero() {
		return 0
	}
	d := l.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FilterActive returns the subset of items active at now, preserving order.
func FilterActive(items []Listing, now time.Time) []Listing {
	out := make([]Listing, 0, len(items))
	for _, l := range items {
		if l.Active(now) {
			out = append(out, l)
		}
	}
	return out
}

// MergeByID appends items from extra whose IDs are not already present in
// base. First-seen wins; base order is preserved.
func MergeByID(base, extra []Listing) []Listing {
	seen := make(map[string]bool, len(base))
	for _, l := range base {
		seen[l.ID] = true
	}
	out := base
	for _, l := range extra {
		if l.ID == "" || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	return out
}

// IntPtr returns a pointer to v. Convenience for the enrichment fields.
func IntPtr(v int) *int {
	return &v
}
