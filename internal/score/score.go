package score

import (
	"math"
	"time"

	"dealradar/internal/listing"
)

// Breakdown shows how each component contributed to the final score.
type Breakdown struct {
	Discount   float64
	Reputation float64
	Volume     float64
	Urgency    float64
	Final      float64
}

const (
	weightDiscount   = 0.40
	weightReputation = 0.25
	weightVolume     = 0.15
	weightUrgency    = 0.20
)

// Deal computes a local attractiveness score (0.0-10.0) for a listing.
// It is the ordering used when the AI pass is unavailable and raw items
// must be padded in.
func Deal(l listing.Listing, now time.Time) float64 {
	return DealWithBreakdown(l, now).Final
}

// DealWithBreakdown computes the score with component details.
func DealWithBreakdown(l listing.Listing, now time.Time) Breakdown {
	b := Breakdown{
		Discount:   discountScore(l.DiscountPercentage),
		Reputation: reputationScore(l.SellerReputation),
		Volume:     volumeScore(l.SellerFeedback),
		Urgency:    urgencyScore(l, now),
	}
	raw := b.Discount*weightDiscount +
		b.Reputation*weightReputation +
		b.Volume*weightVolume +
		b.Urgency*weightUrgency
	b.Final = math.Round(raw*100) / 10 // scale to 0.0-10.0
	return b
}

// discountScore saturates at a 60% discount; anything deeper usually
// signals a junk original price rather than a better deal.
func discountScore(pct int) float64 {
	if pct <= 0 {
		return 0
	}
	s := float64(pct) / 60
	if s > 1 {
		s = 1
	}
	return s
}

func reputationScore(pct float64) float64 {
	if pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	// 95% is table stakes on marketplaces; spread the top band out.
	if pct < 90 {
		return pct / 100 * 0.5
	}
	return 0.5 + (pct-90)/10*0.5
}

// volumeScore uses log-scaled feedback count: 1.0 at 10k+, ~0.5 at 100.
func volumeScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	s := math.Log10(float64(count)) / 4
	if s > 1 {
		s = 1
	}
	return s
}

// urgencyScore favors auctions closing within a day; deals score a flat
// middle value since they have no clock.
func urgencyScore(l listing.Listing, now time.Time) float64 {
	if l.Type != listing.TypeAuction {
		return 0.5
	}
	left := l.TimeLeft(now)
	if left <= 0 {
		return 0
	}
	hours := left.Hours()
	switch {
	case hours <= 6:
		return 1.0
	case hours <= 24:
		return 0.8
	case hours <= 72:
		return 0.5
	default:
		return 0.3
	}
}
