package score

import (
	"testing"
	"time"

	"dealradar/internal/listing"
)

func TestDealRange(t *testing.T) {
	now := time.Now()
	samples := []listing.Listing{
		{},
		{Type: listing.TypeDeal, DiscountPercentage: 90, SellerReputation: 100, SellerFeedback: 50000},
		{Type: listing.TypeAuction, EndTime: now.Add(2 * time.Hour), DiscountPercentage: 30, SellerReputation: 97, SellerFeedback: 1200},
		{Type: listing.TypeAuction, EndTime: now.Add(-time.Hour)},
	}

	for i, l := range samples {
		got := Deal(l, now)
		if got < 0 || got > 10 {
			t.Errorf("sample %d: score %v out of [0,10]", i, got)
		}
	}
}

func TestBetterDealScoresHigher(t *testing.T) {
	now := time.Now()
	good := listing.Listing{Type: listing.TypeDeal, DiscountPercentage: 50, SellerReputation: 99, SellerFeedback: 10000}
	bad := listing.Listing{Type: listing.TypeDeal, DiscountPercentage: 5, SellerReputation: 70, SellerFeedback: 3}

	if Deal(good, now) <= Deal(bad, now) {
		t.Errorf("good deal (%v) should outscore bad deal (%v)", Deal(good, now), Deal(bad, now))
	}
}

func TestDiscountSaturates(t *testing.T) {
	if discountScore(60) != discountScore(95) {
		t.Error("discounts past 60%% should not score higher")
	}
	if discountScore(0) != 0 || discountScore(-5) != 0 {
		t.Error("non-positive discount should score 0")
	}
}

func TestReputationTopBandSpread(t *testing.T) {
	// The top band must differentiate: 99% is meaningfully better than 91%
	if reputationScore(99) <= reputationScore(91) {
		t.Error("top reputation band should be spread out")
	}
	if reputationScore(89) >= reputationScore(90) {
		t.Error("reputation score should be monotonic across the 90%% threshold")
	}
	if reputationScore(150) != reputationScore(100) {
		t.Error("reputation should clamp at 100")
	}
}

func TestUrgencyFavorsClosingAuctions(t *testing.T) {
	now := time.Now()
	soon := listing.Listing{Type: listing.TypeAuction, EndTime: now.Add(2 * time.Hour)}
	later := listing.Listing{Type: listing.TypeAuction, EndTime: now.Add(5 * 24 * time.Hour)}

	if urgencyScore(soon, now) <= urgencyScore(later, now) {
		t.Error("auction ending sooner should be more urgent")
	}

	deal := listing.Listing{Type: listing.TypeDeal}
	if urgencyScore(deal, now) != 0.5 {
		t.Errorf("deals should get the flat middle urgency, got %v", urgencyScore(deal, now))
	}
}

func TestBreakdownMatchesFinal(t *testing.T) {
	now := time.Now()
	l := listing.Listing{Type: listing.TypeDeal, DiscountPercentage: 30, SellerReputation: 95, SellerFeedback: 500}

	b := DealWithBreakdown(l, now)
	if b.Final != Deal(l, now) {
		t.Errorf("breakdown final %v != Deal %v", b.Final, Deal(l, now))
	}
}
