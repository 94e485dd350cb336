package tui

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dealradar/internal/cachestore"
	"dealradar/internal/expiry"
	"dealradar/internal/listing"
	"dealradar/internal/pool"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	store, err := cachestore.Open(filepath.Join(t.TempDir(), "tui_test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := expiry.New()
	t.Cleanup(r.Stop)

	return NewApp(RunOpts{Store: store, Reconciler: r, ItemType: listing.TypeDeal})
}

func TestSupersededLoadDiscarded(t *testing.T) {
	a := newTestApp(t)
	a.reqID = 2 // a newer load has since been started

	stale := loadedMsg{
		req:      1,
		res:      pool.Result{Items: []listing.Listing{{ID: "old", Type: listing.TypeDeal}}},
		itemType: listing.TypeDeal,
		query:    "camera",
	}
	a.Update(stale)

	if len(a.items) != 0 {
		t.Fatalf("stale result applied: %d items", len(a.items))
	}

	staleErr := loadErrMsg{req: 1, err: errors.New("timeout"), authFail: true}
	a.Update(staleErr)
	if a.authErr || a.err != nil {
		t.Error("stale error applied")
	}
}

func TestCurrentLoadAppliesAndTracksAuctions(t *testing.T) {
	a := newTestApp(t)
	a.reqID = 1
	a.itemType = listing.TypeAuction
	a.query = "watch"

	now := time.Now()
	msg := loadedMsg{
		req: 1,
		res: pool.Result{Items: []listing.Listing{
			{ID: "live", Type: listing.TypeAuction, Title: "Watch", EndTime: now.Add(time.Hour)},
			{ID: "no-end", Type: listing.TypeAuction, Title: "Odd"},
		}},
		itemType: listing.TypeAuction,
		query:    "watch",
	}
	a.Update(msg)

	if len(a.items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(a.items))
	}
	if a.loading {
		t.Error("loading flag not cleared")
	}
	// Only the auction with a real end time gets an expiry schedule
	if got := a.reconciler.Tracking(); got != 1 {
		t.Errorf("tracking %d auctions, want 1", got)
	}
}

func TestItemExpiredRemovesFromView(t *testing.T) {
	a := newTestApp(t)
	a.reqID = 1
	a.query = "camera"
	a.setItems([]listing.Listing{
		{ID: "keep", Type: listing.TypeDeal, Title: "Keep"},
		{ID: "gone", Type: listing.TypeDeal, Title: "Gone"},
	}, false)
	a.cursor = 1

	a.Update(itemExpiredMsg{id: "gone"})

	if len(a.items) != 1 || a.items[0].ID != "keep" {
		t.Fatalf("unexpected items after expiry: %v", a.items)
	}
	if a.cursor != 0 {
		t.Errorf("cursor not clamped, got %d", a.cursor)
	}

	// Ids we no longer display are a no-op
	a.Update(itemExpiredMsg{id: "gone"})
	if len(a.items) != 1 {
		t.Error("repeat expiry changed state")
	}
}

func TestStartLoadBumpsGeneration(t *testing.T) {
	a := newTestApp(t)
	before := a.reqID

	a.startLoad(listing.TypeDeal, "", false)
	if a.reqID != before+1 {
		t.Errorf("reqID = %d, want %d", a.reqID, before+1)
	}
	if !a.loading {
		t.Error("loading flag not set")
	}
}
