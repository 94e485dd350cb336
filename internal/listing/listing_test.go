package listing

import (
	"testing"
	"time"
)

func TestRecomputeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		original float64
		want     int
	}{
		{"half off", 50, 100, 50},
		{"rounds up", 66.5, 100, 34},
		{"no original price", 50, 0, 0},
		{"original below price", 100, 80, 0},
		{"equal prices", 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{Price: tt.price, OriginalPrice: tt.original, DiscountPercentage: 99}
			l.RecomputeDiscount()
			if l.DiscountPercentage != tt.want {
				t.Errorf("got %d, want %d", l.DiscountPercentage, tt.want)
			}
		})
	}
}

func TestActive(t *testing.T) {
	now := time.Now()

	deal := Listing{ID: "d1", Type: TypeDeal}
	if !deal.Active(now) {
		t.Error("deals should always be active")
	}

	live := Listing{ID: "a1", Type: TypeAuction, EndTime: now.Add(time.Hour)}
	if !live.Active(now) {
		t.Error("auction ending in the future should be active")
	}

	ended := Listing{ID: "a2", Type: TypeAuction, EndTime: now.Add(-time.Minute)}
	if ended.Active(now) {
		t.Error("ended auction should be inactive")
	}

	noEnd := Listing{ID: "a3", Type: TypeAuction}
	if noEnd.Active(now) {
		t.Error("auction without end time should be inactive")
	}
}

func TestFilterActive(t *testing.T) {
	now := time.Now()
	items := []Listing{
		{ID: "a", Type: TypeAuction, EndTime: now.Add(time.Hour)},
		{ID: "b", Type: TypeAuction, EndTime: now.Add(-time.Hour)},
		{ID: "c", Type: TypeDeal},
	}

	got := FilterActive(items, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 active items, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("order not preserved: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestTimeLeft(t *testing.T) {
	now := time.Now()

	l := Listing{Type: TypeAuction, EndTime: now.Add(30 * time.Minute)}
	if got := l.TimeLeft(now); got != 30*time.Minute {
		t.Errorf("got %v, want 30m", got)
	}

	past := Listing{Type: TypeAuction, EndTime: now.Add(-time.Minute)}
	if got := past.TimeLeft(now); got != 0 {
		t.Errorf("past auction: got %v, want 0", got)
	}

	var zero Listing
	if got := zero.TimeLeft(now); got != 0 {
		t.Errorf("zero end time: got %v, want 0", got)
	}
}

func TestMergeByID(t *testing.T) {
	base := []Listing{{ID: "a"}, {ID: "b"}}
	extra := []Listing{{ID: "b", Title: "dup"}, {ID: "c"}, {ID: ""}, {ID: "c"}}

	got := MergeByID(base, extra)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("unexpected order: %v", got)
	}
	// First-seen wins: the original "b" survives
	if got[1].Title == "dup" {
		t.Error("merge overwrote an existing item")
	}
}
