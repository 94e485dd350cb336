package expiry

import (
	"testing"
	"time"
)

func collect(t *testing.T, r *Reconciler, n int, within time.Duration) []string {
	t.Helper()
	var got []string
	deadline := time.After(within)
	for len(got) < n {
		select {
		case id := <-r.Expired():
			got = append(got, id)
		case <-deadline:
			t.Fatalf("timed out after %v, got %v", within, got)
		}
	}
	return got
}

func TestExpiresInOrder(t *testing.T) {
	r := New()
	defer r.Stop()

	now := time.Now()
	r.Track("late", now.Add(120*time.Millisecond))
	r.Track("early", now.Add(40*time.Millisecond))
	r.Track("mid", now.Add(80*time.Millisecond))

	got := collect(t, r, 3, 2*time.Second)
	want := []string{"early", "mid", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if r.Tracking() != 0 {
		t.Errorf("still tracking %d after all fired", r.Tracking())
	}
}

func TestPastDueFiresImmediately(t *testing.T) {
	r := New()
	defer r.Stop()

	r.Track("overdue", time.Now().Add(-time.Minute))
	got := collect(t, r, 1, time.Second)
	if got[0] != "overdue" {
		t.Errorf("got %q", got[0])
	}
}

func TestForgetCancels(t *testing.T) {
	r := New()
	defer r.Stop()

	now := time.Now()
	r.Track("keep", now.Add(60*time.Millisecond))
	r.Track("drop", now.Add(30*time.Millisecond))
	r.Forget("drop")
	r.Forget("drop")      // idempotent
	r.Forget("never-was") // unknown id is a no-op

	got := collect(t, r, 1, time.Second)
	if got[0] != "keep" {
		t.Fatalf("got %q, want keep", got[0])
	}
	select {
	case id := <-r.Expired():
		t.Fatalf("forgotten id %q still fired", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetrackReplacesSchedule(t *testing.T) {
	r := New()
	defer r.Stop()

	now := time.Now()
	r.Track("a", now.Add(30*time.Millisecond))
	r.Track("a", now.Add(90*time.Millisecond))

	if r.Tracking() != 1 {
		t.Fatalf("tracking %d, want 1", r.Tracking())
	}

	start := time.Now()
	collect(t, r, 1, time.Second)
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("fired after %v, old schedule not replaced", elapsed)
	}

	// Only one event for the re-tracked id
	select {
	case id := <-r.Expired():
		t.Fatalf("duplicate event for %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestZeroTimeIgnored(t *testing.T) {
	r := New()
	defer r.Stop()

	r.Track("no-end", time.Time{})
	r.Track("", time.Now().Add(time.Millisecond))
	if r.Tracking() != 0 {
		t.Errorf("tracking %d, want 0", r.Tracking())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	r := New()
	r.Track("x", time.Now().Add(time.Hour))
	r.Stop()
	r.Stop()
}
