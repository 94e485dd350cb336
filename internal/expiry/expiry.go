// Package expiry keeps the visible auction pool consistent with the
// clock. One reconciler holds a priority queue of (end time, id) pairs
// and fires expiry events in order from a single timer, instead of one
// ticker per listing.
package expiry

import (
	"container/heap"
	"sync"
	"time"
)

type entry struct {
	id      string
	at      time.Time
	removed bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Reconciler emits listing ids on Expired() as their end times pass.
// Track and Forget are idempotent; Stop tears down the timer goroutine.
type Reconciler struct {
	mu      sync.Mutex
	entries entryHeap
	index   map[string]*entry
	now     func() time.Time

	expired  chan string
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New() *Reconciler {
	r := &Reconciler{
		index:   make(map[string]*entry),
		now:     time.Now,
		expired: make(chan string, 32),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Expired delivers ids whose end time has passed, earliest first.
func (r *Reconciler) Expired() <-chan string {
	return r.expired
}

// Track schedules an expiry event for id at the given end time. A zero
// end time is ignored (such auctions are already treated as inactive).
// Re-tracking an id replaces its previous schedule.
func (r *Reconciler) Track(id string, at time.Time) {
	if id == "" || at.IsZero() {
		return
	}
	r.mu.Lock()
	if old, ok := r.index[id]; ok {
		old.removed = true
	}
	e := &entry{id: id, at: at}
	r.index[id] = e
	heap.Push(&r.entries, e)
	r.mu.Unlock()
	r.poke()
}

// Forget cancels the pending event for id. Unknown ids are a no-op.
func (r *Reconciler) Forget(id string) {
	r.mu.Lock()
	if e, ok := r.index[id]; ok {
		e.removed = true
		delete(r.index, id)
	}
	r.mu.Unlock()
	r.poke()
}

// Tracking returns how many listings have a pending expiry event.
func (r *Reconciler) Tracking() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Stop shuts the reconciler down. Safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Reconciler) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) loop() {
	for {
		next, ok := r.peek()

		var timerC <-chan time.Time
		var timer *time.Timer
		if ok {
			d := next.Sub(r.now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			if !r.fireDue() {
				return
			}
		}
	}
}

// peek returns the earliest live end time, discarding tombstones.
func (r *Reconciler) peek() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.entries.Len() > 0 {
		e := r.entries[0]
		if e.removed {
			heap.Pop(&r.entries)
			continue
		}
		return e.at, true
	}
	return time.Time{}, false
}

// fireDue pops every entry whose time has come and emits its id. Returns
// false when the reconciler was stopped mid-delivery.
func (r *Reconciler) fireDue() bool {
	now := r.now()
	var due []string

	r.mu.Lock()
	for r.entries.Len() > 0 {
		e := r.entries[0]
		if e.removed {
			heap.Pop(&r.entries)
			continue
		}
		if e.at.After(now) {
			break
		}
		heap.Pop(&r.entries)
		delete(r.index, e.id)
		due = append(due, e.id)
	}
	r.mu.Unlock()

	for _, id := range due {
		select {
		case r.expired <- id:
		case <-r.done:
			return false
		}
	}
	return true
}
