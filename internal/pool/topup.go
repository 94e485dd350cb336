package pool

import (
	"context"
	"errors"
	"fmt"

	"dealradar/internal/cachestore"
	"dealradar/internal/listing"
	"dealradar/internal/source"
)

// ShouldTopUp reports whether the curated view for itemType deserves its
// one replenishment pass: the active pool is undersized, or (deals only)
// the cache entry has aged into the soft-refresh window. A view that has
// already spent its attempt this load says no until the next LoadCurated.
func (b *Builder) ShouldTopUp(itemType listing.ItemType, current []listing.Listing) bool {
	key := cachestore.CuratedKey(itemType)

	b.mu.Lock()
	done := b.toppedUp[key]
	b.mu.Unlock()
	if done {
		return false
	}

	active := listing.FilterActive(current, b.now())
	if len(active) < b.cfg.MinPoolSize {
		return true
	}

	if itemType == listing.TypeDeal {
		if age, ok := b.store.Age(key); ok && age > b.cfg.SoftRefreshAfter {
			return true
		}
	}
	return false
}

// TopUp replenishes the curated pool without disturbing what is already
// displayed: fresh keywords, concurrent fetch, already-present ids and
// expired auctions dropped, an optional re-qualification of just the new
// items, then an additive merge and cache rewrite. The attempt is consumed
// whatever happens; only a new LoadCurated re-arms it.
func (b *Builder) TopUp(ctx context.Context, itemType listing.ItemType, current []listing.Listing) (Result, error) {
	key := cachestore.CuratedKey(itemType)

	b.mu.Lock()
	if b.toppedUp[key] {
		b.mu.Unlock()
		return Result{Items: current, Notice: NoticeNoNewItems}, nil
	}
	b.toppedUp[key] = true
	b.mu.Unlock()

	if !b.acquire(key) {
		return Result{}, ErrInFlight
	}
	defer b.release(key)

	batch := b.sampler.NextBatch(b.cfg.BatchSize)
	if len(batch) == 0 {
		b.logger.Info("top-up skipped, vocabulary exhausted", "item_type", itemType)
		return Result{Items: current, Notice: NoticeNoNewItems}, nil
	}

	results := b.fetchBatch(ctx, itemType, batch)

	now := b.now()
	present := make(map[string]bool, len(current))
	for _, l := range current {
		present[l.ID] = true
	}

	var fresh []listing.Listing
	seen := make(map[string]bool)
	failed := 0
	for _, r := range results {
		if r.err != nil {
			if errors.Is(r.err, source.ErrAuth) {
				return Result{}, r.err
			}
			failed++
			b.logger.Warn("top-up keyword failed", "keyword", r.keyword, "error", r.err)
			continue
		}
		for _, l := range r.items {
			if l.ID == "" || present[l.ID] || seen[l.ID] || !l.Active(now) {
				continue
			}
			seen[l.ID] = true
			fresh = append(fresh, l)
		}
	}

	if len(fresh) == 0 {
		b.logger.Info("top-up found nothing new", "item_type", itemType, "keywords", len(batch), "failed", failed)
		return Result{Items: current, Notice: NoticeNoNewItems}, nil
	}

	if b.qualifier != nil {
		queryContext := "additional curated " + string(itemType) + " items"
		picked, err := b.qualifier.Qualify(ctx, fresh, queryContext)
		if err != nil {
			b.logger.Warn("top-up qualification failed, keeping raw items", "error", err)
		} else if len(picked) > 0 {
			fresh = picked
		}
	}

	merged := listing.MergeByID(current, fresh)
	if err := b.store.Set(key, merged); err != nil {
		b.logger.Warn("caching topped-up pool failed", "key", key, "error", err)
	}

	added := len(merged) - len(current)
	b.logger.Info("top-up merged", "item_type", itemType, "added", added)
	return Result{Items: merged, Qualified: true, Notice: fmt.Sprintf("%d new items", added)}, nil
}
