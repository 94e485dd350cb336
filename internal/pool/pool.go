// Package pool assembles the listing pools behind the curated and
// searched views: multi-keyword concurrent acquisition, dedup, the AI
// qualification pass with its fallback policy, and the cache handoff.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dealradar/internal/cachestore"
	"dealradar/internal/listing"
	"dealradar/internal/qualify"
	"dealradar/internal/score"
	"dealradar/internal/source"
	"dealradar/internal/terms"
)

var (
	// ErrInFlight means a load for the same view is already running.
	// Triggers racing a load should be dropped, not duplicated.
	ErrInFlight = errors.New("load already in flight for this view")

	// ErrAllSourcesFailed means every keyword search in a cycle failed
	// with a transient error.
	ErrAllSourcesFailed = errors.New("all keyword searches failed")
)

// Notices surfaced as informational toasts, never as errors.
const (
	NoticeUnranked   = "Showing unranked results"
	NoticeAIEmpty    = "AI found nothing new, showing everything"
	NoticeNoNewItems = "No new items found"
)

// Source is the listing search dependency.
type Source interface {
	Search(ctx context.Context, itemType listing.ItemType, keyword string, offset, limit int) ([]listing.Listing, error)
}

// Config tunes pool acquisition.
type Config struct {
	MinPoolSize      int           // minimum active items before top-up triggers
	MinQualified     int           // below this, pad the AI selection with raw items
	DesiredSize      int           // padding target and display cap
	BatchSize        int           // keywords fetched concurrently per round
	MaxKeywords      int           // attempted-keyword budget per cycle
	PageSize         int           // items requested per keyword search
	OverfetchFactor  float64       // raw target = factor x MinPoolSize
	RawOnEmptyAI     bool          // AI returns zero: fall back to raw (true) or show empty
	CuratedTTL       time.Duration
	SearchedTTL      time.Duration
	SoftRefreshAfter time.Duration // deals only: cache age that triggers a quiet top-up
}

func (c Config) withDefaults() Config {
	if c.MinPoolSize <= 0 {
		c.MinPoolSize = 24
	}
	if c.MinQualified <= 0 {
		c.MinQualified = 8
	}
	if c.DesiredSize <= 0 {
		c.DesiredSize = c.MinPoolSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 4
	}
	if c.MaxKeywords <= 0 {
		c.MaxKeywords = 12
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.OverfetchFactor <= 1 {
		c.OverfetchFactor = 2.0
	}
	if c.CuratedTTL <= 0 {
		c.CuratedTTL = time.Hour
	}
	if c.SearchedTTL <= 0 {
		c.SearchedTTL = 5 * time.Minute
	}
	if c.SoftRefreshAfter <= 0 {
		c.SoftRefreshAfter = 30 * time.Minute
	}
	return c
}

// Result is what a load hands to the presentation layer.
type Result struct {
	Items     []listing.Listing
	FromCache bool
	Qualified bool   // true when the AI pass shaped the result
	Notice    string // informational, distinct from errors
}

// Builder drives acquisition for one browsing session. The sampler's
// attempt set is shared between the initial load and top-ups so keywords
// are never repeated within a session.
type Builder struct {
	source    Source
	qualifier qualify.Qualifier // nil disables the AI pass
	store     *cachestore.Store
	sampler   *terms.Sampler
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
	toppedUp map[string]bool
}

// NewBuilder wires a Builder. qualifier may be nil when AI is not
// configured; every path then degrades to raw results.
func NewBuilder(src Source, qualifier qualify.Qualifier, store *cachestore.Store, sampler *terms.Sampler, cfg Config, logger *slog.Logger) *Builder {
	return &Builder{
		source:    src,
		qualifier: qualifier,
		store:     store,
		sampler:   sampler,
		cfg:       cfg.withDefaults(),
		logger:    logger.With("component", "pool"),
		now:       time.Now,
		inflight:  make(map[string]bool),
		toppedUp:  make(map[string]bool),
	}
}

// LoadCurated builds the no-query pool for itemType: cache first, then the
// multi-keyword acquisition cycle. A fresh load re-arms the one top-up
// attempt for this view.
func (b *Builder) LoadCurated(ctx context.Context, itemType listing.ItemType) (Result, error) {
	key := cachestore.CuratedKey(itemType)
	if !b.acquire(key) {
		return Result{}, ErrInFlight
	}
	defer b.release(key)

	b.mu.Lock()
	delete(b.toppedUp, key)
	b.mu.Unlock()

	if items, ok := b.store.Get(key, b.cfg.CuratedTTL); ok {
		active := listing.FilterActive(items, b.now())
		if len(active) > 0 {
			return Result{Items: active, FromCache: true, Qualified: true}, nil
		}
		b.store.Delete(key)
	}

	raw, err := b.gatherRaw(ctx, itemType)
	if err != nil {
		return Result{}, err
	}
	if len(raw) == 0 {
		return Result{}, nil // not an error: drives the empty state
	}

	queryContext := "curated " + string(itemType) + " browsing, no specific query"
	res := b.qualifyWithFallback(ctx, raw, queryContext)

	if len(res.Items) > 0 {
		if err := b.store.Set(key, res.Items); err != nil {
			b.logger.Warn("caching curated pool failed", "key", key, "error", err)
		}
	}
	return res, nil
}

// Search handles an explicit query: one source fetch, the AI pass with the
// literal query as context, and the shared padding policy. Only the first
// page is cached; deeper offsets are pagination, not a view of their own.
func (b *Builder) Search(ctx context.Context, itemType listing.ItemType, query string, offset int) (Result, error) {
	normalized := cachestore.NormalizeQuery(query)
	key := cachestore.SearchedKey(itemType, normalized)

	if offset == 0 {
		if !b.acquire(key) {
			return Result{}, ErrInFlight
		}
		defer b.release(key)

		if items, ok := b.store.Get(key, b.cfg.SearchedTTL); ok {
			active := listing.FilterActive(items, b.now())
			if len(active) > 0 {
				return Result{Items: active, FromCache: true, Qualified: true}, nil
			}
			b.store.Delete(key)
		}
	}

	raw, err := b.source.Search(ctx, itemType, normalized, offset, b.cfg.PageSize)
	if err != nil {
		if errors.Is(err, source.ErrAuth) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("searching %q: %w", normalized, err)
	}
	raw = listing.FilterActive(raw, b.now())
	if len(raw) == 0 {
		return Result{}, nil
	}

	res := b.qualifyWithFallback(ctx, raw, normalized)
	if offset == 0 && len(res.Items) > 0 {
		if err := b.store.Set(key, res.Items); err != nil {
			b.logger.Warn("caching search result failed", "key", key, "error", err)
		}
	}
	return res, nil
}

// gatherRaw runs the keyword sampling loop: batches of unattempted terms,
// concurrent searches, first-seen-wins dedup, until the raw pool hits the
// overfetch target or the keyword budget runs out. One bad keyword is
// skipped; an auth failure aborts the whole cycle.
func (b *Builder) gatherRaw(ctx context.Context, itemType listing.ItemType) ([]listing.Listing, error) {
	target := int(b.cfg.OverfetchFactor * float64(b.cfg.MinPoolSize))
	seen := make(map[string]bool)
	var pool []listing.Listing
	attempted, succeeded, failed := 0, 0, 0

	for len(pool) < target && attempted < b.cfg.MaxKeywords {
		want := b.cfg.BatchSize
		if rest := b.cfg.MaxKeywords - attempted; rest < want {
			want = rest
		}
		batch := b.sampler.NextBatch(want)
		if len(batch) == 0 {
			break // vocabulary exhausted
		}
		attempted += len(batch)

		results := b.fetchBatch(ctx, itemType, batch)
		now := b.now()
		for _, r := range results {
			if r.err != nil {
				if errors.Is(r.err, source.ErrAuth) {
					return nil, r.err
				}
				failed++
				b.logger.Warn("keyword search failed", "keyword", r.keyword, "error", r.err)
				continue
			}
			succeeded++
			for _, l := range r.items {
				if l.ID == "" || seen[l.ID] || !l.Active(now) {
					continue
				}
				seen[l.ID] = true
				pool = append(pool, l)
			}
		}
	}

	if succeeded == 0 && failed > 0 {
		return nil, ErrAllSourcesFailed
	}

	b.logger.Info("raw pool assembled",
		"item_type", itemType,
		"keywords", attempted,
		"failed", failed,
		"pool_size", len(pool),
	)
	return pool, nil
}

type keywordResult struct {
	keyword string
	items   []listing.Listing
	err     error
}

// fetchBatch issues one concurrent search per keyword and awaits them all.
// Branches never cancel each other; auth failures are sorted out by the
// caller after the batch settles.
func (b *Builder) fetchBatch(ctx context.Context, itemType listing.ItemType, keywords []string) []keywordResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []keywordResult
	)

	for _, kw := range keywords {
		wg.Add(1)
		go func(keyword string) {
			defer wg.Done()
			items, err := b.source.Search(ctx, itemType, keyword, 0, b.cfg.PageSize)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, keywordResult{keyword: keyword, items: items, err: err})
		}(kw)
	}

	wg.Wait()
	return results
}

// qualifyWithFallback runs the AI pass and applies the shared
// fallback/padding policy. It never returns an error: the worst case is
// raw, unqualified results plus a notice.
func (b *Builder) qualifyWithFallback(ctx context.Context, raw []listing.Listing, queryContext string) Result {
	if b.qualifier == nil {
		return Result{Items: capItems(raw, b.cfg.DesiredSize)}
	}

	picked, err := b.qualifier.Qualify(ctx, raw, queryContext)
	if err != nil {
		b.logger.Warn("qualification failed, falling back to raw", "error", err)
		return Result{Items: capItems(raw, b.cfg.DesiredSize), Notice: NoticeUnranked}
	}

	if len(picked) == 0 {
		if b.cfg.RawOnEmptyAI {
			return Result{Items: capItems(raw, b.cfg.DesiredSize), Notice: NoticeAIEmpty}
		}
		return Result{Qualified: true}
	}

	if len(picked) < b.cfg.MinQualified && len(picked) < len(raw) {
		picked = padWithRaw(picked, raw, b.cfg.DesiredSize, b.now())
	}
	return Result{Items: picked, Qualified: true}
}

// padWithRaw appends unselected raw items, best local score first, until
// the set reaches min(desired, len(raw)). The AI-selected prefix keeps
// its order.
func padWithRaw(picked, raw []listing.Listing, desired int, now time.Time) []listing.Listing {
	if desired > len(raw) {
		desired = len(raw)
	}
	if len(picked) >= desired {
		return picked
	}

	selected := make(map[string]bool, len(picked))
	for _, l := range picked {
		selected[l.ID] = true
	}

	var rest []listing.Listing
	for _, l := range raw {
		if !selected[l.ID] {
			rest = append(rest, l)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return score.Deal(rest[i], now) > score.Deal(rest[j], now)
	})

	for _, l := range rest {
		if len(picked) >= desired {
			break
		}
		picked = append(picked, l)
	}
	return picked
}

func capItems(items []listing.Listing, n int) []listing.Listing {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// acquire marks a view key as loading. Returns false when a load for the
// same key is already running, so callers coalesce instead of doubling
// network traffic.
func (b *Builder) acquire(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight[key] {
		return false
	}
	b.inflight[key] = true
	return true
}

func (b *Builder) release(key string) {
	b.mu.Lock()
	delete(b.inflight, key)
	b.mu.Unlock()
}
