// Package terms supplies the keyword vocabulary that drives curated
// acquisition. A Sampler hands out terms without replacement so one
// acquisition session never repeats a keyword.
package terms

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"
)

// Vocabulary is the fixed curated-terms list. Broad, high-inventory
// categories that tend to surface discounted or collectible items.
var Vocabulary = []string{
	"vintage camera", "mechanical keyboard", "retro console", "vinyl records",
	"graphics card", "smart watch", "noise cancelling headphones", "lego set",
	"trading cards", "film lens", "turntable", "espresso machine",
	"gaming laptop", "drone", "fountain pen", "cast iron skillet",
	"air fryer", "robot vacuum", "electric scooter", "acoustic guitar",
	"synthesizer", "comic books", "wristwatch automatic", "power tools",
	"road bike", "telescope", "board games", "action figures",
	"bluetooth speaker", "ssd drive", "monitor ultrawide", "tablet",
	"sewing machine", "dash cam", "projector", "hiking backpack",
	"chess set", "model trains", "record player", "instant camera",
}

// Sampler draws distinct terms from the vocabulary at random. It is safe
// for concurrent use; the attempted set lives for one browsing session.
type Sampler struct {
	mu        sync.Mutex
	rng       *rand.Rand
	pool      []string
	attempted map[string]bool
}

// NewSampler creates a sampler over the fixed vocabulary plus any extra
// terms (duplicates are ignored).
func NewSampler(seed int64, extra ...string) *Sampler {
	seen := make(map[string]bool, len(Vocabulary)+len(extra))
	pool := make([]string, 0, len(Vocabulary)+len(extra))
	for _, t := range Vocabulary {
		if !seen[t] {
			seen[t] = true
			pool = append(pool, t)
		}
	}
	for _, t := range extra {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		if t != "" && !seen[t] {
			seen[t] = true
			pool = append(pool, t)
		}
	}
	return &Sampler{
		rng:       rand.New(rand.NewSource(seed)),
		pool:      pool,
		attempted: make(map[string]bool),
	}
}

// Next returns a random term not yet handed out this session. ok is false
// once the vocabulary is exhausted.
func (s *Sampler) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]string, 0, len(s.pool))
	for _, t := range s.pool {
		if !s.attempted[t] {
			remaining = append(remaining, t)
		}
	}
	if len(remaining) == 0 {
		return "", false
	}
	term := remaining[s.rng.Intn(len(remaining))]
	s.attempted[term] = true
	return term, true
}

// NextBatch returns up to n distinct unattempted terms. The batch may be
// shorter when the vocabulary runs dry.
func (s *Sampler) NextBatch(n int) []string {
	var batch []string
	for len(batch) < n {
		term, ok := s.Next()
		if !ok {
			break
		}
		batch = append(batch, term)
	}
	return batch
}

// Attempted returns how many terms this session has consumed.
func (s *Sampler) Attempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempted)
}

// Trending fetches a marketplace trends feed and extracts extra keyword
// candidates from item titles. Failures are the caller's problem to
// ignore; trending terms are a bonus, never a requirement.
func Trending(ctx context.Context, feedURL string) ([]string, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, item := range feed.Items {
		term := titleTerm(item.Title)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
		if len(out) >= 20 {
			break
		}
	}
	return out, nil
}

// titleTerm reduces a feed item title to a short search keyword: the
// first three words, lowercased, punctuation stripped.
func titleTerm(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	if len(fields) > 3 {
		fields = fields[:3]
	}
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,:;!?\"'()[]")
	}
	term := strings.Join(fields, " ")
	if len(term) < 3 {
		return ""
	}
	return term
}
