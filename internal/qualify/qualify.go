// Package qualify wraps the generative ranking/qualification call. Model
// output is never trusted: unknown ids are dropped, duplicates collapsed,
// out-of-range scores discarded. Fallback on failure is the caller's job.
package qualify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealradar/internal/listing"
)

// Qualifier selects, reorders and annotates listings for display. The
// returned slice is a validated subset/permutation of the input; it may be
// smaller than the input for auctions but never for deals (rank-only mode).
type Qualifier interface {
	Qualify(ctx context.Context, items []listing.Listing, queryContext string) ([]listing.Listing, error)
}

// Config selects the provider and model.
type Config struct {
	Provider string // "claude" or "openai"
	Model    string
}

// New creates a Qualifier from the given config.
func New(cfg Config, apiKey string, logger *slog.Logger) (Qualifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AI not configured")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	log := logger.With("component", "qualify")

	switch cfg.Provider {
	case "claude":
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return &claudeProvider{apiKey: apiKey, model: model, client: client, logger: log}, nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return &openaiProvider{apiKey: apiKey, model: model, client: client, logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: claude, openai)", cfg.Provider)
	}
}

const qualifyAuctionsPrompt = `You are vetting live marketplace auctions for a curated collectors view.
Context: %s

Pick only auctions that look genuinely interesting and safe to bid on. Judge by title, price vs. bid count, and seller track record. For each pick, rate rarity and bidding risk from 0 to 100.

Respond with one line per pick, best first, EXACTLY in this format:
PICK: <id> | RARITY: <0-100> | RISK: <0-100>

Auctions:
%s`

const rankDealsPrompt = `You are ranking marketplace deals for a bargain-hunting view.
Context: %s

Order ALL of the following deals from most to least attractive. Judge by real discount, price sanity and seller track record. Do not drop any deal.

Respond with one line per deal, best first, EXACTLY in this format:
PICK: <id>

Deals:
%s`

func buildPrompt(items []listing.Listing, queryContext string) string {
	if queryContext == "" {
		queryContext = "general browsing, no specific query"
	}
	if len(items) > 0 && items[0].Type == listing.TypeAuction {
		return fmt.Sprintf(qualifyAuctionsPrompt, queryContext, formatItems(items))
	}
	return fmt.Sprintf(rankDealsPrompt, queryContext, formatItems(items))
}

func formatItems(items []listing.Listing) string {
	var sb strings.Builder
	for _, l := range items {
		fmt.Fprintf(&sb, "- id=%s | %s | price=%.2f", l.ID, l.Title, l.Price)
		if l.DiscountPercentage > 0 {
			fmt.Fprintf(&sb, " | discount=%d%%", l.DiscountPercentage)
		}
		fmt.Fprintf(&sb, " | seller=%.0f%% (%d)", l.SellerReputation, l.SellerFeedback)
		if l.Type == listing.TypeAuction {
			fmt.Fprintf(&sb, " | bids=%d", l.BidCount)
			if !l.EndTime.IsZero() {
				fmt.Fprintf(&sb, " | ends=%s", l.EndTime.Format(time.RFC3339))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

type selection struct {
	id     string
	rarity *int
	risk   *int
}

// parseSelections extracts PICK lines from the raw model response. Lines
// that don't carry an id are skipped.
func parseSelections(text string) []selection {
	var sels []selection
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "•-* ")
		idx := strings.Index(line, "PICK:")
		if idx < 0 {
			continue
		}
		var sel selection
		for _, field := range strings.Split(line[idx:], "|") {
			field = strings.TrimSpace(field)
			switch {
			case strings.HasPrefix(field, "PICK:"):
				sel.id = strings.TrimSpace(strings.TrimPrefix(field, "PICK:"))
			case strings.HasPrefix(field, "RARITY:"):
				sel.rarity = parseScore(strings.TrimPrefix(field, "RARITY:"))
			case strings.HasPrefix(field, "RISK:"):
				sel.risk = parseScore(strings.TrimPrefix(field, "RISK:"))
			}
		}
		if sel.id != "" {
			sels = append(sels, sel)
		}
	}
	return sels
}

// parseScore returns nil for anything outside 0-100 rather than clamping:
// a score the model got wrong is a score we don't have.
func parseScore(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 || v > 100 {
		return nil
	}
	return &v
}

// applySelections maps validated selections back onto the input set.
// Unknown ids are anomalies, not fatal. In rank-only mode every input item
// the model dropped is appended after the ranked prefix, in input order.
func applySelections(items []listing.Listing, sels []selection, rankOnly bool, logger *slog.Logger) []listing.Listing {
	byID := make(map[string]listing.Listing, len(items))
	for _, l := range items {
		byID[l.ID] = l
	}

	seen := make(map[string]bool, len(sels))
	out := make([]listing.Listing, 0, len(items))
	for _, sel := range sels {
		if seen[sel.id] {
			continue
		}
		l, ok := byID[sel.id]
		if !ok {
			logger.Warn("model returned unknown listing id", "id", sel.id)
			continue
		}
		seen[sel.id] = true
		l.RarityScore = sel.rarity
		l.RiskScore = sel.risk
		out = append(out, l)
	}

	if rankOnly {
		for _, l := range items {
			if !seen[l.ID] {
				out = append(out, l)
			}
		}
	}
	return out
}

func qualifyWith(ctx context.Context, call func(context.Context, string) (string, error), items []listing.Listing, queryContext string, logger *slog.Logger) ([]listing.Listing, error) {
	if len(items) == 0 {
		return nil, nil
	}
	text, err := call(ctx, buildPrompt(items, queryContext))
	if err != nil {
		return nil, err
	}
	rankOnly := items[0].Type == listing.TypeDeal
	return applySelections(items, parseSelections(text), rankOnly, logger), nil
}

// --- Claude provider ---

type claudeProvider struct {
	apiKey string
	model  string
	client *http.Client
	logger *slog.Logger
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *claudeProvider) Qualify(ctx context.Context, items []listing.Listing, queryContext string) ([]listing.Listing, error) {
	return qualifyWith(ctx, c.call, items, queryContext, c.logger)
}

func (c *claudeProvider) call(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("claude API %d: %s", resp.StatusCode, string(b))
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return cr.Content[0].Text, nil
}

// --- OpenAI provider ---

type openaiProvider struct {
	apiKey string
	model  string
	client *http.Client
	logger *slog.Logger
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openaiProvider) Qualify(ctx context.Context, items []listing.Listing, queryContext string) ([]listing.Listing, error) {
	return qualifyWith(ctx, o.call, items, queryContext, o.logger)
}

func (o *openaiProvider) call(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(openaiRequest{
		Model:    o.model,
		Messages: []openaiMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai API %d: %s", resp.StatusCode, string(b))
	}

	var or openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", err
	}
	if len(or.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	return or.Choices[0].Message.Content, nil
}
