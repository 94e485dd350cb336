package qualify

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"dealradar/internal/listing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSelections(t *testing.T) {
	text := `Here are my picks:

PICK: abc | RARITY: 85 | RISK: 20
- PICK: def | RARITY: 40 | RISK: 70
* PICK: ghi
Some commentary the model added.
PICK:  | RARITY: 50
RARITY: 10 | RISK: 10`

	sels := parseSelections(text)
	if len(sels) != 3 {
		t.Fatalf("expected 3 selections, got %d", len(sels))
	}
	if sels[0].id != "abc" || sels[0].rarity == nil || *sels[0].rarity != 85 || *sels[0].risk != 20 {
		t.Errorf("first selection wrong: %+v", sels[0])
	}
	if sels[1].id != "def" {
		t.Errorf("bulleted line not parsed: %+v", sels[1])
	}
	if sels[2].id != "ghi" || sels[2].rarity != nil || sels[2].risk != nil {
		t.Errorf("score-less pick wrong: %+v", sels[2])
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"50", listing.IntPtr(50)},
		{" 0 ", listing.IntPtr(0)},
		{"100", listing.IntPtr(100)},
		{"101", nil},
		{"-3", nil},
		{"high", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := parseScore(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseScore(%q) = %d, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseScore(%q) = %v, want %d", tt.in, got, *tt.want)
		}
	}
}

func TestApplySelectionsDropsUnknownAndDuplicates(t *testing.T) {
	items := []listing.Listing{
		{ID: "a", Type: listing.TypeAuction},
		{ID: "b", Type: listing.TypeAuction},
	}
	sels := []selection{
		{id: "b", rarity: listing.IntPtr(70)},
		{id: "made-up"},
		{id: "b"},
		{id: "a"},
	}

	out := applySelections(items, sels, false, discardLogger())
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].ID != "b" || out[1].ID != "a" {
		t.Errorf("model order not kept: %s, %s", out[0].ID, out[1].ID)
	}
	if out[0].RarityScore == nil || *out[0].RarityScore != 70 {
		t.Error("rarity not applied")
	}
}

func TestApplySelectionsRankOnlyKeepsEverything(t *testing.T) {
	items := []listing.Listing{
		{ID: "a", Type: listing.TypeDeal},
		{ID: "b", Type: listing.TypeDeal},
		{ID: "c", Type: listing.TypeDeal},
	}
	sels := []selection{{id: "c"}}

	out := applySelections(items, sels, true, discardLogger())
	if len(out) != 3 {
		t.Fatalf("rank-only mode dropped items: got %d", len(out))
	}
	// Ranked prefix first, then the dropped ones in input order
	if out[0].ID != "c" || out[1].ID != "a" || out[2].ID != "b" {
		t.Errorf("unexpected order: %s, %s, %s", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestBuildPromptPicksVariant(t *testing.T) {
	auctions := []listing.Listing{{ID: "a", Type: listing.TypeAuction, Title: "Watch"}}
	deals := []listing.Listing{{ID: "d", Type: listing.TypeDeal, Title: "Camera"}}

	if p := buildPrompt(auctions, "ctx"); !strings.Contains(p, "RARITY") {
		t.Error("auction prompt should ask for rarity/risk scores")
	}
	if p := buildPrompt(deals, "ctx"); strings.Contains(p, "RARITY") {
		t.Error("deal prompt should be rank-only")
	}
	if p := buildPrompt(deals, ""); !strings.Contains(p, "general browsing") {
		t.Error("empty query context should get the default")
	}
}

func TestNewProviderSelection(t *testing.T) {
	log := discardLogger()

	if _, err := New(Config{Provider: "claude"}, "", log); err == nil {
		t.Error("empty API key should fail")
	}
	if _, err := New(Config{Provider: "gemini"}, "key", log); err == nil {
		t.Error("unknown provider should fail")
	}
	if q, err := New(Config{Provider: "claude"}, "key", log); err != nil || q == nil {
		t.Errorf("claude provider: %v", err)
	}
	if q, err := New(Config{Provider: "openai"}, "key", log); err != nil || q == nil {
		t.Errorf("openai provider: %v", err)
	}
}
