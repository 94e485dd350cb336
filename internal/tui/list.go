package tui

import (
	"fmt"
	"strings"
	"time"

	"dealradar/internal/listing"
	"dealradar/internal/score"
)

func formatTimeLeft(l listing.Listing, now time.Time) string {
	if l.Type != listing.TypeAuction {
		return ""
	}
	left := l.TimeLeft(now)
	if left <= 0 {
		return "ended"
	}
	switch {
	case left < time.Minute:
		return fmt.Sprintf("%ds left", int(left.Seconds()))
	case left < time.Hour:
		return fmt.Sprintf("%dm %ds left", int(left.Minutes()), int(left.Seconds())%60)
	case left < 24*time.Hour:
		return fmt.Sprintf("%dh %dm left", int(left.Hours()), int(left.Minutes())%60)
	default:
		days := int(left.Hours()) / 24
		return fmt.Sprintf("%dd %dh left", days, int(left.Hours())%24)
	}
}

func renderListItem(l listing.Listing, selected bool, width int, now time.Time) string {
	if width < 10 {
		width = 30
	}

	var title string
	if selected {
		title = itemSelectedStyle.Render("> " + truncateStr(l.Title, width-4))
	} else {
		title = itemTitleStyle.Render("  " + truncateStr(l.Title, width-4))
	}

	meta := "  " + itemPriceStyle.Render(fmt.Sprintf("$%.2f", l.Price))
	if l.DiscountPercentage > 0 {
		meta += " " + discountBadgeStyle.Render(fmt.Sprintf("-%d%%", l.DiscountPercentage))
	}
	if l.Type == listing.TypeAuction {
		meta += " " + itemMetaStyle.Render(fmt.Sprintf("· %d bids", l.BidCount))
		meta += " " + countdownStyle.Render("· "+formatTimeLeft(l, now))
	} else {
		meta += " " + itemMetaStyle.Render(fmt.Sprintf("· %.0f%% seller", l.SellerReputation))
	}

	return title + "\n" + meta
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func renderList(items []listing.Listing, cursor int, height int, width int, now time.Time) string {
	if len(items) == 0 {
		return lipglossCenter("No items found", width, height)
	}

	// Each item is 2 lines + 1 blank line = 3 lines
	itemHeight := 3
	visible := height / itemHeight
	if visible < 1 {
		visible = 1
	}

	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := start + visible
	if end > len(items) {
		end = len(items)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(renderListItem(items[i], i == cursor, width, now))
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderPreview(l *listing.Listing, width, height, scroll int, now time.Time) string {
	if l == nil {
		return lipglossCenter("Select an item", width, height)
	}

	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := previewTitleStyle.Width(contentWidth).Render(l.Title)

	meta := fmt.Sprintf("$%.2f", l.Price)
	if l.OriginalPrice > l.Price {
		meta += fmt.Sprintf("  (was $%.2f, -%d%%)", l.OriginalPrice, l.DiscountPercentage)
	}
	if l.Condition != "" {
		meta += " · " + l.Condition
	}
	header := previewMetaStyle.Render(meta)

	var facts []string
	facts = append(facts, fmt.Sprintf("Seller: %.0f%% positive (%d ratings)", l.SellerReputation, l.SellerFeedback))
	if l.Type == listing.TypeAuction {
		facts = append(facts, fmt.Sprintf("Bids: %d · %s", l.BidCount, formatTimeLeft(*l, now)))
	}
	if l.RarityScore != nil {
		risk := "?"
		if l.RiskScore != nil {
			risk = fmt.Sprintf("%d", *l.RiskScore)
		}
		facts = append(facts, fmt.Sprintf("AI rarity: %d/100 · risk: %s/100", *l.RarityScore, risk))
	}
	facts = append(facts, fmt.Sprintf("Deal score: %.1f/10", score.Deal(*l, now)))

	desc := l.Description
	if desc == "" {
		desc = "(No description available)"
	}

	body := previewBodyStyle.Width(contentWidth).Render(wrapText(desc, contentWidth))
	factBlock := itemMetaStyle.Width(contentWidth).Render(strings.Join(facts, "\n"))
	link := previewLinkStyle.Width(contentWidth).Render("Open: " + l.URL)

	content := strings.Join([]string{title, header, factBlock, "", body, "", link}, "\n")

	lines := strings.Split(content, "\n")
	if scroll > 0 && scroll < len(lines) {
		lines = lines[scroll:]
	}

	if len(lines) < height {
		lines = append(lines, make([]string, height-len(lines))...)
	} else if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
		} else {
			line += " " + w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func lipglossCenter(s string, width, height int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat("\n", height/3) + strings.Repeat(" ", pad) + s
}
