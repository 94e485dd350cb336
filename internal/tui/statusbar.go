package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(itemCount int, viewLabel, filterLabel string, width int, searching, loading, qualifying bool) string {
	left := fmt.Sprintf(" %d items · %s", itemCount, viewLabel)
	if filterLabel != "All" {
		left += " · " + filterLabel
	}
	if qualifying {
		left += " (qualifying...)"
	} else if loading {
		left += " (loading...)"
	}

	right := " / search  d deals  a auctions  f filter  o open  q quit "
	if searching {
		right = " esc cancel  enter search "
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}
