package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dealradar/internal/categorize"
)

type filterBar struct {
	categories   []categorize.Category
	active       map[categorize.Category]bool
	filterMode   bool
	filterCursor int
}

func newFilterBar() filterBar {
	return filterBar{
		categories: categorize.AllCategories(),
		active:     make(map[categorize.Category]bool),
	}
}

func (f *filterBar) toggle(cat categorize.Category) {
	if f.active[cat] {
		delete(f.active, cat)
	} else {
		f.active[cat] = true
	}
}

func (f *filterBar) toggleCurrent() {
	if f.filterCursor < len(f.categories) {
		f.toggle(f.categories[f.filterCursor])
	}
}

// allows reports whether a category passes the current filter.
func (f *filterBar) allows(cat categorize.Category) bool {
	if len(f.active) == 0 {
		return true
	}
	return f.active[cat]
}

func (f *filterBar) activeLabel() string {
	if len(f.active) == 0 {
		return "All"
	}
	var parts []string
	for _, c := range f.categories {
		if f.active[c] {
			parts = append(parts, string(c))
		}
	}
	return strings.Join(parts, ", ")
}

func (f *filterBar) render(width int) string {
	sep := tabSeparatorStyle.Render(" · ")
	var parts []string

	if len(f.active) == 0 {
		parts = append(parts, tabActiveStyle.Render("All"))
	} else {
		parts = append(parts, tabInactiveStyle.Render("All"))
	}

	for i, c := range f.categories {
		style := tabInactiveStyle
		if f.active[c] {
			style = tabActiveStyle
		}
		label := string(c)
		if f.filterMode && i == f.filterCursor {
			label = "[" + label + "]"
		}
		parts = append(parts, style.Render(label))
	}

	var row string
	for i, part := range parts {
		candidate := row
		if i > 0 {
			candidate += sep
		}
		candidate += part
		if lipgloss.Width(candidate) > width && row != "" {
			break
		}
		row = candidate
	}

	barStyle := lipgloss.NewStyle().
		Background(colorSurface).
		Width(width).
		PaddingLeft(1)
	return barStyle.Render(row)
}
