package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dealradar/internal/browser"
	"dealradar/internal/cachestore"
	"dealradar/internal/categorize"
	"dealradar/internal/config"
	"dealradar/internal/expiry"
	"dealradar/internal/listing"
	"dealradar/internal/pool"
	"dealradar/internal/source"
	"dealradar/internal/update"
)

type focusPane int

const (
	focusList focusPane = iota
	focusPreview
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeFilter
	modeHelp
)

type App struct {
	cfg        *config.Config
	builder    *pool.Builder
	store      *cachestore.Store
	reconciler *expiry.Reconciler

	itemType listing.ItemType
	query    string // "" = curated view
	items    []listing.Listing
	cats     map[string]categorize.Category
	cursor   int
	offset   int
	focus    focusPane
	mode     mode

	width  int
	height int

	searchInput textinput.Model
	spinner     spinner.Model
	filterBar   filterBar

	// reqID is the active request generation. Results stamped with an
	// older generation are dropped on arrival.
	reqID int

	loading       bool
	qualifying    bool
	ticking       bool
	previewScroll int
	notice        string
	err           error
	authErr       bool
	version       string
	updateVersion string
	currentDate   string
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Cfg        *config.Config
	Builder    *pool.Builder
	Store      *cachestore.Store
	Reconciler *expiry.Reconciler
	ItemType   listing.ItemType
	Query      string
	Version    string
}

func NewApp(opts RunOpts) *App {
	ti := textinput.New()
	ti.Placeholder = "Search the marketplace..."
	ti.Prompt = searchPromptStyle.Render("/ ")
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	itemType := opts.ItemType
	if !itemType.Valid() {
		itemType = listing.TypeDeal
	}

	return &App{
		cfg:         opts.Cfg,
		builder:     opts.Builder,
		store:       opts.Store,
		reconciler:  opts.Reconciler,
		itemType:    itemType,
		query:       opts.Query,
		cats:        make(map[string]categorize.Category),
		searchInput: ti,
		spinner:     sp,
		filterBar:   newFilterBar(),
		version:     opts.Version,
		currentDate: time.Now().Format("Jan 2"),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.startLoad(a.itemType, a.query, false),
		a.waitExpiry(),
		a.spinner.Tick,
		checkUpdate(a.version),
	)
}

// startLoad bumps the request generation and kicks off a load for the
// given view. Whatever was in flight for the previous view is superseded.
func (a *App) startLoad(itemType listing.ItemType, query string, appended bool) tea.Cmd {
	a.reqID++
	req := a.reqID
	a.loading = true
	a.qualifying = query == "" || !appended
	a.authErr = false
	a.err = nil

	builder := a.builder
	offset := 0
	if appended {
		offset = a.offset
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		var (
			res pool.Result
			err error
		)
		if query == "" {
			res, err = builder.LoadCurated(ctx, itemType)
		} else {
			res, err = builder.Search(ctx, itemType, query, offset)
		}
		if err != nil {
			if errors.Is(err, pool.ErrInFlight) {
				return nil // coalesced: the running load will report
			}
			return loadErrMsg{req: req, err: err, authFail: errors.Is(err, source.ErrAuth)}
		}
		return loadedMsg{req: req, res: res, itemType: itemType, query: query, appended: appended}
	}
}

func (a *App) startTopUp() tea.Cmd {
	req := a.reqID
	builder := a.builder
	itemType := a.itemType
	current := a.items

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		res, err := builder.TopUp(ctx, itemType, current)
		if err != nil {
			if errors.Is(err, pool.ErrInFlight) {
				return nil
			}
			return loadErrMsg{req: req, err: err, authFail: errors.Is(err, source.ErrAuth)}
		}
		return topUpMsg{req: req, res: res}
	}
}

// waitExpiry blocks on the reconciler's channel and re-arms after every
// delivered event.
func (a *App) waitExpiry() tea.Cmd {
	r := a.reconciler
	return func() tea.Msg {
		id, ok := <-r.Expired()
		if !ok {
			return nil
		}
		return itemExpiredMsg{id: id}
	}
}

func clearNoticeAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearNoticeMsg{} })
}

func countdownTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return countdownTickMsg(t) })
}

func checkUpdate(current string) tea.Cmd {
	return func() tea.Msg {
		if res := update.Check(context.Background(), current); res != nil {
			return updateAvailableMsg{version: res.LatestVersion}
		}
		return nil
	}
}

func openBrowserCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if err := browser.Open(url); err != nil {
			return loadErrMsg{err: err}
		}
		return nil
	}
}

// activeKey is the cache key backing the current view.
func (a *App) activeKey() string {
	if a.query == "" {
		return cachestore.CuratedKey(a.itemType)
	}
	return cachestore.SearchedKey(a.itemType, a.query)
}

// setItems replaces (or extends) the displayed set, recomputes categories
// and registers auction end times with the reconciler.
func (a *App) setItems(items []listing.Listing, appended bool) {
	if appended {
		a.items = listing.MergeByID(a.items, items)
	} else {
		a.items = items
		a.cats = make(map[string]categorize.Category, len(items))
		a.cursor = 0
		a.previewScroll = 0
	}
	for _, l := range a.items {
		if _, ok := a.cats[l.ID]; !ok {
			a.cats[l.ID] = categorize.Classify(l.Title, l.Description)
		}
		if l.Type == listing.TypeAuction {
			a.reconciler.Track(l.ID, l.EndTime)
		}
	}
}

// visibleItems applies the category filter.
func (a *App) visibleItems() []listing.Listing {
	if len(a.filterBar.active) == 0 {
		return a.items
	}
	var out []listing.Listing
	for _, l := range a.items {
		if a.filterBar.allows(a.cats[l.ID]) {
			out = append(out, l)
		}
	}
	return out
}

func (a *App) removeItem(id string) {
	kept := a.items[:0]
	for _, l := range a.items {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	a.items = kept
	delete(a.cats, id)
	if a.cursor >= len(a.items) {
		a.cursor = max(0, len(a.items)-1)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case loadedMsg:
		if msg.req != a.reqID {
			return a, nil // superseded request, discard
		}
		a.loading = false
		a.qualifying = false
		a.setItems(msg.res.Items, msg.appended)

		var cmds []tea.Cmd
		if msg.res.Notice != "" {
			a.notice = msg.res.Notice
			cmds = append(cmds, clearNoticeAfter(4*time.Second))
		}
		if a.itemType == listing.TypeAuction && len(a.items) > 0 && !a.ticking {
			a.ticking = true
			cmds = append(cmds, countdownTick())
		}
		// Curated views get one quiet replenishment pass per load.
		if msg.query == "" && !msg.appended && a.builder.ShouldTopUp(msg.itemType, a.items) {
			cmds = append(cmds, a.startTopUp())
		}
		return a, tea.Batch(cmds...)

	case topUpMsg:
		if msg.req != a.reqID {
			return a, nil
		}
		a.setItems(msg.res.Items, true)
		if msg.res.Notice != "" {
			a.notice = msg.res.Notice
			return a, clearNoticeAfter(4 * time.Second)
		}
		return a, nil

	case loadErrMsg:
		if msg.req != 0 && msg.req != a.reqID {
			return a, nil
		}
		a.loading = false
		a.qualifying = false
		a.err = msg.err
		a.authErr = msg.authFail
		return a, nil

	case itemExpiredMsg:
		// Idempotent: an id we no longer display is a no-op, and the
		// cache removal tolerates absent ids too.
		a.removeItem(msg.id)
		a.store.RemoveItem(a.activeKey(), msg.id)
		return a, a.waitExpiry()

	case clearNoticeMsg:
		a.notice = ""
		return a, nil

	case countdownTickMsg:
		if a.itemType != listing.TypeAuction || len(a.items) == 0 {
			a.ticking = false
			return a, nil
		}
		return a, countdownTick()

	case updateAvailableMsg:
		a.updateVersion = msg.version
		return a, nil

	case spinner.TickMsg:
		if a.loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.mode {
	case modeSearch:
		return a.handleSearchKey(msg)
	case modeFilter:
		return a.handleFilterKey(msg)
	case modeHelp:
		if s := msg.String(); s == "?" || s == "esc" || s == "q" {
			a.mode = modeNormal
		}
		return a, nil
	}

	items := a.visibleItems()

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.focus == focusList && a.cursor < len(items)-1 {
			a.cursor++
			a.previewScroll = 0
		} else if a.focus == focusPreview {
			a.previewScroll++
		}
		return a, nil
	case "k", "up":
		if a.focus == focusList && a.cursor > 0 {
			a.cursor--
			a.previewScroll = 0
		} else if a.focus == focusPreview && a.previewScroll > 0 {
			a.previewScroll--
		}
		return a, nil
	case "tab":
		if a.focus == focusList {
			a.focus = focusPreview
		} else {
			a.focus = focusList
		}
		return a, nil
	case "o", "enter":
		if len(items) > 0 && a.cursor < len(items) {
			return a, openBrowserCmd(items[a.cursor].URL)
		}
		return a, nil
	case "/":
		a.mode = modeSearch
		a.searchInput.Focus()
		return a, textinput.Blink
	case "f":
		a.mode = modeFilter
		a.filterBar.filterMode = true
		return a, nil
	case "d":
		if a.itemType != listing.TypeDeal {
			a.itemType = listing.TypeDeal
			a.offset = 0
			return a, tea.Batch(a.startLoad(a.itemType, a.query, false), a.spinner.Tick)
		}
		return a, nil
	case "a":
		if a.itemType != listing.TypeAuction {
			a.itemType = listing.TypeAuction
			a.offset = 0
			return a, tea.Batch(a.startLoad(a.itemType, a.query, false), a.spinner.Tick)
		}
		return a, nil
	case "esc", "h":
		// Reset to the curated view; any in-flight search load is
		// superseded by the generation bump.
		if a.query != "" {
			a.query = ""
			a.offset = 0
			a.searchInput.SetValue("")
			return a, tea.Batch(a.startLoad(a.itemType, "", false), a.spinner.Tick)
		}
		return a, nil
	case "r":
		if !a.loading {
			a.store.Delete(a.activeKey())
			a.offset = 0
			return a, tea.Batch(a.startLoad(a.itemType, a.query, false), a.spinner.Tick)
		}
		return a, nil
	case "m":
		if a.query != "" && !a.loading {
			a.offset += a.cfg.Marketplace.PageSize
			return a, tea.Batch(a.startLoad(a.itemType, a.query, true), a.spinner.Tick)
		}
		return a, nil
	case "?":
		a.mode = modeHelp
		return a, nil
	}

	return a, nil
}

func (a *App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeNormal
		a.searchInput.SetValue("")
		a.searchInput.Blur()
		return a, nil
	case "enter":
		a.mode = modeNormal
		a.searchInput.Blur()
		query := strings.TrimSpace(a.searchInput.Value())
		if query == "" {
			return a, nil
		}
		a.query = query
		a.offset = 0
		return a, tea.Batch(a.startLoad(a.itemType, query, false), a.spinner.Tick)
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	return a, cmd
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "f":
		a.mode = modeNormal
		a.filterBar.filterMode = false
		return a, nil
	case "left", "h":
		if a.filterBar.filterCursor > 0 {
			a.filterBar.filterCursor--
		}
		return a, nil
	case "right", "l":
		if a.filterBar.filterCursor < len(a.filterBar.categories)-1 {
			a.filterBar.filterCursor++
		}
		return a, nil
	case " ", "enter":
		a.filterBar.toggleCurrent()
		a.cursor = 0
		return a, nil
	case "1", "2", "3", "4", "5", "6", "7":
		idx := int(msg.String()[0] - '1')
		if idx < len(a.filterBar.categories) {
			a.filterBar.toggle(a.filterBar.categories[idx])
			a.cursor = 0
		}
		return a, nil
	}
	return a, nil
}

func (a *App) viewLabel() string {
	label := "deals"
	if a.itemType == listing.TypeAuction {
		label = "auctions"
	}
	if a.query != "" {
		return fmt.Sprintf("%s: %q", label, a.query)
	}
	return "curated " + label
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  dealradar")
	}

	if a.mode == modeHelp {
		return a.renderHelp()
	}

	headerHeight := 1
	filterHeight := 1
	statusHeight := 1
	contentHeight := a.height - headerHeight - filterHeight - statusHeight - 4 // borders

	listWidth := int(float64(a.width) * 0.4)
	previewWidth := a.width - listWidth - 1

	if contentHeight < 3 {
		contentHeight = 3
	}

	headerLeft := headerStyle.Render("dealradar")
	if a.updateVersion != "" {
		headerLeft += itemMetaStyle.Render("  update available: v" + a.updateVersion)
	}
	headerRight := headerDateStyle.Render(a.currentDate)
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	filter := a.filterBar.render(a.width)
	if a.mode == modeSearch {
		filter = a.searchInput.View()
	}

	now := time.Now()
	items := a.visibleItems()

	innerListW := listWidth - 4
	listContent := renderList(items, a.cursor, contentHeight, innerListW, now)

	var listPane string
	if a.focus == focusList {
		listPane = listPaneActiveStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	} else {
		listPane = listPaneStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	}

	var selected *listing.Listing
	if len(items) > 0 && a.cursor < len(items) {
		selected = &items[a.cursor]
	}
	innerPreviewW := previewWidth - 4
	previewContent := renderPreview(selected, innerPreviewW, contentHeight, a.previewScroll, now)

	var previewPane string
	if a.focus == focusPreview {
		previewPane = previewPaneActiveStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	} else {
		previewPane = previewPaneStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, previewPane)

	status := renderStatusBar(len(items), a.viewLabel(), a.filterBar.activeLabel(), a.width, a.mode == modeSearch, a.loading, a.qualifying)
	if a.loading {
		status = a.spinner.View() + " " + status
	}

	switch {
	case a.authErr:
		status = authBannerStyle.Width(a.width).Render("Marketplace sign-in failed. Check DEALRADAR_MARKET_CLIENT_ID / _SECRET and restart.")
	case a.err != nil:
		status = lipgloss.NewStyle().Foreground(colorAccent).Render(a.err.Error())
	case a.notice != "":
		status = noticeStyle.Render(" " + a.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, filter, content, status)
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("dealradar")
	dim := itemMetaStyle

	help := title + dim.Render(" · Keyboard Shortcuts") + "\n\n" +
		dim.Render("Navigation") + "\n" +
		"  j/k, ↑/↓     Move through listings\n" +
		"  tab           Switch focus between list and preview\n\n" +
		dim.Render("Views") + "\n" +
		"  d             Curated deals\n" +
		"  a             Live auctions\n" +
		"  /             Search the marketplace\n" +
		"  esc, h        Back to curated view\n\n" +
		dim.Render("Actions") + "\n" +
		"  o, enter      Open listing in browser\n" +
		"  m             Load more search results\n" +
		"  r             Force refresh\n" +
		"  f             Category filter\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c    Quit"

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(1, 3).
		Render(help)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the TUI application and tears the reconciler down on exit.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	defer opts.Reconciler.Stop()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
