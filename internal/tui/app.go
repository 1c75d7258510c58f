package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pders01/casedesk/internal/config"
	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/feed"
	"github.com/pders01/casedesk/internal/storage"
)

// chromeHeight is the search box, its help line and the status bar.
const chromeHeight = 7

type App struct {
	config          *config.Config
	service         CaseService
	opener          Opener
	controller      *feed.Controller[storage.Application]
	keyHandler      *KeyHandler
	list            list.Model
	searchInput     textinput.Model
	viewport        viewport.Model
	spinner         spinner.Model
	view            View
	state           feed.State[storage.Application]
	current         *storage.Application
	toDelete        *storage.Application
	form            *applicationForm
	status          string
	statusKind      StatusKind
	spinning        bool
	showHelp        bool
	loadingDetail   bool
	deleting        bool
	width           int
	height          int
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
}

func NewApp(service CaseService, opener Opener, cfg *config.Config) *App {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "› applications"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	si := textinput.New()
	si.Placeholder = "Search by name, crisis, barangay or city..."
	si.CharLimit = maxQueryLength
	si.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	app := &App{
		config:      cfg,
		service:     service,
		opener:      opener,
		list:        l,
		searchInput: si,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		view:        ViewList,
	}
	app.controller = feed.New[storage.Application](service, feed.Options{
		Debounce:        cfg.Feed.Debounce,
		ScrollThreshold: cfg.Feed.ScrollThreshold,
		OnError: func(err error) {
			debuglog.WithFields(map[string]interface{}{"error": err}).Warnf("feed load failed")
		},
	})
	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

// Close stops the feed controller. Call it once the program has exited.
func (a *App) Close() {
	a.controller.Close()
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wordWrapWidth := (a.width * 9) / 10
	if limit := a.config.UI.DetailWrapWidth; limit > 0 && wordWrapWidth > limit {
		wordWrapWidth = limit
	}
	if wordWrapWidth < 40 {
		wordWrapWidth = 40
	}
	if a.width > 0 && a.width < 50 {
		wordWrapWidth = max(a.width-4, 20)
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	a.controller.Reset("")
	return tea.Batch(
		a.waitForUpdate(),
		a.startSpinner(),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case feedUpdatedMsg:
		return a, tea.Batch(a.applyState(msg.state), a.waitForUpdate())

	case feedClosedMsg:
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case detailRenderedMsg:
		if a.view == ViewDetail && a.current != nil && a.current.ID == msg.app.ID {
			a.current = msg.app
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.loadingDetail = false
		}

	case applicationDeletedMsg:
		a.deleting = false
		a.toDelete = nil
		if msg.err != nil {
			a.view = ViewList
			a.setError(wrapErr("delete", msg.err))
			return a, nil
		}
		if a.current != nil && a.current.ID == msg.id {
			a.current = nil
		}
		a.view = ViewList
		a.setStatus(MsgApplicationDeleted, StatusSuccess)
		a.controller.Refresh()
		return a, a.startSpinner()

	case applicationSavedMsg:
		if a.form == nil {
			return a, nil
		}
		a.form.saving = false
		if msg.err != nil {
			a.setError(wrapErr("save", msg.err))
			return a, nil
		}
		a.closeForm()
		if msg.created {
			a.setStatus(MsgApplicationFiled, StatusSuccess)
		} else {
			a.setStatus(MsgApplicationUpdated, StatusSuccess)
		}
		a.controller.Refresh()
		return a, a.startSpinner()

	case attachmentOpenedMsg:
		a.setStatus(MsgOpened(msg.url), StatusSuccess)

	case errorMsg:
		a.loadingDetail = false
		a.setError(msg.err)
	}

	if a.view == ViewDetail {
		switch msg.(type) {
		case tea.MouseMsg:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height

	listHeight := height - chromeHeight
	if listHeight < 3 {
		listHeight = 3
	}
	a.list.SetSize(width, listHeight)
	a.viewport.Width = width
	a.viewport.Height = max(height-3, 1)

	inputWidth := width - 8
	if inputWidth < 10 {
		inputWidth = max(width-4, 1)
	}
	a.searchInput.Width = inputWidth
	if a.form != nil {
		a.form.setWidth(width)
	}
}

// openForm shows the application form, prefilled from base when editing.
func (a *App) openForm(base *storage.Application) tea.Cmd {
	a.form = newApplicationForm(base)
	a.form.setWidth(a.width)
	a.view = ViewForm
	a.searchInput.Blur()
	return textinput.Blink
}

// closeForm leaves the form for the list. The detail view is not kept: an
// edited record would show stale fields.
func (a *App) closeForm() {
	a.form = nil
	a.current = nil
	a.loadingDetail = false
	a.view = ViewList
}

// applyState mirrors a controller snapshot into the list.
func (a *App) applyState(s feed.State[storage.Application]) tea.Cmd {
	newGeneration := s.Generation != a.state.Generation
	a.state = s

	items := make([]list.Item, len(s.Items))
	for i := range s.Items {
		items[i] = applicationItem{app: s.Items[i]}
	}
	idx := a.list.Index()
	cmd := a.list.SetItems(items)
	switch {
	case newGeneration || len(items) == 0:
		a.list.Select(0)
	case idx < len(items):
		a.list.Select(idx)
	default:
		a.list.Select(len(items) - 1)
	}

	switch {
	case s.Err != nil:
		a.setError(s.Err)
	case a.statusKind == StatusError && !s.Loading:
		a.clearStatus()
	}

	// A short first page may already reach the threshold.
	if !s.Loading {
		a.observeScroll()
	}
	return tea.Batch(cmd, a.startSpinner())
}

// scrollMetrics reports the visible window of the list in rows.
func (a *App) scrollMetrics() feed.Metrics {
	total := len(a.list.Items())
	p := a.list.Paginator
	return feed.Metrics{
		Top:     p.Page * p.PerPage,
		Visible: p.ItemsOnPage(total),
		Total:   total,
	}
}

func (a *App) observeScroll() {
	if len(a.list.Items()) == 0 {
		return
	}
	if a.controller.Observe(a.scrollMetrics()) {
		debuglog.WithFields(map[string]interface{}{
			"page":  a.state.CurrentPage + 1,
			"query": a.state.CommittedQuery,
		}).Debugf("near end of list, loading next page")
	}
}

func (a *App) saving() bool {
	return a.form != nil && a.form.saving
}

func (a *App) busy() bool {
	return a.state.Loading || a.loadingDetail || a.deleting || a.saving() || a.controller.QueryPending()
}

func (a *App) startSpinner() tea.Cmd {
	if a.spinning || !a.busy() {
		return nil
	}
	a.spinning = true
	return a.spinner.Tick
}

func (a *App) setStatus(text string, kind StatusKind) {
	a.status = text
	a.statusKind = kind
}

func (a *App) setError(err error) {
	debuglog.Errorf("%v", err)
	a.setStatus(describeErr(err), StatusError)
}

func (a *App) clearStatus() {
	a.status = ""
	a.statusKind = StatusInfo
}

// selected returns the application under the cursor.
func (a *App) selected() *storage.Application {
	if i, ok := a.list.SelectedItem().(applicationItem); ok {
		app := i.app
		return &app
	}
	return nil
}

func (a *App) View() string {
	contentHeight := max(a.height-3, 0)
	var content string

	switch a.view {
	case ViewList:
		content = a.listView(contentHeight)
	case ViewDetail:
		if a.loadingDetail {
			content = renderCentered(a.width, contentHeight, renderMuted(MsgLoadingApplication))
		} else {
			content = a.viewport.View()
		}
	case ViewDeleteConfirm:
		content = a.deleteConfirmView(contentHeight)
	case ViewForm:
		if a.form != nil {
			content = a.form.view(a.width, contentHeight)
		}
	}

	separator := SeparatorStyle.Render(strings.Repeat("─", max(a.width-1, 0)))
	return lipgloss.JoinVertical(lipgloss.Top, content, separator, a.statusBar())
}

func (a *App) listView(height int) string {
	subtitle := a.state.CommittedQuery
	if subtitle != "" {
		subtitle = fmt.Sprintf("results for %q", subtitle)
	}

	var helpText string
	switch {
	case a.searchInput.Focused():
		helpText = "Type to search • Tab/↓: results • Esc: clear"
	case len(a.list.Items()) > 0:
		helpText = "↑↓: navigate • Enter: open • Tab: search box"
	default:
		helpText = "Tab: search box"
	}

	var body string
	switch {
	case len(a.list.Items()) > 0:
		body = a.list.View()
	case a.state.Loading:
		body = renderCentered(a.width, max(height-chromeHeight+3, 1), renderMuted(MsgLoading))
	case a.state.CommittedQuery != "" || a.state.Err != nil:
		body = renderCentered(a.width, max(height-chromeHeight+3, 1), renderMuted(MsgNoResults))
	default:
		body = renderCentered(a.width, max(height-chromeHeight+3, 1), GetWelcomeMessage("No applications yet"))
	}

	return ContentWrapper(a.width, height).Render(lipgloss.JoinVertical(
		lipgloss.Top,
		renderHeader("› "+AppName, subtitle, a.width),
		renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
		renderHelp(helpText),
		body,
	))
}

func (a *App) deleteConfirmView(height int) string {
	name := "Unknown applicant"
	if a.toDelete != nil {
		name = a.toDelete.FullName()
	}

	modalWidth := (a.width * 4) / 5
	if modalWidth < 20 {
		modalWidth = max(a.width-4, 15)
	}
	name = truncateEnd(name, modalWidth-4)

	centered := func(s lipgloss.Style, text string) string {
		return s.Width(modalWidth).Align(lipgloss.Center).Render(text)
	}

	return renderCentered(a.width, height, lipgloss.JoinVertical(
		lipgloss.Center,
		ErrorMessageStyle.Render("⚠ Delete Application"),
		"",
		centered(ModalTextStyle, "Delete this application?"),
		"",
		centered(ModalHighlight, name),
		"",
		centered(lipgloss.NewStyle().Foreground(MutedColor), "It will no longer appear in the list."),
		"",
		"",
		renderHelp("Enter: confirm • Esc: cancel"),
	))
}

func (a *App) statusBar() string {
	var left string
	switch {
	case a.busy():
		text := MsgLoading
		switch {
		case a.deleting:
			text = MsgDeleting
		case a.saving():
			text = MsgSaving
		case a.loadingDetail:
			text = MsgLoadingApplication
		case a.controller.QueryPending():
			text = MsgSearching
		case len(a.state.Items) > 0:
			text = MsgLoadingMore
		}
		left = a.spinner.View() + " " + StatusInfoStyle.Render(text)
	case a.status != "":
		prefix := ""
		if a.statusKind == StatusError {
			prefix = "✗ "
		}
		left = a.statusKind.style().Render(prefix + a.status)
	default:
		left = StatusInfoStyle.Render(MsgFeedSummary(len(a.state.Items), a.state.CurrentPage, a.state.LastPage, a.state.HasMore))
	}

	help := a.keyHandler.GetHelpForCurrentView()
	if !a.showHelp && len(help) > 3 {
		help = append(help[:3:3], a.keyHandler.helpKey()+": more")
	}
	right := renderMuted(strings.Join(help, " • "))

	if a.width > 0 && lipgloss.Width(left)+lipgloss.Width(right)+4 > a.width {
		return StatusBarStyle.Width(a.width).Render(lipgloss.JoinVertical(lipgloss.Left, left, right))
	}
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

type applicationItem struct {
	app storage.Application
}

func (i applicationItem) Title() string {
	return i.app.FullName()
}

func (i applicationItem) Description() string {
	parts := []string{i.app.Crisis}
	if i.app.Barangay != "" || i.app.City != "" {
		parts = append(parts, strings.Trim(i.app.Barangay+", "+i.app.City, ", "))
	}
	if !i.app.CreatedAt.IsZero() {
		parts = append(parts, "filed "+humanize.Time(i.app.CreatedAt))
	}
	if i.app.AttachedFileURL != "" {
		parts = append(parts, "📎")
	}
	return strings.Join(parts, " • ")
}

func (i applicationItem) FilterValue() string { return i.app.FullName() }

type feedUpdatedMsg struct {
	state feed.State[storage.Application]
}

type feedClosedMsg struct{}

type detailRenderedMsg struct {
	app     *storage.Application
	content string
}

type applicationDeletedMsg struct {
	id  uint64
	err error
}

type applicationSavedMsg struct {
	app     *storage.Application
	created bool
	err     error
}

type attachmentOpenedMsg struct {
	url string
}

type errorMsg struct {
	err error
}
