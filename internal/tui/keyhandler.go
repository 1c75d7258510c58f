package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/casedesk/internal/config"
	"github.com/pders01/casedesk/internal/storage"
)

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := cfg.Keys.Modifier + "+"
	return &KeyHandler{app: app, config: cfg, modifierKey: modifierKey}
}

func (kh *KeyHandler) bound(name string) string {
	return kh.modifierKey + name
}

func (kh *KeyHandler) helpKey() string {
	return kh.config.Keys.Bindings.Help
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Transient notices last until the next key press.
	if kh.app.statusKind != StatusError {
		kh.app.clearStatus()
	}

	if kh.app.view == ViewForm {
		return kh.handleFormKeys(msg)
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	return kh.app.view == ViewList && kh.app.searchInput.Focused()
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		return kh.app, tea.Quit
	case "esc":
		return kh.clearSearch()
	case "enter", "tab", "down":
		kh.focusList()
		return kh.app, nil
	}

	if strings.HasPrefix(key, kh.modifierKey) {
		if model, cmd, handled := kh.handleCustomKeys(key); handled {
			return model, cmd
		}
	}

	return kh.delegateToTextInput(msg)
}

// delegateToTextInput feeds the key to the search box and reports every
// change of its text to the controller, which debounces it.
func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prev := kh.app.searchInput.Value()
	var cmd tea.Cmd
	kh.app.searchInput, cmd = kh.app.searchInput.Update(msg)

	if kh.app.searchInput.Value() != prev {
		kh.app.controller.QueryChanged(sanitizeQuery(kh.app.searchInput.Value()))
		return kh.app, tea.Batch(cmd, kh.app.startSpinner())
	}
	return kh.app, cmd
}

// handleFormKeys moves between form fields and saves. Every other key is
// typed into the focused field.
func (kh *KeyHandler) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := kh.app.form
	if f == nil {
		kh.app.view = ViewList
		return kh.app, nil
	}
	b := kh.config.Keys.Bindings

	switch msg.String() {
	case "ctrl+c":
		return kh.app, tea.Quit
	case b.Back:
		if !f.saving {
			kh.app.closeForm()
		}
		return kh.app, nil
	case "tab", "down":
		return kh.app, f.move(1)
	case "shift+tab", "up":
		return kh.app, f.move(-1)
	case "enter":
		if !f.onLastField() {
			return kh.app, f.move(1)
		}
		return kh.submitForm()
	case kh.bound(b.Save):
		return kh.submitForm()
	}
	if f.saving {
		return kh.app, nil
	}
	return kh.app, f.update(msg)
}

func (kh *KeyHandler) submitForm() (tea.Model, tea.Cmd) {
	f := kh.app.form
	if f.saving {
		return kh.app, nil
	}
	f.saving = true
	return kh.app, tea.Batch(kh.app.saveApplication(f.application()), kh.app.startSpinner())
}

func (kh *KeyHandler) clearSearch() (tea.Model, tea.Cmd) {
	if kh.app.searchInput.Value() == "" {
		return kh.app, nil
	}
	kh.app.searchInput.Reset()
	kh.app.controller.QueryChanged("")
	return kh.app, nil
}

func (kh *KeyHandler) focusList() {
	if len(kh.app.list.Items()) == 0 {
		return
	}
	kh.app.searchInput.Blur()
}

func (kh *KeyHandler) focusSearch() (tea.Model, tea.Cmd) {
	kh.app.view = ViewList
	kh.app.toDelete = nil
	kh.app.current = nil
	kh.app.loadingDetail = false
	return kh.app, kh.app.searchInput.Focus()
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	b := kh.config.Keys.Bindings

	switch key {
	case "ctrl+c":
		return kh.app, tea.Quit, true
	case b.Quit:
		if kh.app.view != ViewDeleteConfirm {
			return kh.app, tea.Quit, true
		}
	case b.Back:
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case b.Help:
		kh.app.showHelp = !kh.app.showHelp
		return kh.app, nil, true
	case kh.bound(b.Search):
		model, cmd := kh.focusSearch()
		return model, cmd, true
	case kh.bound(b.Refresh):
		kh.app.controller.Refresh()
		kh.app.setStatus(MsgRefreshing, StatusInfo)
		return kh.app, kh.app.startSpinner(), true
	}

	switch kh.app.view {
	case ViewList, ViewDetail:
		return kh.handleRecordKeys(key)
	case ViewDeleteConfirm:
		return kh.handleDeleteConfirmKeys(key)
	default:
		return kh.app, nil, false
	}
}

// target is the application the record actions apply to: the one being
// read in the detail view, otherwise the one under the cursor.
func (kh *KeyHandler) target() *storage.Application {
	if kh.app.view == ViewDetail && kh.app.current != nil {
		return kh.app.current
	}
	return kh.app.selected()
}

func (kh *KeyHandler) handleRecordKeys(key string) (tea.Model, tea.Cmd, bool) {
	b := kh.config.Keys.Bindings

	switch key {
	case kh.bound(b.New):
		return kh.app, kh.app.openForm(nil), true

	case kh.bound(b.Edit):
		t := kh.target()
		if t == nil {
			kh.app.setStatus(MsgNoSelection, StatusWarn)
			return kh.app, nil, true
		}
		return kh.app, kh.app.openForm(t), true

	case kh.bound(b.Delete):
		t := kh.target()
		if t == nil {
			kh.app.setStatus(MsgNoSelection, StatusWarn)
			return kh.app, nil, true
		}
		kh.app.toDelete = t
		kh.app.view = ViewDeleteConfirm
		return kh.app, nil, true

	case kh.bound(b.OpenAttachment):
		t := kh.target()
		if t == nil {
			kh.app.setStatus(MsgNoSelection, StatusWarn)
			return kh.app, nil, true
		}
		if t.AttachedFileURL == "" {
			kh.app.setStatus("Application has no attachment", StatusWarn)
			return kh.app, nil, true
		}
		kh.app.setStatus(MsgOpeningAttachment, StatusInfo)
		return kh.app, kh.app.openAttachment(t.AttachedFileURL), true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleDeleteConfirmKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "enter", "y":
		if kh.app.deleting {
			return kh.app, nil, true
		}
		if kh.app.toDelete == nil {
			kh.app.view = ViewList
			return kh.app, nil, true
		}
		kh.app.deleting = true
		return kh.app, tea.Batch(kh.app.destroyApplication(kh.app.toDelete.ID), kh.app.startSpinner()), true
	case "n":
		model, cmd := kh.navigateBack()
		return model, cmd, true
	}
	return kh.app, nil, true
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewList:
		switch msg.String() {
		case "tab", "shift+tab", "/":
			return kh.focusSearch()
		case "up":
			if kh.app.list.Index() == 0 {
				return kh.focusSearch()
			}
		case "enter":
			return kh.openDetail()
		}

		kh.app.list, cmd = kh.app.list.Update(msg)
		kh.app.observeScroll()
		return kh.app, tea.Batch(cmd, kh.app.startSpinner())

	case ViewDetail:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

func (kh *KeyHandler) openDetail() (tea.Model, tea.Cmd) {
	sel := kh.app.selected()
	if sel == nil {
		return kh.app, nil
	}
	kh.app.current = sel
	kh.app.loadingDetail = true
	kh.app.view = ViewDetail
	return kh.app, tea.Batch(kh.app.loadDetail(sel.ID), kh.app.startSpinner())
}

func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewDeleteConfirm:
		if kh.app.deleting {
			return kh.app, nil
		}
		kh.app.toDelete = nil
		if kh.app.current != nil {
			kh.app.view = ViewDetail
		} else {
			kh.app.view = ViewList
		}
		return kh.app, nil

	case ViewDetail:
		kh.app.view = ViewList
		kh.app.current = nil
		kh.app.loadingDetail = false
		return kh.app, nil

	default:
		return kh.app, nil
	}
}

func (kh *KeyHandler) GetHelpForCurrentView() []string {
	b := kh.config.Keys.Bindings

	switch kh.app.view {
	case ViewList:
		if kh.app.searchInput.Focused() {
			return []string{"enter: results", kh.bound(b.Refresh) + ": refresh", "esc: clear", "ctrl+c: quit"}
		}
		return []string{
			"enter: open",
			kh.bound(b.Search) + ": search",
			kh.bound(b.Refresh) + ": refresh",
			kh.bound(b.New) + ": new",
			kh.bound(b.Edit) + ": edit",
			kh.bound(b.Delete) + ": delete",
			kh.bound(b.OpenAttachment) + ": attachment",
			b.Quit + ": quit",
		}

	case ViewDetail:
		return []string{
			"↑↓: scroll",
			kh.bound(b.Edit) + ": edit",
			kh.bound(b.OpenAttachment) + ": attachment",
			kh.bound(b.Delete) + ": delete",
			b.Back + ": back",
		}

	case ViewDeleteConfirm:
		return []string{"enter: confirm", b.Back + ": cancel"}

	case ViewForm:
		return []string{kh.bound(b.Save) + ": save", "tab: next field", b.Back + ": cancel"}

	default:
		return []string{}
	}
}
