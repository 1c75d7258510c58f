package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/pders01/casedesk/internal/storage"
)

// requestTimeout bounds detail, save and delete calls made from the UI.
const requestTimeout = 30 * time.Second

// waitForUpdate delivers the next controller snapshot. Update re-arms it
// after every feedUpdatedMsg.
func (a *App) waitForUpdate() tea.Cmd {
	updates := a.controller.Updates()
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return feedClosedMsg{}
		}
		return feedUpdatedMsg{state: s}
	}
}

func (a *App) loadDetail(id uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var app *storage.Application
		err := retryOperation(func() error {
			var err error
			app, err = a.service.GetApplication(ctx, id)
			return err
		})
		if err != nil {
			return errorMsg{err: wrapErr("load application", err)}
		}
		return a.renderDetail(app)
	}
}

func (a *App) renderDetail(app *storage.Application) tea.Msg {
	r, err := a.getRenderer()
	if err != nil {
		return detailRenderedMsg{app: app, content: "Error initializing renderer: " + err.Error()}
	}

	rendered, err := r.Render(detailMarkdown(app, time.Now()))
	if err != nil {
		return detailRenderedMsg{app: app, content: fmt.Sprintf("Failed to render application: %s\n\nPress Esc to go back.", err)}
	}
	return detailRenderedMsg{app: app, content: rendered}
}

// detailMarkdown lays an application out for glamour.
func detailMarkdown(app *storage.Application, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", app.FullName())
	if !app.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "*Filed %s (%s)*\n\n", app.CreatedAt.Format("January 2, 2006"), humanize.RelTime(app.CreatedAt, now, "ago", "from now"))
	}

	age := app.Age
	if computed := app.AgeAt(now); computed >= 0 {
		age = computed
	}

	b.WriteString("## Applicant\n\n")
	b.WriteString("| | |\n|---|---|\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "| **%s** | %s |\n", label, strings.ReplaceAll(orDash(value), "|", "\\|"))
	}
	row("Gender", app.Gender)
	row("Civil status", app.CivilStatus)
	row("Birth date", app.BirthDate)
	row("Age", fmt.Sprint(age))
	row("Contact number", app.ContactNumber)
	row("Gmail", app.Gmail)

	b.WriteString("\n## Address\n\n")
	address := strings.Join(nonBlank(app.HouseNo+" "+app.Street, app.Subdivision, app.Barangay, app.City), ", ")
	fmt.Fprintf(&b, "%s\n\n", orDash(address))

	b.WriteString("## Crisis\n\n")
	b.WriteString("| | |\n|---|---|\n")
	row("Crisis", app.Crisis)
	row("Situation", app.Situation)
	row("Incident date", app.IncidentDate)

	b.WriteString("\n## Attachment\n\n")
	if app.AttachedFileURL != "" {
		fmt.Fprintf(&b, "[%s](%s)\n", truncateMiddle(app.AttachedFileURL, 60), app.AttachedFileURL)
	} else {
		b.WriteString("*None*\n")
	}
	return b.String()
}

func nonBlank(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *App) destroyApplication(id uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := retryOperation(func() error {
			return a.service.DestroyApplication(ctx, id)
		})
		return applicationDeletedMsg{id: id, err: err}
	}
}

// saveApplication files app, or updates it when it already has an ID. Saves
// are not retried: a create whose response was lost would be filed twice.
func (a *App) saveApplication(app *storage.Application) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if app.ID == 0 {
			saved, err := a.service.StoreApplication(ctx, app)
			return applicationSavedMsg{app: saved, created: true, err: err}
		}
		saved, err := a.service.UpdateApplication(ctx, app.ID, app)
		return applicationSavedMsg{app: saved, err: err}
	}
}

func (a *App) openAttachment(url string) tea.Cmd {
	return func() tea.Msg {
		if err := a.opener.Open(url); err != nil {
			return errorMsg{err: wrapErr("open attachment", err)}
		}
		return attachmentOpenedMsg{url: url}
	}
}

// retryOperation retries a backend call up to 3 times with exponential
// backoff. Not-found, unauthorized, invalid and canceled calls are returned
// at once.
func retryOperation(operation func() error) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lastErr = operation()
		if lastErr == nil || permanent(lastErr) {
			return lastErr
		}
		if i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
		}
	}
	return lastErr
}
