package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/casedesk/internal/storage"
)

type formField struct {
	label string
	value func(*storage.Application) *string
}

var applicationFields = []formField{
	{"First name", func(a *storage.Application) *string { return &a.FirstName }},
	{"Middle name", func(a *storage.Application) *string { return &a.MiddleName }},
	{"Last name", func(a *storage.Application) *string { return &a.LastName }},
	{"Suffix", func(a *storage.Application) *string { return &a.SuffixName }},
	{"Gender", func(a *storage.Application) *string { return &a.Gender }},
	{"Civil status", func(a *storage.Application) *string { return &a.CivilStatus }},
	{"Birth date", func(a *storage.Application) *string { return &a.BirthDate }},
	{"Contact number", func(a *storage.Application) *string { return &a.ContactNumber }},
	{"Gmail", func(a *storage.Application) *string { return &a.Gmail }},
	{"House no.", func(a *storage.Application) *string { return &a.HouseNo }},
	{"Street", func(a *storage.Application) *string { return &a.Street }},
	{"Subdivision", func(a *storage.Application) *string { return &a.Subdivision }},
	{"Barangay", func(a *storage.Application) *string { return &a.Barangay }},
	{"City", func(a *storage.Application) *string { return &a.City }},
	{"Crisis", func(a *storage.Application) *string { return &a.Crisis }},
	{"Situation", func(a *storage.Application) *string { return &a.Situation }},
	{"Incident date", func(a *storage.Application) *string { return &a.IncidentDate }},
	{"Attachment URL", func(a *storage.Application) *string { return &a.AttachedFileURL }},
}

const formLabelWidth = 16

// applicationForm edits one application. A zero base ID means the form
// files a new application.
type applicationForm struct {
	base   storage.Application
	inputs []textinput.Model
	focus  int
	saving bool
}

func newApplicationForm(base *storage.Application) *applicationForm {
	f := &applicationForm{}
	if base != nil {
		f.base = *base
	}
	f.inputs = make([]textinput.Model, len(applicationFields))
	for i, field := range applicationFields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 255
		switch field.label {
		case "Birth date", "Incident date":
			in.Placeholder = "YYYY-MM-DD"
		}
		in.SetValue(*field.value(&f.base))
		f.inputs[i] = in
	}
	f.inputs[0].Focus()
	return f
}

func (f *applicationForm) editing() bool {
	return f.base.ID != 0
}

func (f *applicationForm) onLastField() bool {
	return f.focus == len(f.inputs)-1
}

// move shifts focus by delta fields, wrapping around.
func (f *applicationForm) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *applicationForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// application returns the base record with the typed values applied.
func (f *applicationForm) application() *storage.Application {
	app := f.base
	for i, field := range applicationFields {
		*field.value(&app) = strings.TrimSpace(f.inputs[i].Value())
	}
	return &app
}

func (f *applicationForm) setWidth(width int) {
	w := max(width-formLabelWidth-8, 10)
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

func (f *applicationForm) view(width, height int) string {
	title := "› New application"
	subtitle := ""
	if f.editing() {
		title = "› Edit application"
		subtitle = f.base.FullName()
	}

	// Keep the focused field in view on short terminals.
	rows := max(height-6, 3)
	start := 0
	if len(f.inputs) > rows {
		start = min(max(f.focus-rows/2, 0), len(f.inputs)-rows)
	}
	end := min(start+rows, len(f.inputs))

	label := lipgloss.NewStyle().Width(formLabelWidth).Foreground(MutedColor)
	active := label.Foreground(AccentColor).Bold(true)

	lines := []string{renderHeader(title, subtitle, width), ""}
	for i := start; i < end; i++ {
		style := label
		if i == f.focus {
			style = active
		}
		lines = append(lines, style.Render(applicationFields[i].label)+" "+f.inputs[i].View())
	}
	if end < len(f.inputs) {
		lines = append(lines, renderMuted(fmt.Sprintf("  %d more ↓", len(f.inputs)-end)))
	}
	return ContentWrapper(width, height).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
