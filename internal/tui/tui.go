// internal/tui/tui.go
// Package tui provides the interactive terminal front end for submitting
// evaluations, uploading batch files and exporting results.
package tui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/logging"
	"github.com/mwiater/llmevaluator/internal/results"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// Service is the part of the evaluation service the TUI talks to.
type Service interface {
	EvaluateStream(ctx context.Context, submission string, req evaluation.Request) (io.ReadCloser, error)
	UploadCSV(ctx context.Context, filename string, file io.Reader) ([]byte, error)
}

// tabState is the active tab.
type tabState int

const (
	// tabSingle is the single evaluation form.
	tabSingle tabState = iota
	// tabBatch is the CSV batch upload.
	tabBatch
)

// multilineFields are edited with a textarea instead of a single line input.
var multilineFields = map[string]bool{
	evaluation.FieldPrompt:         true,
	evaluation.FieldCriteria:       true,
	evaluation.FieldExpectedResult: true,
}

// fieldLabels are the labels shown next to each form field.
var fieldLabels = map[string]string{
	evaluation.FieldModel:          "Model",
	evaluation.FieldTemperature:    "Temperature",
	evaluation.FieldMaxNewTokens:   "Max New Tokens",
	evaluation.FieldPrompt:         "Prompt",
	evaluation.FieldCriteria:       "Criteria",
	evaluation.FieldExpectedResult: "Expected Result",
	evaluation.FieldIterations:     "Iterations",
}

// field binds one form field to its widget.
type field struct {
	name  string
	input textinput.Model
	area  textarea.Model
}

func (f *field) multiline() bool { return multilineFields[f.name] }

func (f *field) value() string {
	if f.multiline() {
		return f.area.Value()
	}
	return f.input.Value()
}

func (f *field) setValue(v string) {
	if f.multiline() {
		f.area.SetValue(v)
		return
	}
	f.input.SetValue(v)
	f.input.CursorEnd()
}

func (f *field) focus() tea.Cmd {
	if f.multiline() {
		return f.area.Focus()
	}
	return f.input.Focus()
}

func (f *field) blur() {
	if f.multiline() {
		f.area.Blur()
		return
	}
	f.input.Blur()
}

func (f *field) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.multiline() {
		f.area, cmd = f.area.Update(msg)
	} else {
		f.input, cmd = f.input.Update(msg)
	}
	return cmd
}

func (f *field) view() string {
	if f.multiline() {
		return f.area.View()
	}
	return f.input.View()
}

// item represents a selectable model in the picker.
type item struct {
	title string
	desc  string
}

// Title returns the title of the list item.
func (i item) Title() string { return i.title }

// Description returns the description of the list item.
func (i item) Description() string { return i.desc }

// FilterValue returns the title of the item, used for filtering.
func (i item) FilterValue() string { return i.title }

// model is the Bubble Tea model for the evaluation client.
type model struct {
	ctx      context.Context
	config   *appconfig.Config
	service  Service
	defaults defaults.Fetcher

	tab     tabState
	form    *evaluation.Form
	fields  []*field
	focused int

	picker  list.Model
	picking bool

	uploadPath textinput.Model
	uploading  bool

	results  *results.View
	viewport viewport.Model
	spinner  spinner.Model

	submission  string
	cancel      context.CancelFunc
	events      <-chan stream.Event
	temperature string

	notice        string
	width, height int
}

// initialModel creates the model with the form at its static defaults.
func initialModel(ctx context.Context, cfg *appconfig.Config, svc Service, src defaults.Fetcher) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	form := evaluation.NewForm()
	fields := make([]*field, 0, len(evaluation.FieldNames))
	for _, name := range evaluation.FieldNames {
		f := &field{name: name}
		if f.multiline() {
			ta := textarea.New()
			ta.ShowLineNumbers = false
			ta.CharLimit = -1
			ta.SetHeight(3)
			ta.Placeholder = fieldLabels[name] + "..."
			f.area = ta
		} else {
			ti := textinput.New()
			ti.Prompt = ""
			ti.CharLimit = 256
			f.input = ti
		}
		f.setValue(form.Get(name))
		fields = append(fields, f)
	}
	fields[0].focus()

	models := cfg.ModelChoices()
	items := make([]list.Item, len(models))
	for i, name := range models {
		items[i] = item{title: name, desc: "Evaluate with this model"}
	}
	picker := list.New(items, list.NewDefaultDelegate(), 0, 0)
	picker.Title = "Select a Model"
	picker.SetFilteringEnabled(false)
	picker.SetShowHelp(false)
	picker.DisableQuitKeybindings()

	up := textinput.New()
	up.Placeholder = "path/to/batch.csv"
	up.Prompt = "CSV file: "
	up.CharLimit = 1024

	return &model{
		ctx:        ctx,
		config:     cfg,
		service:    svc,
		defaults:   src,
		tab:        tabSingle,
		form:       form,
		fields:     fields,
		picker:     picker,
		uploadPath: up,
		results:    results.NewView(),
		viewport:   viewport.New(100, 10),
		spinner:    s,
	}
}

// Init loads the defaults document and starts the spinner.
func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.defaults != nil {
		cmds = append(cmds, loadDefaultsCmd(m.ctx, m.defaults))
	}
	return tea.Batch(cmds...)
}

// syncFields copies the form state into the widgets.
func (m *model) syncFields() {
	for _, f := range m.fields {
		f.setValue(m.form.Get(f.name))
	}
}

// focusedField returns the field that receives key input.
func (m *model) focusedField() *field {
	return m.fields[m.focused]
}

// moveFocus moves the focus by delta, wrapping around.
func (m *model) moveFocus(delta int) tea.Cmd {
	m.focusedField().blur()
	n := len(m.fields)
	m.focused = ((m.focused+delta)%n + n) % n
	return m.focusedField().focus()
}

// busy reports whether any request is in flight.
func (m *model) busy() bool {
	return m.results.Busy() || m.uploading
}

// refreshResults re-renders the results area into the viewport.
func (m *model) refreshResults() {
	m.viewport.SetContent(m.results.Render(m.spinner.View(), m.viewport.Width))
	m.viewport.GotoBottom()
}

// stopSubmission cancels the in-flight submission, if any.
func (m *model) stopSubmission() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.events = nil
}

// Start runs the interactive TUI until the user quits. Log output goes to
// the configured log file only.
func Start(ctx context.Context, cfg *appconfig.Config, svc Service, src defaults.Fetcher) error {
	if err := logging.Init(cfg.LogFilePath(), false); err != nil {
		return err
	}
	defer logging.Close()
	logging.LogEvent("tui started: server=%s", cfg.ServerURL())

	m := initialModel(ctx, cfg, svc, src)
	defer m.stopSubmission()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
