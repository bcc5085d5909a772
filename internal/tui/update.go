// internal/tui/update.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/export"
	"github.com/mwiater/llmevaluator/internal/logging"
	"github.com/mwiater/llmevaluator/internal/results"
	"github.com/mwiater/llmevaluator/internal/stream"
)

const (
	headerHeight = 3
	footerHeight = 2
)

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.refreshResults()
		}
		return m, cmd

	case defaultsLoadedMsg:
		if msg.err != nil {
			logging.LogError("Error loading defaults", msg.err)
			return m, nil
		}
		defaults.Apply(m.form, msg.values)
		m.syncFields()
		return m, nil

	case streamStartedMsg:
		if msg.id != m.submission {
			return m, nil
		}
		m.events = msg.events
		return m, waitForEventCmd(msg.id, msg.events)

	case streamFailedMsg:
		if msg.id != m.submission {
			return m, nil
		}
		logging.LogError("evaluation request failed", msg.err)
		m.stopSubmission()
		m.results.Fail(results.MsgRequestError)
		m.refreshResults()
		return m, nil

	case streamEventMsg:
		if msg.id != m.submission {
			return m, nil
		}
		return m, m.handleStreamEvent(msg)

	case uploadDoneMsg:
		m.uploading = false
		if msg.err != nil {
			logging.LogError("Error uploading CSV", msg.err)
			return m, nil
		}
		logging.LogEvent("batch results saved: %s", msg.path)
		m.notice = "Saved " + msg.path
		return m, nil
	}
	return m, nil
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	if width <= 0 || height <= 0 {
		return
	}
	m.picker.SetSize(width-2, height-4)
	for _, f := range m.fields {
		if f.multiline() {
			f.area.SetWidth(width - 22)
		} else {
			f.input.Width = width - 22
		}
	}
	m.uploadPath.Width = width - 14

	formHeight := 2
	if m.tab == tabSingle {
		formHeight = len(m.fields) + 3*len(multilineFields)
	}
	m.viewport.Width = width
	m.viewport.Height = max(height-headerHeight-footerHeight-formHeight, 3)
	m.refreshResults()
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.picking {
		return m.handlePickerKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		m.stopSubmission()
		return tea.Quit
	case "ctrl+t":
		return m.switchTab()
	case "ctrl+s":
		if m.tab == tabBatch {
			return m.upload()
		}
		return m.submit()
	case "ctrl+e":
		m.exportResults()
		return nil
	case "ctrl+l":
		m.form.ClearFields()
		m.syncFields()
		return nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	if m.tab == tabBatch {
		var cmd tea.Cmd
		m.uploadPath, cmd = m.uploadPath.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "tab":
		return m.moveFocus(1)
	case "shift+tab":
		return m.moveFocus(-1)
	case "enter":
		if m.focusedField().name == evaluation.FieldModel {
			m.openPicker()
			return nil
		}
	}

	f := m.focusedField()
	cmd := f.update(msg)
	if err := m.form.Set(f.name, f.value()); err != nil {
		logging.LogError("form", err)
	}
	return cmd
}

func (m *model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.picking = false
		return nil
	case "enter":
		if selected, ok := m.picker.SelectedItem().(item); ok {
			_ = m.form.Set(evaluation.FieldModel, selected.title)
			m.syncFields()
		}
		m.picking = false
		return nil
	case "ctrl+c":
		m.stopSubmission()
		return tea.Quit
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return cmd
}

func (m *model) openPicker() {
	current := m.form.Get(evaluation.FieldModel)
	for i, it := range m.picker.Items() {
		if it.(item).title == current {
			m.picker.Select(i)
			break
		}
	}
	m.picking = true
}

func (m *model) switchTab() tea.Cmd {
	m.notice = ""
	if m.tab == tabSingle {
		m.tab = tabBatch
		m.focusedField().blur()
		cmd := m.uploadPath.Focus()
		m.resize(m.width, m.height)
		return cmd
	}
	m.tab = tabSingle
	m.uploadPath.Blur()
	cmd := m.focusedField().focus()
	m.resize(m.width, m.height)
	return cmd
}

// submit starts a new submission, superseding any that is still running.
func (m *model) submit() tea.Cmd {
	m.stopSubmission()

	req := m.form.Request()
	id := evaluation.NewSubmissionID()
	ctx, cancel := context.WithCancel(m.ctx)
	m.submission = id
	m.cancel = cancel
	m.temperature = req.Temperature
	m.notice = ""

	m.results.Begin(evaluation.ParseIterations(req.Iterations))
	m.refreshResults()
	logging.LogEvent("submission %s started: model=%s iterations=%s", id, req.Model, req.Iterations)

	return tea.Batch(m.spinner.Tick, startStreamCmd(ctx, m.service, id, req))
}

func (m *model) handleStreamEvent(msg streamEventMsg) tea.Cmd {
	if !msg.ok {
		m.stopSubmission()
		if m.results.Busy() {
			logging.LogEvent("submission %s: stream closed without a summary", msg.id)
			m.results.Fail(results.MsgRequestError)
			m.refreshResults()
		}
		return nil
	}
	ev := msg.ev
	switch ev.Kind {
	case stream.KindIteration:
		if m.results.ApplyEvent(ev.Iteration, m.temperature) {
			logging.LogEvent("submission %s: iteration %s", msg.id, ev.Iteration.IterationText())
		}
		m.refreshResults()
		return waitForEventCmd(msg.id, m.events)
	case stream.KindSummary:
		m.stopSubmission()
		m.results.ApplySummary(ev.Summary)
		logging.LogEvent("submission %s finished: avg_score=%s verdict=%s", msg.id, ev.Summary.AvgScore, ev.Summary.FinalVerdictText())
	default:
		m.stopSubmission()
		logging.LogError(fmt.Sprintf("submission %s", msg.id), ev.Err)
		m.results.Fail(results.FailureMessage(ev.Err))
	}
	m.refreshResults()
	return nil
}

func (m *model) exportResults() {
	path, err := export.WriteFile(m.config.ExportDirectory(), m.results)
	if err != nil {
		if !errors.Is(err, export.ErrNothingToExport) {
			logging.LogError("export", err)
		}
		return
	}
	logging.LogEvent("results exported: %s", path)
	m.notice = "Exported " + path
}

func (m *model) upload() tea.Cmd {
	if m.uploading {
		return nil
	}
	path := strings.TrimSpace(m.uploadPath.Value())
	if path == "" {
		return nil
	}
	m.uploading = true
	m.notice = ""
	return tea.Batch(m.spinner.Tick, uploadCmd(m.ctx, m.service, path, m.config.ExportDirectory()))
}
