// internal/tui/view.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/llmevaluator/internal/util"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1)
	labelStyle       = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("244"))
	focusLabelStyle  = labelStyle.Foreground(lipgloss.Color("205")).Bold(true)
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	singleHelp = "tab/shift+tab: field • enter on Model: pick • ctrl+s: evaluate • ctrl+l: clear fields • ctrl+e: export • ctrl+t: batch • ctrl+c: quit"
	batchHelp  = "ctrl+s: upload • ctrl+e: export • ctrl+t: single • ctrl+c: quit"
)

// View renders the application's UI.
func (m *model) View() string {
	if m.picking {
		return m.picker.View()
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.tab == tabSingle {
		b.WriteString(m.formView())
	} else {
		b.WriteString(m.batchView())
	}
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.helpView())
	return b.String()
}

func (m *model) headerView() string {
	single, batch := inactiveTabStyle, inactiveTabStyle
	if m.tab == tabSingle {
		single = activeTabStyle
	} else {
		batch = activeTabStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("LLM Evaluator"),
		" ",
		single.Render("Single Evaluation"),
		batch.Render("Batch CSV"),
		inactiveTabStyle.Render(m.config.ServerURL()),
	)
}

func (m *model) formView() string {
	rows := make([]string, 0, len(m.fields))
	for i, f := range m.fields {
		label := labelStyle
		if i == m.focused {
			label = focusLabelStyle
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(fieldLabels[f.name]), f.view()))
	}
	return strings.Join(rows, "\n")
}

func (m *model) batchView() string {
	line := m.uploadPath.View()
	if m.uploading {
		line += "  " + m.spinner.View() + " Uploading..."
	}
	return line
}

func (m *model) helpView() string {
	help := singleHelp
	if m.tab == tabBatch {
		help = batchHelp
	}
	if m.results.Exportable() {
		help = fmt.Sprintf("%d rows ready • %s", m.results.BodyRows(), help)
	}
	return helpStyle.Render(util.WrapToWidth(help, m.width))
}
