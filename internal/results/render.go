// internal/results/render.go
package results

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mwiater/llmevaluator/internal/util"
)

// maxCellRunes bounds a single cell in the terminal rendering. Exports and
// Rows() always carry the full text.
const maxCellRunes = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	summaryText = lipgloss.NewStyle().Bold(true)
)

// Text returns the plain text content of the results area: the status line,
// then the table rows with tab separated cells, then the paragraphs.
func (v *View) Text() string {
	var lines []string
	if v.status != "" {
		lines = append(lines, v.status)
	}
	for _, row := range v.Rows() {
		lines = append(lines, strings.Join(row, "\t"))
	}
	lines = append(lines, v.paragraphs...)
	return strings.Join(lines, "\n")
}

// Render draws the results area. spinner is prefixed to the status line while
// a request is in flight; width bounds the table.
func (v *View) Render(spinner string, width int) string {
	var blocks []string

	if v.status != "" {
		switch {
		case v.busy && spinner != "":
			blocks = append(blocks, statusStyle.Render(spinner+" "+v.status))
		case isFailure(v.status):
			blocks = append(blocks, errorStyle.Render(v.status))
		default:
			blocks = append(blocks, statusStyle.Render(v.status))
		}
	}

	if v.HasTable() {
		rows := make([][]string, 0, len(v.rows))
		for _, row := range v.rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = util.TruncateRunes(util.SingleLine(cell), maxCellRunes)
			}
			rows = append(rows, cells)
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			Headers(Columns...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		if width > 0 {
			t = t.Width(width)
		}
		blocks = append(blocks, t.Render())
	}

	for _, p := range v.paragraphs {
		blocks = append(blocks, summaryText.Render(p))
	}

	return strings.Join(blocks, "\n")
}

func isFailure(status string) bool {
	return status == MsgProcessingError || status == MsgRequestError
}
