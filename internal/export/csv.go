// internal/export/csv.go
// Package export turns the rendered results table into a CSV download.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mwiater/llmevaluator/internal/util"
)

// FileName is the name every export and upload response is saved under.
const FileName = "evaluation_results.csv"

// ErrNothingToExport is returned when there is no rendered table to export.
var ErrNothingToExport = errors.New("export: no results table to export")

// Encode renders rows as CSV. Every cell is trimmed and quoted, embedded
// quotes are doubled, cells are joined with commas and rows with "\n".
func Encode(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = quote(strings.TrimSpace(cell))
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func quote(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// Source is anything holding a rendered results table.
type Source interface {
	Exportable() bool
	Rows() [][]string
}

// WriteFile encodes the rows of src into dir/evaluation_results.csv and
// returns the written path.
func WriteFile(dir string, src Source) (string, error) {
	if !src.Exportable() {
		return "", ErrNothingToExport
	}
	rows := src.Rows()
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}
	return SaveBytes(dir, []byte(Encode(rows)))
}

// SaveBytes writes data to dir/evaluation_results.csv.
func SaveBytes(dir string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName)
	if err := util.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}
