package export

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/results"
)

func TestEncodeQuotesEveryCell(t *testing.T) {
	got := Encode([][]string{
		{"Date", "Reason"},
		{" 2026-01-02 ", `said "hi", left`},
	})
	want := "\"Date\",\"Reason\"\n\"2026-01-02\",\"said \"\"hi\"\", left\""
	if got != want {
		t.Fatalf("Encode mismatch\nwant: %s\ngot:  %s", want, got)
	}
}

func TestEncodeRoundTripsRenderedTable(t *testing.T) {
	view := results.NewView()
	view.Begin(3)
	reasons := []string{
		`plain`,
		`contains "quotes" and, commas`,
		"spans\nlines with \"\" doubled",
	}
	for i, reason := range reasons {
		n := i + 1
		r := reason
		p := `prediction "` + reason + `"`
		view.ApplyEvent(evaluation.Event{Iteration: &n, Prediction: &p, Reason: &r, Score: evaluation.NewNumber(float64(n))}, "0.7")
	}
	verdict := "Pass"
	view.ApplySummary(evaluation.Summary{AvgScore: evaluation.NewNumber(2), FinalVerdict: &verdict})

	encoded := Encode(view.Rows())
	parsed, err := csv.NewReader(strings.NewReader(encoded)).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}

	rows := view.Rows()
	if len(parsed) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(parsed))
	}
	for i := range rows {
		if len(parsed[i]) != len(rows[i]) {
			t.Fatalf("row %d: expected %d cells, got %d", i, len(rows[i]), len(parsed[i]))
		}
		for j := range rows[i] {
			if parsed[i][j] != strings.TrimSpace(rows[i][j]) {
				t.Fatalf("row %d cell %d: got %q want %q", i, j, parsed[i][j], rows[i][j])
			}
		}
	}
}

func TestWriteFile(t *testing.T) {
	view := results.NewView()
	dir := t.TempDir()

	if _, err := WriteFile(dir, view); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport for idle view, got %v", err)
	}

	view.Begin(1)
	one := 1
	view.ApplyEvent(evaluation.Event{Iteration: &one}, "0.5")
	if _, err := WriteFile(dir, view); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected export refused before summary, got %v", err)
	}

	view.ApplySummary(evaluation.Summary{})
	path, err := WriteFile(filepath.Join(dir, "out"), view)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Base(path) != FileName {
		t.Fatalf("unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), `"Date","Temperature","Iteration","Prediction","Score","Reason"`) {
		t.Fatalf("unexpected export content: %s", data)
	}
	if strings.Contains(string(data), "Average Score") {
		t.Fatalf("summary paragraphs are not part of the table: %s", data)
	}
}
