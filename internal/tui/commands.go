// internal/tui/commands.go
package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/export"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// defaultsLoadedMsg carries the parsed defaults document.
type defaultsLoadedMsg struct {
	values map[string]string
	err    error
}

// streamStartedMsg is sent once the evaluation stream is open.
type streamStartedMsg struct {
	id     string
	events <-chan stream.Event
}

// streamFailedMsg is sent when the evaluation request itself fails.
type streamFailedMsg struct {
	id  string
	err error
}

// streamEventMsg delivers one decoded stream event. ok is false once the
// channel has been closed.
type streamEventMsg struct {
	id string
	ev stream.Event
	ok bool
}

// uploadDoneMsg is sent when the batch upload finishes.
type uploadDoneMsg struct {
	path string
	err  error
}

// loadDefaultsCmd fetches and parses the defaults document off the update loop.
func loadDefaultsCmd(ctx context.Context, src defaults.Fetcher) tea.Cmd {
	return func() tea.Msg {
		values, err := defaults.Fetch(ctx, src)
		return defaultsLoadedMsg{values: values, err: err}
	}
}

// startStreamCmd opens the evaluation stream for one submission. The body is
// closed when ctx is cancelled so a superseded read unblocks.
func startStreamCmd(ctx context.Context, svc Service, id string, req evaluation.Request) tea.Cmd {
	return func() tea.Msg {
		body, err := svc.EvaluateStream(ctx, id, req)
		if err != nil {
			return streamFailedMsg{id: id, err: err}
		}
		go func() {
			<-ctx.Done()
			_ = body.Close()
		}()
		return streamStartedMsg{id: id, events: stream.Events(ctx, body)}
	}
}

// waitForEventCmd receives the next event. The update loop re-issues it after
// every iteration event, so reads stay strictly sequential.
func waitForEventCmd(id string, events <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return streamEventMsg{id: id, ev: ev, ok: ok}
	}
}

// uploadCmd posts the batch file and saves the response as the export file.
func uploadCmd(ctx context.Context, svc Service, path, dir string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()

		data, err := svc.UploadCSV(ctx, path, f)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		saved, err := export.SaveBytes(dir, data)
		return uploadDoneMsg{path: saved, err: err}
	}
}
