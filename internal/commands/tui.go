// internal/commands/tui.go
package llmevaluator

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/llmevaluator/internal/tui"
)

// startTUI is a function alias to tui.Start for running the interactive interface.
var startTUI = tui.Start

// tuiCmd represents the 'tui' command, which opens the interactive interface.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive evaluation interface",
	Long: `The 'tui' command opens the interactive interface: the single evaluation
form, the batch CSV upload tab, and the live results table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command) error {
	cfg := GetConfig()
	svc := newClient(cfg)
	return startTUI(cmd.Context(), cfg, svc, defaultsSource(cfg, svc))
}
