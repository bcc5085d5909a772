// internal/commands/defaults.go
package llmevaluator

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mwiater/llmevaluator/internal/defaults"
	"github.com/mwiater/llmevaluator/internal/evaluation"
)

// defaultsCmd implements the 'defaults' command, which prints the form a new
// evaluation would start from.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show the form defaults",
	Long: `Fetch and validate the defaults document (from the server, or from
--defaultsFile), then print the values it sets and the resulting form.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		values, err := defaults.Fetch(cmd.Context(), defaultsSource(cfg, newClient(cfg)))
		if err != nil {
			return err
		}

		form := evaluation.NewForm()
		defaults.Apply(form, values)

		out := cmd.OutOrStdout()
		pp.Fprintln(out, values)
		pp.Fprintln(out, form.Request())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(defaultsCmd)
}
