// internal/commands/upload.go
package llmevaluator

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/llmevaluator/internal/export"
	"github.com/mwiater/llmevaluator/internal/logging"
)

// uploadCmd posts a batch CSV file and saves the service's response.
var uploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upload a batch CSV file and save the returned results",
	Long: `The 'upload' command sends a CSV file to the service's /upload_csv endpoint
and saves the CSV it returns as evaluation_results.csv in the export directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		path := args[0]

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		out := cmd.OutOrStdout()
		progressColor.Fprintf(out, "Uploading %s...\n", path)

		data, err := newClient(cfg).UploadCSV(cmd.Context(), path, f)
		if err != nil {
			logging.LogError("Error uploading CSV", err)
			failureColor.Fprintln(out, "Upload failed.")
			return err
		}
		saved, err := export.SaveBytes(cfg.ExportDirectory(), data)
		if err != nil {
			return err
		}
		logging.LogEvent("batch results saved: %s", saved)
		successColor.Fprintf(out, "Saved %s\n", saved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
