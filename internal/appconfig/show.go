package appconfig

import (
	"fmt"
	"io"
	"strings"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintf(out, "  Server:          %s\n", cfg.ServerURL())
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Export Dir:      %s\n", cfg.ExportDirectory())
	if strings.TrimSpace(cfg.DefaultsFile) != "" {
		fmt.Fprintf(out, "  Defaults File:   %s\n", cfg.DefaultsFile)
	} else {
		fmt.Fprintf(out, "  Defaults URL:    %s/%s\n", cfg.ServerURL(), DefaultsDocumentPath)
	}
	fmt.Fprintf(out, "  Models:          %s\n", strings.Join(cfg.ModelChoices(), ", "))
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  No Color:        %v\n", cfg.NoColor)
}
