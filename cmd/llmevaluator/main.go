// cmd/llmevaluator/main.go
package main

import (
	cmd "github.com/mwiater/llmevaluator/internal/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main starts the llmevaluator CLI by delegating to the cobra root command.
// Build metadata is injected with -ldflags "-X main.version=...".
func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
