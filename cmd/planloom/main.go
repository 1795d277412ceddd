// Package main provides the planloom CLI tool.
//
// Usage:
//
//	planloom [flags] <command> [args]
//
// Commands:
//
//	chat     - Run an interactive coaching conversation
//	modules  - Inspect available coaching modules
//	sessions - Manage stored sessions
//	state    - Inspect checkpointed plan state
//	export   - Export a session as a business plan document
//	serve    - Serve coaching turns over WebSocket
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration under the user config directory
//	(planloom/config.yaml). Use 'planloom config' commands to manage
//	contexts.
package main

import (
	"fmt"
	"os"

	"github.com/planloom/planloom/cmd/planloom/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
