// Package cli carries the shared pieces of the planloom command line:
// configuration contexts stored under the user config directory and
// switchable like kubectl contexts, output formatting for the
// inspection commands, and the lipgloss styles of the chat surface.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig()
//	cctx, err := cfg.ResolveContext("")
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	})
package cli
