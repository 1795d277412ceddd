package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple generator configurations,
similar to kubectl's context management.

API keys may be stored as ${VAR} references; they are expanded from the
environment at use time and never written back expanded.

Configuration is stored in <user config dir>/planloom/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  planloom config add-context dev --model openai:gpt-4o-mini --openai-api-key '${OPENAI_API_KEY}'
  planloom config add-context gem --model gemini:gemini-2.0-flash --gemini-api-key '${GEMINI_API_KEY}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		model, err := cmd.Flags().GetString("model")
		if err != nil {
			return fmt.Errorf("failed to read 'model' flag: %w", err)
		}
		openaiKey, err := cmd.Flags().GetString("openai-api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'openai-api-key' flag: %w", err)
		}
		openaiBaseURL, err := cmd.Flags().GetString("openai-base-url")
		if err != nil {
			return fmt.Errorf("failed to read 'openai-base-url' flag: %w", err)
		}
		geminiKey, err := cmd.Flags().GetString("gemini-api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'gemini-api-key' flag: %w", err)
		}
		dataDir, err := cmd.Flags().GetString("data-dir")
		if err != nil {
			return fmt.Errorf("failed to read 'data-dir' flag: %w", err)
		}
		exportURL, err := cmd.Flags().GetString("export-url")
		if err != nil {
			return fmt.Errorf("failed to read 'export-url' flag: %w", err)
		}
		moduleDir, err := cmd.Flags().GetString("module-dir")
		if err != nil {
			return fmt.Errorf("failed to read 'module-dir' flag: %w", err)
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(name, &cli.Context{
			Model:         model,
			OpenAIKey:     openaiKey,
			OpenAIBaseURL: openaiBaseURL,
			GeminiKey:     geminiKey,
			DataDir:       dataDir,
			ExportURL:     exportURL,
			ModuleDir:     moduleDir,
		}); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tMODEL\tEXPORT")

		for _, name := range cfg.ListContexts() {
			cctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, cctx.Model, cctx.ExportURL)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for _, name := range cfg.ListContexts() {
				cctx := cfg.Contexts[name]
				fmt.Printf("\n  %s:\n", name)
				fmt.Printf("    Model: %s\n", cctx.Model)
				if cctx.OpenAIKey != "" {
					fmt.Printf("    OpenAI API Key: %s\n", cli.MaskAPIKey(cctx.ResolvedOpenAIKey()))
				}
				if cctx.OpenAIBaseURL != "" {
					fmt.Printf("    OpenAI Base URL: %s\n", cctx.OpenAIBaseURL)
				}
				if cctx.GeminiKey != "" {
					fmt.Printf("    Gemini API Key: %s\n", cli.MaskAPIKey(cctx.ResolvedGeminiKey()))
				}
				if cctx.DataDir != "" {
					fmt.Printf("    Data Dir: %s\n", cctx.DataDir)
				}
				if cctx.ExportURL != "" {
					fmt.Printf("    Export URL: %s\n", cctx.ExportURL)
				}
				if cctx.ModuleDir != "" {
					fmt.Printf("    Module Dir: %s\n", cctx.ModuleDir)
				}
			}
		}

		return nil
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().String("model", "", "generator model URI, e.g. openai:gpt-4o-mini")
	configAddContextCmd.Flags().String("openai-api-key", "", "OpenAI API key or ${VAR} reference")
	configAddContextCmd.Flags().String("openai-base-url", "", "OpenAI-compatible base URL")
	configAddContextCmd.Flags().String("gemini-api-key", "", "Gemini API key or ${VAR} reference")
	configAddContextCmd.Flags().String("data-dir", "", "session store directory")
	configAddContextCmd.Flags().String("export-url", "", "default export target (file:... or s3://...)")
	configAddContextCmd.Flags().String("module-dir", "", "extra module definition directory")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
