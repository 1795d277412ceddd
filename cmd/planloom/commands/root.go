package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/cli"
	"github.com/planloom/planloom/pkg/genkit/generators"
	"github.com/planloom/planloom/pkg/kv"
	"github.com/planloom/planloom/pkg/session"
	"github.com/planloom/planloom/pkg/workshop"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool

	// Global configuration. initConfig records a load failure here
	// instead of exiting, so `--help` and `config` keep working on a
	// broken config file and the error surfaces at first use.
	globalConfig  *cli.Config
	configLoadErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planloom",
	Short: "Business plan coaching CLI",
	Long: `planloom - an LLM coaching workshop for business plans.

The assistant talks a founder through a coaching module (business idea,
market analysis, finance, ...). Structured state blocks embedded in the
reply stream are extracted, repaired if needed, and merged into the plan
state, which is checkpointed per session and exportable as a markdown
business plan.

Configuration supports multiple contexts, similar to kubectl's context
management.

Examples:
  # Set up a context
  planloom config add-context dev --model openai:gpt-4o-mini --openai-api-key '${OPENAI_API_KEY}'

  # Coach a business idea interactively
  planloom chat --module business_idea

  # Inspect the checkpointed state
  planloom state 9f3c212e business_idea --query '.risks | length'

  # Export the plan
  planloom export 9f3c212e --out file:./plans
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/planloom/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	globalConfig, configLoadErr = cli.LoadConfigWithPath(cfgFile)
}

// getConfig returns the global configuration
func getConfig() (*cli.Config, error) {
	if configLoadErr != nil {
		return nil, fmt.Errorf("load config: %w", configLoadErr)
	}
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}

// optionalContext resolves the context when one is configured. Commands
// that only touch the local store run fine without any.
func optionalContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	if contextName == "" && cfg.CurrentContext == "" {
		return nil, nil
	}
	return cfg.ResolveContext(contextName)
}

// testStoreOverride lets command tests run against an in-memory store.
var testStoreOverride kv.Store

// openHost opens the session store for the context (nil for defaults)
// and returns a close func for the underlying database.
func openHost(cctx *cli.Context) (*session.Host, func() error, error) {
	if testStoreOverride != nil {
		return session.NewHost(testStoreOverride), func() error { return nil }, nil
	}

	dir := ""
	if cctx != nil {
		dir = cctx.ResolvedDataDir()
	}
	if dir == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, nil, err
		}
		if err := paths.EnsureDataDir(); err != nil {
			return nil, nil, err
		}
		dir = paths.DataDir()
	}

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, nil, err
	}
	return session.NewHost(store), store.Close, nil
}

// loadModules loads user module definitions on top of the built-ins:
// first <user config dir>/planloom/modules, then the context's module
// directory.
func loadModules(cctx *cli.Context) error {
	paths, err := cli.NewPaths()
	if err != nil {
		return err
	}
	if _, err := os.Stat(paths.ModulesDir()); err == nil {
		if err := workshop.LoadDir(paths.ModulesDir()); err != nil {
			return err
		}
	}
	if cctx != nil && cctx.ModuleDir != "" {
		if err := workshop.LoadDir(cctx.ResolvedModuleDir()); err != nil {
			return err
		}
	}
	return nil
}

// newGenerators builds a generator registry from the context's API
// keys. Schemes without a key stay unregistered and fail at open time.
func newGenerators(cctx *cli.Context) *generators.Registry {
	reg := generators.NewRegistry()
	if key := cctx.ResolvedOpenAIKey(); key != "" {
		_ = reg.RegisterScheme("openai", generators.OpenAI(key, cctx.OpenAIBaseURL))
	}
	if key := cctx.ResolvedGeminiKey(); key != "" {
		_ = reg.RegisterScheme("gemini", generators.Gemini(key))
	}
	return reg
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}
