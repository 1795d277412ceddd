package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the planloom configuration: named contexts plus the one
// currently in use. It lives at <user config dir>/planloom/config.yaml.
type Config struct {
	// CurrentContext is the name of the active context.
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts maps context name to context configuration.
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context selects a generator and where sessions and exports live.
// Credential and path fields may reference the environment as ${VAR};
// the Resolved* accessors expand them so secrets can stay out of the
// config file.
type Context struct {
	// Name is the context name.
	Name string `yaml:"name"`

	// Model is the generator URI, e.g. "openai:gpt-4o-mini" or
	// "gemini:gemini-2.0-flash".
	Model string `yaml:"model,omitempty"`

	// OpenAIKey authenticates "openai:" models.
	OpenAIKey string `yaml:"openai_api_key,omitempty"`

	// OpenAIBaseURL overrides the OpenAI endpoint (optional, for
	// compatible providers).
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`

	// GeminiKey authenticates "gemini:" models.
	GeminiKey string `yaml:"gemini_api_key,omitempty"`

	// DataDir holds the session store. Empty uses the default data
	// directory.
	DataDir string `yaml:"data_dir,omitempty"`

	// ExportURL is the default export target (file: or s3: URL).
	ExportURL string `yaml:"export_url,omitempty"`

	// ModuleDir holds extra coaching module definitions loaded at
	// startup.
	ModuleDir string `yaml:"module_dir,omitempty"`
}

// LoadConfig loads the configuration, creating an empty file on first
// use.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads the configuration from a custom path.
func LoadConfigWithPath(customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths()
		if err != nil {
			return nil, err
		}
		configPath = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("cli: create config directory: %w", err)
	}

	cfg := &Config{
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.configPath }

// AddContext adds or replaces a context and saves.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context and saves.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context and saves.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns the named context.
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("cli: context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, or the current one when
// name is empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("cli: no current context set; add one with %q", "planloom config add-context")
	}
	return c.GetContext(c.CurrentContext)
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolvedOpenAIKey returns the OpenAI key with ${VAR} references
// expanded.
func (ctx *Context) ResolvedOpenAIKey() string { return os.ExpandEnv(ctx.OpenAIKey) }

// ResolvedGeminiKey returns the Gemini key with ${VAR} references
// expanded.
func (ctx *Context) ResolvedGeminiKey() string { return os.ExpandEnv(ctx.GeminiKey) }

// ResolvedDataDir returns the data directory with ${VAR} references
// expanded.
func (ctx *Context) ResolvedDataDir() string { return os.ExpandEnv(ctx.DataDir) }

// ResolvedExportURL returns the export target with ${VAR} references
// expanded.
func (ctx *Context) ResolvedExportURL() string { return os.ExpandEnv(ctx.ExportURL) }

// ResolvedModuleDir returns the module directory with ${VAR} references
// expanded.
func (ctx *Context) ResolvedModuleDir() string { return os.ExpandEnv(ctx.ModuleDir) }

// MaskAPIKey masks an API key for display.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
