package cli

import (
	"os"
	"path/filepath"
)

const appDirName = "planloom"

// Paths locates the planloom directories under the user config dir.
type Paths struct {
	base string
}

// NewPaths resolves the base directory (<user config dir>/planloom).
func NewPaths() (*Paths, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &Paths{base: filepath.Join(cfg, appDirName)}, nil
}

// BaseDir returns the planloom directory.
func (p *Paths) BaseDir() string { return p.base }

// ConfigFile returns the config file path.
func (p *Paths) ConfigFile() string { return filepath.Join(p.base, "config.yaml") }

// DataDir returns the session store directory.
func (p *Paths) DataDir() string { return filepath.Join(p.base, "data") }

// ExportsDir returns the default export directory.
func (p *Paths) ExportsDir() string { return filepath.Join(p.base, "exports") }

// ModulesDir returns the directory for extra coaching modules.
func (p *Paths) ModulesDir() string { return filepath.Join(p.base, "modules") }

// EnsureDataDir creates the session store directory if needed.
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0o755)
}
