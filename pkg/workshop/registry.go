package workshop

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed modules/*.yaml
var builtinModules embed.FS

// Registry holds loaded modules by ID.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds a module. It fails when the module is invalid or its ID
// is already taken.
func (r *Registry) Register(m *Module) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("workshop: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.ID]; exists {
		return fmt.Errorf("workshop: module %q already registered", m.ID)
	}
	r.modules[m.ID] = m
	return nil
}

// Get returns the module with the given ID.
func (r *Registry) Get(id string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// IDs returns the registered module IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir parses and registers every .yaml module definition in dir.
// A module whose ID is already registered replaces the earlier one, so
// user module directories can override the built-ins.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("workshop: read modules dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("workshop: read module %s: %w", e.Name(), err)
		}
		m, err := ParseModuleYAML(data)
		if err != nil {
			return fmt.Errorf("workshop: module %s: %w", e.Name(), err)
		}
		r.mu.Lock()
		r.modules[m.ID] = m
		r.mu.Unlock()
	}
	return nil
}

// defaultRegistry serves the package-level functions, pre-loaded with
// the built-in modules.
var defaultRegistry = NewRegistry()

func init() {
	entries, err := builtinModules.ReadDir("modules")
	if err != nil {
		panic(fmt.Sprintf("workshop: builtin modules: %v", err))
	}
	for _, e := range entries {
		data, err := builtinModules.ReadFile(path.Join("modules", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("workshop: builtin module %s: %v", e.Name(), err))
		}
		m, err := ParseModuleYAML(data)
		if err != nil {
			panic(fmt.Sprintf("workshop: builtin module %s: %v", e.Name(), err))
		}
		if err := defaultRegistry.Register(m); err != nil {
			panic(err)
		}
	}
}

// Register adds a module to the default registry.
func Register(m *Module) error { return defaultRegistry.Register(m) }

// Get returns a module from the default registry.
func Get(id string) (*Module, bool) { return defaultRegistry.Get(id) }

// IDs lists the default registry's module IDs in sorted order.
func IDs() []string { return defaultRegistry.IDs() }

// LoadDir registers every module definition in dir with the default
// registry.
func LoadDir(dir string) error { return defaultRegistry.LoadDir(dir) }
