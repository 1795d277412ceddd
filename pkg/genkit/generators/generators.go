// Package generators routes generation requests to registered backends
// by model URI of the form "scheme:model", e.g. "openai:gpt-4o-mini" or
// "gemini:gemini-2.0-flash".
package generators

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/planloom/planloom/pkg/genkit"
)

// Factory builds a Generator for one model of its scheme.
type Factory func(model string) (genkit.Generator, error)

// Registry routes model URIs to generators. Exact registrations take
// precedence; otherwise the URI's scheme selects a factory and the
// built generator is cached under the full URI.
type Registry struct {
	mu        sync.RWMutex
	gens      map[string]genkit.Generator
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		gens:      make(map[string]genkit.Generator),
		factories: make(map[string]Factory),
	}
}

// Handle registers a generator under a fixed URI.
// Returns an error if the URI is already taken.
func (r *Registry) Handle(uri string, gen genkit.Generator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gens[uri]; exists {
		return fmt.Errorf("generator already registered for %s", uri)
	}
	r.gens[uri] = gen
	return nil
}

// RegisterScheme registers a factory for every model of a scheme.
func (r *Registry) RegisterScheme(scheme string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[scheme]; exists {
		return fmt.Errorf("factory already registered for scheme %s", scheme)
	}
	r.factories[scheme] = f
	return nil
}

// Open resolves a model URI to a generator.
func (r *Registry) Open(uri string) (genkit.Generator, error) {
	r.mu.RLock()
	gen, ok := r.gens[uri]
	r.mu.RUnlock()
	if ok {
		return gen, nil
	}

	scheme, model, found := strings.Cut(uri, ":")
	if !found || model == "" {
		return nil, fmt.Errorf("generator not found for %s", uri)
	}
	r.mu.RLock()
	f, ok := r.factories[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("generator not found for %s", uri)
	}

	gen, err := f(model)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.gens[uri]; ok {
		return cached, nil
	}
	r.gens[uri] = gen
	return gen, nil
}

// GenerateStream opens the generator for uri and starts a stream.
func (r *Registry) GenerateStream(ctx context.Context, uri string, mctx genkit.ModelContext) (genkit.Stream, error) {
	gen, err := r.Open(uri)
	if err != nil {
		return nil, err
	}
	return gen.GenerateStream(ctx, uri, mctx)
}

// URIs returns the fixed registrations in sorted order.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uris := make([]string, 0, len(r.gens))
	for uri := range r.gens {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// DefaultRegistry is the default generator registry.
var DefaultRegistry = NewRegistry()

// Handle registers a generator under a fixed URI in the default registry.
func Handle(uri string, gen genkit.Generator) error {
	return DefaultRegistry.Handle(uri, gen)
}

// RegisterScheme registers a scheme factory in the default registry.
func RegisterScheme(scheme string, f Factory) error {
	return DefaultRegistry.RegisterScheme(scheme, f)
}

// Open resolves a model URI through the default registry.
func Open(uri string) (genkit.Generator, error) {
	return DefaultRegistry.Open(uri)
}

// GenerateStream starts a stream through the default registry.
func GenerateStream(ctx context.Context, uri string, mctx genkit.ModelContext) (genkit.Stream, error) {
	return DefaultRegistry.GenerateStream(ctx, uri, mctx)
}

// OpenAI returns a Factory for "openai:<model>" URIs.
// An empty baseURL uses the public API endpoint.
func OpenAI(apiKey, baseURL string) Factory {
	return func(model string) (genkit.Generator, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("api key is required for openai models")
		}
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		client := openai.NewClient(opts...)
		return &genkit.OpenAIGenerator{
			Client:        &client,
			Model:         model,
			UseSystemRole: true,
		}, nil
	}
}

// Gemini returns a Factory for "gemini:<model>" URIs.
func Gemini(apiKey string) Factory {
	return func(model string) (genkit.Generator, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("api key is required for gemini models")
		}
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: apiKey,
		})
		if err != nil {
			return nil, err
		}
		return &genkit.GeminiGenerator{
			Client: client,
			Model:  model,
		}, nil
	}
}
