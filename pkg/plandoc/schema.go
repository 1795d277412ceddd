package plandoc

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	schemaOnce sync.Once
	docSchema  *jsonschema.Resolved
	schemaErr  error
)

// resolvedSchema derives the document schema once and tightens the
// parts a rendered plan cannot do without.
func resolvedSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		s, err := jsonschema.For[Doc](nil)
		if err != nil {
			schemaErr = err
			return
		}
		one := 1
		s.Properties["session_id"].MinLength = &one
		s.Properties["title"].MinLength = &one
		s.Properties["sections"].MinItems = &one
		section := s.Properties["sections"].Items
		section.Properties["module"].MinLength = &one
		section.Properties["title"].MinLength = &one
		docSchema, schemaErr = s.Resolve(nil)
	})
	return docSchema, schemaErr
}

// Validate checks the assembled document against the plan schema. The
// returned error names the offending location.
func Validate(doc Doc) error {
	resolved, err := resolvedSchema()
	if err != nil {
		return fmt.Errorf("plandoc: build schema: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("plandoc: encode document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("plandoc: decode document: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("plandoc: invalid document: %w", err)
	}
	return nil
}
