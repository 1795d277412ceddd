package heuristics

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed rules/*.yaml
var builtinRules embed.FS

var defaultClassifier = func() *Classifier {
	var all []Rule
	err := fs.WalkDir(builtinRules, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := builtinRules.ReadFile(path)
		if err != nil {
			return err
		}
		rules, err := ParseRules(b)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, rules...)
		return nil
	})
	if err != nil {
		panic(fmt.Sprintf("heuristics: builtin rules: %v", err))
	}
	c, err := NewClassifier(all)
	if err != nil {
		panic(fmt.Sprintf("heuristics: builtin rules: %v", err))
	}
	return c
}()

// Default returns the classifier over the embedded rule set.
func Default() *Classifier {
	return defaultClassifier
}

// Scan runs the embedded rule set over the text.
func Scan(text string) []Finding {
	return defaultClassifier.Scan(text)
}
