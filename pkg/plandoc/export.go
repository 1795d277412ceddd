package plandoc

import (
	"context"

	"github.com/planloom/planloom/pkg/storage"
)

// Export validates the document, renders it and writes the markdown to
// path through the store.
func Export(ctx context.Context, store storage.FileStore, path string, doc Doc) error {
	if err := Validate(doc); err != nil {
		return err
	}
	md, err := Render(doc)
	if err != nil {
		return err
	}
	return storage.WriteFile(ctx, store, path, md)
}
