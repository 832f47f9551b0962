package services

import (
	"context"

	"pesv-compliance/backend/pkg/models"
)

// Renderer is the external rendering collaborator: a pure function from
// structured document content to a byte stream. Layout, fonts and pagination
// are its concern, never the engine's.
type Renderer interface {
	// Render produces the final document bytes for the given content.
	Render(ctx context.Context, content models.DocumentContent) ([]byte, error)
}

// BlobStore is the external byte-storage collaborator. Paths are opaque to
// the engine.
type BlobStore interface {
	// Save persists the bytes and returns the storage path.
	Save(ctx context.Context, data []byte, suggestedName string) (string, error)
	// Open returns the bytes stored at path.
	Open(ctx context.Context, path string) ([]byte, error)
	// Delete removes the bytes stored at path.
	Delete(ctx context.Context, path string) error
}
