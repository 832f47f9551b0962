// Package storage implements the blob-store collaborator on the local
// filesystem. Paths returned from Save are opaque to callers; only this
// package interprets them.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FSBlobStore stores blobs as files under a root directory, partitioned by
// upload date.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed and returns the store.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

// Save persists the bytes and returns the storage path. The object name is
// qualified with a random prefix so a repeated suggested name never
// overwrites an existing object.
func (s *FSBlobStore) Save(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := time.Now().UTC().Format("2006/01")
	if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	name := uuid.New().String()[:8] + "-" + sanitizeName(suggestedName)
	rel := filepath.ToSlash(filepath.Join(dir, name))
	abs := filepath.Join(s.root, dir, name)

	// write to a temp file first so a crash never leaves a half-written
	// object at the final path
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move blob into place: %w", err)
	}
	return rel, nil
}

// Open returns the bytes stored at path.
func (s *FSBlobStore) Open(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
}

// Delete removes the bytes stored at path. Deleting an absent object is not
// an error.
func (s *FSBlobStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// sanitizeName strips anything that could escape the blob directory or upset
// a filesystem.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}
	name = strings.Map(mapper, name)
	if name == "" || name == "." {
		return "blob"
	}
	return name
}
