package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LocalStore keeps blobs on the local filesystem under Root.
type LocalStore struct {
	Root string
	now  func() time.Time
}

// NewLocalStore creates the category directories under root.
func NewLocalStore(root string) (*LocalStore, error) {
	for _, c := range []Category{CategoryReference, CategoryVerified} {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o750); err != nil {
			return nil, fmt.Errorf("create %s folder: %w", c, err)
		}
	}
	return &LocalStore{Root: root, now: time.Now}, nil
}

func (s *LocalStore) Save(ctx context.Context, category Category, filename string, data []byte) (string, error) {
	if err := validCategory(category); err != nil {
		return "", err
	}
	rel := ObjectPath(category, filename, s.now())
	full := filepath.Join(s.Root, filepath.FromSlash(rel))

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // path built by ObjectPath
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rel, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	return rel, nil
}

func (s *LocalStore) Open(ctx context.Context, p string) ([]byte, error) {
	if err := validPath(p); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(p))) //nolint:gosec // validated above
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, p string) error {
	if err := validPath(p); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(p)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}
