package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket. Object names are the
// relative paths returned by Save.
type GCSStore struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCSStore creates a client with application default credentials unless
// opts say otherwise.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required for the gcs storage backend")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, now: time.Now}, nil
}

func (s *GCSStore) Save(ctx context.Context, category Category, filename string, data []byte) (string, error) {
	if err := validCategory(category); err != nil {
		return "", err
	}
	name := ObjectPath(category, filename, s.now())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	// DoesNotExist makes a name collision fail instead of overwriting.
	w := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType(filename)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return name, nil
}

func (s *GCSStore) Open(ctx context.Context, p string) ([]byte, error) {
	if err := validPath(p); err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(p).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, p string) error {
	if err := validPath(p); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(p).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func contentType(filename string) string {
	switch Extension(filename) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
