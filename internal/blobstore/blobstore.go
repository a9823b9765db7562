// Package blobstore stores uploaded images under category prefixes.
package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/constants"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
)

// Category separates reference photos from pickup verification photos.
type Category string

const (
	CategoryReference Category = "reference"
	CategoryVerified  Category = "verified"
)

// ErrNotFound is returned by Open when no object exists at the path.
var ErrNotFound = errors.New("blob not found")

// Store persists image bytes. Paths returned by Save are relative,
// "<category>/<stem>_<unixnano>_<8 hex>.<ext>", and unique per call.
type Store interface {
	Save(ctx context.Context, category Category, filename string, data []byte) (string, error)
	Open(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	ext := path.Ext(filename)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedImage reports whether filename has an accepted image extension.
func AllowedImage(filename string) bool {
	return slices.Contains(constants.AllowedImageExtensions, Extension(filename))
}

// secureStem reduces a client filename stem to ASCII letters, digits, dash and
// underscore. Path separators and dots cannot survive, so the result never
// escapes its category directory.
func secureStem(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = facematch.RemoveDiacritics(base)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	stem := strings.Trim(b.String(), "_-")
	if stem == "" {
		return "image"
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return stem
}

// ObjectPath builds a unique relative path for a new upload.
func ObjectPath(category Category, filename string, now time.Time) string {
	id := uuid.New()
	suffix := hex.EncodeToString(id[:4])
	name := fmt.Sprintf("%s_%d_%s", secureStem(filename), now.UnixNano(), suffix)
	if ext := Extension(filename); ext != "" {
		name += "." + ext
	}
	return string(category) + "/" + name
}

// validPath rejects paths that are absolute or climb out of the store root.
func validPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return fmt.Errorf("invalid blob path %q", p)
	}
	if clean := path.Clean(p); clean != p || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid blob path %q", p)
	}
	return nil
}

func validCategory(c Category) error {
	switch c {
	case CategoryReference, CategoryVerified:
		return nil
	default:
		return fmt.Errorf("unknown blob category %q", c)
	}
}
