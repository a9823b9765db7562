//go:build !dlib

package faces

import "errors"

// NewDlibExtractor is unavailable without the dlib build tag.
func NewDlibExtractor(modelsDir, model string, maxSize int) (Extractor, error) {
	return nil, errors.New("dlib backend not compiled in: rebuild with -tags dlib")
}
