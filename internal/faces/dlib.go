//go:build dlib

package faces

import (
	"context"
	"errors"
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"
)

// DlibExtractor runs dlib's detector and ResNet descriptor in-process.
// Descriptors are 128 dimensional.
type DlibExtractor struct {
	mu      sync.Mutex
	rec     *face.Recognizer
	cnn     bool
	maxSize int
}

// NewDlibExtractor loads the dlib models from modelsDir. Model "cnn" uses the
// CNN detector; anything else uses HOG.
func NewDlibExtractor(modelsDir, model string, maxSize int) (Extractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibExtractor{rec: rec, cnn: model == "cnn", maxSize: maxSize}, nil
}

func (e *DlibExtractor) Extract(ctx context.Context, image []byte) Result {
	// go-face only reads JPEG, PrepareImage normalizes every input to it.
	prepared, err := PrepareImage(image, e.maxSize)
	if err != nil {
		return decodeFailure(err)
	}
	if err := ctx.Err(); err != nil {
		return backendFailure(err)
	}

	e.mu.Lock()
	var found []face.Face
	if e.cnn {
		found, err = e.rec.RecognizeCNN(prepared)
	} else {
		found, err = e.rec.Recognize(prepared)
	}
	e.mu.Unlock()

	if err != nil {
		var loadErr face.ImageLoadError
		if errors.As(err, &loadErr) {
			return decodeFailure(err)
		}
		return backendFailure(err)
	}
	if len(found) == 0 {
		return Result{Kind: NoFaceFound}
	}

	d := found[0].Descriptor
	embedding := make([]float32, len(d))
	copy(embedding, d[:])
	return success(embedding, len(found))
}

// Close frees the dlib models.
func (e *DlibExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Close()
	return nil
}
