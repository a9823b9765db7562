// Package faces turns image bytes into a face embedding.
package faces

import (
	"context"
	"fmt"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
)

// Kind classifies the outcome of an extraction.
type Kind int

const (
	// Success means a face was found and Result.Embedding is set.
	Success Kind = iota
	// NoFaceFound means the image decoded but contains no detectable face.
	NoFaceFound
	// DecodeFailure means the bytes are not a readable image.
	DecodeFailure
	// BackendFailure means the detector itself failed (network, model, server error).
	BackendFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NoFaceFound:
		return "no_face_found"
	case DecodeFailure:
		return "decode_failure"
	case BackendFailure:
		return "backend_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the tagged outcome of Extract. Embedding is set only for Success;
// Err carries the cause for DecodeFailure and BackendFailure.
type Result struct {
	Kind       Kind
	Embedding  []float32
	FacesCount int
	Err        error
}

// Extractor computes the embedding of the first detected face in an image.
// Implementations are pure over the bytes they receive.
type Extractor interface {
	Extract(ctx context.Context, image []byte) Result
}

func success(embedding []float32, count int) Result {
	return Result{Kind: Success, Embedding: embedding, FacesCount: count}
}

func decodeFailure(err error) Result {
	return Result{Kind: DecodeFailure, Err: err}
}

func backendFailure(err error) Result {
	return Result{Kind: BackendFailure, Err: err}
}

// New builds the extractor selected by cfg.Backend.
func New(cfg config.FaceConfig) (Extractor, error) {
	switch cfg.Backend {
	case "remote", "":
		return NewRemoteExtractor(cfg.URL, cfg.Model, cfg.MaxImagePx), nil
	case "dlib":
		return NewDlibExtractor(cfg.ModelsDir, cfg.Model, cfg.MaxImagePx)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q (expected remote or dlib)", cfg.Backend)
	}
}
