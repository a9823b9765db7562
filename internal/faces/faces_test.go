package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareImage_ProducesJPEG(t *testing.T) {
	out, err := PrepareImage(makePNG(t, 40, 30), 1920)
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("small image should keep its size, got %v", img.Bounds())
	}
}

func TestPrepareImage_Downscales(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 200, 100, 50, 50, 25},
		{"portrait", 100, 200, 50, 25, 50},
		{"square", 120, 120, 60, 60, 60},
		{"no limit", 80, 40, 0, 80, 40},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := PrepareImage(makePNG(t, tc.w, tc.h), tc.max)
			if err != nil {
				t.Fatalf("PrepareImage: %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds().Dx() != tc.wantW || img.Bounds().Dy() != tc.wantH {
				t.Errorf("got %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestPrepareImage_RejectsGarbage(t *testing.T) {
	if _, err := PrepareImage([]byte("definitely not an image"), 1920); err == nil {
		t.Fatal("expected decode error")
	}
}

func embeddingServer(t *testing.T, status int, resp FaceResponse, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected image/jpeg part, got %q", ct)
		}
		data, _ := io.ReadAll(file)
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("server received non-JPEG payload: %v", err)
		}

		if status != http.StatusOK {
			http.Error(w, "model exploded", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRemoteExtractor_Outcomes(t *testing.T) {
	twoFaces := FaceResponse{
		FacesCount: 2,
		Model:      "face_recognition",
		Faces: []FaceDetection{
			{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}, DetScore: 0.7},
			{FaceIndex: 1, Dim: 3, Embedding: []float32{0.9, 0.9, 0.9}, DetScore: 0.99},
		},
	}

	tests := []struct {
		name      string
		status    int
		resp      FaceResponse
		wantKind  Kind
		wantFirst float32
	}{
		{"first face wins", http.StatusOK, twoFaces, Success, 0.1},
		{"no faces", http.StatusOK, FaceResponse{FacesCount: 0}, NoFaceFound, 0},
		{"server error", http.StatusInternalServerError, FaceResponse{}, BackendFailure, 0},
		{"empty embedding", http.StatusOK, FaceResponse{FacesCount: 1, Faces: []FaceDetection{{}}}, BackendFailure, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := embeddingServer(t, tc.status, tc.resp, nil)
			defer srv.Close()

			ext := NewRemoteExtractor(srv.URL+"/", "face_recognition", 1920)
			res := ext.Extract(context.Background(), makePNG(t, 16, 16))

			if res.Kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", res.Kind, tc.wantKind, res.Err)
			}
			if tc.wantKind == Success {
				if len(res.Embedding) != 3 || res.Embedding[0] != tc.wantFirst {
					t.Errorf("unexpected embedding %v", res.Embedding)
				}
				if res.FacesCount != 2 {
					t.Errorf("expected faces count 2, got %d", res.FacesCount)
				}
			}
			if tc.wantKind == BackendFailure && res.Err == nil {
				t.Error("backend failure should carry an error")
			}
		})
	}
}

func TestRemoteExtractor_DecodeFailureSkipsServer(t *testing.T) {
	var hits atomic.Int32
	srv := embeddingServer(t, http.StatusOK, FaceResponse{}, &hits)
	defer srv.Close()

	res := NewRemoteExtractor(srv.URL, "face_recognition", 1920).Extract(context.Background(), []byte{0x00, 0x01})

	if res.Kind != DecodeFailure {
		t.Fatalf("kind = %v, want decode_failure", res.Kind)
	}
	if hits.Load() != 0 {
		t.Errorf("server should not be called for undecodable input, got %d calls", hits.Load())
	}
}

func TestRemoteExtractor_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewRemoteExtractor(url, "face_recognition", 1920).Extract(context.Background(), makePNG(t, 8, 8))
	if res.Kind != BackendFailure {
		t.Errorf("kind = %v, want backend_failure", res.Kind)
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Success:        "success",
		NoFaceFound:    "no_face_found",
		DecodeFailure:  "decode_failure",
		BackendFailure: "backend_failure",
		Kind(42):       "kind(42)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestNew_Backends(t *testing.T) {
	ext, err := New(config.FaceConfig{Backend: "remote", URL: "http://embed:8000"})
	if err != nil {
		t.Fatalf("remote: %v", err)
	}
	if _, ok := ext.(*RemoteExtractor); !ok {
		t.Errorf("expected *RemoteExtractor, got %T", ext)
	}

	if _, err := New(config.FaceConfig{Backend: "tensorflow"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

type slowExtractor struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (s *slowExtractor) Extract(ctx context.Context, image []byte) Result {
	s.mu.Lock()
	s.current++
	s.peak = max(s.peak, s.current)
	s.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.current--
	s.mu.Unlock()
	return success([]float32{1}, 1)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	inner := &slowExtractor{}
	pool := NewPool(inner, 2)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			if res := pool.Extract(context.Background(), nil); res.Kind != Success {
				t.Errorf("unexpected kind %v", res.Kind)
			}
		})
	}
	wg.Wait()

	if inner.peak > 2 {
		t.Errorf("expected at most 2 concurrent extractions, saw %d", inner.peak)
	}
}

func TestPool_CancelledWait(t *testing.T) {
	pool := NewPool(&slowExtractor{}, 1)

	// hold the only slot
	if err := pool.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer pool.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := pool.Extract(ctx, nil)
	if res.Kind != BackendFailure {
		t.Errorf("kind = %v, want backend_failure", res.Kind)
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	if NewPool(&slowExtractor{}, 0).Workers() < 1 {
		t.Error("expected at least one worker")
	}
}
