package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database/mock"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

// stubExtractor returns a canned result keyed by image payload. Unknown
// payloads have no face.
type stubExtractor map[string]faces.Result

func (s stubExtractor) Extract(ctx context.Context, image []byte) faces.Result {
	if r, ok := s[string(image)]; ok {
		return r
	}
	return faces.Result{Kind: faces.NoFaceFound}
}

type testServices struct {
	store     *mock.MockStore
	blobs     *blobstore.LocalStore
	extractor stubExtractor
	registrar *pickup.Registrar
	verifier  *pickup.Verifier
	students  *pickup.StudentService
	log       *logger.Logger
}

// newTestServices wires the coordinators over an in-memory store, a temp
// directory blob store and a stub extractor.
func newTestServices(t *testing.T) *testServices {
	t.Helper()
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	ts := &testServices{
		store:     mock.NewMockStore(),
		blobs:     blobs,
		extractor: stubExtractor{},
		log:       logger.Nop(),
	}
	deps := pickup.Deps{
		Store:     ts.store,
		Blobs:     blobs,
		Extractor: ts.extractor,
		Log:       ts.log,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC) },
	}
	ts.registrar = pickup.NewRegistrar(deps)
	ts.verifier = pickup.NewVerifier(deps)
	ts.students = pickup.NewStudentService(deps)
	return ts
}

func (ts *testServices) face(image string, embedding ...float32) {
	ts.extractor[image] = faces.Result{Kind: faces.Success, Embedding: embedding, FacesCount: 1}
}

func (ts *testServices) seedGuardian(id, name string, embedding []float32, studentIDs ...string) {
	ts.store.AddGuardian(database.Guardian{
		ID:                 id,
		Name:               name,
		ReferenceImagePath: "reference/" + id + ".jpg",
		Embedding:          embedding,
		StudentIDs:         studentIDs,
	})
}

// multipartRequest builds a multipart POST. An empty filename omits the file part.
func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
}

// assertError checks status and category of a structured error response.
func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, category string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["category"] != category {
		t.Errorf("expected category %q, got %v", category, body["category"])
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("expected a non-empty error message")
	}
}

var errStore = errors.New("connection refused")
