package pickup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database/mock"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/notify"
)

// fakeExtractor returns a canned result per image payload. Unknown payloads
// have no face.
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]faces.Result
	calls   int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{results: make(map[string]faces.Result)}
}

func (f *fakeExtractor) face(image string, embedding ...float32) {
	f.results[image] = faces.Result{Kind: faces.Success, Embedding: embedding, FacesCount: 1}
}

func (f *fakeExtractor) fail(image string, kind faces.Kind) {
	f.results[image] = faces.Result{Kind: kind, Err: fmt.Errorf("injected %s", kind)}
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) faces.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r, ok := f.results[string(image)]; ok {
		return r
	}
	return faces.Result{Kind: faces.NoFaceFound}
}

// memBlobs is an in-memory blobstore.Store.
type memBlobs struct {
	mu        sync.Mutex
	files     map[string][]byte
	now       time.Time
	SaveErr   error
	DeleteErr error
	FixedPath string // when set, Save always returns this path
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: make(map[string][]byte), now: time.Unix(1700000000, 0)}
}

func (b *memBlobs) Save(ctx context.Context, category blobstore.Category, filename string, data []byte) (string, error) {
	if b.SaveErr != nil {
		return "", b.SaveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.FixedPath
	if p == "" {
		b.now = b.now.Add(time.Nanosecond)
		p = blobstore.ObjectPath(category, filename, b.now)
	}
	b.files[p] = append([]byte(nil), data...)
	return p, nil
}

func (b *memBlobs) Open(ctx context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, blobstore.ErrNotFound)
	}
	return data, nil
}

func (b *memBlobs) Delete(ctx context.Context, path string) error {
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, path)
	return nil
}

// count returns the number of stored files in a category.
func (b *memBlobs) count(category blobstore.Category) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for p := range b.files {
		if strings.HasPrefix(p, string(category)+"/") {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.PickupNotice
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, notice notify.PickupNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

type testEnv struct {
	store    *mock.MockStore
	blobs    *memBlobs
	ext      *fakeExtractor
	notifier *recordingNotifier
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    mock.NewMockStore(),
		blobs:    newMemBlobs(),
		ext:      newFakeExtractor(),
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC),
	}
	// successive records get strictly increasing creation times
	tick := env.clock
	env.store.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return env
}

func (e *testEnv) deps() Deps {
	return Deps{
		Store:     e.store,
		Blobs:     e.blobs,
		Extractor: e.ext,
		Notifier:  e.notifier,
		Now:       func() time.Time { return e.clock },
	}
}

func (e *testEnv) addStudent(id, name, email string, guardianIDs ...string) {
	e.store.AddStudent(database.Student{ID: id, Name: name, TeacherEmail: email, GuardianIDs: guardianIDs})
}

func (e *testEnv) addGuardian(id, name string, created time.Time, embedding []float32, studentIDs ...string) {
	e.store.AddGuardian(database.Guardian{
		ID:                 id,
		Name:               name,
		ReferenceImagePath: "reference/" + id + ".jpg",
		Embedding:          embedding,
		StudentIDs:         studentIDs,
		CreatedAt:          created,
	})
}

// requireKind fails the test unless err is a *Error of the given kind.
func requireKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pickup.Error of kind %s, got %v", want, err)
	}
	if perr.Kind != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, perr.Kind, err)
	}
	return perr
}
