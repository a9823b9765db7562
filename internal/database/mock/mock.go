// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
)

// MockStore is an in-memory database.Store. Records are copied on the way in
// and out so callers cannot mutate stored state.
type MockStore struct {
	mu        sync.RWMutex
	guardians map[string]*database.Guardian
	students  map[string]*database.Student
	logs      []database.PickupLog

	// Now supplies CreatedAt for new records. Defaults to time.Now.
	Now func() time.Time

	// Error injection
	GetGuardianError          error
	FindGuardianByPathError   error
	ListGuardiansError        error
	ListGalleryError          error
	InsertGuardianError       error
	AddStudentToGuardianError error
	SetEmbeddingError         error
	GetStudentError           error
	FindStudentByNameError    error
	ListStudentsError         error
	InsertStudentError        error
	AddGuardianToStudentError error
	ListPickupLogsError       error
	InsertPickupLogsError     error
	PingError                 error

	// FailAddStudentFor makes AddStudentToGuardian fail for the listed guardian ids.
	FailAddStudentFor map[string]bool

	closed bool
}

// NewMockStore creates an empty store
func NewMockStore() *MockStore {
	return &MockStore{
		guardians: make(map[string]*database.Guardian),
		students:  make(map[string]*database.Student),
		Now:       time.Now,
	}
}

var _ database.Store = (*MockStore)(nil)

func copyGuardian(g *database.Guardian) *database.Guardian {
	out := *g
	out.Embedding = slices.Clone(g.Embedding)
	out.StudentIDs = slices.Clone(g.StudentIDs)
	return &out
}

func copyStudent(s *database.Student) *database.Student {
	out := *s
	out.GuardianIDs = slices.Clone(s.GuardianIDs)
	return &out
}

// sortedGuardians returns guardians in gallery order. Caller holds the lock.
func (m *MockStore) sortedGuardians() []*database.Guardian {
	out := make([]*database.Guardian, 0, len(m.guardians))
	for _, g := range m.guardians {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddGuardian seeds a guardian without going through uniqueness checks.
func (m *MockStore) AddGuardian(g database.Guardian) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = m.Now()
	}
	m.guardians[g.ID] = copyGuardian(&g)
}

// AddStudent seeds a student without going through uniqueness checks.
func (m *MockStore) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.Now()
	}
	m.students[s.ID] = copyStudent(&s)
}

// PickupLogs returns every stored log in insertion order.
func (m *MockStore) PickupLogs() []database.PickupLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.logs)
}

// GuardianCount returns the number of stored guardians.
func (m *MockStore) GuardianCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.guardians)
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MockStore) GetGuardian(ctx context.Context, id string) (*database.Guardian, error) {
	if m.GetGuardianError != nil {
		return nil, m.GetGuardianError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guardians[id]
	if !ok {
		return nil, fmt.Errorf("guardian %s: %w", id, database.ErrNotFound)
	}
	return copyGuardian(g), nil
}

func (m *MockStore) FindGuardianByImagePath(ctx context.Context, path string) (*database.Guardian, error) {
	if m.FindGuardianByPathError != nil {
		return nil, m.FindGuardianByPathError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.guardians {
		if g.ReferenceImagePath == path {
			return copyGuardian(g), nil
		}
	}
	return nil, nil
}

func (m *MockStore) ListGuardians(ctx context.Context) ([]database.Guardian, error) {
	if m.ListGuardiansError != nil {
		return nil, m.ListGuardiansError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sorted := m.sortedGuardians()
	out := make([]database.Guardian, 0, len(sorted))
	for _, g := range sorted {
		out = append(out, *copyGuardian(g))
	}
	return out, nil
}

func (m *MockStore) ListGallery(ctx context.Context) ([]database.GalleryEntry, error) {
	if m.ListGalleryError != nil {
		return nil, m.ListGalleryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sorted := m.sortedGuardians()
	out := make([]database.GalleryEntry, 0, len(sorted))
	for _, g := range sorted {
		out = append(out, database.GalleryEntry{ID: g.ID, Embedding: slices.Clone(g.Embedding)})
	}
	return out, nil
}

func (m *MockStore) InsertGuardian(ctx context.Context, g *database.Guardian) error {
	if m.InsertGuardianError != nil {
		return m.InsertGuardianError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.guardians {
		if existing.ReferenceImagePath == g.ReferenceImagePath {
			return fmt.Errorf("reference image %s: %w", g.ReferenceImagePath, database.ErrConflict)
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = m.Now()
	}
	m.guardians[g.ID] = copyGuardian(g)
	return nil
}

func (m *MockStore) AddStudentToGuardian(ctx context.Context, guardianID, studentID string) error {
	if m.AddStudentToGuardianError != nil {
		return m.AddStudentToGuardianError
	}
	if m.FailAddStudentFor[guardianID] {
		return fmt.Errorf("injected failure linking guardian %s", guardianID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guardians[guardianID]
	if !ok {
		return fmt.Errorf("guardian %s: %w", guardianID, database.ErrNotFound)
	}
	if !slices.Contains(g.StudentIDs, studentID) {
		g.StudentIDs = append(g.StudentIDs, studentID)
	}
	return nil
}

func (m *MockStore) SetGuardianEmbedding(ctx context.Context, guardianID string, embedding []float32) error {
	if m.SetEmbeddingError != nil {
		return m.SetEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guardians[guardianID]
	if !ok {
		return fmt.Errorf("guardian %s: %w", guardianID, database.ErrNotFound)
	}
	g.Embedding = slices.Clone(embedding)
	return nil
}

func (m *MockStore) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	if m.GetStudentError != nil {
		return nil, m.GetStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", id, database.ErrNotFound)
	}
	return copyStudent(s), nil
}

func (m *MockStore) FindStudentByName(ctx context.Context, name string) (*database.Student, error) {
	if m.FindStudentByNameError != nil {
		return nil, m.FindStudentByNameError
	}
	key := facematch.NormalizePersonName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if facematch.NormalizePersonName(s.Name) == key {
			return copyStudent(s), nil
		}
	}
	return nil, nil
}

func (m *MockStore) ListStudents(ctx context.Context) ([]database.Student, error) {
	if m.ListStudentsError != nil {
		return nil, m.ListStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *copyStudent(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockStore) InsertStudent(ctx context.Context, s *database.Student) error {
	if m.InsertStudentError != nil {
		return m.InsertStudentError
	}
	key := facematch.NormalizePersonName(s.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if facematch.NormalizePersonName(existing.Name) == key {
			return fmt.Errorf("student %q: %w", s.Name, database.ErrConflict)
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.Now()
	}
	m.students[s.ID] = copyStudent(s)
	return nil
}

func (m *MockStore) AddGuardianToStudent(ctx context.Context, studentID, guardianID string) error {
	if m.AddGuardianToStudentError != nil {
		return m.AddGuardianToStudentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
	}
	if !slices.Contains(s.GuardianIDs, guardianID) {
		s.GuardianIDs = append(s.GuardianIDs, guardianID)
	}
	return nil
}

func (m *MockStore) ListPickupLogs(ctx context.Context, filter database.PickupLogFilter) ([]database.PickupLog, error) {
	if m.ListPickupLogsError != nil {
		return nil, m.ListPickupLogsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.PickupLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if filter.GuardianID != "" && l.GuardianID != filter.GuardianID {
			continue
		}
		if filter.StudentID != "" && l.StudentID != filter.StudentID {
			continue
		}
		if !filter.Since.IsZero() && l.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, l)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// InsertPickupLogs validates every log before writing any of them.
func (m *MockStore) InsertPickupLogs(ctx context.Context, logs []database.PickupLog) error {
	if m.InsertPickupLogsError != nil {
		return m.InsertPickupLogsError
	}
	for i, l := range logs {
		if l.GuardianID == "" || l.StudentID == "" {
			return fmt.Errorf("pickup log %d: guardian and student ids are required", i)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
		m.logs = append(m.logs, logs[i])
	}
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingError
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
