package database

import (
	"context"
)

// GuardianReader provides read-only access to guardians
type GuardianReader interface {
	// GetGuardian returns the guardian with the given id or ErrNotFound
	GetGuardian(ctx context.Context, id string) (*Guardian, error)
	// FindGuardianByImagePath returns the guardian owning a reference image, or nil if none
	FindGuardianByImagePath(ctx context.Context, path string) (*Guardian, error)
	// ListGuardians returns every guardian in gallery order
	ListGuardians(ctx context.Context) ([]Guardian, error)
	// ListGallery returns id and embedding of every guardian in gallery order
	// (created_at, then id). Guardians without an embedding are included with a nil embedding.
	ListGallery(ctx context.Context) ([]GalleryEntry, error)
}

// GuardianWriter provides write access to guardians
type GuardianWriter interface {
	GuardianReader

	// InsertGuardian stores a new guardian, assigning its ID and CreatedAt when empty.
	// Returns ErrConflict if another guardian already owns the reference image path.
	InsertGuardian(ctx context.Context, g *Guardian) error

	// AddStudentToGuardian appends studentID to the guardian's student set.
	// Appending an id that is already present is a no-op. Returns ErrNotFound for an unknown guardian.
	AddStudentToGuardian(ctx context.Context, guardianID, studentID string) error

	// SetGuardianEmbedding replaces the guardian's embedding.
	SetGuardianEmbedding(ctx context.Context, guardianID string, embedding []float32) error
}

// StudentReader provides read-only access to students
type StudentReader interface {
	// GetStudent returns the student with the given id or ErrNotFound
	GetStudent(ctx context.Context, id string) (*Student, error)
	// FindStudentByName returns the student whose normalized name matches, or nil if none.
	// Names are normalized before comparison (lowercase, no diacritics, dashes to spaces).
	FindStudentByName(ctx context.Context, name string) (*Student, error)
	// ListStudents returns every student ordered by creation
	ListStudents(ctx context.Context) ([]Student, error)
}

// StudentWriter provides write access to students
type StudentWriter interface {
	StudentReader

	// InsertStudent stores a new student, assigning its ID and CreatedAt when empty.
	// Returns ErrConflict if a student with the same normalized name exists.
	InsertStudent(ctx context.Context, s *Student) error

	// AddGuardianToStudent appends guardianID to the student's guardian set.
	// Appending an id that is already present is a no-op. Returns ErrNotFound for an unknown student.
	AddGuardianToStudent(ctx context.Context, studentID, guardianID string) error
}

// PickupLogReader provides read-only access to the pickup audit trail
type PickupLogReader interface {
	// ListPickupLogs returns logs newest first
	ListPickupLogs(ctx context.Context, filter PickupLogFilter) ([]PickupLog, error)
}

// PickupLogWriter appends to the pickup audit trail
type PickupLogWriter interface {
	PickupLogReader

	// InsertPickupLogs writes all logs or none of them. IDs are assigned when empty.
	InsertPickupLogs(ctx context.Context, logs []PickupLog) error
}

// Store is the complete record store used by the service.
type Store interface {
	GuardianWriter
	StudentWriter
	PickupLogWriter

	// Ping checks connectivity
	Ping(ctx context.Context) error
	// Close releases the underlying connections
	Close() error
}
