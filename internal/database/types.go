package database

import (
	"time"
)

// Guardian is an adult authorized to pick up students, identified by the
// face in their reference photo.
type Guardian struct {
	ID                 string
	Name               string
	ReferenceImagePath string    // unique across guardians
	Embedding          []float32 // nil until extracted
	StudentIDs         []string  // insertion ordered, no duplicates
	CreatedAt          time.Time // defines gallery order
}

// HasEmbedding reports whether the guardian can take part in matching.
func (g *Guardian) HasEmbedding() bool {
	return len(g.Embedding) > 0
}

// Student is a child that may be released to one of its guardians.
type Student struct {
	ID           string
	Name         string
	TeacherEmail string // empty when unknown
	GuardianIDs  []string
	CreatedAt    time.Time
}

// PickupLog records one student released to one guardian. Append-only.
type PickupLog struct {
	ID                string
	GuardianID        string
	StudentID         string
	Timestamp         time.Time
	VerifiedImagePath string
}

// GalleryEntry is the projection of a guardian used for matching.
type GalleryEntry struct {
	ID        string
	Embedding []float32
}

// PickupLogFilter narrows ListPickupLogs. Zero values mean no restriction.
type PickupLogFilter struct {
	GuardianID string
	StudentID  string
	Since      time.Time
	Limit      int
}
