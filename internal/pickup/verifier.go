package pickup

import (
	"context"
	"errors"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/notify"
)

// State is a step of the verification state machine:
//
//	Received -> ImageStored -> {FaceNotFound | Encoded}
//	Encoded -> GalleryLoaded -> {EmptyGallery | Matched}
//	Matched -> {NoMatch | GuardianResolved} -> LogsCommitted
type State string

const (
	StateReceived         State = "received"
	StateImageStored      State = "image_stored"
	StateFaceNotFound     State = "face_not_found"
	StateEncoded          State = "encoded"
	StateGalleryLoaded    State = "gallery_loaded"
	StateEmptyGallery     State = "empty_gallery"
	StateMatched          State = "matched"
	StateNoMatch          State = "no_match"
	StateGuardianResolved State = "guardian_resolved"
	StateLogsCommitted    State = "logs_committed"
)

// VerifyRequest carries one pickup attempt.
type VerifyRequest struct {
	Filename string
	Image    []byte
}

// AuthorizedStudent is a student released to the matched guardian.
type AuthorizedStudent struct {
	ID           string
	Name         string
	TeacherEmail string
}

// Verification is the outcome of a successful Verify.
type Verification struct {
	GuardianID        string
	GuardianName      string
	Distance          float64
	Students          []AuthorizedStudent
	Timestamp         time.Time // shared by every pickup log of this event
	VerifiedImagePath string
	Logs              []database.PickupLog
	State             State
}

// Verifier matches an arriving adult against the guardian gallery and
// records one pickup log per linked student.
type Verifier struct {
	deps Deps
}

func NewVerifier(deps Deps) *Verifier {
	return &Verifier{deps: deps.withDefaults()}
}

// Verify runs one pickup attempt. The uploaded image is always kept for
// audit, whatever the outcome. Failures are *Error values carrying the state
// reached; a non-matching face is KindNoMatch.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*Verification, error) {
	log := v.deps.Log
	state := StateReceived
	fail := func(e *Error) (*Verification, error) {
		e.State = state
		return nil, e
	}

	if len(req.Image) == 0 {
		return fail(validationError("No image file provided"))
	}
	if !blobstore.AllowedImage(req.Filename) {
		return fail(validationError("File type not allowed"))
	}

	path, err := v.deps.Blobs.Save(ctx, blobstore.CategoryVerified, req.Filename, req.Image)
	if err != nil {
		return fail(storeError("Failed to store the uploaded image", err))
	}
	state = StateImageStored
	log = log.With("verified_image", path)

	res := v.deps.Extractor.Extract(ctx, req.Image)
	switch res.Kind {
	case faces.Success:
		state = StateEncoded
		if res.FacesCount > 1 {
			log.Warn("verify pickup: several faces detected, matching the first", "faces", res.FacesCount)
		}
	case faces.NoFaceFound:
		state = StateFaceNotFound
		log.Warn("verify pickup: no face detected")
		return fail(extractionError(res))
	default:
		log.Warn("verify pickup: extraction failed", "result", res.Kind.String(), "error", res.Err)
		return fail(extractionError(res))
	}

	gallery, err := v.deps.Store.ListGallery(ctx)
	if err != nil {
		return fail(storeError("Failed to load registered guardians", err))
	}
	entries := make([]facematch.Entry, 0, len(gallery))
	for _, g := range gallery {
		if len(g.Embedding) > 0 {
			entries = append(entries, facematch.Entry{ID: g.ID, Embedding: g.Embedding})
		}
	}
	state = StateGalleryLoaded

	if len(entries) == 0 {
		state = StateEmptyGallery
		log.Warn("verify pickup: gallery is empty")
		return fail(&Error{Kind: KindNoGallery, Message: "No registered guardians with face encodings found in the system"})
	}

	candidates := facematch.MatchWithDistance(entries, res.Embedding, *v.deps.Tolerance)
	state = StateMatched
	if len(candidates) == 0 {
		state = StateNoMatch
		log.Warn("verify pickup: no match", "gallery_size", len(entries), "tolerance", *v.deps.Tolerance)
		return fail(&Error{Kind: KindNoMatch, Message: "No authorized guardian matched the provided image"})
	}

	chosen := v.deps.Policy.Select(candidates)
	guardian, err := v.deps.Store.GetGuardian(ctx, chosen.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fail(storeError("Matched guardian data not found", err))
		}
		return fail(storeError("Failed to load the matched guardian", err))
	}
	state = StateGuardianResolved
	log = log.With("guardian_id", guardian.ID)
	log.Info("verify pickup: guardian matched",
		"policy", v.deps.Policy.Name(),
		"distance", chosen.Distance,
		"candidates", len(candidates),
	)

	students, perr := v.resolveStudents(ctx, guardian)
	if perr != nil {
		return fail(perr)
	}

	ts := v.deps.Now().UTC().Truncate(time.Microsecond)
	logs := make([]database.PickupLog, 0, len(students))
	for _, s := range students {
		logs = append(logs, database.PickupLog{
			GuardianID:        guardian.ID,
			StudentID:         s.ID,
			Timestamp:         ts,
			VerifiedImagePath: path,
		})
	}
	if len(logs) > 0 {
		if err := v.deps.Store.InsertPickupLogs(ctx, logs); err != nil {
			return fail(storeError("Failed to record the pickup", err))
		}
	}
	state = StateLogsCommitted

	out := &Verification{
		GuardianID:        guardian.ID,
		GuardianName:      guardian.Name,
		Distance:          chosen.Distance,
		Students:          make([]AuthorizedStudent, 0, len(students)),
		Timestamp:         ts,
		VerifiedImagePath: path,
		Logs:              logs,
		State:             state,
	}
	for _, s := range students {
		out.Students = append(out.Students, AuthorizedStudent{ID: s.ID, Name: s.Name, TeacherEmail: s.TeacherEmail})
	}
	log.Info("verify pickup: logs committed", "students", len(logs), "timestamp", ts)

	v.notify(ctx, guardian, students, ts)
	return out, nil
}

// resolveStudents loads the guardian's students. Ids that no longer resolve
// are logged and skipped.
func (v *Verifier) resolveStudents(ctx context.Context, guardian *database.Guardian) ([]database.Student, *Error) {
	students := make([]database.Student, 0, len(guardian.StudentIDs))
	for _, id := range guardian.StudentIDs {
		s, err := v.deps.Store.GetStudent(ctx, id)
		switch {
		case errors.Is(err, database.ErrNotFound):
			v.deps.Log.Warn("linked student not found", "guardian_id", guardian.ID, "student_id", id)
		case err != nil:
			return nil, storeError("Failed to load the guardian's students", err)
		default:
			students = append(students, *s)
		}
	}
	return students, nil
}

func (v *Verifier) notify(ctx context.Context, guardian *database.Guardian, students []database.Student, ts time.Time) {
	for _, s := range students {
		if s.TeacherEmail == "" {
			v.deps.Log.Info("no teacher email for student, skipping notification", "student_id", s.ID)
			continue
		}
		notice := notify.PickupNotice{
			StudentID:    s.ID,
			StudentName:  s.Name,
			TeacherEmail: s.TeacherEmail,
			GuardianID:   guardian.ID,
			GuardianName: guardian.Name,
			Timestamp:    ts,
		}
		if err := v.deps.Notifier.Notify(ctx, notice); err != nil {
			v.deps.Log.Error("failed to send pickup notification", "student_id", s.ID, "error", err)
		}
	}
}
