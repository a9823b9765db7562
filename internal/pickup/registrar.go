package pickup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/blobstore"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/faces"
)

// RegisterRequest carries one guardian registration.
type RegisterRequest struct {
	Name       string
	Filename   string // client filename, used for the extension and the stored name
	Image      []byte
	StudentIDs []string
}

// Registration is the outcome of a successful Register.
type Registration struct {
	Guardian *database.Guardian
	Students []database.Student

	// Lookalikes lists existing guardians within tolerance of the new face.
	// Informational: such guardians may also match at pickup time.
	Lookalikes []facematch.Candidate

	// UnlinkedStudentIDs are students whose guardian back-reference could not
	// be written. The guardian exists; the Reconciler repairs the links.
	UnlinkedStudentIDs []string
}

// Registrar creates guardians bound to a reference face and existing students.
type Registrar struct {
	deps Deps
}

func NewRegistrar(deps Deps) *Registrar {
	return &Registrar{deps: deps.withDefaults()}
}

// Register validates the request, stores the reference image, extracts its
// embedding and creates the guardian, then links each student back to it.
//
// Validation and missing students are detected before anything is written.
// Every failure after the image is stored deletes it again, so a failed
// registration leaves neither a guardian nor a file behind.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	log := r.deps.Log

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("Guardian name not provided")
	}
	if len(req.Image) == 0 {
		return nil, validationError("No image file provided")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, validationError("No selected file")
	}
	if !blobstore.AllowedImage(req.Filename) {
		return nil, validationError("File type not allowed")
	}
	studentIDs := cleanIDs(req.StudentIDs)
	if len(studentIDs) == 0 {
		return nil, validationError("No valid student IDs provided")
	}

	students, err := r.resolveStudents(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	path, err := r.deps.Blobs.Save(ctx, blobstore.CategoryReference, req.Filename, req.Image)
	if err != nil {
		return nil, storeError("Failed to store the uploaded image", err)
	}

	existing, err := r.deps.Store.FindGuardianByImagePath(ctx, path)
	if err != nil {
		deleteBlob(ctx, r.deps.Blobs, log, path)
		return nil, storeError("Database error occurred during registration", err)
	}
	if existing != nil {
		log.Warn("register guardian conflict", "path", path, "existing_guardian_id", existing.ID)
		deleteBlob(ctx, r.deps.Blobs, log, path)
		return nil, conflictError(fmt.Sprintf("An image with this filename (%s) already exists as a reference", req.Filename), database.ErrConflict)
	}

	res := r.deps.Extractor.Extract(ctx, req.Image)
	if res.Kind != faces.Success {
		log.Warn("register guardian extraction failed", "path", path, "result", res.Kind.String(), "error", res.Err)
		deleteBlob(ctx, r.deps.Blobs, log, path)
		return nil, extractionError(res)
	}
	if res.FacesCount > 1 {
		log.Warn("register guardian: several faces in reference image, using the first", "path", path, "faces", res.FacesCount)
	}

	guardian := &database.Guardian{
		Name:               name,
		ReferenceImagePath: path,
		Embedding:          res.Embedding,
		StudentIDs:         studentIDs,
	}
	if err := r.deps.Store.InsertGuardian(ctx, guardian); err != nil {
		deleteBlob(ctx, r.deps.Blobs, log, path)
		if errors.Is(err, database.ErrConflict) {
			return nil, conflictError(fmt.Sprintf("An image with this filename (%s) already exists as a reference", req.Filename), err)
		}
		return nil, storeError("Database error occurred during registration", err)
	}

	reg := &Registration{Guardian: guardian, Students: students}

	for _, s := range students {
		if err := r.deps.Store.AddGuardianToStudent(ctx, s.ID, guardian.ID); err != nil {
			log.Error("failed to link student to guardian", "guardian_id", guardian.ID, "student_id", s.ID, "error", err)
			reg.UnlinkedStudentIDs = append(reg.UnlinkedStudentIDs, s.ID)
		}
	}

	if r.deps.Index != nil {
		reg.Lookalikes = r.deps.Index.Within(guardian.Embedding, *r.deps.Tolerance)
		if len(reg.Lookalikes) > 0 {
			log.Warn("new guardian resembles existing guardians",
				"guardian_id", guardian.ID,
				"lookalikes", len(reg.Lookalikes),
				"closest_id", reg.Lookalikes[0].ID,
				"closest_distance", reg.Lookalikes[0].Distance,
			)
		}
		r.deps.Index.Add(guardian.ID, guardian.Embedding)
	}

	log.Info("registered guardian",
		"guardian_id", guardian.ID,
		"name", guardian.Name,
		"students", studentIDs,
		"unlinked", len(reg.UnlinkedStudentIDs),
	)
	return reg, nil
}

// resolveStudents loads every id, reporting all missing ones at once.
func (r *Registrar) resolveStudents(ctx context.Context, ids []string) ([]database.Student, error) {
	students := make([]database.Student, 0, len(ids))
	var missing []string
	for _, id := range ids {
		s, err := r.deps.Store.GetStudent(ctx, id)
		switch {
		case errors.Is(err, database.ErrNotFound):
			missing = append(missing, id)
		case err != nil:
			return nil, storeError("Database error occurred during registration", err)
		default:
			students = append(students, *s)
		}
	}
	if len(missing) > 0 {
		r.deps.Log.Warn("register guardian missing students", "missing_ids", missing)
		return nil, notFoundError(fmt.Sprintf("Could not find students with IDs: %s", strings.Join(missing, ", ")), missing)
	}
	return students, nil
}

// extractionError maps a failed extraction to the error taxonomy.
func extractionError(res faces.Result) *Error {
	switch res.Kind {
	case faces.NoFaceFound:
		return &Error{Kind: KindNoFace, Message: "Could not detect a face in the provided image"}
	case faces.DecodeFailure:
		return &Error{Kind: KindValidation, Message: "The uploaded file is not a readable image", Err: res.Err}
	default:
		return &Error{Kind: KindExtraction, Message: "Face processing failed", Err: res.Err}
	}
}
