package pickup

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/constants"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/report"
)

// AddStudentRequest is the payload of /add_student.
type AddStudentRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	TeacherEmail string   `json:"teacher_email" validate:"omitempty,email"`
	GuardianIDs  []string `json:"guardian_ids" validate:"omitempty,dive,max=128"`
}

// StudentRegistration is the outcome of a successful AddStudent.
type StudentRegistration struct {
	Student *database.Student
	// UnlinkedGuardianIDs are guardians whose student set could not be updated.
	UnlinkedGuardianIDs []string
}

// StudentService manages students and read-only listings.
type StudentService struct {
	deps     Deps
	validate *validator.Validate
}

func NewStudentService(deps Deps) *StudentService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &StudentService{deps: deps.withDefaults(), validate: v}
}

// AddStudent creates a student and links it into each listed guardian.
func (s *StudentService) AddStudent(ctx context.Context, req AddStudentRequest) (*StudentRegistration, error) {
	log := s.deps.Log

	req.Name = strings.TrimSpace(req.Name)
	req.TeacherEmail = strings.TrimSpace(req.TeacherEmail)
	req.GuardianIDs = cleanIDs(req.GuardianIDs)

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(describeValidation(err))
	}

	existing, err := s.deps.Store.FindStudentByName(ctx, req.Name)
	if err != nil {
		return nil, storeError("Database error occurred while adding the student", err)
	}
	if existing != nil {
		return nil, conflictError(fmt.Sprintf("Student with name '%s' already exists", req.Name), database.ErrConflict)
	}

	var missing []string
	for _, id := range req.GuardianIDs {
		_, err := s.deps.Store.GetGuardian(ctx, id)
		switch {
		case errors.Is(err, database.ErrNotFound):
			missing = append(missing, id)
		case err != nil:
			return nil, storeError("Database error occurred while adding the student", err)
		}
	}
	if len(missing) > 0 {
		return nil, notFoundError(fmt.Sprintf("Could not find guardians with IDs: %s", strings.Join(missing, ", ")), missing)
	}

	student := &database.Student{
		Name:         req.Name,
		TeacherEmail: req.TeacherEmail,
		GuardianIDs:  req.GuardianIDs,
	}
	if err := s.deps.Store.InsertStudent(ctx, student); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, conflictError(fmt.Sprintf("Student with name '%s' already exists", req.Name), err)
		}
		return nil, storeError("Database error occurred while adding the student", err)
	}

	out := &StudentRegistration{Student: student}
	for _, gid := range req.GuardianIDs {
		if err := s.deps.Store.AddStudentToGuardian(ctx, gid, student.ID); err != nil {
			log.Error("failed to link guardian to student", "guardian_id", gid, "student_id", student.ID, "error", err)
			out.UnlinkedGuardianIDs = append(out.UnlinkedGuardianIDs, gid)
		}
	}

	log.Info("added student", "student_id", student.ID, "name", student.Name, "guardians", len(req.GuardianIDs))
	return out, nil
}

func (s *StudentService) ListStudents(ctx context.Context) ([]database.Student, error) {
	students, err := s.deps.Store.ListStudents(ctx)
	if err != nil {
		return nil, storeError("Failed to list students", err)
	}
	return students, nil
}

func (s *StudentService) ListGuardians(ctx context.Context) ([]database.Guardian, error) {
	guardians, err := s.deps.Store.ListGuardians(ctx)
	if err != nil {
		return nil, storeError("Failed to list guardians", err)
	}
	return guardians, nil
}

// ListPickupLogs returns logs newest first. A zero limit selects
// DefaultPickupLogLimit and larger limits are capped at MaxPickupLogLimit.
func (s *StudentService) ListPickupLogs(ctx context.Context, filter database.PickupLogFilter) ([]database.PickupLog, error) {
	if filter.Limit < 0 {
		return nil, validationError("limit must not be negative")
	}
	if filter.Limit == 0 {
		filter.Limit = constants.DefaultPickupLogLimit
	}
	filter.Limit = min(filter.Limit, constants.MaxPickupLogLimit)

	logs, err := s.deps.Store.ListPickupLogs(ctx, filter)
	if err != nil {
		return nil, storeError("Failed to list pickup logs", err)
	}
	return logs, nil
}

// PickupReport returns the filtered pickup logs joined with guardian and
// student names, ready for export.
func (s *StudentService) PickupReport(ctx context.Context, filter database.PickupLogFilter) ([]report.Row, error) {
	logs, err := s.ListPickupLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	guardians, err := s.ListGuardians(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	return report.BuildRows(logs, guardians, students), nil
}

// describeValidation turns validator errors into one client-facing sentence.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s is too long", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
