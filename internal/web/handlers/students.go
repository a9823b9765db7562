package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

// StudentsHandler handles the student registry.
type StudentsHandler struct {
	svc *pickup.StudentService
	log *logger.Logger
}

func NewStudentsHandler(svc *pickup.StudentService, log *logger.Logger) *StudentsHandler {
	return &StudentsHandler{svc: svc, log: log}
}

type studentResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	TeacherEmail string   `json:"teacher_email"`
	GuardianIDs  []string `json:"guardian_ids"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

type addStudentResponse struct {
	Message             string   `json:"message"`
	StudentID           string   `json:"student_id"`
	Name                string   `json:"name"`
	TeacherEmail        string   `json:"teacher_email"`
	GuardianIDs         []string `json:"guardian_ids"`
	UnlinkedGuardianIDs []string `json:"unlinked_guardian_ids"`
}

// Add handles POST /add_student (JSON: name, teacher_email, guardian_ids).
func (h *StudentsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req pickup.AddStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), errInvalidRequestBody)
		return
	}

	out, err := h.svc.AddStudent(r.Context(), req)
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	resp := addStudentResponse{
		Message:             "Student added successfully",
		StudentID:           out.Student.ID,
		Name:                out.Student.Name,
		TeacherEmail:        out.Student.TeacherEmail,
		GuardianIDs:         nonNil(out.Student.GuardianIDs),
		UnlinkedGuardianIDs: nonNil(out.UnlinkedGuardianIDs),
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List handles GET /students.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.ListStudents(r.Context())
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, studentResponse{
			ID:           s.ID,
			Name:         s.Name,
			TeacherEmail: s.TeacherEmail,
			GuardianIDs:  nonNil(s.GuardianIDs),
			CreatedAt:    formatTime(s.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
