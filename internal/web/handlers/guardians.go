package handlers

import (
	"net/http"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

// GuardiansHandler handles guardian registration and listing.
type GuardiansHandler struct {
	registrar *pickup.Registrar
	students  *pickup.StudentService
	log       *logger.Logger
}

func NewGuardiansHandler(registrar *pickup.Registrar, students *pickup.StudentService, log *logger.Logger) *GuardiansHandler {
	return &GuardiansHandler{registrar: registrar, students: students, log: log}
}

type studentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type lookalikeResponse struct {
	GuardianID string  `json:"guardian_id"`
	Distance   float64 `json:"distance"`
}

type registerResponse struct {
	Message            string              `json:"message"`
	GuardianID         string              `json:"guardian_id"`
	Name               string              `json:"name"`
	StudentsAssociated []studentRef        `json:"students_associated"`
	Lookalikes         []lookalikeResponse `json:"lookalikes"`
	UnlinkedStudentIDs []string            `json:"unlinked_student_ids"`
}

type guardianResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	ReferenceImagePath string   `json:"reference_image_path"`
	HasEmbedding       bool     `json:"has_embedding"`
	StudentIDs         []string `json:"student_ids"`
	CreatedAt          string   `json:"created_at"`
}

// Register handles POST /register_guardian (multipart: image, name, student_ids).
func (h *GuardiansHandler) Register(w http.ResponseWriter, r *http.Request) {
	filename, data, msg := readUpload(r, "image")
	if msg != "" {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), msg)
		return
	}
	if _, ok := r.MultipartForm.Value["student_ids"]; !ok {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), "Student IDs not provided")
		return
	}

	reg, err := h.registrar.Register(r.Context(), pickup.RegisterRequest{
		Name:       r.FormValue("name"),
		Filename:   filename,
		Image:      data,
		StudentIDs: pickup.ParseIDs(r.FormValue("student_ids")),
	})
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	resp := registerResponse{
		Message:            "Guardian registered successfully",
		GuardianID:         reg.Guardian.ID,
		Name:               reg.Guardian.Name,
		StudentsAssociated: make([]studentRef, 0, len(reg.Students)),
		Lookalikes:         make([]lookalikeResponse, 0, len(reg.Lookalikes)),
		UnlinkedStudentIDs: reg.UnlinkedStudentIDs,
	}
	if resp.UnlinkedStudentIDs == nil {
		resp.UnlinkedStudentIDs = []string{}
	}
	for _, s := range reg.Students {
		resp.StudentsAssociated = append(resp.StudentsAssociated, studentRef{ID: s.ID, Name: s.Name})
	}
	for _, c := range reg.Lookalikes {
		resp.Lookalikes = append(resp.Lookalikes, lookalikeResponse{GuardianID: c.ID, Distance: c.Distance})
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List handles GET /guardians.
func (h *GuardiansHandler) List(w http.ResponseWriter, r *http.Request) {
	guardians, err := h.students.ListGuardians(r.Context())
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	out := make([]guardianResponse, 0, len(guardians))
	for _, g := range guardians {
		ids := g.StudentIDs
		if ids == nil {
			ids = []string{}
		}
		out = append(out, guardianResponse{
			ID:                 g.ID,
			Name:               g.Name,
			ReferenceImagePath: g.ReferenceImagePath,
			HasEmbedding:       g.HasEmbedding(),
			StudentIDs:         ids,
			CreatedAt:          formatTime(g.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
