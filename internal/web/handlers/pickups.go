package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

// PickupsHandler handles pickup verification.
type PickupsHandler struct {
	verifier *pickup.Verifier
	log      *logger.Logger
}

func NewPickupsHandler(verifier *pickup.Verifier, log *logger.Logger) *PickupsHandler {
	return &PickupsHandler{verifier: verifier, log: log}
}

type authorizedStudent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TeacherEmail string `json:"teacher_email"`
}

type verifyResponse struct {
	Match              bool                `json:"match"`
	GuardianID         string              `json:"guardian_id"`
	GuardianName       string              `json:"guardian_name"`
	AuthorizedStudents []authorizedStudent `json:"authorized_students"`
	PickupLogTime      string              `json:"pickup_log_time"`
}

type noMatchResponse struct {
	Match    bool   `json:"match"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// Verify handles POST /verify_pickup (multipart: image).
func (h *PickupsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	filename, data, msg := readUpload(r, "image")
	if msg != "" {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), msg)
		return
	}

	v, err := h.verifier.Verify(r.Context(), pickup.VerifyRequest{Filename: filename, Image: data})
	if err != nil {
		var perr *pickup.Error
		if errors.As(err, &perr) && perr.Kind == pickup.KindNoMatch {
			respondJSON(w, http.StatusUnauthorized, noMatchResponse{Match: false, Message: perr.Message, Category: string(perr.Kind)})
			return
		}
		respondPickupError(w, h.log, err)
		return
	}

	resp := verifyResponse{
		Match:              true,
		GuardianID:         v.GuardianID,
		GuardianName:       v.GuardianName,
		AuthorizedStudents: make([]authorizedStudent, 0, len(v.Students)),
		PickupLogTime:      formatTime(v.Timestamp),
	}
	for _, s := range v.Students {
		resp.AuthorizedStudents = append(resp.AuthorizedStudents, authorizedStudent{ID: s.ID, Name: s.Name, TeacherEmail: s.TeacherEmail})
	}
	respondJSON(w, http.StatusOK, resp)
}

// formatTime renders UTC ISO 8601 with a Z suffix.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
