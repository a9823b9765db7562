package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/report"
)

// PickupLogsHandler exposes the pickup audit trail.
type PickupLogsHandler struct {
	svc *pickup.StudentService
	log *logger.Logger
}

func NewPickupLogsHandler(svc *pickup.StudentService, log *logger.Logger) *PickupLogsHandler {
	return &PickupLogsHandler{svc: svc, log: log}
}

type pickupLogResponse struct {
	ID                string `json:"id"`
	GuardianID        string `json:"guardian_id"`
	StudentID         string `json:"student_id"`
	Timestamp         string `json:"timestamp"`
	VerifiedImagePath string `json:"verified_image_path"`
}

// parseFilter reads guardian_id, student_id, since (RFC 3339) and limit.
func parseFilter(r *http.Request) (database.PickupLogFilter, string) {
	q := r.URL.Query()
	filter := database.PickupLogFilter{
		GuardianID: q.Get("guardian_id"),
		StudentID:  q.Get("student_id"),
	}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, "since must be an RFC 3339 timestamp"
		}
		filter.Since = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return filter, "limit must be an integer"
		}
		filter.Limit = n
	}
	return filter, ""
}

// List handles GET /pickup_logs.
func (h *PickupLogsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseFilter(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), msg)
		return
	}

	logs, err := h.svc.ListPickupLogs(r.Context(), filter)
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	out := make([]pickupLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, pickupLogResponse{
			ID:                l.ID,
			GuardianID:        l.GuardianID,
			StudentID:         l.StudentID,
			Timestamp:         formatTime(l.Timestamp),
			VerifiedImagePath: l.VerifiedImagePath,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// Export handles GET /pickup_logs/export, streaming an XLSX workbook.
func (h *PickupLogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseFilter(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, string(pickup.KindValidation), msg)
		return
	}

	rows, err := h.svc.PickupReport(r.Context(), filter)
	if err != nil {
		respondPickupError(w, h.log, err)
		return
	}

	name := fmt.Sprintf("pickup_logs_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := report.WriteXLSX(w, rows); err != nil {
		h.log.Error("failed to write pickup log export", "error", err)
	}
}
