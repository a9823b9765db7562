package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/constants"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/pickup"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, category, message string) {
	respondJSON(w, status, map[string]string{"error": message, "category": category})
}

// statusForKind maps the pickup error taxonomy onto HTTP status codes.
func statusForKind(k pickup.Kind) int {
	switch k {
	case pickup.KindValidation, pickup.KindNoFace:
		return http.StatusBadRequest
	case pickup.KindNotFound, pickup.KindNoGallery:
		return http.StatusNotFound
	case pickup.KindConflict:
		return http.StatusConflict
	case pickup.KindNoMatch:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondPickupError writes err as a structured error. Only the client-safe
// message of a *pickup.Error is exposed; anything else becomes a generic 500.
func respondPickupError(w http.ResponseWriter, log *logger.Logger, err error) {
	var perr *pickup.Error
	if !errors.As(err, &perr) {
		log.Error("unexpected handler error", "error", err)
		respondError(w, http.StatusInternalServerError, string(pickup.KindStore), "internal error")
		return
	}
	status := statusForKind(perr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "category", string(perr.Kind), "error", err)
	}
	respondJSON(w, status, errorBody{Error: perr.Message, Category: string(perr.Kind), MissingIDs: perr.MissingIDs})
}

type errorBody struct {
	Error      string   `json:"error"`
	Category   string   `json:"category"`
	MissingIDs []string `json:"missing_ids,omitempty"`
}

// readUpload parses the multipart form and returns the named file. The
// returned message is client-facing.
func readUpload(r *http.Request, field string) (filename string, data []byte, msg string) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return "", nil, "failed to parse multipart form"
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, "No image file provided"
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		return "", nil, "No selected file"
	}
	data, err = io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		return "", nil, "failed to read uploaded file"
	}
	if len(data) > constants.MaxUploadSize {
		return "", nil, fmt.Sprintf("uploaded file exceeds %d MB", constants.MaxUploadSize>>20)
	}
	return header.Filename, data, ""
}

// Endpoints lists the public routes reported by Index.
var Endpoints = []string{
	"/register_guardian",
	"/verify_pickup",
	"/add_student",
	"/students",
	"/guardians",
	"/pickup_logs",
	"/pickup_logs/export",
}

// Index reports that the API is up and lists its endpoints.
func Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"message":   "SafeKids API is running",
		"endpoints": Endpoints,
	})
}
