// Package handler provides HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	apierrors "github.com/remiblancher/pqhybrid/internal/api/errors"
	"github.com/remiblancher/pqhybrid/internal/api/service"
)

// maxBodyBytes bounds request bodies. SLH-DSA-256f signatures and
// FrodoKEM-640 keys are the largest objects accepted, well under 100 KiB
// once base64 encoded.
const maxBodyBytes = 1 << 20

// HealthHandler handles health and algorithm listing endpoints.
type HealthHandler struct {
	version string
	keys    *service.KeyService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string, keys *service.KeyService) *HealthHandler {
	return &HealthHandler{
		version: version,
		keys:    keys,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Keys:    h.keys.Count(),
	})
}

// Algorithms handles GET /api/v1/algorithms.
func (h *HealthHandler) Algorithms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.keys.Algorithms())
}

// decodeJSON decodes the request body into v, writing a 400 response on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
		return false
	}
	return true
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// handleServiceError maps a service error to its HTTP response.
func handleServiceError(w http.ResponseWriter, err error) {
	status, apiErr := apierrors.MapError(err)
	respondError(w, status, apiErr)
}
