package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/api/service"
)

// COSEHandler handles COSE-related HTTP requests.
type COSEHandler struct {
	service *service.KeyService
}

// NewCOSEHandler creates a new COSEHandler.
func NewCOSEHandler(keyService *service.KeyService) *COSEHandler {
	return &COSEHandler{service: keyService}
}

// Sign handles POST /api/v1/keys/{id}/cose/sign
func (h *COSEHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req dto.COSESignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.COSESign(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Verify handles POST /api/v1/keys/{id}/cose/verify
func (h *COSEHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.COSEVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.COSEVerify(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
