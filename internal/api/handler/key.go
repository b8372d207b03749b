package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/api/service"
)

// KeyHandler handles key-related HTTP requests.
type KeyHandler struct {
	service *service.KeyService
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(keyService *service.KeyService) *KeyHandler {
	return &KeyHandler{service: keyService}
}

// Generate handles POST /api/v1/keys
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.KeyGenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Generate(r.Context(), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Import handles POST /api/v1/keys/import
func (h *KeyHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req dto.KeyImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Import(r.Context(), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/v1/keys
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/keys/{id}
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/keys/{id}
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sign handles POST /api/v1/keys/{id}/sign
func (h *KeyHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req dto.SignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Sign(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Verify handles POST /api/v1/keys/{id}/verify
func (h *KeyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Verify(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Encapsulate handles POST /api/v1/keys/{id}/encapsulate
func (h *KeyHandler) Encapsulate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Encapsulate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Decapsulate handles POST /api/v1/keys/{id}/decapsulate
func (h *KeyHandler) Decapsulate(w http.ResponseWriter, r *http.Request) {
	var req dto.DecapsulateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Decapsulate(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
