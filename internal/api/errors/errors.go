// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"context"
	"errors"
	"net/http"

	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/api/service"
	"github.com/remiblancher/pqhybrid/pkg/cose"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Error codes for API responses.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeKeystoreFull      = "KEYSTORE_FULL"
	CodeUnknownAlgorithm  = "UNKNOWN_ALGORITHM"
	CodeUnsupported       = "UNSUPPORTED_OPERATION"
	CodeNoPrivateKey      = "NO_PRIVATE_KEY"
	CodeKeyReleased       = "KEY_RELEASED"
	CodeFormat            = "FORMAT_ERROR"
	CodeVerification      = "VERIFICATION_FAILED"
	CodeAlgorithmMismatch = "ALGORITHM_MISMATCH"
	CodeEngine            = "ENGINE_ERROR"
	CodeCanceled          = "REQUEST_CANCELED"
	CodeInternal          = "INTERNAL_ERROR"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, &dto.APIError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, service.ErrKeyNotFound):
		return http.StatusNotFound, &dto.APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, service.ErrKeystoreFull):
		return http.StatusConflict, &dto.APIError{Code: CodeKeystoreFull, Message: err.Error()}
	case errors.Is(err, crypto.ErrUnknownAlgorithm):
		return http.StatusBadRequest, &dto.APIError{Code: CodeUnknownAlgorithm, Message: err.Error()}
	case errors.Is(err, crypto.ErrUnsupported):
		return http.StatusBadRequest, &dto.APIError{Code: CodeUnsupported, Message: err.Error()}
	case errors.Is(err, crypto.ErrNoPrivateKey):
		return http.StatusConflict, &dto.APIError{Code: CodeNoPrivateKey, Message: err.Error()}
	case errors.Is(err, crypto.ErrKeyReleased):
		return http.StatusGone, &dto.APIError{Code: CodeKeyReleased, Message: err.Error()}
	case errors.Is(err, crypto.ErrFormat), errors.Is(err, cose.ErrInvalidMessage):
		return http.StatusBadRequest, &dto.APIError{Code: CodeFormat, Message: err.Error()}
	case errors.Is(err, engine.ErrContextTooLong), errors.Is(err, engine.ErrContextNotSupported):
		return http.StatusBadRequest, &dto.APIError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, gocose.ErrAlgorithmMismatch):
		return http.StatusUnprocessableEntity, &dto.APIError{Code: CodeAlgorithmMismatch, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, &dto.APIError{Code: CodeCanceled, Message: err.Error()}
	}

	var ve *crypto.VerificationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeVerification,
			Message: ve.Error(),
			Details: map[string]string{"component": ve.Component},
		}
	}

	// Engine failures keep their details out of the response.
	var ee *crypto.EngineError
	if errors.As(err, &ee) {
		return http.StatusInternalServerError, &dto.APIError{
			Code:    CodeEngine,
			Message: "A cryptographic engine failed",
			Details: map[string]string{
				"operation": ee.Op,
				"component": ee.Component,
			},
		}
	}

	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}
