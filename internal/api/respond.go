package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"armada/internal/domain"
	"armada/internal/models"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error       string          `json:"error"`
	Field       string          `json:"field,omitempty"`
	FailedSteps []string        `json:"failed_steps,omitempty"`
	Booking     *models.Booking `json:"booking,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// statusFor maps a service error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	// шаги могут оборачивать ErrNotFound, поэтому частичный успех проверяется первым
	case domain.IsDependencyFailure(err):
		return http.StatusBadGateway
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsPermissionDenied(err):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidTransition(err), errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err. For a partial success the booking
// as written is returned along with the failed steps.
func writeServiceError(w http.ResponseWriter, logger *zerolog.Logger, err error, booking *models.Booking) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var validation domain.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}

	var dep domain.DependencyFailureError
	if errors.As(err, &dep) {
		resp.FailedSteps = dep.Steps()
		resp.Booking = booking
	}

	if code == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		resp.Error = "internal error"
	}
	writeJSON(w, code, resp)
}
