package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dualvote-backend/models"
	"dualvote-backend/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses and writes a JSON error
// envelope. Unmapped errors are reported as internal without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var partial *models.PartialCastError
	switch {
	case errors.As(err, &partial):
		status = http.StatusInternalServerError
	case errors.Is(err, models.ErrElectionNotFound),
		errors.Is(err, models.ErrReceiptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyVoted),
		errors.Is(err, models.ErrElectionNotOpen),
		errors.Is(err, models.ErrTallyPrecondition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrVoterNotEligible):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrIntegrityViolation):
		status = http.StatusConflict
	case errors.Is(err, service.ErrQueueFull):
		status = http.StatusServiceUnavailable
	default:
		log.Errorf("Internal error: %v", err)
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
