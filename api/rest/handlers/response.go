package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gpu-renter/core/agent"
	"gpu-renter/observability"
)

// Error codes
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// respondServiceError maps service errors onto status codes. Internal
// errors are logged and not echoed to the caller.
func respondServiceError(w http.ResponseWriter, log *observability.Logger, err error) {
	switch {
	case errors.Is(err, agent.ErrValidation):
		respondError(w, http.StatusBadRequest, CodeValidation, err)
	case errors.Is(err, agent.ErrRunNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, err)
	default:
		log.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, CodeInternal, errors.New("internal error"))
	}
}
