package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"pointflow/internal/domain"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorKind struct {
	err    error
	code   string
	status int
}

var errorKinds = []errorKind{
	{domain.ErrBelowMinCharge, "BELOW_MIN_CHARGE", http.StatusBadRequest},
	{domain.ErrExceedsMaxUse, "EXCEEDS_MAX_USE", http.StatusBadRequest},
	{domain.ErrInvalidAmount, "INVALID_AMOUNT", http.StatusBadRequest},
	{domain.ErrExceedsMaxHold, "EXCEEDS_MAX_HOLD", http.StatusBadRequest},
	{domain.ErrInsufficientBalance, "INSUFFICIENT_BALANCE", http.StatusBadRequest},
	{domain.ErrInvalidType, "INVALID_TYPE", http.StatusBadRequest},
	{domain.ErrInvalidUserID, "INVALID_USER_ID", http.StatusBadRequest},
	{domain.ErrUserNotFound, "USER_NOT_FOUND", http.StatusNotFound},
	{domain.ErrLockTimeout, "LOCK_TIMEOUT", http.StatusServiceUnavailable},
	{domain.ErrQueueFull, "QUEUE_FULL", http.StatusServiceUnavailable},
}

// classify maps a service error to its response code and HTTP status.
func classify(err error) (string, int) {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			return kind.code, kind.status
		}
	}
	return "INTERNAL_ERROR", http.StatusInternalServerError
}

func toErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	code, status := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	return &ErrorResponse{Code: code, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	_, status := classify(err)
	writeJSON(w, status, toErrorResponse(err))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: message})
}
