// Package respond writes JSON bodies and the {"error": {"code", "message"}} envelope.
// Internal failures never reach the client in detail.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// FromError maps a settlement error kind to its status and envelope.
func FromError(w http.ResponseWriter, err error) {
	msg := settlement.Message(err)

	switch {
	case errors.Is(err, settlement.ErrValidation):
		Error(w, http.StatusUnprocessableEntity, CodeValidation, msg)
	case errors.Is(err, settlement.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, msg)
	case errors.Is(err, settlement.ErrConflict):
		Error(w, http.StatusConflict, CodeConflict, msg)
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
