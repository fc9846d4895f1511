package api

import (
	"net/http"

	"github.com/bytedance/sonic"

	apperr "github.com/studyflow/backend/internal/errors"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		sonic.ConfigDefault.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string, details error) {
	resp := errorResponse{Code: statusCode, Message: message}
	if details != nil {
		resp.Details = details.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	sonic.ConfigFastest.NewEncoder(w).Encode(resp)
}

// writeAppError maps the error taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch apperr.CodeOf(err) {
	case apperr.ErrInvalid, apperr.ErrValidation:
		writeError(w, http.StatusBadRequest, "invalid input", err)
	case apperr.ErrNotFound:
		writeError(w, http.StatusNotFound, "not found", err)
	case apperr.ErrAuth:
		writeError(w, http.StatusUnauthorized, "authentication required", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return sonic.ConfigDefault.NewDecoder(r.Body).Decode(dst)
}
