package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/lightnote/internal/dberr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error     string     `json:"error"`
	Code      dberr.Code `json:"code,omitempty"`
	Field     string     `json:"field,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the storage error taxonomy onto HTTP statuses. Errors
// outside the taxonomy are logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	var de *dberr.Error
	if !errors.As(err, &de) {
		slog.Error("unexpected error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case dberr.CodeRecordNotFound:
		status = http.StatusNotFound
	case dberr.CodeInvalidInput, dberr.CodeRequiredField, dberr.CodeInvalidConfig:
		status = http.StatusBadRequest
	case dberr.CodeDuplicateKey, dberr.CodeForeignKeyViolation, dberr.CodeConcurrentModification:
		status = http.StatusConflict
	case dberr.CodeNotSupported, dberr.CodeProviderNotSupported:
		status = http.StatusNotImplemented
	case dberr.CodeConnectionFailed, dberr.CodeConnectionTimeout:
		status = http.StatusServiceUnavailable
	case dberr.CodeOperationTimeout:
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		slog.Error("storage error",
			slog.String("code", string(de.Code)),
			slog.String("operation", de.Context.Operation),
			slog.String("error", de.Error()))
	}
	writeJSON(w, status, errResponse{
		Error:     de.Message,
		Code:      de.Code,
		Field:     de.Field,
		Retryable: de.Retryable,
	})
}
