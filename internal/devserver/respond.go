package devserver

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("encode response")
	}
}

// writeJSONError writes {"error": message}
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidRequest), apperrors.Is(err, apperrors.ErrWeakPassword):
		status = http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrServiceNotFound), apperrors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrUserExists),
		apperrors.Is(err, apperrors.ErrServiceExists),
		apperrors.Is(err, apperrors.ErrServiceRunning):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Err(err).Msg("request failed")
		writeJSONError(w, apperrors.ErrInternal.Error(), status)
		return
	}
	writeJSONError(w, err.Error(), status)
}
