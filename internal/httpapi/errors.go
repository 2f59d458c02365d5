package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeStoreError maps store and domain sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrAmbiguous), errors.Is(err, store.ErrConflict):
		WriteError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrEmptyDomain), errors.Is(err, domain.ErrInvalidInterval):
		WriteError(w, r, http.StatusBadRequest, "invalid_job", err.Error())
	default:
		log.Printf("level=error msg=\"store\" request_id=%s path=%s err=%v", RequestIDFrom(r.Context()), r.URL.Path, err)
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
