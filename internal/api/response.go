package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumamail/webhook-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the error taxonomy onto HTTP statuses:
// validation 400, not-found 404, duplicate/conflict 409, anything else 500.
func respondDomainError(w http.ResponseWriter, err error, fallback string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "webhook not found")
	case errors.Is(err, domain.ErrDuplicate):
		respondError(w, http.StatusConflict, "webhook already exists")
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "concurrent modification, retry")
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
