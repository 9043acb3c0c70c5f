package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"festiva/internal/models"
)

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors to HTTP status codes and writes a JSON
// error body.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrIncompleteAutoCreate):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidSignature):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrSalesClosed),
		errors.Is(err, models.ErrAlreadyRedeemed),
		errors.Is(err, models.ErrDuplicateOrder),
		errors.Is(err, models.ErrDuplicateEmail):
		status = http.StatusConflict
	case errors.Is(err, models.ErrGateway):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		respondJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeJSON decodes a request body into dst, limiting the body size
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ErrInvalidInput
	}
	return nil
}
