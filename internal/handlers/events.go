package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"festiva/internal/middleware"
	"festiva/internal/models"
	"festiva/internal/services"
)

// EventHandler serves the event catalog endpoints
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// List handles GET /api/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.events.ListEvents(limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// GetBySlug handles GET /api/events/{slug}
func (h *EventHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	event, err := h.events.GetEventBySlug(slug)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// Create handles POST /api/events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	var req models.EventCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	event, err := h.events.CreateEvent(&req, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// Update handles PUT /api/events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	var req models.EventUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	event, err := h.events.UpdateEvent(id, &req, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// UploadPoster handles POST /api/events/{id}/poster
func (h *EventHandler) UploadPoster(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	if err := r.ParseMultipartForm(12 << 20); err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	file, header, err := r.FormFile("poster")
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}
	defer file.Close()

	event, err := h.events.UploadPoster(r.Context(), id, userID, file, header.Size)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// Stats handles GET /api/events/{id}/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	stats, err := h.events.EventStats(id, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
