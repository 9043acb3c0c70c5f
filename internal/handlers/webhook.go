package handlers

import (
	"io"
	"log"
	"net/http"

	"festiva/internal/models"
	"festiva/internal/services"
)

// PaymentHandler serves the gateway-facing payment endpoints
type PaymentHandler struct {
	processor *services.PaymentProcessor
	inventory *services.InventoryService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(processor *services.PaymentProcessor, inventory *services.InventoryService) *PaymentHandler {
	return &PaymentHandler{
		processor: processor,
		inventory: inventory,
	}
}

// Notification handles POST /api/payments/notification. The gateway retries
// on non-2xx responses, so every successfully reconciled notification answers
// 200 even when it was a duplicate no-op.
func (h *PaymentHandler) Notification(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	result, err := h.processor.HandleNotification(payload)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type releaseRequest struct {
	EventID  int `json:"eventId"`
	Quantity int `json:"quantity"`
}

// ReleaseHold handles POST /api/payments/release. It drops the hold counter
// for a payment the client knows is abandoned, without waiting for the
// gateway's expiry callback. Only the hold counter moves here: availability
// is credited exclusively through status-gated order transitions, so this
// endpoint cannot be used to inflate stock.
func (h *PaymentHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	if req.EventID <= 0 || req.Quantity <= 0 {
		respondError(w, models.ErrInvalidInput)
		return
	}

	if err := h.inventory.ReleaseHold(req.EventID, req.Quantity); err != nil {
		respondError(w, err)
		return
	}

	log.Printf("released hold of %d tickets for event %d on client request", req.Quantity, req.EventID)
	respondJSON(w, http.StatusOK, map[string]string{"message": "hold released"})
}
