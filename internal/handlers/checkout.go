package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/sessions"

	"festiva/internal/middleware"
	"festiva/internal/models"
	"festiva/internal/services"
)

const (
	sessionName        = "festiva_session"
	sessionPendingKey  = "pending_order_id"
	sessionMaxAgeHours = 2
)

// CheckoutHandler serves the purchase flow
type CheckoutHandler struct {
	orders   *services.OrderService
	sessions sessions.Store
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(orders *services.OrderService, store sessions.Store) *CheckoutHandler {
	return &CheckoutHandler{
		orders:   orders,
		sessions: store,
	}
}

type checkoutRequest struct {
	EventID  int `json:"event_id"`
	Quantity int `json:"quantity"`
}

// Checkout handles POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.orders.Checkout(userID, req.EventID, req.Quantity)
	if err != nil {
		respondError(w, err)
		return
	}

	// Remember the in-flight order so the payment-finish page can poll it
	// without a round trip through the order history.
	session, _ := h.sessions.Get(r, sessionName)
	session.Values[sessionPendingKey] = result.Order.OrderID
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeHours * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if err := session.Save(r, w); err != nil {
		log.Printf("warning: failed to save checkout session: %v", err)
	}

	respondJSON(w, http.StatusCreated, result)
}

// PendingOrder handles GET /api/checkout/pending. It returns the order the
// session's last checkout created, so the payment-finish page can show its
// current status.
func (h *CheckoutHandler) PendingOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	orderID, ok := session.Values[sessionPendingKey].(string)
	if !ok || orderID == "" {
		respondError(w, models.ErrOrderNotFound)
		return
	}

	order, err := h.orders.GetOrder(orderID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// CancelPending handles POST /api/orders/{orderID}/cancel. A customer backing
// out of payment moves the order to cancelled and frees the held stock.
func (h *CheckoutHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	orderID := orderIDParam(r)

	// Ownership check before the transition
	if _, err := h.orders.GetOrder(orderID, userID); err != nil {
		respondError(w, err)
		return
	}

	if err := h.orders.CancelOrRelease(orderID, models.OrderCancelled); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
}
