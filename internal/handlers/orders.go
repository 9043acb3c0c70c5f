package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"festiva/internal/middleware"
	"festiva/internal/models"
	"festiva/internal/services"
)

// OrderHandler serves order history, detail, ticket download and redemption
type OrderHandler struct {
	orders *services.OrderService
	pdf    *services.PDFService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *services.OrderService, pdf *services.PDFService) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		pdf:    pdf,
	}
}

func orderIDParam(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

// List handles GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := h.orders.ListUserOrders(userID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// Get handles GET /api/orders/{orderID}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	order, err := h.orders.GetOrder(orderIDParam(r), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// Ticket handles GET /api/orders/{orderID}/ticket. Only confirmed orders have
// a ticket to download.
func (h *OrderHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, models.ErrUnauthorized)
		return
	}

	order, err := h.orders.GetOrder(orderIDParam(r), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	if order.Status != models.OrderConfirmed && order.Status != models.OrderExchanged {
		respondError(w, fmt.Errorf("%w: order %s has no ticket", models.ErrInvalidInput, order.OrderID))
		return
	}

	ticket, err := h.pdf.GenerateTicketPDF(order)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, order.OrderID))
	w.WriteHeader(http.StatusOK)
	w.Write(ticket)
}

type redeemRequest struct {
	QRCode string `json:"qr_code"`
}

// Redeem handles POST /api/orders/{orderID}/redeem. Entrance staff scan the
// ticket's QR code; the payload must match the order's stored code.
func (h *OrderHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	order, err := h.orders.RedeemWithCode(orderIDParam(r), req.QRCode)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
