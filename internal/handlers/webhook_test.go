package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festiva/internal/models"
	"festiva/internal/services"
)

type stubOrderStore struct {
	orders map[string]*models.Order
}

func (s *stubOrderStore) GetByOrderID(orderID string) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderStore) Confirm(orderID, paymentRef, qrCode string) (bool, *models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil, models.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(models.OrderConfirmed) {
		return false, order, nil
	}
	order.Status = models.OrderConfirmed
	order.PaymentRef = paymentRef
	order.QRCode = qrCode
	return true, order, nil
}

func (s *stubOrderStore) Transition(orderID string, target models.OrderStatus) (bool, *models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil, models.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(target) {
		return false, order, nil
	}
	order.Status = target
	return true, order, nil
}

func (s *stubOrderStore) CreateConfirmed(req *models.OrderCreateRequest, paymentRef, qrCode string) (*models.Order, error) {
	if _, exists := s.orders[req.OrderID]; exists {
		return nil, models.ErrDuplicateOrder
	}
	order := &models.Order{OrderID: req.OrderID, Status: models.OrderConfirmed, PaymentRef: paymentRef, QRCode: qrCode}
	s.orders[req.OrderID] = order
	return order, nil
}

type stubEventRepo struct {
	event *models.Event
}

func (s *stubEventRepo) GetByID(id int) (*models.Event, error) {
	if s.event == nil || s.event.ID != id {
		return nil, models.ErrEventNotFound
	}
	return s.event, nil
}

func (s *stubEventRepo) Reserve(eventID, quantity int) error {
	if s.event == nil || s.event.ID != eventID {
		return models.ErrEventNotFound
	}
	if s.event.TicketsAvailable < quantity {
		return models.ErrOutOfStock
	}
	s.event.TicketsAvailable -= quantity
	s.event.HoldTickets += quantity
	return nil
}

func (s *stubEventRepo) Release(eventID, quantity int) error {
	if s.event == nil || s.event.ID != eventID {
		return models.ErrEventNotFound
	}
	credited := s.event.TicketsAvailable + quantity
	if capacity := s.event.TotalTickets - s.event.TicketsSold; credited > capacity {
		credited = capacity
	}
	if credited > s.event.TicketsAvailable {
		s.event.TicketsAvailable = credited
	}
	s.event.HoldTickets -= quantity
	if s.event.HoldTickets < 0 {
		s.event.HoldTickets = 0
	}
	return nil
}

func (s *stubEventRepo) ReleaseHold(eventID, quantity int) error {
	if s.event == nil || s.event.ID != eventID {
		return models.ErrEventNotFound
	}
	s.event.HoldTickets -= quantity
	if s.event.HoldTickets < 0 {
		s.event.HoldTickets = 0
	}
	return nil
}

type stubWebhookLog struct{}

func (stubWebhookLog) Append(orderID, transactionStatus string, payload []byte) error { return nil }

type webhookFixture struct {
	handler *PaymentHandler
	orders  *stubOrderStore
	events  *stubEventRepo
	gateway *services.MidtransService
}

func newWebhookFixture(orders ...*models.Order) *webhookFixture {
	store := &stubOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		store.orders[o.OrderID] = o
	}

	events := &stubEventRepo{event: &models.Event{
		ID:               3,
		TotalTickets:     100,
		TicketsAvailable: 50,
		StartSellingDate: time.Now().Add(-time.Hour),
		EndSellingDate:   time.Now().Add(time.Hour),
	}}

	gateway := services.NewMidtransService(services.MidtransConfig{
		ServerKey:   "server-key",
		Environment: "sandbox",
	})
	inventory := services.NewInventoryService(events)
	processor := services.NewPaymentProcessor(store, inventory, stubWebhookLog{}, gateway, nil)

	return &webhookFixture{
		handler: NewPaymentHandler(processor, inventory),
		orders:  store,
		events:  events,
		gateway: gateway,
	}
}

func (f *webhookFixture) post(t *testing.T, path string, body []byte, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func signedNotification(t *testing.T, gateway *services.MidtransService, n services.Notification) []byte {
	t.Helper()
	if n.StatusCode == "" {
		n.StatusCode = "200"
	}
	n.SignatureKey = gateway.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	return payload
}

func TestPaymentHandler_Notification_Settlement(t *testing.T) {
	f := newWebhookFixture(&models.Order{
		OrderID:     "ORD-20240101-000001",
		EventID:     3,
		Quantity:    2,
		TotalAmount: 150000,
		Status:      models.OrderPending,
	})

	payload := signedNotification(t, f.gateway, services.Notification{
		OrderID:           "ORD-20240101-000001",
		GrossAmount:       "150000.00",
		TransactionStatus: "settlement",
		TransactionID:     "txn-1",
	})

	rec := f.post(t, "/api/payments/notification", payload, f.handler.Notification)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.NotificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Applied)
	assert.Equal(t, models.OrderConfirmed, result.Status)
}

func TestPaymentHandler_Notification_DuplicateStillAnswers200(t *testing.T) {
	f := newWebhookFixture(&models.Order{
		OrderID:     "ORD-20240101-000001",
		EventID:     3,
		Quantity:    2,
		TotalAmount: 150000,
		Status:      models.OrderPending,
	})

	payload := signedNotification(t, f.gateway, services.Notification{
		OrderID:           "ORD-20240101-000001",
		GrossAmount:       "150000.00",
		TransactionStatus: "settlement",
	})

	first := f.post(t, "/api/payments/notification", payload, f.handler.Notification)
	require.Equal(t, http.StatusOK, first.Code)

	// The gateway retries on non-2xx, so the duplicate must also get a 200
	second := f.post(t, "/api/payments/notification", payload, f.handler.Notification)
	require.Equal(t, http.StatusOK, second.Code)

	var result services.NotificationResult
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
	assert.False(t, result.Applied)
}

func TestPaymentHandler_Notification_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(&models.Order{
		OrderID: "ORD-20240101-000001",
		Status:  models.OrderPending,
	})

	n := services.Notification{
		OrderID:           "ORD-20240101-000001",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: "settlement",
		SignatureKey:      "forged",
	}
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	rec := f.post(t, "/api/payments/notification", payload, f.handler.Notification)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Rejected call must not confirm the order
	assert.Equal(t, models.OrderPending, f.orders.orders["ORD-20240101-000001"].Status)
}

func TestPaymentHandler_Notification_MalformedBody(t *testing.T) {
	f := newWebhookFixture()

	rec := f.post(t, "/api/payments/notification", []byte("{not json"), f.handler.Notification)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandler_ReleaseHold(t *testing.T) {
	f := newWebhookFixture()
	f.events.event.TicketsAvailable = 40
	f.events.event.HoldTickets = 5

	body, _ := json.Marshal(map[string]int{"eventId": 3, "quantity": 5})
	rec := f.post(t, "/api/payments/release", body, f.handler.ReleaseHold)
	require.Equal(t, http.StatusOK, rec.Code)

	// Only the hold counter drops; availability never moves on a client request
	assert.Equal(t, 40, f.events.event.TicketsAvailable)
	assert.Equal(t, 0, f.events.event.HoldTickets)
}

// A client release followed by the gateway's expiry notification for the same
// order must credit the hold exactly once: the client call drops the hold
// counter only, and the status-gated transition does the availability credit.
func TestPaymentHandler_ReleaseHold_ThenExpiryCreditsOnce(t *testing.T) {
	f := newWebhookFixture(&models.Order{
		OrderID:     "ORD-20240101-000001",
		EventID:     3,
		Quantity:    2,
		TotalAmount: 150000,
		Status:      models.OrderPending,
	})
	f.events.event.TotalTickets = 10
	f.events.event.TicketsAvailable = 10
	require.NoError(t, f.events.Reserve(3, 2)) // this order's hold
	require.NoError(t, f.events.Reserve(3, 3)) // another buyer's pending order
	require.Equal(t, 5, f.events.event.TicketsAvailable)

	body, _ := json.Marshal(map[string]int{"eventId": 3, "quantity": 2})
	rec := f.post(t, "/api/payments/release", body, f.handler.ReleaseHold)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 5, f.events.event.TicketsAvailable)
	assert.Equal(t, 3, f.events.event.HoldTickets)

	payload := signedNotification(t, f.gateway, services.Notification{
		OrderID:           "ORD-20240101-000001",
		GrossAmount:       "150000.00",
		TransactionStatus: "expire",
	})
	rec = f.post(t, "/api/payments/notification", payload, f.handler.Notification)
	require.Equal(t, http.StatusOK, rec.Code)

	// The two held tickets come back once, not twice
	assert.Equal(t, 7, f.events.event.TicketsAvailable)
	assert.Equal(t, models.OrderReleased, f.orders.orders["ORD-20240101-000001"].Status)
}

func TestPaymentHandler_ReleaseHold_RejectsBadInput(t *testing.T) {
	f := newWebhookFixture()

	body, _ := json.Marshal(map[string]int{"eventId": 0, "quantity": 5})
	rec := f.post(t, "/api/payments/release", body, f.handler.ReleaseHold)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ = json.Marshal(map[string]int{"eventId": 3, "quantity": -1})
	rec = f.post(t, "/api/payments/release", body, f.handler.ReleaseHold)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
