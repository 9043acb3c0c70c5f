package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festiva/internal/models"
)

// The lifecycle methods below extend mockOrderStore to the full
// OrderLifecycleStore used by the checkout and redemption paths.

func (m *mockOrderStore) Create(req *models.OrderCreateRequest) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[req.OrderID]; exists {
		return nil, models.ErrDuplicateOrder
	}
	order := &models.Order{
		OrderID:      req.OrderID,
		UserID:       req.UserID,
		EventID:      req.EventID,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		TotalAmount:  req.TotalAmount,
		Status:       models.OrderPending,
		EventName:    req.EventName,
		Venue:        req.Venue,
		CustomerName: req.CustomerName,
	}
	m.orders[req.OrderID] = order
	copied := *order
	return &copied, nil
}

func (m *mockOrderStore) ListByUser(userID, limit, offset int) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockOrderStore) Redeem(orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if order.Status == models.OrderExchanged {
		return nil, models.ErrAlreadyRedeemed
	}
	if !order.Status.CanTransitionTo(models.OrderExchanged) {
		return nil, fmt.Errorf("%w: order %s is %s, not confirmed", models.ErrInvalidInput, orderID, order.Status)
	}
	order.Status = models.OrderExchanged
	copied := *order
	return &copied, nil
}

type mockUserReader struct {
	users map[int]*models.User
}

func (m *mockUserReader) GetByID(id int) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

type mockGateway struct {
	response *SnapResponse
	err      error
	calls    int
}

func (m *mockGateway) CreateSession(order *models.Order, customer *models.User) (*SnapResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

type orderServiceFixture struct {
	service *OrderService
	orders  *mockOrderStore
	events  *mockEventRepository
	gateway *mockGateway
}

func newOrderServiceFixture(event *models.Event) *orderServiceFixture {
	orders := newMockOrderStore()
	events := newMockEventRepository(event)
	gateway := &mockGateway{response: &SnapResponse{Token: "snap-token", RedirectURL: "https://pay.example"}}
	users := &mockUserReader{users: map[int]*models.User{
		7: {ID: 7, Name: "Jane Doe", Email: "jane@example.com", Role: models.RoleCustomer},
		8: {ID: 8, Name: "Sam Admin", Email: "sam@example.com", Role: models.RoleAdmin},
	}}

	return &orderServiceFixture{
		service: NewOrderService(orders, events, users, NewInventoryService(events), gateway),
		orders:  orders,
		events:  events,
		gateway: gateway,
	}
}

func TestOrderService_Checkout(t *testing.T) {
	event := sellingEvent(3, 10)
	event.Price = 75000
	event.Venue = "Blue Hall"
	f := newOrderServiceFixture(event)

	result, err := f.service.Checkout(7, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, "snap-token", result.SessionToken)
	assert.Equal(t, "https://pay.example", result.RedirectURL)
	assert.Equal(t, models.OrderPending, result.Order.Status)
	assert.Equal(t, 2, result.Order.Quantity)
	assert.Equal(t, 75000, result.Order.UnitPrice)
	assert.Equal(t, 150000, result.Order.TotalAmount)
	assert.Equal(t, "Jane Doe", result.Order.CustomerName)

	stocked, _ := f.events.GetByID(3)
	assert.Equal(t, 8, stocked.TicketsAvailable)
	assert.Equal(t, 2, stocked.HoldTickets)
}

func TestOrderService_Checkout_SessionFailureReleasesHold(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))
	f.gateway.err = fmt.Errorf("%w: gateway down", models.ErrGateway)

	_, err := f.service.Checkout(7, 3, 2)
	assert.ErrorIs(t, err, models.ErrGateway)

	// The pending order was released and the stock credited back
	event, _ := f.events.GetByID(3)
	assert.Equal(t, 10, event.TicketsAvailable)
	assert.Equal(t, 0, event.HoldTickets)

	orders, _ := f.orders.ListByUser(7, 10, 0)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderReleased, orders[0].Status)
}

func TestOrderService_Checkout_OutOfStock(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 1))

	_, err := f.service.Checkout(7, 3, 2)
	assert.ErrorIs(t, err, models.ErrOutOfStock)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestOrderService_Checkout_UnknownUser(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))

	_, err := f.service.Checkout(99, 3, 1)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestOrderService_CancelOrRelease_Idempotent(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))

	result, err := f.service.Checkout(7, 3, 2)
	require.NoError(t, err)

	require.NoError(t, f.service.CancelOrRelease(result.Order.OrderID, models.OrderCancelled))

	event, _ := f.events.GetByID(3)
	assert.Equal(t, 10, event.TicketsAvailable)

	// A repeated cancel must not credit the stock again
	require.NoError(t, f.service.CancelOrRelease(result.Order.OrderID, models.OrderCancelled))

	event, _ = f.events.GetByID(3)
	assert.Equal(t, 10, event.TicketsAvailable)
	assert.Equal(t, 0, event.HoldTickets)
}

func TestOrderService_CancelOrRelease_UnknownOrderIsNoOp(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))

	assert.NoError(t, f.service.CancelOrRelease("ORD-20240101-999999", models.OrderReleased))

	event, _ := f.events.GetByID(3)
	assert.Equal(t, 10, event.TicketsAvailable)
}

func TestOrderService_GetOrder_OwnershipCheck(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))

	result, err := f.service.Checkout(7, 3, 1)
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		order, err := f.service.GetOrder(result.Order.OrderID, 7)
		require.NoError(t, err)
		assert.Equal(t, result.Order.OrderID, order.OrderID)
	})

	t.Run("admin can read", func(t *testing.T) {
		_, err := f.service.GetOrder(result.Order.OrderID, 8)
		assert.NoError(t, err)
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		f.orders.orders["ORD-20240101-777777"] = pendingOrder("ORD-20240101-777777")
		f.orders.orders["ORD-20240101-777777"].UserID = 99
		_, err := f.service.GetOrder("ORD-20240101-777777", 7)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestOrderService_RedeemWithCode(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))

	order := pendingOrder("ORD-20240101-000001")
	order.Status = models.OrderConfirmed
	order.QRCode = "qr-payload-abc"
	f.orders.orders[order.OrderID] = order

	t.Run("wrong code rejected", func(t *testing.T) {
		_, err := f.service.RedeemWithCode(order.OrderID, "qr-payload-xyz")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("matching code redeems", func(t *testing.T) {
		redeemed, err := f.service.RedeemWithCode(order.OrderID, "qr-payload-abc")
		require.NoError(t, err)
		assert.Equal(t, models.OrderExchanged, redeemed.Status)
	})

	t.Run("second scan rejected", func(t *testing.T) {
		_, err := f.service.RedeemWithCode(order.OrderID, "qr-payload-abc")
		assert.ErrorIs(t, err, models.ErrAlreadyRedeemed)
	})
}

func TestOrderService_Redeem_PendingOrderRejected(t *testing.T) {
	f := newOrderServiceFixture(sellingEvent(3, 10))
	f.orders.orders["ORD-20240101-000001"] = pendingOrder("ORD-20240101-000001")

	_, err := f.service.Redeem("ORD-20240101-000001")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
