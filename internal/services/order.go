package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"

	"festiva/internal/models"
)

// EventReader is the slice of the event repository the order workflow needs
type EventReader interface {
	GetByID(id int) (*models.Event, error)
}

// UserReader is the slice of the user repository the order workflow needs
type UserReader interface {
	GetByID(id int) (*models.User, error)
}

// PaymentSessionCreator creates a payment session with the external gateway
type PaymentSessionCreator interface {
	CreateSession(order *models.Order, customer *models.User) (*SnapResponse, error)
}

// CheckoutResult carries everything the client needs to hand off to the
// payment UI.
type CheckoutResult struct {
	Order        *models.Order `json:"order"`
	SessionToken string        `json:"session_token"`
	RedirectURL  string        `json:"redirect_url"`
}

// OrderService drives the order lifecycle: reservation, pending-order
// creation, payment session handoff, cancellation with compensating release,
// and redemption.
type OrderService struct {
	orders    OrderLifecycleStore
	events    EventReader
	users     UserReader
	inventory *InventoryService
	gateway   PaymentSessionCreator
}

// OrderLifecycleStore extends OrderStore with the operations the synchronous
// checkout and redemption paths use.
type OrderLifecycleStore interface {
	OrderStore
	Create(req *models.OrderCreateRequest) (*models.Order, error)
	ListByUser(userID, limit, offset int) ([]*models.Order, error)
	Redeem(orderID string) (*models.Order, error)
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderLifecycleStore, events EventReader, users UserReader, inventory *InventoryService, gateway PaymentSessionCreator) *OrderService {
	return &OrderService{
		orders:    orders,
		events:    events,
		users:     users,
		inventory: inventory,
		gateway:   gateway,
	}
}

// Checkout reserves stock, writes a pending order and opens a payment
// session. Each step compensates the previous ones on failure so a failed
// checkout leaves no phantom hold behind.
func (s *OrderService) Checkout(userID, eventID, quantity int) (*CheckoutResult, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(eventID)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.Reserve(eventID, quantity); err != nil {
		return nil, err
	}

	req := &models.OrderCreateRequest{
		OrderID:      models.GenerateOrderID(),
		UserID:       user.ID,
		EventID:      event.ID,
		Quantity:     quantity,
		UnitPrice:    event.Price,
		TotalAmount:  event.Price * quantity,
		EventName:    event.Title,
		Venue:        event.Venue,
		CustomerName: user.Name,
	}

	order, err := s.orders.Create(req)
	if err != nil {
		s.compensateRelease(eventID, quantity, req.OrderID)
		return nil, err
	}

	session, err := s.gateway.CreateSession(order, user)
	if err != nil {
		s.CancelOrRelease(order.OrderID, models.OrderReleased)
		return nil, err
	}

	return &CheckoutResult{
		Order:        order,
		SessionToken: session.Token,
		RedirectURL:  session.RedirectURL,
	}, nil
}

// CancelOrRelease moves a pending order to the given terminal status and
// credits the held stock back. The release only happens when the transition
// actually applied, so repeating the call cannot double-credit. An absent
// order is a no-op: there is nothing to release.
func (s *OrderService) CancelOrRelease(orderID string, target models.OrderStatus) error {
	applied, order, err := s.orders.Transition(orderID, target)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return nil
		}
		return err
	}

	if !applied {
		return nil
	}

	if err := s.inventory.Release(order.EventID, order.Quantity); err != nil {
		log.Printf("warning: failed to release %d tickets for event %d after %s of order %s: %v",
			order.Quantity, order.EventID, target, orderID, err)
	}

	return nil
}

func (s *OrderService) compensateRelease(eventID, quantity int, orderID string) {
	if err := s.inventory.Release(eventID, quantity); err != nil {
		log.Printf("warning: failed to release %d tickets for event %d after failed checkout of order %s: %v",
			quantity, eventID, orderID, err)
	}
}

// GetOrder retrieves an order, restricted to its owner unless the requester
// is an admin.
func (s *OrderService) GetOrder(orderID string, requestingUserID int) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(requestingUserID)
	if err != nil {
		return nil, err
	}

	if user.Role != models.RoleAdmin && order.UserID != requestingUserID {
		return nil, fmt.Errorf("%w: order belongs to another user", models.ErrUnauthorized)
	}

	return order, nil
}

// ListUserOrders retrieves a user's order history, newest first
func (s *OrderService) ListUserOrders(userID, limit, offset int) ([]*models.Order, error) {
	return s.orders.ListByUser(userID, limit, offset)
}

// Redeem exchanges a confirmed ticket at the event entrance. A ticket that
// was already exchanged is rejected.
func (s *OrderService) Redeem(orderID string) (*models.Order, error) {
	return s.orders.Redeem(orderID)
}

// RedeemWithCode redeems a ticket after checking the scanned QR payload
// against the order's stored code.
func (s *OrderService) RedeemWithCode(orderID, qrCode string) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	if qrCode == "" || order.QRCode == "" || subtle.ConstantTimeCompare([]byte(order.QRCode), []byte(qrCode)) != 1 {
		return nil, fmt.Errorf("%w: QR code does not match order %s", models.ErrUnauthorized, orderID)
	}

	return s.orders.Redeem(orderID)
}
