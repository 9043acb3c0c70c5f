package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"festiva/internal/models"
	"festiva/internal/monitoring"
)

// OrderStore is the slice of the order repository the reconciliation workflow
// needs. Confirm and Transition report whether they applied a change, which is
// what makes duplicate and out-of-order notifications safe to replay.
type OrderStore interface {
	GetByOrderID(orderID string) (*models.Order, error)
	Confirm(orderID, paymentRef, qrCode string) (bool, *models.Order, error)
	Transition(orderID string, target models.OrderStatus) (bool, *models.Order, error)
	CreateConfirmed(req *models.OrderCreateRequest, paymentRef, qrCode string) (*models.Order, error)
}

// InventoryReleaser releases held stock back to availability
type InventoryReleaser interface {
	Release(eventID, quantity int) error
}

// WebhookLogStore persists raw notification payloads for audit
type WebhookLogStore interface {
	Append(orderID, transactionStatus string, payload []byte) error
}

// ReceiptIssuer delivers a ticket receipt after a confirmed purchase
type ReceiptIssuer interface {
	DeliverReceipt(order *models.Order) error
}

// NotificationResult is the processing acknowledgment returned to the webhook
// handler. Applied is false when the notification was understood but changed
// nothing, e.g. a redelivery of an already-applied terminal status.
type NotificationResult struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Applied bool               `json:"applied"`
	Message string             `json:"message"`
}

// PaymentProcessor reconciles gateway notifications with order and inventory
// state. It is the single canonical webhook implementation: signature
// verification, status mapping, idempotent application and compensating
// inventory release all live here.
type PaymentProcessor struct {
	orders    OrderStore
	inventory InventoryReleaser
	logs      WebhookLogStore
	gateway   *MidtransService
	receipts  ReceiptIssuer // Optional
}

// NewPaymentProcessor creates a new payment processor
func NewPaymentProcessor(orders OrderStore, inventory InventoryReleaser, logs WebhookLogStore, gateway *MidtransService, receipts ReceiptIssuer) *PaymentProcessor {
	return &PaymentProcessor{
		orders:    orders,
		inventory: inventory,
		logs:      logs,
		gateway:   gateway,
		receipts:  receipts,
	}
}

// HandleNotification processes one inbound gateway notification. Processing
// is safe to repeat: applying the same terminal status twice is a no-op, and
// a late pending notification never regresses a terminal state.
func (p *PaymentProcessor) HandleNotification(payload []byte) (*NotificationResult, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		monitoring.WebhookRejected("malformed")
		return nil, fmt.Errorf("%w: malformed notification payload: %v", models.ErrInvalidInput, err)
	}

	// Audit log is best-effort and must not mask the processing outcome.
	if err := p.logs.Append(n.OrderID, n.TransactionStatus, payload); err != nil {
		log.Printf("warning: failed to log webhook payload for order %s: %v", n.OrderID, err)
	}

	if err := p.gateway.VerifySignature(&n); err != nil {
		monitoring.WebhookRejected("invalid_signature")
		return nil, err
	}

	gross, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil || gross.IsNegative() {
		monitoring.WebhookRejected("malformed")
		return nil, fmt.Errorf("%w: invalid gross amount %q", models.ErrInvalidInput, n.GrossAmount)
	}

	mapped, err := p.gateway.MapStatus(n.TransactionStatus)
	if err != nil {
		monitoring.WebhookRejected("malformed")
		return nil, err
	}

	var result *NotificationResult
	switch mapped {
	case models.OrderConfirmed:
		result, err = p.applyConfirmation(&n, gross)
	case models.OrderPending:
		result = &NotificationResult{OrderID: n.OrderID, Status: models.OrderPending, Message: "payment pending"}
	default:
		result, err = p.applyCancellation(&n, mapped)
	}
	if err != nil {
		return nil, err
	}

	outcome := string(result.Status)
	if outcome == "" {
		outcome = "ignored"
	}
	monitoring.WebhookProcessed(outcome)
	return result, nil
}

func (p *PaymentProcessor) applyConfirmation(n *Notification, gross decimal.Decimal) (*NotificationResult, error) {
	applied, order, err := p.orders.Confirm(n.OrderID, n.TransactionID, uuid.NewString())
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			// The callback won the race against the pending write. Synthesize
			// the order from the notification's embedded metadata instead of
			// rejecting.
			return p.autoCreateConfirmed(n)
		}
		return nil, err
	}

	if !applied {
		return &NotificationResult{
			OrderID: n.OrderID,
			Status:  order.Status,
			Message: "order already in terminal state",
		}, nil
	}

	if expected := decimal.NewFromInt(int64(order.TotalAmount)); !gross.Equal(expected) {
		log.Printf("warning: gross amount %s differs from order total %s for order %s", gross, expected, n.OrderID)
	}

	p.deliverReceipt(order)

	return &NotificationResult{
		OrderID: n.OrderID,
		Status:  models.OrderConfirmed,
		Applied: true,
		Message: "payment confirmed",
	}, nil
}

func (p *PaymentProcessor) autoCreateConfirmed(n *Notification) (*NotificationResult, error) {
	if n.EventID <= 0 || n.UserID <= 0 || n.Quantity <= 0 || n.TotalPrice < 0 || strings.TrimSpace(n.CustomerName) == "" {
		return nil, fmt.Errorf("%w: order %s", models.ErrIncompleteAutoCreate, n.OrderID)
	}

	req := &models.OrderCreateRequest{
		OrderID:      n.OrderID,
		UserID:       n.UserID,
		EventID:      n.EventID,
		Quantity:     n.Quantity,
		UnitPrice:    n.TotalPrice / n.Quantity,
		TotalAmount:  n.TotalPrice,
		EventName:    n.EventName,
		Venue:        n.Venue,
		CustomerName: n.CustomerName,
	}

	order, err := p.orders.CreateConfirmed(req, n.TransactionID, uuid.NewString())
	if err != nil {
		if errors.Is(err, models.ErrDuplicateOrder) {
			// Lost a race against another delivery of the same notification.
			existing, getErr := p.orders.GetByOrderID(n.OrderID)
			if getErr != nil {
				return nil, getErr
			}
			return &NotificationResult{
				OrderID: n.OrderID,
				Status:  existing.Status,
				Message: "order already exists",
			}, nil
		}
		return nil, err
	}

	p.deliverReceipt(order)

	return &NotificationResult{
		OrderID: n.OrderID,
		Status:  models.OrderConfirmed,
		Applied: true,
		Message: "order created from notification",
	}, nil
}

func (p *PaymentProcessor) applyCancellation(n *Notification, target models.OrderStatus) (*NotificationResult, error) {
	applied, order, err := p.orders.Transition(n.OrderID, target)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			// Nothing was reserved under this order id; nothing to release.
			// Status is left empty: the order never existed, so reporting the
			// target status would claim a transition that never happened.
			return &NotificationResult{
				OrderID: n.OrderID,
				Message: "no order to cancel",
			}, nil
		}
		return nil, err
	}

	if !applied {
		return &NotificationResult{
			OrderID: n.OrderID,
			Status:  order.Status,
			Message: "order already in terminal state",
		}, nil
	}

	// The status transition is recorded even when the inventory credit fails;
	// an operator can reconcile the counter later.
	if err := p.inventory.Release(order.EventID, order.Quantity); err != nil {
		log.Printf("warning: failed to release %d tickets for event %d after %s of order %s: %v",
			order.Quantity, order.EventID, target, n.OrderID, err)
	}

	return &NotificationResult{
		OrderID: n.OrderID,
		Status:  target,
		Applied: true,
		Message: fmt.Sprintf("order %s", target),
	}, nil
}

func (p *PaymentProcessor) deliverReceipt(order *models.Order) {
	if p.receipts == nil {
		return
	}
	if err := p.receipts.DeliverReceipt(order); err != nil {
		log.Printf("warning: failed to deliver receipt for order %s: %v", order.OrderID, err)
	}
}
