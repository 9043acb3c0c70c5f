package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderReleased  OrderStatus = "released"
	OrderExchanged OrderStatus = "exchanged"
)

// orderTransitions is the canonical state machine for orders. Any transition
// not listed here is rejected, so a stale or duplicate gateway notification
// can never overwrite a terminal status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled, OrderReleased},
	OrderConfirmed: {OrderExchanged},
	OrderCancelled: {},
	OrderReleased:  {},
	OrderExchanged: {},
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is final with respect to payment
// reconciliation. Exchanged is reachable from confirmed, but only through the
// redemption flow, never through a notification.
func (s OrderStatus) IsTerminal() bool {
	return s != OrderPending
}

// Valid reports whether the status is part of the known status domain.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCancelled, OrderReleased, OrderExchanged:
		return true
	}
	return false
}

// Order represents a ticket purchase in the system. OrderID is the
// human-readable correlation key shared with the payment gateway; event and
// customer display fields are denormalized so receipts render without extra
// lookups.
type Order struct {
	ID           int         `json:"id" db:"id"`
	OrderID      string      `json:"order_id" db:"order_id"`
	UserID       int         `json:"user_id" db:"user_id"`
	EventID      int         `json:"event_id" db:"event_id"`
	Quantity     int         `json:"quantity" db:"quantity"`
	UnitPrice    int         `json:"unit_price" db:"unit_price"`       // Minor currency units
	TotalAmount  int         `json:"total_amount" db:"total_amount"`   // Minor currency units
	Status       OrderStatus `json:"status" db:"status"`
	PaymentRef   string      `json:"payment_ref" db:"payment_ref"`
	EventName    string      `json:"event_name" db:"event_name"`
	Venue        string      `json:"venue" db:"venue"`
	CustomerName string      `json:"customer_name" db:"customer_name"`
	QRCode       string      `json:"qr_code" db:"qr_code"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderCreateRequest represents the data needed to create a new order
type OrderCreateRequest struct {
	OrderID      string      `json:"order_id"`
	UserID       int         `json:"user_id"`
	EventID      int         `json:"event_id"`
	Quantity     int         `json:"quantity"`
	UnitPrice    int         `json:"unit_price"`
	TotalAmount  int         `json:"total_amount"`
	Status       OrderStatus `json:"status"`
	EventName    string      `json:"event_name"`
	Venue        string      `json:"venue"`
	CustomerName string      `json:"customer_name"`
}

// Order id format: ORD-YYYYMMDD-XXXXXX (e.g. ORD-20240101-123456)
var orderIDRegex = regexp.MustCompile(`^ORD-\d{8}-\d{6}$`)

// Validate validates order creation data
func (req *OrderCreateRequest) Validate() error {
	if req.OrderID == "" {
		return errors.New("order id is required")
	}

	if !orderIDRegex.MatchString(req.OrderID) {
		return errors.New("order id format is invalid")
	}

	if req.EventID <= 0 {
		return errors.New("event id is required")
	}

	if req.UserID <= 0 {
		return errors.New("user id is required")
	}

	if req.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}

	if req.UnitPrice < 0 {
		return errors.New("unit price cannot be negative")
	}

	if req.TotalAmount < 0 {
		return errors.New("total amount cannot be negative")
	}

	if req.Status != "" && !req.Status.Valid() {
		return errors.New("invalid order status")
	}

	if strings.TrimSpace(req.CustomerName) == "" {
		return errors.New("customer name is required")
	}

	return nil
}

// GenerateOrderID generates a unique external-facing order id
func GenerateOrderID() string {
	now := time.Now()
	dateStr := now.Format("20060102")

	// Generate a 6-digit random number using crypto/rand for better uniqueness
	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to timestamp-based generation if crypto/rand fails
		timestamp := now.UnixNano()
		return fmt.Sprintf("ORD-%s-%06d", dateStr, timestamp%1000000)
	}

	return fmt.Sprintf("ORD-%s-%06d", dateStr, randomNum.Int64())
}

// IsPending returns true if the order is awaiting payment
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsConfirmed returns true if payment was verified for the order
func (o *Order) IsConfirmed() bool {
	return o.Status == OrderConfirmed
}

// CanBeRedeemed returns true if the order's ticket can still be exchanged at entry
func (o *Order) CanBeRedeemed() bool {
	return o.Status.CanTransitionTo(OrderExchanged)
}

// TotalAmountInCurrency returns the total amount in the main currency unit
func (o *Order) TotalAmountInCurrency() float64 {
	return float64(o.TotalAmount) / 100.0
}

// GetStatusDisplayName returns a human-readable status name
func (o *Order) GetStatusDisplayName() string {
	switch o.Status {
	case OrderPending:
		return "Pending Payment"
	case OrderConfirmed:
		return "Confirmed"
	case OrderCancelled:
		return "Cancelled"
	case OrderReleased:
		return "Released"
	case OrderExchanged:
		return "Redeemed"
	default:
		return string(o.Status)
	}
}
