package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"festiva/internal/models"
)

// OrderRepository handles order data operations. Status transitions and the
// event counters they imply are applied inside a single transaction, so a
// duplicate or out-of-order notification can never double-count a sale.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_id, user_id, event_id, quantity, unit_price, total_amount, status,
	payment_ref, event_name, venue, customer_name, qr_code, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderID,
		&order.UserID,
		&order.EventID,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalAmount,
		&order.Status,
		&order.PaymentRef,
		&order.EventName,
		&order.Venue,
		&order.CustomerName,
		&order.QRCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// withTx runs fn inside a transaction, retrying on transient serialization
// failures with a fresh transaction each time.
func (r *OrderRepository) withTx(fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < serializationRetries; attempt++ {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		return nil
	}

	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

func insertOrder(tx *sql.Tx, req *models.OrderCreateRequest, status models.OrderStatus, paymentRef, qrCode string) (*models.Order, error) {
	query := fmt.Sprintf(`
		INSERT INTO orders (order_id, user_id, event_id, quantity, unit_price, total_amount, status,
			payment_ref, event_name, venue, customer_name, qr_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING %s`, orderColumns)

	order, err := scanOrder(tx.QueryRow(
		query,
		req.OrderID,
		req.UserID,
		req.EventID,
		req.Quantity,
		req.UnitPrice,
		req.TotalAmount,
		status,
		paymentRef,
		req.EventName,
		req.Venue,
		req.CustomerName,
		qrCode,
		time.Now(),
	))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, models.ErrDuplicateOrder
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return order, nil
}

// Create writes a new pending order record
func (r *OrderRepository) Create(req *models.OrderCreateRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	var order *models.Order
	err := r.withTx(func(tx *sql.Tx) error {
		var err error
		order, err = insertOrder(tx, req, models.OrderPending, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// CreateConfirmed writes a confirmed order directly and applies the sale to
// the event's counters in the same transaction. Used when a successful
// payment notification arrives before (or without) the pending write.
func (r *OrderRepository) CreateConfirmed(req *models.OrderCreateRequest, paymentRef, qrCode string) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	var order *models.Order
	err := r.withTx(func(tx *sql.Tx) error {
		var err error
		order, err = insertOrder(tx, req, models.OrderConfirmed, paymentRef, qrCode)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE events
			SET tickets_sold = tickets_sold + $2,
				hold_tickets = GREATEST(hold_tickets - $2, 0),
				updated_at = $3
			WHERE id = $1`,
			req.EventID, req.Quantity, time.Now())
		if err != nil {
			return fmt.Errorf("failed to record sale: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetByOrderID retrieves an order by its external correlation key
func (r *OrderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE order_id = $1", orderColumns)

	order, err := scanOrder(r.db.QueryRow(query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// ListByUser retrieves orders for a user, newest first
func (r *OrderRepository) ListByUser(userID, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orderColumns)

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// Confirm transitions a pending order to confirmed and moves the held tickets
// into the sold count atomically. Returns applied=false when the order is
// already in a terminal state, which makes duplicate notifications no-ops.
func (r *OrderRepository) Confirm(orderID, paymentRef, qrCode string) (bool, *models.Order, error) {
	var (
		applied bool
		order   *models.Order
	)

	err := r.withTx(func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM orders WHERE order_id = $1 FOR UPDATE", orderColumns)
		current, err := scanOrder(tx.QueryRow(query, orderID))
		if err != nil {
			if err == sql.ErrNoRows {
				return models.ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		if !current.Status.CanTransitionTo(models.OrderConfirmed) {
			applied = false
			order = current
			return nil
		}

		updated, err := scanOrder(tx.QueryRow(fmt.Sprintf(`
			UPDATE orders
			SET status = $2, payment_ref = $3, qr_code = $4, updated_at = $5
			WHERE order_id = $1
			RETURNING %s`, orderColumns),
			orderID, models.OrderConfirmed, paymentRef, qrCode, time.Now()))
		if err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE events
			SET tickets_sold = tickets_sold + $2,
				hold_tickets = GREATEST(hold_tickets - $2, 0),
				updated_at = $3
			WHERE id = $1`,
			current.EventID, current.Quantity, time.Now())
		if err != nil {
			return fmt.Errorf("failed to record sale: %w", err)
		}

		applied = true
		order = updated
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	return applied, order, nil
}

// Transition moves a pending order to cancelled or released. The inventory
// credit is the caller's job and must be gated on applied=true, so releasing
// twice for the same order can never double-credit stock.
func (r *OrderRepository) Transition(orderID string, target models.OrderStatus) (bool, *models.Order, error) {
	if target != models.OrderCancelled && target != models.OrderReleased {
		return false, nil, fmt.Errorf("%w: unsupported transition target %q", models.ErrInvalidInput, target)
	}

	var (
		applied bool
		order   *models.Order
	)

	err := r.withTx(func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM orders WHERE order_id = $1 FOR UPDATE", orderColumns)
		current, err := scanOrder(tx.QueryRow(query, orderID))
		if err != nil {
			if err == sql.ErrNoRows {
				return models.ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		if !current.Status.CanTransitionTo(target) {
			applied = false
			order = current
			return nil
		}

		updated, err := scanOrder(tx.QueryRow(fmt.Sprintf(`
			UPDATE orders
			SET status = $2, updated_at = $3
			WHERE order_id = $1
			RETURNING %s`, orderColumns),
			orderID, target, time.Now()))
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		applied = true
		order = updated
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	return applied, order, nil
}

// Redeem transitions a confirmed order to exchanged. Exchanged is terminal:
// a second scan of the same ticket is rejected.
func (r *OrderRepository) Redeem(orderID string) (*models.Order, error) {
	var order *models.Order

	err := r.withTx(func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM orders WHERE order_id = $1 FOR UPDATE", orderColumns)
		current, err := scanOrder(tx.QueryRow(query, orderID))
		if err != nil {
			if err == sql.ErrNoRows {
				return models.ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		if current.Status == models.OrderExchanged {
			return models.ErrAlreadyRedeemed
		}

		if !current.Status.CanTransitionTo(models.OrderExchanged) {
			return fmt.Errorf("%w: order %s is %s, not confirmed", models.ErrInvalidInput, orderID, current.Status)
		}

		updated, err := scanOrder(tx.QueryRow(fmt.Sprintf(`
			UPDATE orders
			SET status = $2, updated_at = $3
			WHERE order_id = $1
			RETURNING %s`, orderColumns),
			orderID, models.OrderExchanged, time.Now()))
		if err != nil {
			return fmt.Errorf("failed to redeem order: %w", err)
		}

		order = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// EventStats holds per-event sales reporting figures
type EventStats struct {
	TotalOrders     int `json:"total_orders"`
	ConfirmedOrders int `json:"confirmed_orders"`
	PendingOrders   int `json:"pending_orders"`
	CancelledOrders int `json:"cancelled_orders"`
	RedeemedOrders  int `json:"redeemed_orders"`
	TicketsSold     int `json:"tickets_sold"`
	GrossRevenue    int `json:"gross_revenue"` // Minor currency units
}

// StatsByEvent retrieves order statistics for an event
func (r *OrderRepository) StatsByEvent(eventID int) (*EventStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_orders,
			COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed_orders,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
			COUNT(*) FILTER (WHERE status IN ('cancelled', 'released')) AS cancelled_orders,
			COUNT(*) FILTER (WHERE status = 'exchanged') AS redeemed_orders,
			COALESCE(SUM(quantity) FILTER (WHERE status IN ('confirmed', 'exchanged')), 0) AS tickets_sold,
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('confirmed', 'exchanged')), 0) AS gross_revenue
		FROM orders
		WHERE event_id = $1`

	stats := &EventStats{}
	err := r.db.QueryRow(query, eventID).Scan(
		&stats.TotalOrders,
		&stats.ConfirmedOrders,
		&stats.PendingOrders,
		&stats.CancelledOrders,
		&stats.RedeemedOrders,
		&stats.TicketsSold,
		&stats.GrossRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get order statistics: %w", err)
	}

	return stats, nil
}
