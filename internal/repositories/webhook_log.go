package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// WebhookLogRepository persists raw gateway notification payloads for audit.
// Writes are best-effort; a logging failure must never mask the outcome of
// processing the notification itself.
type WebhookLogRepository struct {
	db *sql.DB
}

// NewWebhookLogRepository creates a new webhook log repository
func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Append records a received notification payload
func (r *WebhookLogRepository) Append(orderID, transactionStatus string, payload []byte) error {
	_, err := r.db.Exec(`
		INSERT INTO webhook_logs (order_id, transaction_status, payload, received_at)
		VALUES ($1, $2, $3, $4)`,
		orderID, transactionStatus, string(payload), time.Now())
	if err != nil {
		return fmt.Errorf("failed to append webhook log: %w", err)
	}

	return nil
}
