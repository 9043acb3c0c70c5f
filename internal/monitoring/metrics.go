package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "festiva_reservation_attempts_total",
			Help: "Ticket reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	inventoryReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "festiva_inventory_releases_total",
			Help: "Inventory release operations applied",
		},
	)

	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "festiva_webhook_notifications_total",
			Help: "Gateway notifications by mapped status",
		},
		[]string{"status"},
	)

	webhookRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "festiva_webhook_rejections_total",
			Help: "Gateway notifications rejected before processing",
		},
		[]string{"reason"},
	)
)

// ReservationAttempt records a reservation outcome: "reserved", "out_of_stock"
// or "error".
func ReservationAttempt(outcome string) {
	reservationAttempts.WithLabelValues(outcome).Inc()
}

// InventoryReleased records an applied inventory release
func InventoryReleased() {
	inventoryReleases.Inc()
}

// WebhookProcessed records a notification by its mapped internal status
func WebhookProcessed(status string) {
	webhookNotifications.WithLabelValues(status).Inc()
}

// WebhookRejected records a notification rejected before processing,
// e.g. "invalid_signature" or "malformed"
func WebhookRejected(reason string) {
	webhookRejections.WithLabelValues(reason).Inc()
}
