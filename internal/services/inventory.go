package services

import (
	"errors"
	"fmt"
	"time"

	"festiva/internal/models"
	"festiva/internal/monitoring"
)

// EventInventoryRepository is the slice of the event repository the
// reservation workflow needs. Reserve and Release must be atomic against the
// backing store; the service never reads and writes inventory separately.
type EventInventoryRepository interface {
	GetByID(id int) (*models.Event, error)
	Reserve(eventID, quantity int) error
	Release(eventID, quantity int) error
	ReleaseHold(eventID, quantity int) error
}

// InventoryService holds and releases ticket stock against an event record.
// It is the only path through which tickets_available changes.
type InventoryService struct {
	events EventInventoryRepository
}

// NewInventoryService creates a new inventory service
func NewInventoryService(events EventInventoryRepository) *InventoryService {
	return &InventoryService{events: events}
}

// Reserve holds quantity tickets for an event. The stock check and the
// decrement are one atomic operation in the repository, so concurrent
// reservations against the same event can never oversell. Returns
// models.ErrOutOfStock when stock is insufficient and models.ErrSalesClosed
// outside the event's selling window.
func (s *InventoryService) Reserve(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	event, err := s.events.GetByID(eventID)
	if err != nil {
		return err
	}

	if !event.IsSelling(time.Now()) {
		return models.ErrSalesClosed
	}

	if err := s.events.Reserve(eventID, quantity); err != nil {
		if errors.Is(err, models.ErrOutOfStock) {
			monitoring.ReservationAttempt("out_of_stock")
		} else {
			monitoring.ReservationAttempt("error")
		}
		return err
	}

	monitoring.ReservationAttempt("reserved")
	return nil
}

// Release returns quantity held tickets to availability. The repository caps
// the credit at the event's capacity, but idempotency is the caller's
// responsibility: release must be gated on the order's status transition, not
// on the caller's intent.
func (s *InventoryService) Release(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	if err := s.events.Release(eventID, quantity); err != nil {
		return err
	}

	monitoring.InventoryReleased()
	return nil
}

// ReleaseHold drops quantity tickets from an event's hold counter without
// touching availability. Clients call this for payments they have abandoned;
// the availability credit itself only ever happens through a status-gated
// release, so a later expiry notification for the same order cannot
// double-credit stock.
func (s *InventoryService) ReleaseHold(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	return s.events.ReleaseHold(eventID, quantity)
}
