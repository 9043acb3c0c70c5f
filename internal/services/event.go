package services

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"festiva/internal/models"
	"festiva/internal/repositories"
)

// EventRepository is the slice of the event repository the catalog
// workflow needs
type EventRepository interface {
	Create(req *models.EventCreateRequest, organizerID int) (*models.Event, error)
	GetByID(id int) (*models.Event, error)
	GetBySlug(slug string) (*models.Event, error)
	ListPublished(limit, offset int) ([]*models.Event, error)
	Update(id int, req *models.EventUpdateRequest) (*models.Event, error)
	UpdateImage(id int, url, key, format string, size int64) error
}

// OrderStatsReader exposes per-event sales aggregates
type OrderStatsReader interface {
	StatsByEvent(eventID int) (*repositories.EventStats, error)
}

// EventService manages the event catalog: creation, updates, listing, poster
// uploads and sales stats. Inventory mutations stay with InventoryService.
type EventService struct {
	events  EventRepository
	orders  OrderStatsReader
	users   UserReader
	images  *ImageService
	storage StorageService
}

// NewEventService creates a new event service
func NewEventService(events EventRepository, orders OrderStatsReader, users UserReader, images *ImageService, storage StorageService) *EventService {
	return &EventService{
		events:  events,
		orders:  orders,
		users:   users,
		images:  images,
		storage: storage,
	}
}

// CreateEvent creates a new event owned by the given organizer
func (s *EventService) CreateEvent(req *models.EventCreateRequest, organizerID int) (*models.Event, error) {
	user, err := s.users.GetByID(organizerID)
	if err != nil {
		return nil, err
	}
	if !user.CanManageEvents() {
		return nil, fmt.Errorf("%w: user %d cannot manage events", models.ErrUnauthorized, organizerID)
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	return s.events.Create(req, organizerID)
}

// UpdateEvent updates an event. Only the owning organizer or an admin may
// update it.
func (s *EventService) UpdateEvent(id int, req *models.EventUpdateRequest, requestingUserID int) (*models.Event, error) {
	if err := s.authorizeManage(id, requestingUserID); err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	return s.events.Update(id, req)
}

// GetEvent retrieves an event by ID
func (s *EventService) GetEvent(id int) (*models.Event, error) {
	return s.events.GetByID(id)
}

// GetEventBySlug retrieves an event by its URL slug
func (s *EventService) GetEventBySlug(slug string) (*models.Event, error) {
	return s.events.GetBySlug(slug)
}

// ListEvents retrieves published events, soonest first
func (s *EventService) ListEvents(limit, offset int) ([]*models.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListPublished(limit, offset)
}

// UploadPoster processes and stores an event poster, then records the new
// image metadata on the event.
func (s *EventService) UploadPoster(ctx context.Context, eventID, requestingUserID int, reader io.Reader, size int64) (*models.Event, error) {
	if err := s.authorizeManage(eventID, requestingUserID); err != nil {
		return nil, err
	}

	poster, err := s.images.ProcessPoster(reader, size)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("events/%d/poster.jpg", eventID)
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(poster.Data), poster.ContentType, int64(len(poster.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to store poster: %w", err)
	}

	if err := s.events.UpdateImage(eventID, url, key, "jpeg", int64(len(poster.Data))); err != nil {
		return nil, err
	}

	return s.events.GetByID(eventID)
}

// EventStats returns sales aggregates for an event, restricted to its
// organizer or an admin.
func (s *EventService) EventStats(eventID, requestingUserID int) (*repositories.EventStats, error) {
	if err := s.authorizeManage(eventID, requestingUserID); err != nil {
		return nil, err
	}
	return s.orders.StatsByEvent(eventID)
}

func (s *EventService) authorizeManage(eventID, userID int) error {
	event, err := s.events.GetByID(eventID)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	if user.Role == models.RoleAdmin {
		return nil
	}
	if user.CanManageEvents() && event.OrganizerID == userID {
		return nil
	}

	return fmt.Errorf("%w: user %d cannot manage event %d", models.ErrUnauthorized, userID, eventID)
}
