package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"festiva/internal/models"
)

// EventRepository handles event data operations
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, slug, title, description, venue, date, start_selling_date, end_selling_date,
	price, total_tickets, tickets_available, tickets_sold, hold_tickets, organizer_id, published,
	image_url, image_key, image_size, image_format, image_uploaded_at, created_at, updated_at`

// serializationRetries bounds optimistic-concurrency retries against the store.
const serializationRetries = 5

// isSerializationFailure reports whether an error is a transient write
// conflict that should be retried with a fresh read.
func isSerializationFailure(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Slug,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.Date,
		&event.StartSellingDate,
		&event.EndSellingDate,
		&event.Price,
		&event.TotalTickets,
		&event.TicketsAvailable,
		&event.TicketsSold,
		&event.HoldTickets,
		&event.OrganizerID,
		&event.Published,
		&event.ImageURL,
		&event.ImageKey,
		&event.ImageSize,
		&event.ImageFormat,
		&event.ImageUploadedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Create creates a new event with a slug derived from its title. Slug
// collisions get a numeric suffix.
func (r *EventRepository) Create(req *models.EventCreateRequest, organizerID int) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	base := models.Slugify(req.Title)
	slug := base

	query := fmt.Sprintf(`
		INSERT INTO events (slug, title, description, venue, date, start_selling_date, end_selling_date,
			price, total_tickets, tickets_available, organizer_id, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $12)
		RETURNING %s`, eventColumns)

	for attempt := 0; ; attempt++ {
		now := time.Now()
		event, err := scanEvent(r.db.QueryRow(
			query,
			slug,
			req.Title,
			req.Description,
			req.Venue,
			req.Date,
			req.StartSellingDate,
			req.EndSellingDate,
			req.Price,
			req.TotalTickets,
			organizerID,
			req.Published,
			now,
		))
		if err == nil {
			return event, nil
		}

		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && attempt < 5 {
			slug = fmt.Sprintf("%s-%d", base, attempt+2)
			continue
		}

		return nil, fmt.Errorf("failed to create event: %w", err)
	}
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(id int) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", eventColumns)

	event, err := scanEvent(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// GetBySlug retrieves an event by its URL slug
func (r *EventRepository) GetBySlug(slug string) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE slug = $1", eventColumns)

	event, err := scanEvent(r.db.QueryRow(query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by slug: %w", err)
	}

	return event, nil
}

// ListPublished retrieves published events ordered by date
func (r *EventRepository) ListPublished(limit, offset int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM events
		WHERE published = TRUE
		ORDER BY date ASC
		LIMIT $1 OFFSET $2`, eventColumns)

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Update updates an event's editable fields. Inventory counters are never
// touched here; they move only through Reserve, Release and order
// confirmation.
func (r *EventRepository) Update(id int, req *models.EventUpdateRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE events
		SET title = $2, description = $3, venue = $4, date = $5,
			start_selling_date = $6, end_selling_date = $7, price = $8, published = $9, updated_at = $10
		WHERE id = $1
		RETURNING %s`, eventColumns)

	event, err := scanEvent(r.db.QueryRow(
		query,
		id,
		req.Title,
		req.Description,
		req.Venue,
		req.Date,
		req.StartSellingDate,
		req.EndSellingDate,
		req.Price,
		req.Published,
		time.Now(),
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return event, nil
}

// UpdateImage stores poster image metadata for an event
func (r *EventRepository) UpdateImage(id int, url, key, format string, size int64) error {
	now := time.Now()
	result, err := r.db.Exec(`
		UPDATE events
		SET image_url = $2, image_key = $3, image_format = $4, image_size = $5, image_uploaded_at = $6, updated_at = $6
		WHERE id = $1`,
		id, url, key, format, size, now)
	if err != nil {
		return fmt.Errorf("failed to update event image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrEventNotFound
	}

	return nil
}

// Reserve atomically decrements available stock for an event. The
// availability check and the decrement happen in a single guarded UPDATE so
// concurrent reservations serialize through the store and can never oversell.
func (r *EventRepository) Reserve(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < serializationRetries; attempt++ {
		result, err := r.db.Exec(`
			UPDATE events
			SET tickets_available = tickets_available - $2,
				hold_tickets = hold_tickets + $2,
				updated_at = $3
			WHERE id = $1 AND tickets_available >= $2`,
			eventID, quantity, time.Now())

		if err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("failed to reserve tickets: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if affected == 0 {
			// Distinguish a missing event from insufficient stock.
			var exists bool
			if err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)", eventID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check event existence: %w", err)
			}
			if !exists {
				return models.ErrEventNotFound
			}
			return models.ErrOutOfStock
		}

		return nil
	}

	return fmt.Errorf("reservation retries exhausted: %w", lastErr)
}

// Release atomically returns held stock to availability. The credit is capped
// at the event's remaining capacity and the hold counter is floored at zero, so
// a duplicate release cannot inflate stock. The cap clamps the credit, never
// the counter itself: tickets_available is never written below its current
// value, even when sold tickets have already shrunk the remaining capacity.
func (r *EventRepository) Release(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < serializationRetries; attempt++ {
		result, err := r.db.Exec(`
			UPDATE events
			SET tickets_available = GREATEST(tickets_available, LEAST(tickets_available + $2, total_tickets - tickets_sold)),
				hold_tickets = GREATEST(hold_tickets - $2, 0),
				updated_at = $3
			WHERE id = $1`,
			eventID, quantity, time.Now())

		if err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("failed to release tickets: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if affected == 0 {
			return models.ErrEventNotFound
		}

		return nil
	}

	return fmt.Errorf("release retries exhausted: %w", lastErr)
}

// ReleaseHold decrements the hold counter for an event, floored at zero,
// without crediting availability. This is the only inventory effect a client
// may request directly; returning stock to tickets_available stays gated on
// an order status transition.
func (r *EventRepository) ReleaseHold(eventID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}

	result, err := r.db.Exec(`
		UPDATE events
		SET hold_tickets = GREATEST(hold_tickets - $2, 0),
			updated_at = $3
		WHERE id = $1`,
		eventID, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrEventNotFound
	}

	return nil
}
