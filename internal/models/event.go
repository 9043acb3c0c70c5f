package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Event represents an event in the system. TicketsAvailable is the
// authoritative remaining stock; HoldTickets tracks stock decremented by
// in-flight reservations that have not been confirmed yet. Both are only ever
// mutated through the event repository's atomic operations.
type Event struct {
	ID               int        `json:"id" db:"id"`
	Slug             string     `json:"slug" db:"slug"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	Venue            string     `json:"venue" db:"venue"`
	Date             time.Time  `json:"date" db:"date"`
	StartSellingDate time.Time  `json:"start_selling_date" db:"start_selling_date"`
	EndSellingDate   time.Time  `json:"end_selling_date" db:"end_selling_date"`
	Price            int        `json:"price" db:"price"` // Minor currency units
	TotalTickets     int        `json:"total_tickets" db:"total_tickets"`
	TicketsAvailable int        `json:"tickets_available" db:"tickets_available"`
	TicketsSold      int        `json:"tickets_sold" db:"tickets_sold"`
	HoldTickets      int        `json:"hold_tickets" db:"hold_tickets"`
	OrganizerID      int        `json:"organizer_id" db:"organizer_id"`
	Published        bool       `json:"published" db:"published"`
	ImageURL         string     `json:"image_url" db:"image_url"`
	ImageKey         string     `json:"image_key" db:"image_key"`
	ImageSize        int64      `json:"image_size" db:"image_size"`
	ImageFormat      string     `json:"image_format" db:"image_format"`
	ImageUploadedAt  *time.Time `json:"image_uploaded_at" db:"image_uploaded_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// EventCreateRequest represents the data needed to create a new event
type EventCreateRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Venue            string    `json:"venue"`
	Date             time.Time `json:"date"`
	StartSellingDate time.Time `json:"start_selling_date"`
	EndSellingDate   time.Time `json:"end_selling_date"`
	Price            int       `json:"price"`
	TotalTickets     int       `json:"total_tickets"`
	Published        bool      `json:"published"`
}

// EventUpdateRequest represents the data that can be updated for an event
type EventUpdateRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Venue            string    `json:"venue"`
	Date             time.Time `json:"date"`
	StartSellingDate time.Time `json:"start_selling_date"`
	EndSellingDate   time.Time `json:"end_selling_date"`
	Price            int       `json:"price"`
	Published        bool      `json:"published"`
}

// Validate validates event creation data
func (req *EventCreateRequest) Validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title is required")
	}

	if len(req.Title) > 200 {
		return errors.New("title must be less than 200 characters")
	}

	if strings.TrimSpace(req.Venue) == "" {
		return errors.New("venue is required")
	}

	if req.Date.IsZero() {
		return errors.New("event date is required")
	}

	if err := validateSellingWindow(req.StartSellingDate, req.EndSellingDate); err != nil {
		return err
	}

	if req.Price < 0 {
		return errors.New("price cannot be negative")
	}

	if req.TotalTickets <= 0 {
		return errors.New("total tickets must be positive")
	}

	return nil
}

// Validate validates event update data
func (req *EventUpdateRequest) Validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title is required")
	}

	if strings.TrimSpace(req.Venue) == "" {
		return errors.New("venue is required")
	}

	if err := validateSellingWindow(req.StartSellingDate, req.EndSellingDate); err != nil {
		return err
	}

	if req.Price < 0 {
		return errors.New("price cannot be negative")
	}

	return nil
}

func validateSellingWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.New("selling window is required")
	}

	if !end.After(start) {
		return errors.New("selling window end must be after its start")
	}

	return nil
}

// IsSelling reports whether ticket purchase is permitted at the given time.
// The selling window is independent from the event's own date.
func (e *Event) IsSelling(now time.Time) bool {
	return !now.Before(e.StartSellingDate) && !now.After(e.EndSellingDate)
}

// IsSoldOut returns true when no stock remains
func (e *Event) IsSoldOut() bool {
	return e.TicketsAvailable <= 0
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	slugDashRuns     = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a URL-safe slug from an event title
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = slugDashRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "event"
	}
	return slug
}
