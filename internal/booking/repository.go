package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// Repository contains all DB interactions needed by the service.
//
// InTx runs fn with a repository view bound to a single serializable
// transaction; every read fn performs sees a state consistent with its
// writes, and a serialization conflict surfaces as db.ErrSerialization.
type Repository interface {
	GetEventBySlug(ctx context.Context, slug string) (*Event, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error)
	ListUpcomingEvents(ctx context.Context, now time.Time, limit int) ([]Event, error)
	CreateEvent(ctx context.Context, in EventInput) (*Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*Event, error)

	// Capacity ledger reads
	SeatsBooked(ctx context.Context, eventID uuid.UUID) (int, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	// Creation and updates
	CreateBooking(ctx context.Context, eventID uuid.UUID, code string, status BookingStatus, seats int, notes *string) (*Booking, error)
	CreateAttendee(ctx context.Context, bookingID uuid.UUID, in AttendeeInput) (*Attendee, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)

	// Lookups
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*Booking, error)
	ListAttendees(ctx context.Context, bookingID uuid.UUID) ([]Attendee, error)

	InTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}
