package booking

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCanceled  BookingStatus = "canceled"
)

// CanTransitionTo reports whether the status machine allows moving to
// the given status. Canceled is terminal; nothing ever returns to
// requested.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	switch s {
	case StatusRequested:
		return to == StatusConfirmed || to == StatusCanceled
	case StatusConfirmed:
		return to == StatusCanceled
	default:
		return false
	}
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

type Event struct {
	ID          uuid.UUID
	Slug        string
	Title       string
	Description *string
	Location    *string
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
	PriceCents  int
	CreatedAt   time.Time

	// SeatsBooked is the sum of seats over non-canceled bookings,
	// populated by the event queries.
	SeatsBooked int
}

// Remaining is the capacity left at the time the event row was read.
// Admission decisions recompute this inside the transaction instead.
func (e *Event) Remaining() int {
	r := e.Capacity - e.SeatsBooked
	if r < 0 {
		return 0
	}
	return r
}

type Booking struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Code      string
	Status    BookingStatus
	Seats     int
	Notes     *string
	CreatedAt time.Time
}

type Attendee struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	FullName  string
	Email     string
	Phone     *string
	CreatedAt time.Time
}

// AttendeeInput is the caller-supplied attendee data for a new booking.
type AttendeeInput struct {
	FullName string
	Email    string
	Phone    *string
}

// EventInput is the staff-supplied data for creating or updating an event.
type EventInput struct {
	Slug        string
	Title       string
	Description *string
	Location    *string
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
	PriceCents  int
}

// Confirmation is what a successful reservation returns to the caller.
type Confirmation struct {
	Booking   *Booking
	Event     *Event
	Attendees []Attendee
}
