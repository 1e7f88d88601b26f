package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/db"
)

const maxSeatsPerBooking = 10

// txAttempts bounds automatic retries of a reservation that lost a
// serialization conflict.
const txAttempts = 3

var (
	ErrEventStarted            = errors.New("event already started or ended")
	ErrInvalidSeats            = errors.New("seats must be between 1 and 10")
	ErrNoAttendees             = errors.New("at least one attendee with name and email is required")
	ErrInvalidEvent            = errors.New("invalid event data")
	ErrInvalidStatus           = errors.New("unknown booking status")
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")
	ErrTxConflict              = errors.New("booking conflicted with concurrent requests, please retry")
)

// CapacityError reports an admission rejected for insufficient
// capacity, carrying the true remaining seat count at decision time.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("only %d seats remain for this event", e.Remaining)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// ReserveSeats admits a seat reservation against an event's capacity.
// The remaining-capacity check, code allocation, and all inserts run
// in one serializable transaction so concurrent requests can never
// jointly oversell the event; the transaction is retried a bounded
// number of times when it loses a serialization conflict.
func (s *Service) ReserveSeats(ctx context.Context, slug string, seats int, notes *string, attendees []AttendeeInput) (*Confirmation, error) {
	if seats < 1 || seats > maxSeatsPerBooking {
		return nil, ErrInvalidSeats
	}
	if err := validateAttendees(attendees); err != nil {
		return nil, err
	}

	event, err := s.repo.GetEventBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load event: %w", err)
	}

	if !event.StartsAt.After(s.now()) {
		return nil, ErrEventStarted
	}

	var conf *Confirmation

	err = s.inTxWithRetry(ctx, func(ctx context.Context, r Repository) error {
		// Re-derive committed seats inside the transaction; the earlier
		// event read may be stale by now.
		booked, err := r.SeatsBooked(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("sum booked seats: %w", err)
		}

		remaining := event.Capacity - booked
		if seats > remaining {
			if remaining < 0 {
				remaining = 0
			}
			return &CapacityError{Remaining: remaining}
		}

		code, err := allocateCode(ctx, r)
		if err != nil {
			if errors.Is(err, ErrCodeSpaceExhausted) {
				log.Printf("booking code allocation exhausted for event %s after %d attempts", event.ID, maxCodeAttempts)
			}
			return err
		}

		b, err := r.CreateBooking(ctx, event.ID, code, StatusRequested, seats, notes)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		created := make([]Attendee, 0, len(attendees))
		for _, in := range attendees {
			a, err := r.CreateAttendee(ctx, b.ID, in)
			if err != nil {
				return fmt.Errorf("create attendee: %w", err)
			}
			created = append(created, *a)
		}

		conf = &Confirmation{
			Booking:   b,
			Event:     event,
			Attendees: created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return conf, nil
}

func (s *Service) inTxWithRetry(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.repo.InTx(ctx, fn)
		if err == nil || !errors.Is(err, db.ErrSerialization) {
			return err
		}
		log.Printf("reservation tx serialization conflict, attempt %d/%d", attempt, txAttempts)
	}
	return fmt.Errorf("%w: %v", ErrTxConflict, err)
}

func validateAttendees(attendees []AttendeeInput) error {
	if len(attendees) == 0 {
		return ErrNoAttendees
	}
	for _, a := range attendees {
		if strings.TrimSpace(a.FullName) == "" || strings.TrimSpace(a.Email) == "" {
			return ErrNoAttendees
		}
	}
	return nil
}

// ChangeStatus moves a booking along its status machine. A request for
// the current status is a no-op; a transition the machine does not
// allow is rejected without altering the row.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to BookingStatus) (*Booking, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status == to {
		return b, nil
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, id, b.Status, to)
	if err != nil {
		// The compare-and-set misses when the row changed underneath us.
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	return updated, nil
}

// GetBookingByCode retrieves a booking with its event and attendees,
// the data behind the public confirmation lookup.
func (s *Service) GetBookingByCode(ctx context.Context, code string) (*Confirmation, error) {
	b, err := s.repo.GetBookingByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	event, err := s.repo.GetEventByID(ctx, b.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	attendees, err := s.repo.ListAttendees(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}

	return &Confirmation{
		Booking:   b,
		Event:     event,
		Attendees: attendees,
	}, nil
}

func (s *Service) GetEvent(ctx context.Context, slug string) (*Event, error) {
	event, err := s.repo.GetEventBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}

func (s *Service) ListUpcomingEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 30 // default
	}
	if limit > 100 {
		limit = 100 // max
	}

	events, err := s.repo.ListUpcomingEvents(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// CreateEvent adds a new event to the catalog.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	event, err := s.repo.CreateEvent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*Event, error) {
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	event, err := s.repo.UpdateEvent(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func validateEvent(in EventInput) error {
	switch {
	case len(strings.TrimSpace(in.Slug)) < 3,
		len(strings.TrimSpace(in.Title)) < 3,
		in.Capacity <= 0,
		in.PriceCents < 0,
		!in.EndsAt.After(in.StartsAt):
		return ErrInvalidEvent
	}
	return nil
}
