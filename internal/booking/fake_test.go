package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/db"
)

// fakeRepo is an in-memory Repository for service tests. InTx serializes
// transactions with a mutex and restores a snapshot when fn fails, the
// same observable behavior a rolled-back serializable transaction has.
type fakeRepo struct {
	mu sync.Mutex

	events    map[uuid.UUID]*Event
	bookings  map[uuid.UUID]*Booking
	attendees map[uuid.UUID][]Attendee

	// codeCollisions > 0 makes the next N CodeExists calls report taken;
	// -1 makes every call report taken.
	codeCollisions int
	codeChecks     int

	// takenCodes marks codes as claimed without a booking row, so
	// allocation tests can mirror the in-transaction insert cheaply.
	takenCodes map[string]bool

	// serializationFailures makes the next N InTx calls fail with
	// db.ErrSerialization before running fn.
	serializationFailures int

	attendeeErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:     make(map[uuid.UUID]*Event),
		bookings:   make(map[uuid.UUID]*Booking),
		attendees:  make(map[uuid.UUID][]Attendee),
		takenCodes: make(map[string]bool),
	}
}

func (f *fakeRepo) addEvent(e Event) *Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	f.events[e.ID] = &e
	return &e
}

func (f *fakeRepo) addBooking(eventID uuid.UUID, status BookingStatus, seats int) *Booking {
	b := &Booking{
		ID:      uuid.New(),
		EventID: eventID,
		Code:    randomCode(),
		Status:  status,
		Seats:   seats,
	}
	f.bookings[b.ID] = b
	return b
}

func (f *fakeRepo) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	for _, e := range f.events {
		if e.Slug == slug {
			copied := *e
			return &copied, nil
		}
	}
	return nil, ErrEventNotFound
}

func (f *fakeRepo) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeRepo) ListUpcomingEvents(ctx context.Context, now time.Time, limit int) ([]Event, error) {
	var out []Event
	for _, e := range f.events {
		if e.StartsAt.After(now) {
			out = append(out, *e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	e := &Event{
		ID:          uuid.New(),
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Capacity:    in.Capacity,
		PriceCents:  in.PriceCents,
	}
	f.events[e.ID] = e
	copied := *e
	return &copied, nil
}

func (f *fakeRepo) UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	e.Slug = in.Slug
	e.Title = in.Title
	e.Description = in.Description
	e.Location = in.Location
	e.StartsAt = in.StartsAt
	e.EndsAt = in.EndsAt
	e.Capacity = in.Capacity
	e.PriceCents = in.PriceCents
	copied := *e
	return &copied, nil
}

func (f *fakeRepo) SeatsBooked(ctx context.Context, eventID uuid.UUID) (int, error) {
	total := 0
	for _, b := range f.bookings {
		if b.EventID == eventID && b.Status != StatusCanceled {
			total += b.Seats
		}
	}
	return total, nil
}

func (f *fakeRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	f.codeChecks++
	if f.codeCollisions < 0 {
		return true, nil
	}
	if f.codeCollisions > 0 {
		f.codeCollisions--
		return true, nil
	}
	if f.takenCodes[code] {
		return true, nil
	}
	for _, b := range f.bookings {
		if b.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateBooking(ctx context.Context, eventID uuid.UUID, code string, status BookingStatus, seats int, notes *string) (*Booking, error) {
	b := &Booking{
		ID:      uuid.New(),
		EventID: eventID,
		Code:    code,
		Status:  status,
		Seats:   seats,
		Notes:   notes,
	}
	f.bookings[b.ID] = b
	copied := *b
	return &copied, nil
}

func (f *fakeRepo) CreateAttendee(ctx context.Context, bookingID uuid.UUID, in AttendeeInput) (*Attendee, error) {
	if f.attendeeErr != nil {
		return nil, f.attendeeErr
	}
	a := Attendee{
		ID:        uuid.New(),
		BookingID: bookingID,
		FullName:  in.FullName,
		Email:     in.Email,
		Phone:     in.Phone,
	}
	f.attendees[bookingID] = append(f.attendees[bookingID], a)
	return &a, nil
}

func (f *fakeRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	copied := *b
	return &copied, nil
}

func (f *fakeRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeRepo) GetBookingByCode(ctx context.Context, code string) (*Booking, error) {
	for _, b := range f.bookings {
		if b.Code == code {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) ListAttendees(ctx context.Context, bookingID uuid.UUID) ([]Attendee, error) {
	out := make([]Attendee, len(f.attendees[bookingID]))
	copy(out, f.attendees[bookingID])
	return out, nil
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.serializationFailures > 0 {
		f.serializationFailures--
		return db.ErrSerialization
	}

	bookings := make(map[uuid.UUID]*Booking, len(f.bookings))
	for id, b := range f.bookings {
		copied := *b
		bookings[id] = &copied
	}
	attendees := make(map[uuid.UUID][]Attendee, len(f.attendees))
	for id, as := range f.attendees {
		attendees[id] = append([]Attendee(nil), as...)
	}

	if err := fn(ctx, f); err != nil {
		f.bookings = bookings
		f.attendees = attendees
		return err
	}
	return nil
}
