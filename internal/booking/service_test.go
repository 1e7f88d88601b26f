package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return testNow }
	return s
}

func futureEvent(capacity int) Event {
	return Event{
		Slug:     "go-conf",
		Title:    "Go Conference",
		StartsAt: testNow.Add(48 * time.Hour),
		EndsAt:   testNow.Add(56 * time.Hour),
		Capacity: capacity,
	}
}

func oneAttendee() []AttendeeInput {
	return []AttendeeInput{{FullName: "Ada Lovelace", Email: "ada@example.com"}}
}

func TestReserveSeatsAdmitsUpToCapacity(t *testing.T) {
	repo := newFakeRepo()
	repo.addEvent(futureEvent(10))
	svc := newTestService(repo)

	conf, err := svc.ReserveSeats(context.Background(), "go-conf", 10, nil, oneAttendee())
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}
	if conf.Booking.Status != StatusRequested {
		t.Fatalf("got status %q, want %q", conf.Booking.Status, StatusRequested)
	}
	if conf.Booking.Seats != 10 {
		t.Fatalf("got %d seats, want 10", conf.Booking.Seats)
	}
	if !strings.HasPrefix(conf.Booking.Code, codePrefix) {
		t.Fatalf("booking code %q missing prefix", conf.Booking.Code)
	}
	if len(conf.Attendees) != 1 {
		t.Fatalf("got %d attendees, want 1", len(conf.Attendees))
	}
}

func TestReserveSeatsRejectsOverCapacity(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(10))
	repo.addBooking(event.ID, StatusConfirmed, 8)
	svc := newTestService(repo)

	_, err := svc.ReserveSeats(context.Background(), "go-conf", 3, nil, oneAttendee())

	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("got error %v, want CapacityError", err)
	}
	if capErr.Remaining != 2 {
		t.Fatalf("got remaining %d, want 2", capErr.Remaining)
	}
	if len(repo.bookings) != 1 {
		t.Fatalf("rejected reservation left %d bookings, want 1", len(repo.bookings))
	}
}

func TestReserveSeatsIgnoresCanceledBookings(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(10))
	repo.addBooking(event.ID, StatusCanceled, 8)
	svc := newTestService(repo)

	if _, err := svc.ReserveSeats(context.Background(), "go-conf", 10, nil, oneAttendee()); err != nil {
		t.Fatalf("ReserveSeats over canceled seats: %v", err)
	}
}

func TestReserveSeatsRejectsStartedEvent(t *testing.T) {
	repo := newFakeRepo()
	e := futureEvent(10)
	e.StartsAt = testNow.Add(-time.Hour)
	repo.addEvent(e)
	svc := newTestService(repo)

	_, err := svc.ReserveSeats(context.Background(), "go-conf", 1, nil, oneAttendee())
	if !errors.Is(err, ErrEventStarted) {
		t.Fatalf("got error %v, want ErrEventStarted", err)
	}
}

func TestReserveSeatsValidation(t *testing.T) {
	repo := newFakeRepo()
	repo.addEvent(futureEvent(10))
	svc := newTestService(repo)
	ctx := context.Background()

	cases := []struct {
		name      string
		seats     int
		attendees []AttendeeInput
		want      error
	}{
		{"zero seats", 0, oneAttendee(), ErrInvalidSeats},
		{"too many seats", 11, oneAttendee(), ErrInvalidSeats},
		{"no attendees", 2, nil, ErrNoAttendees},
		{"blank email", 2, []AttendeeInput{{FullName: "Ada", Email: "  "}}, ErrNoAttendees},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ReserveSeats(ctx, "go-conf", tc.seats, nil, tc.attendees)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got error %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := svc.ReserveSeats(ctx, "no-such-event", 2, nil, oneAttendee()); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("got error %v, want ErrEventNotFound", err)
	}
}

func TestReserveSeatsRollsBackOnAttendeeFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addEvent(futureEvent(10))
	repo.attendeeErr = errors.New("insert attendee failed")
	svc := newTestService(repo)

	_, err := svc.ReserveSeats(context.Background(), "go-conf", 2, nil, oneAttendee())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.bookings) != 0 {
		t.Fatalf("failed reservation left %d bookings, want 0", len(repo.bookings))
	}
	if len(repo.attendees) != 0 {
		t.Fatalf("failed reservation left attendee rows")
	}
}

func TestReserveSeatsRetriesSerializationConflicts(t *testing.T) {
	repo := newFakeRepo()
	repo.addEvent(futureEvent(10))
	repo.serializationFailures = txAttempts - 1
	svc := newTestService(repo)

	if _, err := svc.ReserveSeats(context.Background(), "go-conf", 2, nil, oneAttendee()); err != nil {
		t.Fatalf("ReserveSeats after retries: %v", err)
	}
}

func TestReserveSeatsGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newFakeRepo()
	repo.addEvent(futureEvent(10))
	repo.serializationFailures = txAttempts
	svc := newTestService(repo)

	_, err := svc.ReserveSeats(context.Background(), "go-conf", 2, nil, oneAttendee())
	if !errors.Is(err, ErrTxConflict) {
		t.Fatalf("got error %v, want ErrTxConflict", err)
	}
	if len(repo.bookings) != 0 {
		t.Fatalf("conflicted reservation left %d bookings, want 0", len(repo.bookings))
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(25))
	svc := newTestService(repo)

	const workers = 20
	const seatsEach = 2

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReserveSeats(context.Background(), "go-conf", seatsEach, nil, oneAttendee())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		switch {
		case err == nil:
			admitted++
		default:
			var capErr *CapacityError
			if !errors.As(err, &capErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	booked, _ := repo.SeatsBooked(context.Background(), event.ID)
	if booked != admitted*seatsEach {
		t.Fatalf("booked seats %d inconsistent with %d admissions", booked, admitted)
	}
	if booked > event.Capacity {
		t.Fatalf("oversold: %d seats booked against capacity %d", booked, event.Capacity)
	}
	// 25 seats admit at most 12 two-seat bookings.
	if admitted != 12 {
		t.Fatalf("got %d admissions, want 12", admitted)
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	cases := []struct {
		from BookingStatus
		to   BookingStatus
		ok   bool
	}{
		{StatusRequested, StatusConfirmed, true},
		{StatusRequested, StatusCanceled, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusConfirmed, StatusRequested, false},
		{StatusCanceled, StatusConfirmed, false},
		{StatusCanceled, StatusRequested, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			repo := newFakeRepo()
			event := repo.addEvent(futureEvent(10))
			b := repo.addBooking(event.ID, tc.from, 2)
			svc := newTestService(repo)

			updated, err := svc.ChangeStatus(context.Background(), b.ID, tc.to)
			if tc.ok {
				if err != nil {
					t.Fatalf("ChangeStatus: %v", err)
				}
				if updated.Status != tc.to {
					t.Fatalf("got status %q, want %q", updated.Status, tc.to)
				}
				return
			}
			if !errors.Is(err, ErrInvalidStatusTransition) {
				t.Fatalf("got error %v, want ErrInvalidStatusTransition", err)
			}
			if repo.bookings[b.ID].Status != tc.from {
				t.Fatalf("rejected transition altered the booking")
			}
		})
	}
}

func TestChangeStatusSameStatusIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(10))
	b := repo.addBooking(event.ID, StatusConfirmed, 2)
	svc := newTestService(repo)

	updated, err := svc.ChangeStatus(context.Background(), b.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("got status %q, want confirmed", updated.Status)
	}
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(10))
	b := repo.addBooking(event.ID, StatusRequested, 2)
	svc := newTestService(repo)

	if _, err := svc.ChangeStatus(context.Background(), b.ID, BookingStatus("expired")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("got error %v, want ErrInvalidStatus", err)
	}
}

func TestGetBookingByCode(t *testing.T) {
	repo := newFakeRepo()
	event := repo.addEvent(futureEvent(10))
	b := repo.addBooking(event.ID, StatusConfirmed, 2)
	repo.attendees[b.ID] = []Attendee{{BookingID: b.ID, FullName: "Ada", Email: "ada@example.com"}}
	svc := newTestService(repo)

	conf, err := svc.GetBookingByCode(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("GetBookingByCode: %v", err)
	}
	if conf.Booking.ID != b.ID {
		t.Fatal("returned the wrong booking")
	}
	if conf.Event.ID != event.ID {
		t.Fatal("returned the wrong event")
	}
	if len(conf.Attendees) != 1 {
		t.Fatalf("got %d attendees, want 1", len(conf.Attendees))
	}

	if _, err := svc.GetBookingByCode(context.Background(), "BKZZZZZZ"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("got error %v, want ErrBookingNotFound", err)
	}
}

func TestCreateEventValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	valid := EventInput{
		Slug:     "spring-gala",
		Title:    "Spring Gala",
		StartsAt: testNow.Add(24 * time.Hour),
		EndsAt:   testNow.Add(28 * time.Hour),
		Capacity: 100,
	}

	if _, err := svc.CreateEvent(ctx, valid); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	broken := []func(*EventInput){
		func(in *EventInput) { in.Slug = "ab" },
		func(in *EventInput) { in.Title = " " },
		func(in *EventInput) { in.Capacity = 0 },
		func(in *EventInput) { in.PriceCents = -1 },
		func(in *EventInput) { in.EndsAt = in.StartsAt },
	}
	for i, mutate := range broken {
		in := valid
		mutate(&in)
		if _, err := svc.CreateEvent(ctx, in); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("case %d: got error %v, want ErrInvalidEvent", i, err)
		}
	}
}
