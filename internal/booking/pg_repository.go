package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/reservations/internal/db"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// query methods serve pooled reads and transactional writes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool // nil when bound to a transaction
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

// Helpers

const eventColumns = `
	e.id, e.slug, e.title, e.description, e.location,
	e.starts_at, e.ends_at, e.capacity, e.price_cents, e.created_at,
	COALESCE(SUM(b.seats) FILTER (WHERE b.status <> 'canceled'), 0) AS seats_booked
`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var seatsBooked int64

	err := row.Scan(
		&e.ID,
		&e.Slug,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.StartsAt,
		&e.EndsAt,
		&e.Capacity,
		&e.PriceCents,
		&e.CreatedAt,
		&seatsBooked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	e.SeatsBooked = int(seatsBooked)
	return &e, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.EventID,
		&b.Code,
		&b.Status,
		&b.Seats,
		&b.Notes,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanAttendee(row pgx.Row) (*Attendee, error) {
	var a Attendee

	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.FullName,
		&a.Email,
		&a.Phone,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		WHERE e.slug = $1
		GROUP BY e.id
	`, slug)
	return scanEvent(row)
}

func (r *PgRepository) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		WHERE e.id = $1
		GROUP BY e.id
	`, id)
	return scanEvent(row)
}

func (r *PgRepository) ListUpcomingEvents(ctx context.Context, now time.Time, limit int) ([]Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		WHERE e.starts_at >= $1
		GROUP BY e.id
		ORDER BY e.starts_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO events (id, slug, title, description, location, starts_at, ends_at, capacity, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, slug, title, description, location, starts_at, ends_at, capacity, price_cents, created_at, 0::bigint
	`, id, in.Slug, in.Title, in.Description, in.Location, in.StartsAt, in.EndsAt, in.Capacity, in.PriceCents)

	return scanEvent(row)
}

func (r *PgRepository) UpdateEvent(ctx context.Context, id uuid.UUID, in EventInput) (*Event, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE events
		SET slug = $2, title = $3, description = $4, location = $5,
		    starts_at = $6, ends_at = $7, capacity = $8, price_cents = $9
		WHERE id = $1
	`, id, in.Slug, in.Title, in.Description, in.Location, in.StartsAt, in.EndsAt, in.Capacity, in.PriceCents)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrEventNotFound
	}

	return r.GetEventByID(ctx, id)
}

func (r *PgRepository) SeatsBooked(ctx context.Context, eventID uuid.UUID) (int, error) {
	var total int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(seats), 0)
		FROM bookings
		WHERE event_id = $1 AND status <> 'canceled'
	`, eventID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *PgRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bookings WHERE code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, eventID uuid.UUID, code string, status BookingStatus, seats int, notes *string) (*Booking, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO bookings (id, event_id, code, status, seats, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, event_id, code, status, seats, notes, created_at
	`, id, eventID, code, status, seats, notes)

	return scanBooking(row)
}

func (r *PgRepository) CreateAttendee(ctx context.Context, bookingID uuid.UUID, in AttendeeInput) (*Attendee, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO attendees (id, booking_id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, booking_id, full_name, email, phone, created_at
	`, id, bookingID, in.FullName, in.Email, in.Phone)

	return scanAttendee(row)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING id, event_id, code, status, seats, notes, created_at
	`, id, to, from)

	return scanBooking(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, event_id, code, status, seats, notes, created_at
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) GetBookingByCode(ctx context.Context, code string) (*Booking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, event_id, code, status, seats, notes, created_at
		FROM bookings
		WHERE code = $1
	`, code)
	return scanBooking(row)
}

func (r *PgRepository) ListAttendees(ctx context.Context, bookingID uuid.UUID) ([]Attendee, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, booking_id, full_name, email, phone, created_at
		FROM attendees
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// InTx runs fn inside a serializable transaction. When the repository
// is already transaction-bound, fn runs in the current transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.InSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{q: tx})
	})
}
