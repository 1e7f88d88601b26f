package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

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

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.Specialty, &d.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanCareService(row pgx.Row) (*CareService, error) {
	var s CareService
	err := row.Scan(&s.ID, &s.Name, &s.DurationMin, &s.PriceCents, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceID,
		&a.StartsAt,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.ServiceID,
		&d.StartsAt,
		&d.Status,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.DoctorName,
		&d.ServiceName,
		&d.ServiceDurationMin,
		&d.ServicePriceCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.AppointmentID,
		&inv.PatientID,
		&inv.TotalCents,
		&inv.Status,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

const appointmentDetailQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.service_id, a.starts_at,
	       a.status, a.notes, a.created_at, a.updated_at,
	       p.full_name, d.full_name, s.name, s.duration_min, s.price_cents
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN care_services s ON s.id = a.service_id
`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, full_name, specialty, active
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, full_name, specialty, active
		FROM doctors
		WHERE active
		ORDER BY full_name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetCareServiceByID(ctx context.Context, id uuid.UUID) (*CareService, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, duration_min, price_cents, active
		FROM care_services
		WHERE id = $1
	`, id)
	return scanCareService(row)
}

func (r *PgRepository) ListActiveCareServices(ctx context.Context) ([]CareService, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, duration_min, price_cents, active
		FROM care_services
		WHERE active
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CareService
	for rows.Next() {
		s, err := scanCareService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, full_name, email, phone, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) BookedStartTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.q.Query(ctx, `
		SELECT starts_at
		FROM appointments
		WHERE doctor_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
		  AND status <> 'cancelled'
		ORDER BY starts_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SlotTaken(ctx context.Context, doctorID uuid.UUID, startsAt time.Time) (bool, error) {
	var taken bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND starts_at = $2
			  AND status <> 'cancelled'
		)
	`, doctorID, startsAt).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at
	`, id, in.PatientID, in.DoctorID, in.ServiceID, in.StartsAt, in.Status, in.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET notes = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at
	`, id, notes)

	return scanAppointment(row)
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET starts_at = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at
	`, id, startsAt)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, service_id, starts_at, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.q.QueryRow(ctx, appointmentDetailQuery+`
		WHERE a.id = $1
	`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListDoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, appointmentDetailQuery+`
		WHERE a.doctor_id = $1
		  AND a.starts_at >= $2
		  AND a.starts_at < $3
		ORDER BY a.starts_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, total_cents, status, created_at
		FROM invoices
		WHERE id = $1
	`, id)
	return scanInvoice(row)
}

func (r *PgRepository) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, total_cents, status, created_at
		FROM invoices
		WHERE appointment_id = $1
	`, appointmentID)
	return scanInvoice(row)
}

func (r *PgRepository) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID) ([]Invoice, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, appointment_id, patient_id, total_cents, status, created_at
		FROM invoices
		WHERE patient_id = $1
		ORDER BY created_at DESC, id ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateInvoice(ctx context.Context, appointmentID, patientID uuid.UUID, status string) (*Invoice, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO invoices (id, appointment_id, patient_id, total_cents, status, created_at)
		VALUES ($1, $2, $3, 0, $4, now())
		RETURNING id, appointment_id, patient_id, total_cents, status, created_at
	`, id, appointmentID, patientID, status)

	return scanInvoice(row)
}

func (r *PgRepository) AddInvoiceItem(ctx context.Context, invoiceID uuid.UUID, description string, qty, unitPriceCents int) (*InvoiceItem, error) {
	id := uuid.New()

	var item InvoiceItem
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, qty, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invoice_id, description, qty, unit_price_cents
	`, id, invoiceID, description, qty, unitPriceCents).Scan(
		&item.ID,
		&item.InvoiceID,
		&item.Description,
		&item.Qty,
		&item.UnitPriceCents,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PgRepository) DeleteInvoiceItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM invoice_items
		WHERE id = $1 AND invoice_id = $2
	`, itemID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceItemNotFound
	}
	return nil
}

func (r *PgRepository) ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, description, qty, unit_price_cents
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Qty, &item.UnitPriceCents)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SetInvoiceTotal(ctx context.Context, invoiceID uuid.UUID, totalCents int) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET total_cents = $2
		WHERE id = $1
	`, invoiceID, totalCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// InTx runs fn inside a transaction. When the repository is already
// transaction-bound, fn runs in the current transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PgRepository{q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
