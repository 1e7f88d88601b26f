package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/db"
	redisclient "github.com/frontdesk/reservations/internal/redis"
)

var (
	ErrSlotTaken            = errors.New("slot already has an appointment")
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrPastStart            = errors.New("start time is in the past")
	ErrDoctorInactive       = errors.New("doctor is not active")
	ErrServiceInactive      = errors.New("care service is not active")
	ErrInvalidStatus        = errors.New("unknown appointment status")
	ErrInvalidTransition    = errors.New("invalid appointment status transition")
	ErrAppointmentFinished  = errors.New("appointment is cancelled or done")
	ErrInvalidInvoiceItem   = errors.New("invoice item needs a description, positive qty and non-negative price")
	ErrInvalidInitialStatus = errors.New("appointments start as requested or confirmed")
)

const invoiceStatusDraft = "draft"

type Service struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		now:    time.Now,
	}
}

// ReserveSlotInput carries a slot reservation request. Status must be
// requested (patient self-service) or confirmed (staff walk-in).
type ReserveSlotInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	StartsAt  time.Time
	Status    AppointmentStatus
	Notes     *string
}

// ReserveSlot books one calendar slot for a doctor. A per-slot
// distributed lock serializes concurrent requests for the same
// doctor and start time; the occupancy check is re-run inside the
// critical section so two requests cannot both observe a free slot.
func (s *Service) ReserveSlot(ctx context.Context, in ReserveSlotInput) (*Appointment, error) {
	if in.Status == "" {
		in.Status = StatusRequested
	}
	if in.Status != StatusRequested && in.Status != StatusConfirmed {
		return nil, ErrInvalidInitialStatus
	}
	if !in.StartsAt.After(s.now()) {
		return nil, ErrPastStart
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	svc, err := s.repo.GetCareServiceByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load care service: %w", err)
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	var created *Appointment

	err = s.withSlotLock(ctx, in.DoctorID, in.StartsAt, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, r Repository) error {
			taken, err := r.SlotTaken(txCtx, in.DoctorID, in.StartsAt)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if taken {
				return ErrSlotTaken
			}

			appt, err := r.CreateAppointment(txCtx, NewAppointment{
				PatientID: in.PatientID,
				DoctorID:  in.DoctorID,
				ServiceID: in.ServiceID,
				StartsAt:  in.StartsAt,
				Status:    in.Status,
				Notes:     in.Notes,
			})
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		// The unique doctor+start index backstops the lock when its
		// TTL expires mid-transaction.
		if db.IsUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) withSlotLock(ctx context.Context, doctorID uuid.UUID, startsAt time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("doctor:%s:%d", doctorID, startsAt.UTC().Unix())
	err := s.locker.WithResourceLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// AvailableSlots computes the free slots for a day. With a doctor it
// filters that doctor's calendar; with uuid.Nil it unions the free
// slots of every active doctor, ordered by start time then doctor.
//
// Conflict detection is by exact start-time equality. Services with
// different durations can still produce overlapping appointments when
// their start times differ; that matches the established behavior and
// is deliberately not upgraded to interval overlap here.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, serviceID uuid.UUID, day time.Time) ([]Slot, error) {
	svc, err := s.repo.GetCareServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load care service: %w", err)
	}
	if !svc.Active {
		// ReserveSlot rejects inactive services, so offering their
		// slots would only produce unbookable results.
		return nil, ErrServiceInactive
	}

	candidates := SlotTimes(day, time.Duration(svc.DurationMin)*time.Minute)
	from, to := dayBounds(day)

	var doctors []Doctor
	if doctorID != uuid.Nil {
		doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
		if err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		if !doctor.Active {
			return nil, ErrDoctorInactive
		}
		doctors = []Doctor{*doctor}
	} else {
		doctors, err = s.repo.ListActiveDoctors(ctx)
		if err != nil {
			return nil, fmt.Errorf("list doctors: %w", err)
		}
	}

	booked := make(map[uuid.UUID]map[int64]bool, len(doctors))
	for _, d := range doctors {
		starts, err := s.repo.BookedStartTimes(ctx, d.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("load booked slots: %w", err)
		}
		set := make(map[int64]bool, len(starts))
		for _, t := range starts {
			set[t.Unix()] = true
		}
		booked[d.ID] = set
	}

	var slots []Slot
	for _, t := range candidates {
		for _, d := range doctors {
			if booked[d.ID][t.Unix()] {
				continue
			}
			slots = append(slots, Slot{
				DoctorID:   d.ID,
				DoctorName: d.FullName,
				StartsAt:   t,
			})
		}
	}

	return slots, nil
}

// ChangeStatus moves an appointment along its status machine. A
// request for the current status is a no-op; a transition the machine
// does not allow is rejected without altering the row.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == to {
		return appt, nil
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	return updated, nil
}

// Reschedule moves a non-terminal appointment to a new start time,
// subject to the same slot occupancy rule as a fresh reservation.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status.Terminal() {
		return nil, ErrAppointmentFinished
	}
	if !newStart.After(s.now()) {
		return nil, ErrPastStart
	}

	var updated *Appointment

	err = s.withSlotLock(ctx, appt.DoctorID, newStart, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, r Repository) error {
			taken, err := r.SlotTaken(txCtx, appt.DoctorID, newStart)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if taken {
				return ErrSlotTaken
			}

			updated, err = r.RescheduleAppointment(txCtx, id, newStart)
			if err != nil {
				return fmt.Errorf("reschedule appointment: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return updated, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	appt, err := s.repo.UpdateAppointmentNotes(ctx, id, notes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment notes: %w", err)
	}
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// DoctorSchedule lists a doctor's appointments for one day.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AppointmentDetail, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	from, to := dayBounds(day)
	items, err := s.repo.ListDoctorSchedule(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list doctor schedule: %w", err)
	}
	return items, nil
}

func (s *Service) ListCareServices(ctx context.Context) ([]CareService, error) {
	services, err := s.repo.ListActiveCareServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list care services: %w", err)
	}
	return services, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// GenerateInvoice creates the invoice for an appointment, seeded with
// one line for the booked service. Idempotent: an existing invoice is
// returned unchanged, including under a concurrent-create race.
func (s *Service) GenerateInvoice(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	existing, err := s.repo.GetInvoiceByAppointment(ctx, appointmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrInvoiceNotFound) {
		return nil, fmt.Errorf("check existing invoice: %w", err)
	}

	var created *Invoice

	err = s.repo.InTx(ctx, func(txCtx context.Context, r Repository) error {
		inv, err := r.CreateInvoice(txCtx, appointmentID, detail.PatientID, invoiceStatusDraft)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		desc := fmt.Sprintf("%s service", detail.ServiceName)
		if _, err := r.AddInvoiceItem(txCtx, inv.ID, desc, 1, detail.ServicePriceCents); err != nil {
			return fmt.Errorf("add invoice line: %w", err)
		}

		total, err := recomputeInvoiceTotal(txCtx, r, inv.ID)
		if err != nil {
			return err
		}

		inv.TotalCents = total
		created = inv
		return nil
	})
	if err != nil {
		// Lost a concurrent-create race on the unique appointment_id;
		// the winner's invoice is the answer.
		if db.IsUniqueViolation(err) {
			return s.repo.GetInvoiceByAppointment(ctx, appointmentID)
		}
		return nil, err
	}

	return created, nil
}

// AddInvoiceItem appends a line and returns the invoice with its
// recomputed total.
func (s *Service) AddInvoiceItem(ctx context.Context, invoiceID uuid.UUID, description string, qty, unitPriceCents int) (*Invoice, error) {
	if strings.TrimSpace(description) == "" || qty <= 0 || unitPriceCents < 0 {
		return nil, ErrInvalidInvoiceItem
	}

	if _, err := s.repo.GetInvoiceByID(ctx, invoiceID); err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	err := s.repo.InTx(ctx, func(txCtx context.Context, r Repository) error {
		if _, err := r.AddInvoiceItem(txCtx, invoiceID, description, qty, unitPriceCents); err != nil {
			return fmt.Errorf("add invoice item: %w", err)
		}
		_, err := recomputeInvoiceTotal(txCtx, r, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetInvoiceByID(ctx, invoiceID)
}

// RemoveInvoiceItem deletes a line and returns the invoice with its
// recomputed total.
func (s *Service) RemoveInvoiceItem(ctx context.Context, invoiceID, itemID uuid.UUID) (*Invoice, error) {
	if _, err := s.repo.GetInvoiceByID(ctx, invoiceID); err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	err := s.repo.InTx(ctx, func(txCtx context.Context, r Repository) error {
		if err := r.DeleteInvoiceItem(txCtx, invoiceID, itemID); err != nil {
			if errors.Is(err, ErrInvoiceItemNotFound) {
				return err
			}
			return fmt.Errorf("delete invoice item: %w", err)
		}
		_, err := recomputeInvoiceTotal(txCtx, r, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetInvoiceByID(ctx, invoiceID)
}

// ListPatientInvoices lists a patient's invoices, newest first.
func (s *Service) ListPatientInvoices(ctx context.Context, patientID uuid.UUID) ([]Invoice, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	invoices, err := s.repo.ListInvoicesByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice retrieves an invoice with its line items.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, []InvoiceItem, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load invoice: %w", err)
	}

	items, err := s.repo.ListInvoiceItems(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list invoice items: %w", err)
	}

	return inv, items, nil
}

func recomputeInvoiceTotal(ctx context.Context, r Repository, invoiceID uuid.UUID) (int, error) {
	items, err := r.ListInvoiceItems(ctx, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("list invoice items: %w", err)
	}

	total := 0
	for _, item := range items {
		total += item.Qty * item.UnitPriceCents
	}

	if err := r.SetInvoiceTotal(ctx, invoiceID, total); err != nil {
		return 0, fmt.Errorf("set invoice total: %w", err)
	}
	return total, nil
}
