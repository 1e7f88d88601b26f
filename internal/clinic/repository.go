package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrServiceNotFound     = errors.New("care service not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceItemNotFound = errors.New("invoice item not found")
)

// NewAppointment carries the data for an appointment insert.
type NewAppointment struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	StartsAt  time.Time
	Status    AppointmentStatus
	Notes     *string
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)
	GetCareServiceByID(ctx context.Context, id uuid.UUID) (*CareService, error)
	ListActiveCareServices(ctx context.Context) ([]CareService, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Calendar occupancy, excluding cancelled appointments
	BookedStartTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
	SlotTaken(ctx context.Context, doctorID uuid.UUID, startsAt time.Time) (bool, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time) (*Appointment, error)

	// Lookups
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListDoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error)

	// Invoicing
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID) ([]Invoice, error)
	CreateInvoice(ctx context.Context, appointmentID, patientID uuid.UUID, status string) (*Invoice, error)
	AddInvoiceItem(ctx context.Context, invoiceID uuid.UUID, description string, qty, unitPriceCents int) (*InvoiceItem, error)
	DeleteInvoiceItem(ctx context.Context, invoiceID, itemID uuid.UUID) error
	ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error)
	SetInvoiceTotal(ctx context.Context, invoiceID uuid.UUID, totalCents int) error

	// InTx groups writes into one transaction so a failure partway
	// leaves nothing behind.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}
