package clinic

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusRequested AppointmentStatus = "requested"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusDone      AppointmentStatus = "done"
)

// CanTransitionTo reports whether the status machine allows moving to
// the given status. Cancelled and done are terminal.
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	switch s {
	case StatusRequested:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusDone
	default:
		return false
	}
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCancelled, StatusDone:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusDone
}

type Doctor struct {
	ID        uuid.UUID
	FullName  string
	Specialty *string
	Active    bool
}

// CareService is a bookable service with a duration that sets the
// calendar slot granularity.
type CareService struct {
	ID          uuid.UUID
	Name        string
	DurationMin int
	PriceCents  int
	Active      bool
}

type Patient struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Phone     *string
	CreatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	StartsAt  time.Time
	Status    AppointmentStatus
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentDetail hydrates an appointment with the names and pricing
// its collaborators render.
type AppointmentDetail struct {
	Appointment
	PatientName        string
	DoctorName         string
	ServiceName        string
	ServiceDurationMin int
	ServicePriceCents  int
}

// Slot is a free candidate start time for a specific doctor.
type Slot struct {
	DoctorID   uuid.UUID
	DoctorName string
	StartsAt   time.Time
}

type Invoice struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	TotalCents    int
	Status        string
	CreatedAt     time.Time
}

type InvoiceItem struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	Description    string
	Qty            int
	UnitPriceCents int
}
