package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/booking"
	"github.com/frontdesk/reservations/internal/clinic"
)

// Booking domain

type AttendeePayload struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
}

type CreateBookingRequest struct {
	Seats     int               `json:"seats"`
	Notes     *string           `json:"notes,omitempty"`
	Attendees []AttendeePayload `json:"attendees"`
}

type ChangeBookingStatusRequest struct {
	Status string `json:"status"`
}

type EventPayload struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Capacity    int       `json:"capacity"`
	PriceCents  int       `json:"price_cents"`
}

type EventResponse struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Capacity    int       `json:"capacity"`
	PriceCents  int       `json:"price_cents"`
	SeatsBooked int       `json:"seats_booked"`
	Remaining   int       `json:"remaining_capacity"`
}

type AttendeeResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Phone    *string   `json:"phone,omitempty"`
}

type BookingResponse struct {
	ID        uuid.UUID          `json:"id"`
	EventID   uuid.UUID          `json:"event_id"`
	Code      string             `json:"code"`
	Status    string             `json:"status"`
	Seats     int                `json:"seats"`
	Notes     *string            `json:"notes,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Event     *EventResponse     `json:"event,omitempty"`
	Attendees []AttendeeResponse `json:"attendees,omitempty"`
}

// Clinic domain

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	ServiceID string  `json:"service_id"`
	StartsAt  string  `json:"starts_at"`
	Status    string  `json:"status,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type ChangeAppointmentStatusRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	StartsAt string `json:"starts_at"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	ServiceID uuid.UUID `json:"service_id"`
	StartsAt  time.Time `json:"starts_at"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
	ServiceName string `json:"service_name"`
}

type SlotResponse struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	StartsAt   time.Time `json:"starts_at"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type CareServiceResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DurationMin int       `json:"duration_min"`
	PriceCents  int       `json:"price_cents"`
}

type AddInvoiceItemRequest struct {
	Description    string `json:"description"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type InvoiceItemResponse struct {
	ID             uuid.UUID `json:"id"`
	Description    string    `json:"description"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	AppointmentID uuid.UUID             `json:"appointment_id"`
	PatientID     uuid.UUID             `json:"patient_id"`
	TotalCents    int                   `json:"total_cents"`
	Status        string                `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Converters

func toEventResponse(e *booking.Event) *EventResponse {
	return &EventResponse{
		ID:          e.ID,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		Capacity:    e.Capacity,
		PriceCents:  e.PriceCents,
		SeatsBooked: e.SeatsBooked,
		Remaining:   e.Remaining(),
	}
}

func toBookingResponse(conf *booking.Confirmation) BookingResponse {
	resp := BookingResponse{
		ID:        conf.Booking.ID,
		EventID:   conf.Booking.EventID,
		Code:      conf.Booking.Code,
		Status:    string(conf.Booking.Status),
		Seats:     conf.Booking.Seats,
		Notes:     conf.Booking.Notes,
		CreatedAt: conf.Booking.CreatedAt,
	}
	if conf.Event != nil {
		resp.Event = toEventResponse(conf.Event)
	}
	for _, a := range conf.Attendees {
		resp.Attendees = append(resp.Attendees, AttendeeResponse{
			ID:       a.ID,
			FullName: a.FullName,
			Email:    a.Email,
			Phone:    a.Phone,
		})
	}
	return resp
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		ServiceID: a.ServiceID,
		StartsAt:  a.StartsAt,
		Status:    string(a.Status),
		Notes:     a.Notes,
	}
}

func toAppointmentDetailResponse(d *clinic.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		PatientName:         d.PatientName,
		DoctorName:          d.DoctorName,
		ServiceName:         d.ServiceName,
	}
}

func toInvoiceResponse(inv *clinic.Invoice, items []clinic.InvoiceItem) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		AppointmentID: inv.AppointmentID,
		PatientID:     inv.PatientID,
		TotalCents:    inv.TotalCents,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			ID:             item.ID,
			Description:    item.Description,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return resp
}
