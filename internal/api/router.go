package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/frontdesk/reservations/internal/booking"
	"github.com/frontdesk/reservations/internal/clinic"
)

type RouterConfig struct {
	Booking *booking.Service
	Clinic  *clinic.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Seat booking endpoints
	r.Get("/events", listEventsHandler(cfg.Booking))
	r.Post("/events", createEventHandler(cfg.Booking))
	r.Get("/events/{slug}", getEventHandler(cfg.Booking))
	r.Put("/events/{id}", updateEventHandler(cfg.Booking))
	r.Post("/events/{slug}/bookings", createBookingHandler(cfg.Booking))
	r.Get("/bookings/{code}", getBookingHandler(cfg.Booking))
	r.Post("/bookings/{id}/status", changeBookingStatusHandler(cfg.Booking))

	// Clinic endpoints
	r.Get("/clinic/doctors", listDoctorsHandler(cfg.Clinic))
	r.Get("/clinic/doctors/{id}/schedule", doctorScheduleHandler(cfg.Clinic))
	r.Get("/clinic/services", listCareServicesHandler(cfg.Clinic))
	r.Get("/clinic/slots", listSlotsHandler(cfg.Clinic))
	r.Post("/clinic/appointments", createAppointmentHandler(cfg.Clinic))
	r.Get("/clinic/appointments/{id}", getAppointmentHandler(cfg.Clinic))
	r.Post("/clinic/appointments/{id}/status", changeAppointmentStatusHandler(cfg.Clinic))
	r.Post("/clinic/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Clinic))
	r.Post("/clinic/appointments/{id}/notes", updateAppointmentNotesHandler(cfg.Clinic))
	r.Post("/clinic/appointments/{id}/invoice", generateInvoiceHandler(cfg.Clinic))
	r.Get("/clinic/patients/{id}/invoices", listPatientInvoicesHandler(cfg.Clinic))
	r.Get("/clinic/invoices/{id}", getInvoiceHandler(cfg.Clinic))
	r.Post("/clinic/invoices/{id}/items", addInvoiceItemHandler(cfg.Clinic))
	r.Delete("/clinic/invoices/{id}/items/{itemID}", removeInvoiceItemHandler(cfg.Clinic))

	return r
}
