package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// Booking handlers

func listEventsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}

		events, err := svc.ListUpcomingEvents(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for i := range events {
			resp = append(resp, *toEventResponse(&events[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getEventHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		event, err := svc.GetEvent(r.Context(), slug)
		if err != nil {
			if errors.Is(err, booking.ErrEventNotFound) {
				writeError(w, http.StatusNotFound, "event_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toEventResponse(event))
	}
}

func createEventHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EventPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		event, err := svc.CreateEvent(r.Context(), eventInputFromPayload(req))
		if err != nil {
			if errors.Is(err, booking.ErrInvalidEvent) {
				writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, toEventResponse(event))
	}
}

func updateEventHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_event_id", "id must be a valid UUID")
			return
		}

		var req EventPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		event, err := svc.UpdateEvent(r.Context(), id, eventInputFromPayload(req))
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrEventNotFound):
				writeError(w, http.StatusNotFound, "event_not_found", err.Error())
			case errors.Is(err, booking.ErrInvalidEvent):
				writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toEventResponse(event))
	}
}

func eventInputFromPayload(req EventPayload) booking.EventInput {
	return booking.EventInput{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		PriceCents:  req.PriceCents,
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		attendees := make([]booking.AttendeeInput, 0, len(req.Attendees))
		for _, a := range req.Attendees {
			attendees = append(attendees, booking.AttendeeInput{
				FullName: a.FullName,
				Email:    a.Email,
				Phone:    a.Phone,
			})
		}

		conf, err := svc.ReserveSeats(r.Context(), slug, req.Seats, req.Notes, attendees)
		if err != nil {
			handleReserveSeatsError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(conf))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		conf, err := svc.GetBookingByCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(conf))
	}
}

func changeBookingStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req ChangeBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		b, err := svc.ChangeStatus(r.Context(), id, booking.BookingStatus(req.Status))
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrBookingNotFound):
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
			case errors.Is(err, booking.ErrInvalidStatus):
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			case errors.Is(err, booking.ErrInvalidStatusTransition):
				writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(&booking.Confirmation{Booking: b}))
	}
}

func handleReserveSeatsError(w http.ResponseWriter, err error) {
	var capErr *booking.CapacityError

	switch {
	case errors.Is(err, booking.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event_not_found", err.Error())
	case errors.Is(err, booking.ErrEventStarted):
		writeError(w, http.StatusConflict, "event_closed", err.Error())
	case errors.Is(err, booking.ErrInvalidSeats),
		errors.Is(err, booking.ErrNoAttendees):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &capErr):
		writeError(w, http.StatusConflict, "capacity_exceeded", capErr.Error())
	case errors.Is(err, booking.ErrTxConflict):
		writeError(w, http.StatusConflict, "booking_conflict", "booking conflicted with concurrent requests, please retry shortly")
	case errors.Is(err, booking.ErrCodeSpaceExhausted):
		writeError(w, http.StatusInternalServerError, "code_allocation_exhausted", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
