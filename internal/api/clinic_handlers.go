package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/frontdesk/reservations/internal/clinic"
)

func listDoctorsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{ID: d.ID, FullName: d.FullName, Specialty: d.Specialty})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listCareServicesHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := svc.ListCareServices(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]CareServiceResponse, 0, len(services))
		for _, s := range services {
			resp = append(resp, CareServiceResponse{
				ID:          s.ID,
				Name:        s.Name,
				DurationMin: s.DurationMin,
				PriceCents:  s.PriceCents,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// listSlotsHandler computes free slots for a day. doctor_id is
// optional; without it every active doctor contributes slots.
func listSlotsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		serviceID, err := uuid.Parse(q.Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		day, err := time.Parse("2006-01-02", q.Get("day"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", "day must be formatted YYYY-MM-DD")
			return
		}

		doctorID := uuid.Nil
		if v := q.Get("doctor_id"); v != "" && v != "any" {
			doctorID, err = uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, serviceID, day)
		if err != nil {
			handleClinicLookupError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{DoctorID: s.DoctorID, DoctorName: s.DoctorName, StartsAt: s.StartsAt})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_starts_at", "starts_at must be RFC 3339")
			return
		}

		appt, err := svc.ReserveSlot(r.Context(), clinic.ReserveSlotInput{
			PatientID: patientID,
			DoctorID:  doctorID,
			ServiceID: serviceID,
			StartsAt:  startsAt,
			Status:    clinic.AppointmentStatus(req.Status),
			Notes:     req.Notes,
		})
		if err != nil {
			handleReserveSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func changeAppointmentStatusHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeAppointmentStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, clinic.AppointmentStatus(req.Status))
		if err != nil {
			switch {
			case errors.Is(err, clinic.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			case errors.Is(err, clinic.ErrInvalidStatus):
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			case errors.Is(err, clinic.ErrInvalidTransition):
				writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_starts_at", "starts_at must be RFC 3339")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, startsAt)
		if err != nil {
			switch {
			case errors.Is(err, clinic.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			case errors.Is(err, clinic.ErrAppointmentFinished):
				writeError(w, http.StatusConflict, "appointment_finished", err.Error())
			case errors.Is(err, clinic.ErrPastStart):
				writeError(w, http.StatusBadRequest, "invalid_starts_at", err.Error())
			case errors.Is(err, clinic.ErrSlotTaken):
				writeError(w, http.StatusConflict, "slot_taken", err.Error())
			case errors.Is(err, clinic.ErrSlotBeingBooked):
				writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentNotesHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateNotesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateNotes(r.Context(), id, req.Notes)
		if err != nil {
			if errors.Is(err, clinic.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func doctorScheduleHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		day, err := time.Parse("2006-01-02", r.URL.Query().Get("day"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", "day must be formatted YYYY-MM-DD")
			return
		}

		items, err := svc.DoctorSchedule(r.Context(), id, day)
		if err != nil {
			handleClinicLookupError(w, err)
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(items))
		for i := range items {
			resp = append(resp, toAppointmentDetailResponse(&items[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func generateInvoiceHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		inv, err := svc.GenerateInvoice(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toInvoiceResponse(inv, nil))
	}
}

func listPatientInvoicesHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		invoices, err := svc.ListPatientInvoices(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrPatientNotFound) {
				writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]InvoiceResponse, 0, len(invoices))
		for i := range invoices {
			resp = append(resp, toInvoiceResponse(&invoices[i], nil))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getInvoiceHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "id must be a valid UUID")
			return
		}

		inv, items, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrInvoiceNotFound) {
				writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toInvoiceResponse(inv, items))
	}
}

func addInvoiceItemHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "id must be a valid UUID")
			return
		}

		var req AddInvoiceItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		inv, err := svc.AddInvoiceItem(r.Context(), id, req.Description, req.Qty, req.UnitPriceCents)
		if err != nil {
			switch {
			case errors.Is(err, clinic.ErrInvoiceNotFound):
				writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
			case errors.Is(err, clinic.ErrInvalidInvoiceItem):
				writeError(w, http.StatusBadRequest, "invalid_invoice_item", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toInvoiceResponse(inv, nil))
	}
}

func removeInvoiceItemHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_invoice_id", "id must be a valid UUID")
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_item_id", "itemID must be a valid UUID")
			return
		}

		inv, err := svc.RemoveInvoiceItem(r.Context(), id, itemID)
		if err != nil {
			switch {
			case errors.Is(err, clinic.ErrInvoiceNotFound):
				writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
			case errors.Is(err, clinic.ErrInvoiceItemNotFound):
				writeError(w, http.StatusNotFound, "invoice_item_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toInvoiceResponse(inv, nil))
	}
}

func handleReserveSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorInactive),
		errors.Is(err, clinic.ErrServiceInactive):
		writeError(w, http.StatusConflict, "resource_inactive", err.Error())
	case errors.Is(err, clinic.ErrPastStart),
		errors.Is(err, clinic.ErrInvalidInitialStatus):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, clinic.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, clinic.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleClinicLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorInactive),
		errors.Is(err, clinic.ErrServiceInactive):
		writeError(w, http.StatusConflict, "resource_inactive", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
