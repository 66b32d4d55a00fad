package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medbuddy/booking-service/internal/booking"
	"github.com/medbuddy/booking-service/internal/whatsapp"
)

func listSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.AvailableSlots(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load slots")
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		if req.PatientName == "" || req.Mobile == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "patient_name and mobile are required")
			return
		}

		appt, err := svc.Book(r.Context(), slotID, booking.BookingInput{
			PatientName:      req.PatientName,
			Mobile:           req.Mobile,
			Address:          req.Address,
			ConsultationType: booking.ConsultationType(req.ConsultationType),
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func statusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		appt, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, booking.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "no appointment for this code")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load appointment")
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func historyHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mobile := r.URL.Query().Get("mobile")
		if mobile == "" {
			writeError(w, http.StatusBadRequest, "missing_mobile", "mobile query parameter is required")
			return
		}

		appts, err := svc.HistoryByMobile(r.Context(), mobile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load history")
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// cancelHandler cancels a RESERVED appointment and hands back the wa.me
// payload built from the post-cancel snapshot.
func cancelHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		appt, err := svc.Cancel(r.Context(), code)
		if err != nil {
			handleCancelError(w, err)
			return
		}

		resp := CancelResponse{Appointment: toAppointmentResponse(appt)}

		if settings, err := svc.Settings(r.Context()); err == nil && settings.DoctorWhatsApp != "" {
			msg := whatsapp.CancellationMessage(
				appt.ConfirmationCode,
				appt.PatientName,
				appt.Date.Format(dateLayout),
				appt.SlotTime,
			)
			resp.WhatsAppLink = whatsapp.Link(settings.DoctorWhatsApp, msg)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// Patient-facing errors stay generic; no internal detail leaks out.

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot not available")
	case errors.Is(err, booking.ErrBusy):
		writeError(w, http.StatusConflict, "slot_busy", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrSettingsMissing):
		writeError(w, http.StatusInternalServerError, "internal_error", "booking is temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "booking failed")
	}
}

func handleCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no appointment for this code")
	case errors.Is(err, booking.ErrInvalidState):
		writeError(w, http.StatusConflict, "cannot_cancel", "appointment cannot be cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "cancellation failed")
	}
}
