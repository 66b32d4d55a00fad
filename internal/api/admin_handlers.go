package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medbuddy/booking-service/internal/booking"
)

func createSlotHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse(dateLayout, req.SlotDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_date", "slot_date must be YYYY-MM-DD")
			return
		}

		slot, err := adm.CreateSlot(r.Context(), date, req.StartTime, req.EndTime)
		if err != nil {
			if errors.Is(err, booking.ErrBadSlot) {
				writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "could not create slot")
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func searchAppointmentsHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		f := booking.Filter{
			Text:             q.Get("q"),
			Status:           booking.Status(q.Get("status")),
			ConsultationType: booking.ConsultationType(q.Get("consultation_type")),
		}
		if v := q.Get("from"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			f.From = t
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
			f.To = t
		}

		appts, err := adm.Search(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// updateAppointmentHandler never reads an amount from the request; the
// fee is recomputed server-side from settings and the stored
// consultation type.
func updateAppointmentHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AdminUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := adm.UpdateAppointment(r.Context(), id, booking.Status(req.Status), req.MeetingLink, req.Remarks)
		if err != nil {
			handleAdminError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := adm.DeleteAppointment(r.Context(), id); err != nil {
			handleAdminError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getSettingsHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := adm.Settings(r.Context())
		if err != nil {
			handleAdminError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SettingsPayload{
			DoctorWhatsApp:      s.DoctorWhatsApp,
			UPILink:             s.UPILink,
			DefaultAmount:       s.DefaultAmount,
			FollowupAmount:      s.FollowupAmount,
			DefaultMeetingLink:  s.DefaultMeetingLink,
			ReservationMessage:  s.ReservationMessage,
			ConfirmationMessage: s.ConfirmationMessage,
			ReminderMessage:     s.ReminderMessage,
		})
	}
}

func updateSettingsHandler(adm *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		err := adm.UpdateSettings(r.Context(), &booking.Settings{
			DoctorWhatsApp:      req.DoctorWhatsApp,
			UPILink:             req.UPILink,
			DefaultAmount:       req.DefaultAmount,
			FollowupAmount:      req.FollowupAmount,
			DefaultMeetingLink:  req.DefaultMeetingLink,
			ReservationMessage:  req.ReservationMessage,
			ConfirmationMessage: req.ConfirmationMessage,
			ReminderMessage:     req.ReminderMessage,
		})
		if err != nil {
			handleAdminError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
	case errors.Is(err, booking.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_status", err.Error())
	case errors.Is(err, booking.ErrSettingsMissing):
		writeError(w, http.StatusConflict, "settings_missing", "clinic settings not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "operation failed")
	}
}
