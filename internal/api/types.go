package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbuddy/booking-service/internal/booking"
)

const dateLayout = "2006-01-02"

type BookRequest struct {
	SlotID           string `json:"slot_id"`
	PatientName      string `json:"patient_name"`
	Mobile           string `json:"mobile"`
	Address          string `json:"address"`
	ConsultationType string `json:"consultation_type,omitempty"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ConfirmationCode string    `json:"confirmation_code"`
	PatientName      string    `json:"patient_name"`
	Mobile           string    `json:"mobile"`
	SlotID           uuid.UUID `json:"slot_id"`
	AppointmentDate  string    `json:"appointment_date"`
	SlotTime         string    `json:"slot_time"`
	ConsultationType string    `json:"consultation_type"`
	Amount           int64     `json:"amount"`
	Status           string    `json:"status"`
	MeetingLink      string    `json:"meeting_link,omitempty"`
	AdminRemarks     string    `json:"admin_remarks,omitempty"`
	ReminderSent     bool      `json:"reminder_sent"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		ConfirmationCode: a.ConfirmationCode,
		PatientName:      a.PatientName,
		Mobile:           a.Mobile,
		SlotID:           a.SlotID,
		AppointmentDate:  a.Date.Format(dateLayout),
		SlotTime:         a.SlotTime,
		ConsultationType: string(a.ConsultationType),
		Amount:           a.Amount,
		Status:           string(a.Status),
		MeetingLink:      a.MeetingLink,
		AdminRemarks:     a.AdminRemarks,
		ReminderSent:     a.ReminderSent,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type CancelResponse struct {
	Appointment  AppointmentResponse `json:"appointment"`
	WhatsAppLink string              `json:"whatsapp_link,omitempty"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotDate  string    `json:"slot_date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		SlotDate:  s.Date.Format(dateLayout),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		IsBooked:  s.IsBooked,
	}
}

type CreateSlotRequest struct {
	SlotDate  string `json:"slot_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AdminUpdateRequest struct {
	Status      string `json:"status"`
	MeetingLink string `json:"meeting_link"`
	Remarks     string `json:"remarks"`
}

type SettingsPayload struct {
	DoctorWhatsApp      string `json:"doctor_whatsapp"`
	UPILink             string `json:"upi_link"`
	DefaultAmount       int64  `json:"default_amount"`
	FollowupAmount      int64  `json:"followup_amount"`
	DefaultMeetingLink  string `json:"default_meeting_link"`
	ReservationMessage  string `json:"reservation_message"`
	ConfirmationMessage string `json:"confirmation_message"`
	ReminderMessage     string `json:"reminder_message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
