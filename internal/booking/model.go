package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

type ConsultationType string

const (
	ConsultationFirst    ConsultationType = "FIRST"
	ConsultationFollowup ConsultationType = "FOLLOWUP"
)

// NormalizeConsultationType maps any casing ("followup", "Followup") onto
// the canonical upper-case value. Unknown values fall back to FIRST.
func NormalizeConsultationType(s string) ConsultationType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ConsultationFollowup):
		return ConsultationFollowup
	default:
		return ConsultationFirst
	}
}

// NormalizeStatus upper-cases a status string so comparisons against the
// stored values never miss on casing.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Slot is a bookable time window on a given date. StartTime and EndTime
// are wall-clock strings in "HH:MM" form.
type Slot struct {
	ID        uuid.UUID
	Date      time.Time
	StartTime string
	EndTime   string
	IsBooked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeRange renders the slot window the way appointments store it,
// e.g. "09:00-09:30".
func (s *Slot) TimeRange() string {
	return s.StartTime + "-" + s.EndTime
}

// Appointment is a patient's reservation against a slot.
type Appointment struct {
	ID               uuid.UUID
	ConfirmationCode string
	PatientName      string
	Mobile           string
	Address          string
	SlotID           uuid.UUID
	Date             time.Time
	SlotTime         string // "HH:MM-HH:MM"
	ConsultationType ConsultationType
	Amount           int64
	Status           Status
	MeetingLink      string
	AdminRemarks     string
	ReminderSent     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Settings is the single-row clinic configuration consumed by the
// reservation engine and the admin mutator.
type Settings struct {
	DoctorWhatsApp      string
	UPILink             string
	DefaultAmount       int64
	FollowupAmount      int64
	DefaultMeetingLink  string
	ReservationMessage  string
	ConfirmationMessage string
	ReminderMessage     string
}

// AmountFor resolves the consultation fee for the given type.
func (s *Settings) AmountFor(ct ConsultationType) int64 {
	if ct == ConsultationFollowup {
		return s.FollowupAmount
	}
	return s.DefaultAmount
}

// Filter is the structured admin search filter. Zero values mean
// "no constraint"; predicates are combined with AND.
type Filter struct {
	Text             string // matches patient name, mobile or confirmation code
	Status           Status
	ConsultationType ConsultationType
	From             time.Time // appointment_date >= From
	To               time.Time // appointment_date <= To
}
