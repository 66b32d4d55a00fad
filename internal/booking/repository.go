package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotUnavailable covers a missing slot, an already-booked slot and
	// a slot whose date is in the past. Callers get one generic answer.
	ErrSlotUnavailable = errors.New("slot not available")

	// ErrNotFound means no appointment matches the given code or id.
	ErrNotFound = errors.New("appointment not found")

	// ErrInvalidState means the requested transition is not legal for the
	// appointment's current status.
	ErrInvalidState = errors.New("invalid appointment state for this action")

	// ErrSettingsMissing means the settings row is absent. Fee computation
	// fails explicitly rather than defaulting.
	ErrSettingsMissing = errors.New("clinic settings not configured")

	// ErrCodeConflict signals a confirmation-code collision on insert; the
	// engine regenerates and retries.
	ErrCodeConflict = errors.New("confirmation code already exists")
)

// BookingInput carries the patient-supplied fields for a reservation.
type BookingInput struct {
	PatientName      string
	Mobile           string
	Address          string
	ConsultationType ConsultationType
}

// AdminUpdate carries the operator-supplied fields for an appointment
// update. Amount is resolved server-side before the repository is called.
type AdminUpdate struct {
	Status      Status
	MeetingLink string
	Remarks     string
	Amount      int64
}

// Repository contains all store interactions needed by the reservation
// engine, the admin mutator and the lifecycle sweeper. Every mutation is
// a single atomic unit scoped to the rows it touches.
type Repository interface {
	// Slots
	CreateSlot(ctx context.Context, s *Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailableSlots(ctx context.Context) ([]Slot, error)

	// Reservation. BookSlot marks the slot booked only if it is currently
	// free and not in the past, and inserts the appointment row in the same
	// transaction. Zero slots updated means ErrSlotUnavailable; a
	// confirmation-code unique violation means ErrCodeConflict.
	BookSlot(ctx context.Context, slotID uuid.UUID, code string, in BookingInput, amount int64) (*Appointment, error)

	// CancelReserved flips a RESERVED appointment to CANCELLED and frees
	// its slot in one transaction, returning the post-cancel snapshot.
	CancelReserved(ctx context.Context, code string) (*Appointment, error)

	// Lookups
	GetByCode(ctx context.Context, code string) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByMobile(ctx context.Context, mobile string) ([]Appointment, error)

	// Sweeper. Both list queries are filtered server-side so sweep cost
	// tracks the active row count, not the table size.
	ListReservedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)
	ExpireReservation(ctx context.Context, apptID, slotID uuid.UUID) (bool, error)
	ListConfirmedUnreminded(ctx context.Context) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)

	// Admin
	UpdateAppointment(ctx context.Context, id uuid.UUID, upd AdminUpdate) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	SearchAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// Settings
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, s *Settings) error
}
