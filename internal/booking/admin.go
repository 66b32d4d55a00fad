package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBadSlot means the admin-supplied slot definition is malformed or in
// the past.
var ErrBadSlot = errors.New("invalid slot definition")

var validStatuses = map[Status]bool{
	StatusReserved:  true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

// Admin applies operator-driven mutations: status transitions, meeting
// link and remarks, slot creation, settings updates and searches.
type Admin struct {
	repo Repository
	now  func() time.Time
}

func NewAdmin(repo Repository) *Admin {
	return &Admin{repo: repo, now: time.Now}
}

// UpdateAppointment sets status, meeting link and remarks on an
// appointment. The fee is recomputed from current settings and the
// STORED consultation type; a client-supplied amount is never trusted.
// A transition to CANCELLED frees the slot in the same transaction.
func (a *Admin) UpdateAppointment(ctx context.Context, id uuid.UUID, status Status, meetingLink, remarks string) (*Appointment, error) {
	status = Status(NormalizeStatus(string(status)))
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, status)
	}

	appt, err := a.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// CANCELLED is terminal; the slot was already freed and may have been
	// re-booked by someone else.
	if appt.Status == StatusCancelled && status != StatusCancelled {
		return nil, fmt.Errorf("%w: appointment is CANCELLED", ErrInvalidState)
	}

	settings, err := a.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	upd := AdminUpdate{
		Status:      status,
		MeetingLink: meetingLink,
		Remarks:     remarks,
		Amount:      settings.AmountFor(appt.ConsultationType),
	}

	updated, err := a.repo.UpdateAppointment(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAppointment removes an appointment. The referenced slot is freed
// first, in the same transaction, so a deleted appointment never leaves
// an orphaned booked slot.
func (a *Admin) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return a.repo.DeleteAppointment(ctx, id)
}

// CreateSlot adds a bookable window after validating the HH:MM bounds
// and that the date is not in the past.
func (a *Admin) CreateSlot(ctx context.Context, date time.Time, start, end string) (*Slot, error) {
	st, err := time.Parse("15:04", start)
	if err != nil {
		return nil, fmt.Errorf("%w: start time %q", ErrBadSlot, start)
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return nil, fmt.Errorf("%w: end time %q", ErrBadSlot, end)
	}
	if !st.Before(et) {
		return nil, fmt.Errorf("%w: start %q not before end %q", ErrBadSlot, start, end)
	}

	now := a.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return nil, fmt.Errorf("%w: date %s is in the past", ErrBadSlot, date.Format("2006-01-02"))
	}

	slot := &Slot{
		ID:        uuid.New(),
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
	if err := a.repo.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

// Search runs the structured admin filter against the appointment store.
func (a *Admin) Search(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Status != "" {
		f.Status = Status(NormalizeStatus(string(f.Status)))
	}
	if f.ConsultationType != "" {
		f.ConsultationType = NormalizeConsultationType(string(f.ConsultationType))
	}
	appts, err := a.repo.SearchAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	return appts, nil
}

// Settings returns the current settings row.
func (a *Admin) Settings(ctx context.Context) (*Settings, error) {
	return a.repo.GetSettings(ctx)
}

// UpdateSettings replaces the mutable settings fields.
func (a *Admin) UpdateSettings(ctx context.Context, s *Settings) error {
	if err := a.repo.UpdateSettings(ctx, s); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
