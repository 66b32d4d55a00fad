package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository mirroring the SQL semantics of
// PgRepository: conditional booking, CAS cancellation, one-way reminder
// flag. It lets the engine, sweeper and admin tests check cross-store
// invariants (a cancelled appointment always has a free slot) without a
// database.
type fakeRepo struct {
	mu       sync.Mutex
	slots    map[uuid.UUID]*Slot
	appts    map[uuid.UUID]*Appointment
	codes    map[string]uuid.UUID
	settings *Settings

	today         time.Time // stands in for CURRENT_DATE
	codeConflicts int       // fail the next N inserts with ErrCodeConflict
}

func newFakeRepo(today time.Time) *fakeRepo {
	return &fakeRepo{
		slots: make(map[uuid.UUID]*Slot),
		appts: make(map[uuid.UUID]*Appointment),
		codes: make(map[string]uuid.UUID),
		settings: &Settings{
			DoctorWhatsApp: "911234567890",
			DefaultAmount:  500,
			FollowupAmount: 300,
		},
		today: today.Truncate(24 * time.Hour),
	}
}

func (f *fakeRepo) addSlot(date time.Time, start, end string, booked bool) *Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Slot{
		ID:        uuid.New(),
		Date:      date,
		StartTime: start,
		EndTime:   end,
		IsBooked:  booked,
	}
	f.slots[s.ID] = s
	return s
}

func (f *fakeRepo) addAppointment(a Appointment) *Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.appts[a.ID] = &a
	f.codes[a.ConfirmationCode] = a.ID
	return &a
}

func (f *fakeRepo) slot(id uuid.UUID) Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.slots[id]
}

func (f *fakeRepo) appt(id uuid.UUID) Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.appts[id]
}

// Repository implementation

func (f *fakeRepo) CreateSlot(ctx context.Context, s *Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.slots[s.ID] = &cp
	return nil
}

func (f *fakeRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotUnavailable
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListAvailableSlots(ctx context.Context) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Slot
	for _, s := range f.slots {
		if !s.IsBooked && !s.Date.Before(f.today) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) BookSlot(ctx context.Context, slotID uuid.UUID, code string, in BookingInput, amount int64) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.slots[slotID]
	if !ok || s.IsBooked || s.Date.Before(f.today) {
		return nil, ErrSlotUnavailable
	}

	if f.codeConflicts > 0 {
		f.codeConflicts--
		return nil, ErrCodeConflict
	}
	if _, taken := f.codes[code]; taken {
		return nil, ErrCodeConflict
	}

	s.IsBooked = true

	now := time.Now()
	a := &Appointment{
		ID:               uuid.New(),
		ConfirmationCode: code,
		PatientName:      in.PatientName,
		Mobile:           in.Mobile,
		Address:          in.Address,
		SlotID:           slotID,
		Date:             s.Date,
		SlotTime:         s.TimeRange(),
		ConsultationType: in.ConsultationType,
		Amount:           amount,
		Status:           StatusReserved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.appts[a.ID] = a
	f.codes[code] = a.ID

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) CancelReserved(ctx context.Context, code string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	a := f.appts[id]
	if a.Status != StatusReserved {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, a.Status)
	}

	a.Status = StatusCancelled
	a.UpdatedAt = time.Now()
	if s, ok := f.slots[a.SlotID]; ok {
		s.IsBooked = false
	}

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f.appts[id]
	return &cp, nil
}

func (f *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) ListByMobile(ctx context.Context, mobile string) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.Mobile == mobile {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListReservedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.Status == StatusReserved && a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ExpireReservation(ctx context.Context, apptID, slotID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appts[apptID]
	if !ok || a.Status != StatusReserved {
		return false, nil
	}

	a.Status = StatusCancelled
	a.UpdatedAt = time.Now()
	if s, ok := f.slots[slotID]; ok {
		s.IsBooked = false
	}
	return true, nil
}

func (f *fakeRepo) ListConfirmedUnreminded(ctx context.Context) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.Status == StatusConfirmed && !a.ReminderSent {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	a.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeRepo) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AdminUpdate) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appts[id]
	if !ok {
		return nil, ErrNotFound
	}

	if a.Status == StatusCancelled && upd.Status != StatusCancelled {
		return nil, fmt.Errorf("%w: appointment is CANCELLED", ErrInvalidState)
	}

	prev := a.Status
	a.Status = upd.Status
	a.MeetingLink = upd.MeetingLink
	a.AdminRemarks = upd.Remarks
	a.Amount = upd.Amount
	a.UpdatedAt = time.Now()

	if upd.Status == StatusCancelled && prev != StatusCancelled {
		if s, ok := f.slots[a.SlotID]; ok {
			s.IsBooked = false
		}
	}

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appts[id]
	if !ok {
		return ErrNotFound
	}
	if s, ok := f.slots[a.SlotID]; ok {
		s.IsBooked = false
	}
	delete(f.codes, a.ConfirmationCode)
	delete(f.appts, id)
	return nil
}

func (f *fakeRepo) SearchAppointments(ctx context.Context, fl Filter) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if fl.Text != "" {
			t := strings.ToLower(fl.Text)
			if !strings.Contains(strings.ToLower(a.PatientName), t) &&
				!strings.Contains(strings.ToLower(a.Mobile), t) &&
				!strings.Contains(strings.ToLower(a.ConfirmationCode), t) {
				continue
			}
		}
		if fl.Status != "" && a.Status != fl.Status {
			continue
		}
		if fl.ConsultationType != "" && a.ConsultationType != fl.ConsultationType {
			continue
		}
		if !fl.From.IsZero() && a.Date.Before(fl.From) {
			continue
		}
		if !fl.To.IsZero() && a.Date.After(fl.To) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeRepo) GetSettings(ctx context.Context) (*Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return nil, ErrSettingsMissing
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeRepo) UpdateSettings(ctx context.Context, s *Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return ErrSettingsMissing
	}
	cp := *s
	f.settings = &cp
	return nil
}

// noopLocker runs the critical section inline.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
