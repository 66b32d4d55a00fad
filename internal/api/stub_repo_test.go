package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medbuddy/booking-service/internal/booking"
)

// stubRepo implements booking.Repository with overridable function
// fields; unset methods return their zero behavior.
type stubRepo struct {
	settings *booking.Settings

	bookSlotFn   func(ctx context.Context, slotID uuid.UUID, code string, in booking.BookingInput, amount int64) (*booking.Appointment, error)
	cancelFn     func(ctx context.Context, code string) (*booking.Appointment, error)
	getByCodeFn  func(ctx context.Context, code string) (*booking.Appointment, error)
	byMobileFn   func(ctx context.Context, mobile string) ([]booking.Appointment, error)
	listSlotsFn  func(ctx context.Context) ([]booking.Slot, error)
	getApptFn    func(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	updateFn     func(ctx context.Context, id uuid.UUID, upd booking.AdminUpdate) (*booking.Appointment, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	searchFn     func(ctx context.Context, f booking.Filter) ([]booking.Appointment, error)
	createSlotFn func(ctx context.Context, s *booking.Slot) error
}

func (s *stubRepo) CreateSlot(ctx context.Context, slot *booking.Slot) error {
	if s.createSlotFn != nil {
		return s.createSlotFn(ctx, slot)
	}
	return nil
}

func (s *stubRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*booking.Slot, error) {
	return nil, booking.ErrSlotUnavailable
}

func (s *stubRepo) ListAvailableSlots(ctx context.Context) ([]booking.Slot, error) {
	if s.listSlotsFn != nil {
		return s.listSlotsFn(ctx)
	}
	return nil, nil
}

func (s *stubRepo) BookSlot(ctx context.Context, slotID uuid.UUID, code string, in booking.BookingInput, amount int64) (*booking.Appointment, error) {
	if s.bookSlotFn != nil {
		return s.bookSlotFn(ctx, slotID, code, in, amount)
	}
	return nil, booking.ErrSlotUnavailable
}

func (s *stubRepo) CancelReserved(ctx context.Context, code string) (*booking.Appointment, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, code)
	}
	return nil, booking.ErrNotFound
}

func (s *stubRepo) GetByCode(ctx context.Context, code string) (*booking.Appointment, error) {
	if s.getByCodeFn != nil {
		return s.getByCodeFn(ctx, code)
	}
	return nil, booking.ErrNotFound
}

func (s *stubRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	if s.getApptFn != nil {
		return s.getApptFn(ctx, id)
	}
	return nil, booking.ErrNotFound
}

func (s *stubRepo) ListByMobile(ctx context.Context, mobile string) ([]booking.Appointment, error) {
	if s.byMobileFn != nil {
		return s.byMobileFn(ctx, mobile)
	}
	return nil, nil
}

func (s *stubRepo) ListReservedBefore(ctx context.Context, cutoff time.Time) ([]booking.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) ExpireReservation(ctx context.Context, apptID, slotID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubRepo) ListConfirmedUnreminded(ctx context.Context) ([]booking.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubRepo) UpdateAppointment(ctx context.Context, id uuid.UUID, upd booking.AdminUpdate) (*booking.Appointment, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, upd)
	}
	return nil, booking.ErrNotFound
}

func (s *stubRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return booking.ErrNotFound
}

func (s *stubRepo) SearchAppointments(ctx context.Context, f booking.Filter) ([]booking.Appointment, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, f)
	}
	return nil, nil
}

func (s *stubRepo) GetSettings(ctx context.Context) (*booking.Settings, error) {
	if s.settings == nil {
		return nil, booking.ErrSettingsMissing
	}
	cp := *s.settings
	return &cp, nil
}

func (s *stubRepo) UpdateSettings(ctx context.Context, set *booking.Settings) error {
	cp := *set
	s.settings = &cp
	return nil
}

// inlineLocker runs the booking critical section without Redis.
type inlineLocker struct{}

func (inlineLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
