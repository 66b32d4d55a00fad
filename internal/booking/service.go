package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbuddy/booking-service/internal/metrics"
	redisclient "github.com/medbuddy/booking-service/internal/redis"
)

// ErrBusy means the per-slot lock could not be acquired; the caller
// should retry shortly.
var ErrBusy = errors.New("slot is currently being booked, please retry")

// maxCodeAttempts bounds confirmation-code regeneration on collision.
const maxCodeAttempts = 5

// Service is the reservation engine. It serializes booking attempts per
// slot with a distributed lock and delegates the all-or-nothing
// slot+appointment write to the repository transaction.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		metrics: m,
		now:     time.Now,
	}
}

// Book reserves a slot for a patient and returns the created appointment
// with its confirmation code. The fee is fixed here from the settings
// current at booking time; later settings changes do not touch existing
// rows.
func (s *Service) Book(ctx context.Context, slotID uuid.UUID, in BookingInput) (*Appointment, error) {
	in.ConsultationType = NormalizeConsultationType(string(in.ConsultationType))

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("load settings: %w", err)
	}
	amount := settings.AmountFor(in.ConsultationType)

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			code := NewConfirmationCode(s.now())

			appt, err := s.repo.BookSlot(lockCtx, slotID, code, in, amount)
			if errors.Is(err, ErrCodeConflict) {
				continue
			}
			if err != nil {
				return err
			}
			created = appt
			return nil
		}
		return fmt.Errorf("generate confirmation code: %w", ErrCodeConflict)
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = ErrBusy
		}
		s.metrics.ObserveBooking(outcomeLabel(err))
		return nil, err
	}

	s.metrics.ObserveBooking("ok")
	return created, nil
}

// Cancel transitions a RESERVED appointment to CANCELLED and frees its
// slot. The returned snapshot carries the fields the messaging
// collaborator needs (code, name, date, time); it is read inside the
// same transaction as the updates.
func (s *Service) Cancel(ctx context.Context, code string) (*Appointment, error) {
	appt, err := s.repo.CancelReserved(ctx, code)
	if err != nil {
		s.metrics.ObserveCancellation(outcomeLabel(err))
		return nil, err
	}
	s.metrics.ObserveCancellation("ok")
	return appt, nil
}

// GetByCode returns the appointment for a confirmation code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	appt, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// HistoryByMobile returns a patient's appointments, newest first.
func (s *Service) HistoryByMobile(ctx context.Context, mobile string) ([]Appointment, error) {
	appts, err := s.repo.ListByMobile(ctx, mobile)
	if err != nil {
		return nil, fmt.Errorf("list appointments by mobile: %w", err)
	}
	return appts, nil
}

// AvailableSlots returns free upcoming slots ordered by date and start
// time.
func (s *Service) AvailableSlots(ctx context.Context) ([]Slot, error) {
	slots, err := s.repo.ListAvailableSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// Settings exposes the current settings row to collaborators (message
// construction needs doctor_whatsapp and the templates).
func (s *Service) Settings(ctx context.Context) (*Settings, error) {
	return s.repo.GetSettings(ctx)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrSettingsMissing):
		return "settings_missing"
	default:
		return "error"
	}
}
