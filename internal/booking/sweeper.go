package booking

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medbuddy/booking-service/internal/metrics"
)

// Sweeper runs the two periodic lifecycle passes: expiring stale
// reservations and flagging due reminders. Both are idempotent; a pass
// with no qualifying rows is a no-op, and every qualifying row is
// processed in its own compare-and-swap transaction so a concurrent
// patient cancellation never double-frees a slot.
type Sweeper struct {
	repo         Repository
	grace        time.Duration // how long a RESERVED row may sit unpaid
	reminderLead time.Duration // reminder window before the start instant
	metrics      *metrics.SweepMetrics
}

func NewSweeper(repo Repository, grace, reminderLead time.Duration, m *metrics.SweepMetrics) *Sweeper {
	return &Sweeper{
		repo:         repo,
		grace:        grace,
		reminderLead: reminderLead,
		metrics:      m,
	}
}

// ExpireStale cancels RESERVED appointments created before now-grace and
// frees their slots. Row failures are logged and skipped so one bad row
// never aborts the rest of the sweep. Returns the number of rows expired.
func (s *Sweeper) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.grace)

	stale, err := s.repo.ListReservedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale reservations: %w", err)
	}

	expired := 0
	for _, appt := range stale {
		ok, err := s.repo.ExpireReservation(ctx, appt.ID, appt.SlotID)
		if err != nil {
			log.Printf("sweep=expiry appointment=%s error=%v", appt.ConfirmationCode, err)
			continue
		}
		if !ok {
			// Lost the race to a patient or admin cancellation.
			continue
		}
		expired++
		s.metrics.ObserveExpired()
		log.Printf("sweep=expiry appointment=%s slot=%s expired reserved_at=%s",
			appt.ConfirmationCode, appt.SlotID, appt.CreatedAt.Format(time.RFC3339))
	}

	return expired, nil
}

// FlagDueReminders marks reminder_sent on CONFIRMED appointments whose
// start instant is at most reminderLead away. The flag is a one-way
// marker consumed by an external notifier; no message is sent here.
func (s *Sweeper) FlagDueReminders(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.repo.ListConfirmedUnreminded(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unreminded appointments: %w", err)
	}

	flagged := 0
	for _, appt := range pending {
		start, err := appointmentStart(appt, now.Location())
		if err != nil {
			log.Printf("sweep=reminder appointment=%s error=%v", appt.ConfirmationCode, err)
			continue
		}

		if now.Before(start.Add(-s.reminderLead)) || now.After(start) {
			continue
		}

		ok, err := s.repo.MarkReminderSent(ctx, appt.ID)
		if err != nil {
			log.Printf("sweep=reminder appointment=%s error=%v", appt.ConfirmationCode, err)
			continue
		}
		if !ok {
			continue
		}
		flagged++
		s.metrics.ObserveReminder()
		log.Printf("sweep=reminder appointment=%s mobile=%s flagged start=%s",
			appt.ConfirmationCode, appt.Mobile, start.Format(time.RFC3339))
	}

	return flagged, nil
}

// appointmentStart computes the start instant from the appointment date
// and the first half of the "HH:MM-HH:MM" slot time.
func appointmentStart(appt Appointment, loc *time.Location) (time.Time, error) {
	first, _, found := strings.Cut(appt.SlotTime, "-")
	if !found {
		return time.Time{}, fmt.Errorf("malformed slot time %q", appt.SlotTime)
	}

	hm, err := time.Parse("15:04", strings.TrimSpace(first))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed slot time %q: %w", appt.SlotTime, err)
	}

	d := appt.Date
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
