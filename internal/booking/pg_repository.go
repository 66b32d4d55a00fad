package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. Declared
// as an interface so tests can inject a pgxmock pool.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, confirmation_code, patient_name, mobile, address, slot_id,
	appointment_date, slot_time, consultation_type, amount, status,
	COALESCE(meeting_link, ''), COALESCE(admin_remarks, ''), reminder_sent,
	created_at, updated_at`

const slotColumns = `id, slot_date, start_time, end_time, is_booked, created_at, updated_at`

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ConfirmationCode,
		&a.PatientName,
		&a.Mobile,
		&a.Address,
		&a.SlotID,
		&a.Date,
		&a.SlotTime,
		&a.ConsultationType,
		&a.Amount,
		&a.Status,
		&a.MeetingLink,
		&a.AdminRemarks,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, slot_date, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, now(), now())
	`, s.ID, s.Date, s.StartTime, s.EndTime)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE is_booked = FALSE
		  AND slot_date >= CURRENT_DATE
		ORDER BY slot_date, start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

// Reservation

// BookSlot is the single atomic unit behind booking. The conditional
// slot update serializes concurrent attempts: of two racing bookings on
// the same slot, the loser matches zero rows and sees ErrSlotUnavailable.
// The date guard also means a slot freed by expiry on a past date can
// never be re-booked.
func (r *PgRepository) BookSlot(ctx context.Context, slotID uuid.UUID, code string, in BookingInput, amount int64) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		slotDate   time.Time
		start, end string
	)
	err = tx.QueryRow(ctx, `
		UPDATE slots
		SET is_booked = TRUE,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = FALSE
		  AND slot_date >= CURRENT_DATE
		RETURNING slot_date, start_time, end_time
	`, slotID).Scan(&slotDate, &start, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("mark slot booked: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, confirmation_code, patient_name, mobile, address, slot_id,
			appointment_date, slot_time, consultation_type, amount, status,
			reminder_sent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'RESERVED', FALSE, now(), now())
		RETURNING `+apptColumns+`
	`, uuid.New(), code, in.PatientName, in.Mobile, in.Address, slotID,
		slotDate, start+"-"+end, in.ConsultationType, amount)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return appt, nil
}

// CancelReserved applies the status CAS and the slot free as one unit.
// The snapshot handed back to messaging collaborators is read from the
// RETURNING clause inside the transaction, never from a second
// connection after commit.
func (r *PgRepository) CancelReserved(ctx context.Context, code string) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    updated_at = now()
		WHERE confirmation_code = $1
		  AND status = 'RESERVED'
		RETURNING `+apptColumns+`
	`, code)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Zero rows: unknown code or not RESERVED anymore.
			var status Status
			selErr := tx.QueryRow(ctx, `
				SELECT status FROM appointments WHERE confirmation_code = $1
			`, code).Scan(&status)
			if errors.Is(selErr, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			if selErr != nil {
				return nil, fmt.Errorf("inspect appointment status: %w", selErr)
			}
			return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, status)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, appt.SlotID); err != nil {
		return nil, fmt.Errorf("free slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}

	return appt, nil
}

// Lookups

func (r *PgRepository) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE confirmation_code = $1
	`, code)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByMobile(ctx context.Context, mobile string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE mobile = $1
		ORDER BY created_at DESC
	`, mobile)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// Sweeper

func (r *PgRepository) ListReservedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'RESERVED'
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// ExpireReservation cancels one stale reservation. The status update is
// a compare-and-swap on RESERVED; the loser of a race with a concurrent
// cancellation matches zero rows, frees nothing and reports false.
func (r *PgRepository) ExpireReservation(ctx context.Context, apptID, slotID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin expiry tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'RESERVED'
	`, apptID)
	if err != nil {
		return false, fmt.Errorf("expire appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return false, fmt.Errorf("free slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit expiry tx: %w", err)
	}

	return true, nil
}

func (r *PgRepository) ListConfirmedUnreminded(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'CONFIRMED'
		  AND reminder_sent = FALSE
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// MarkReminderSent flips the one-way reminder flag. Conditioning on
// reminder_sent = FALSE keeps back-to-back sweeps from double-flagging.
func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Admin

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AdminUpdate) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		prevStatus Status
		slotID     uuid.UUID
	)
	err = tx.QueryRow(ctx, `
		SELECT status, slot_id
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&prevStatus, &slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock appointment: %w", err)
	}

	// A CANCELLED appointment stays CANCELLED; its slot is free and may be
	// held by another patient already.
	if prevStatus == StatusCancelled && upd.Status != StatusCancelled {
		return nil, fmt.Errorf("%w: appointment is CANCELLED", ErrInvalidState)
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    meeting_link = $3,
		    admin_remarks = $4,
		    amount = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, upd.Status, upd.MeetingLink, upd.Remarks, upd.Amount)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if upd.Status == StatusCancelled && prevStatus != StatusCancelled {
		if _, err := tx.Exec(ctx, `
			UPDATE slots
			SET is_booked = FALSE,
			    updated_at = now()
			WHERE id = $1
		`, slotID); err != nil {
			return nil, fmt.Errorf("free slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update tx: %w", err)
	}

	return appt, nil
}

// DeleteAppointment frees the slot first, then removes the row, in one
// transaction, so a deleted appointment never leaves a booked slot
// behind.
func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var slotID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT slot_id FROM appointments WHERE id = $1 FOR UPDATE
	`, id).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return fmt.Errorf("free slot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}

	return nil
}

// SearchAppointments translates the structured filter into parameterized
// predicates. No filter value is ever concatenated into the SQL text.
func (r *PgRepository) SearchAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Text != "" {
		p := arg("%" + f.Text + "%")
		where = append(where, fmt.Sprintf(
			"(patient_name ILIKE %[1]s OR mobile ILIKE %[1]s OR confirmation_code ILIKE %[1]s)", p))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.ConsultationType != "" {
		where = append(where, "consultation_type = "+arg(f.ConsultationType))
	}
	if !f.From.IsZero() {
		where = append(where, "appointment_date >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "appointment_date <= "+arg(f.To))
	}

	query := `SELECT ` + apptColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// Settings

func (r *PgRepository) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(doctor_whatsapp, ''), COALESCE(upi_link, ''),
		       default_amount, followup_amount,
		       COALESCE(default_meeting_link, ''),
		       COALESCE(reservation_message, ''),
		       COALESCE(confirmation_message, ''),
		       COALESCE(reminder_message, '')
		FROM settings
		WHERE id = 1
	`).Scan(
		&s.DoctorWhatsApp,
		&s.UPILink,
		&s.DefaultAmount,
		&s.FollowupAmount,
		&s.DefaultMeetingLink,
		&s.ReservationMessage,
		&s.ConfirmationMessage,
		&s.ReminderMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsMissing
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) UpdateSettings(ctx context.Context, s *Settings) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE settings
		SET doctor_whatsapp = $1,
		    upi_link = $2,
		    default_amount = $3,
		    followup_amount = $4,
		    default_meeting_link = $5,
		    reservation_message = $6,
		    confirmation_message = $7,
		    reminder_message = $8
		WHERE id = 1
	`, s.DoctorWhatsApp, s.UPILink, s.DefaultAmount, s.FollowupAmount,
		s.DefaultMeetingLink, s.ReservationMessage, s.ConfirmationMessage, s.ReminderMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingsMissing
	}
	return nil
}
