package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func apptRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "confirmation_code", "patient_name", "mobile", "address", "slot_id",
		"appointment_date", "slot_time", "consultation_type", "amount", "status",
		"meeting_link", "admin_remarks", "reminder_sent", "created_at", "updated_at",
	}).AddRow(
		a.ID, a.ConfirmationCode, a.PatientName, a.Mobile, a.Address, a.SlotID,
		a.Date, a.SlotTime, a.ConsultationType, a.Amount, a.Status,
		a.MeetingLink, a.AdminRemarks, a.ReminderSent, a.CreatedAt, a.UpdatedAt,
	)
}

func TestBookSlotLoserRollsBack(t *testing.T) {
	mock, repo := newMockRepo(t)
	slotID := uuid.New()

	// The conditional update matches zero rows for a booked, missing or
	// past-dated slot; no appointment insert may follow.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE slots").
		WithArgs(slotID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), slotID, "MB-X", BookingInput{}, 500)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookSlotCommitsSlotAndAppointmentTogether(t *testing.T) {
	mock, repo := newMockRepo(t)
	slotID := uuid.New()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	in := BookingInput{
		PatientName:      "Asha Rao",
		Mobile:           "9800000001",
		Address:          "Pune",
		ConsultationType: ConsultationFirst,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "start_time", "end_time"}).
			AddRow(date, "09:00", "09:30"))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "MB-X", in.PatientName, in.Mobile, in.Address, slotID,
			date, "09:00-09:30", ConsultationFirst, int64(500)).
		WillReturnRows(apptRow(Appointment{
			ID:               uuid.New(),
			ConfirmationCode: "MB-X",
			PatientName:      in.PatientName,
			Mobile:           in.Mobile,
			Address:          in.Address,
			SlotID:           slotID,
			Date:             date,
			SlotTime:         "09:00-09:30",
			ConsultationType: ConsultationFirst,
			Amount:           500,
			Status:           StatusReserved,
			CreatedAt:        now,
			UpdatedAt:        now,
		}))
	mock.ExpectCommit()

	appt, err := repo.BookSlot(context.Background(), slotID, "MB-X", in, 500)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, appt.Status)
	assert.Equal(t, "09:00-09:30", appt.SlotTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookSlotCodeCollision(t *testing.T) {
	mock, repo := newMockRepo(t)
	slotID := uuid.New()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "start_time", "end_time"}).
			AddRow(date, "09:00", "09:30"))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_confirmation_code_key"})
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), slotID, "MB-X", BookingInput{}, 500)
	assert.ErrorIs(t, err, ErrCodeConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReservedDistinguishesNotFoundFromInvalidState(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("MB-GONE").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs("MB-GONE").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CancelReserved(context.Background(), "MB-GONE")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("MB-DONE").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs("MB-DONE").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusConfirmed))
	mock.ExpectRollback()

	_, err = repo.CancelReserved(context.Background(), "MB-DONE")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReservedFreesSlotInSameTx(t *testing.T) {
	mock, repo := newMockRepo(t)
	slotID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("MB-X").
		WillReturnRows(apptRow(Appointment{
			ID:               uuid.New(),
			ConfirmationCode: "MB-X",
			PatientName:      "Asha Rao",
			Mobile:           "9800000001",
			SlotID:           slotID,
			Date:             now,
			SlotTime:         "09:00-09:30",
			ConsultationType: ConsultationFirst,
			Amount:           500,
			Status:           StatusCancelled,
			CreatedAt:        now,
			UpdatedAt:        now,
		}))
	mock.ExpectExec("UPDATE slots").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	snap, err := repo.CancelReserved(context.Background(), "MB-X")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, "Asha Rao", snap.PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireReservationZeroRowsTakesNoAction(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID, slotID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	ok, err := repo.ExpireReservation(context.Background(), apptID, slotID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReminderSentAlreadyFlagged(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkReminderSent(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentRejectsRevivingCancelled(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	slotID := uuid.New()

	// The row is locked, seen as CANCELLED and the transaction rolls back
	// before any write; the freed slot is never re-claimed.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, slot_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status", "slot_id"}).
			AddRow(StatusCancelled, slotID))
	mock.ExpectRollback()

	_, err := repo.UpdateAppointment(context.Background(), id, AdminUpdate{
		Status: StatusConfirmed,
		Amount: 500,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingsMissingRow(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM settings").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSettings(context.Background())
	assert.ErrorIs(t, err, ErrSettingsMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchAppointmentsParameterizesFilter(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM appointments WHERE").
		WithArgs("%asha%", StatusReserved, ConsultationFollowup).
		WillReturnRows(apptRow(Appointment{
			ID:               uuid.New(),
			ConfirmationCode: "MB-X",
			PatientName:      "Asha Rao",
			SlotID:           uuid.New(),
			Date:             time.Now(),
			SlotTime:         "09:00-09:30",
			ConsultationType: ConsultationFollowup,
			Status:           StatusReserved,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}))

	got, err := repo.SearchAppointments(context.Background(), Filter{
		Text:             "asha",
		Status:           StatusReserved,
		ConsultationType: ConsultationFollowup,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Asha Rao", got[0].PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
