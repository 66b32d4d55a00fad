package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbuddy/booking-service/internal/booking"
	"github.com/medbuddy/booking-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 5*time.Second)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	slots, err := seedSlots(context.Background(), pool, 14)
	if err != nil {
		log.Fatalf("seed slots: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, slots, 10); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedSlots creates two consultation windows per day for the next `days`
// days, split into 30-minute slots.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, days int) ([]uuid.UUID, error) {
	log.Printf("seeding slots for %d days", days)

	windows := []struct {
		from, to int // hours, half-open
	}{
		{9, 12},
		{17, 19},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	today := time.Now()

	for d := 0; d < days; d++ {
		date := today.AddDate(0, 0, d)
		for _, w := range windows {
			for h := w.from; h < w.to; h++ {
				for _, m := range []int{0, 30} {
					id := uuid.New()
					start := fmt.Sprintf("%02d:%02d", h, m)
					end := fmt.Sprintf("%02d:%02d", h, m+29)

					_, err := tx.Exec(ctx, `
						INSERT INTO slots (id, slot_date, start_time, end_time, is_booked, created_at, updated_at)
						VALUES ($1, $2, $3, $4, FALSE, now(), now())
					`, id, date, start, end)
					if err != nil {
						return nil, err
					}
					ids = append(ids, id)
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("slots seeded: %d", len(ids))
	return ids, nil
}

// seedAppointments books the first `count` slots with fake patients so
// the admin dashboard has something to show.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, slots []uuid.UUID, count int) error {
	if count > len(slots) {
		count = len(slots)
	}
	log.Printf("seeding %d appointments", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		slotID := slots[i]

		var (
			slotDate   time.Time
			start, end string
		)
		err := tx.QueryRow(ctx, `
			UPDATE slots SET is_booked = TRUE, updated_at = now()
			WHERE id = $1 AND is_booked = FALSE
			RETURNING slot_date, start_time, end_time
		`, slotID).Scan(&slotDate, &start, &end)
		if err != nil {
			return err
		}

		ct := booking.ConsultationFirst
		amount := int64(500)
		if i%3 == 0 {
			ct = booking.ConsultationFollowup
			amount = 300
		}

		code := booking.NewConfirmationCode(time.Now().Add(time.Duration(i) * time.Second))

		_, err = tx.Exec(ctx, `
			INSERT INTO appointments (
				id, confirmation_code, patient_name, mobile, address, slot_id,
				appointment_date, slot_time, consultation_type, amount, status,
				reminder_sent, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'RESERVED', FALSE, now(), now())
		`, uuid.New(), code, gofakeit.Name(), gofakeit.Phone(), gofakeit.Address().Address,
			slotID, slotDate, start+"-"+end, ct, amount)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
