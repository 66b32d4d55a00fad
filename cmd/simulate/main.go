// Command simulate drives concurrent booking, cancellation and read
// traffic against a running api-server. Its main purpose is shaking out
// slot races: at the end it verifies via the store that no slot ever
// ended up with more than one active appointment.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbuddy/booking-service/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	SlotLimit   int
	PostgresDSN string
}

type DataPool struct {
	Slots []uuid.UUID

	mu    sync.RWMutex
	codes []string // confirmation codes created during the run
}

func (dp *DataPool) AddCode(code string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.codes = append(dp.codes, code)
}

func (dp *DataPool) RandomCode(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.codes) == 0 {
		return "", false
	}
	return dp.codes[rng.Intn(len(dp.codes))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.Latencies))
	copy(sorted, om.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, l := range sorted {
		total += l
	}

	avg = total / time.Duration(len(sorted))
	p50 = sorted[len(sorted)/2]
	p95 = sorted[int(float64(len(sorted))*0.95)]
	return avg, p50, p95
}

type Simulator struct {
	cfg     SimConfig
	pool    *DataPool
	client  *http.Client
	booking *OperationMetrics
	cancel  *OperationMetrics
	reads   *OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 5*time.Second)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(context.Background(), pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d free slots", len(dataPool.Slots))

	sim := &Simulator{
		cfg:     cfg,
		pool:    dataPool,
		client:  &http.Client{Timeout: 10 * time.Second},
		booking: &OperationMetrics{},
		cancel:  &OperationMetrics{},
		reads:   &OperationMetrics{},
	}

	sim.Run()
	sim.PrintReport()

	if err := verifyInvariant(context.Background(), pgPool); err != nil {
		log.Fatalf("INVARIANT VIOLATION: %v", err)
	}
	log.Println("invariant holds: every booked slot has exactly one active appointment")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 50),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

// loadDataPool pulls a limited set of free slots; keeping the set small
// relative to worker count maximizes booking contention.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM slots
		WHERE is_booked = FALSE AND slot_date >= CURRENT_DATE
		ORDER BY slot_date, start_time
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dp := &DataPool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Slots = append(dp.Slots, id)
	}
	if len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no free slots to simulate against, run the seeder first")
	}
	return dp, rows.Err()
}

func (s *Simulator) Run() {
	log.Printf("running %d workers for %s against %s", s.cfg.Workers, s.cfg.Duration, s.cfg.APIBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.cfg.BookRatio:
			s.doBooking(ctx, rng)
		case r < s.cfg.BookRatio+s.cfg.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doStatusRead(ctx, rng)
		}

		time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	ct := "FIRST"
	if rng.Intn(3) == 0 {
		ct = "FOLLOWUP"
	}

	body, _ := json.Marshal(map[string]string{
		"slot_id":           slotID.String(),
		"patient_name":      fmt.Sprintf("Sim Patient %d", rng.Intn(10000)),
		"mobile":            fmt.Sprintf("98%08d", rng.Intn(100000000)),
		"address":           "simulated",
		"consultation_type": ct,
	})

	start := time.Now()
	resp, err := s.post(ctx, "/appointments", body)
	latency := time.Since(start)

	if err != nil {
		s.booking.Record(latency, false, false)
		return
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ConfirmationCode string `json:"confirmation_code"`
		}
		if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ConfirmationCode != "" {
			s.pool.AddCode(created.ConfirmationCode)
		}
		s.booking.Record(latency, true, false)
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	code, ok := s.pool.RandomCode(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.post(ctx, "/appointments/"+code+"/cancel", nil)
	latency := time.Since(start)

	if err != nil {
		s.cancel.Record(latency, false, false)
		return
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		s.cancel.Record(latency, true, false)
	case http.StatusConflict, http.StatusNotFound:
		// Already cancelled, confirmed or expired: expected under races.
		s.cancel.Record(latency, false, true)
	default:
		s.cancel.Record(latency, false, false)
	}
}

func (s *Simulator) doStatusRead(ctx context.Context, rng *rand.Rand) {
	code, ok := s.pool.RandomCode(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+"/appointments/"+code, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		s.reads.Record(latency, false, false)
		return
	}
	defer drain(resp)

	s.reads.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	printOperationReport("booking", s.booking)
	printOperationReport("cancel", s.cancel)
	printOperationReport("status-read", s.reads)
}

func printOperationReport(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-12s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		name, om.Total, om.Success, om.Conflict, om.Error, avg, p50, p95)
}

// verifyInvariant checks the core correctness property directly in the
// store: a booked slot has exactly one non-cancelled appointment, and a
// free slot has none.
func verifyInvariant(ctx context.Context, pool *pgxpool.Pool) error {
	var violations int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM slots s
		LEFT JOIN (
			SELECT slot_id, count(*) AS active
			FROM appointments
			WHERE status <> 'CANCELLED'
			GROUP BY slot_id
		) a ON a.slot_id = s.id
		WHERE (s.is_booked AND COALESCE(a.active, 0) <> 1)
		   OR (NOT s.is_booked AND COALESCE(a.active, 0) <> 0)
	`).Scan(&violations)
	if err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("%d slots violate the booked/active-appointment pairing", violations)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
