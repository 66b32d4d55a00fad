package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medbuddy/booking-service/internal/booking"
	"github.com/medbuddy/booking-service/internal/config"
	"github.com/medbuddy/booking-service/internal/db"
	"github.com/medbuddy/booking-service/internal/metrics"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("sweeper starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running sweeper in env=%s expiry_interval=%s reminder_interval=%s grace=%s lead=%s",
		cfg.Env, cfg.ExpiryInterval, cfg.ReminderInterval, cfg.ReservationGrace, cfg.ReminderLead)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.StoreTimeout)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	registry := prometheus.NewRegistry()

	repo := booking.NewPgRepository(pgPool)
	sweeper := booking.NewSweeper(repo, cfg.ReservationGrace, cfg.ReminderLead, metrics.NewSweepMetrics(registry))

	// Metrics endpoint for the worker process.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	// The two sweeps run on independent tickers; stopping the process
	// cancels rootCtx and cleanly stops both.
	go func() {
		defer wg.Done()
		runLoop(rootCtx, "expiry", cfg.ExpiryInterval, func(ctx context.Context, now time.Time) (int, error) {
			return sweeper.ExpireStale(ctx, now)
		})
	}()
	go func() {
		defer wg.Done()
		runLoop(rootCtx, "reminder", cfg.ReminderInterval, func(ctx context.Context, now time.Time) (int, error) {
			return sweeper.FlagDueReminders(ctx, now)
		})
	}()

	wg.Wait()
	log.Println("sweeper stopped")
}

func runLoop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context, time.Time) (int, error)) {
	// Run once at startup
	runOnce(ctx, name, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutdown signal received, stopping %s sweep", name)
			return
		case <-ticker.C:
			runOnce(ctx, name, sweep)
		}
	}
}

func runOnce(ctx context.Context, name string, sweep func(context.Context, time.Time) (int, error)) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := sweep(runCtx, start)
	if err != nil {
		log.Printf("sweep=%s error=%v", name, err)
		return
	}
	log.Printf("sweep=%s processed=%d duration=%s", name, n, time.Since(start))
}
