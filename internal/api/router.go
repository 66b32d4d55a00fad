package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medbuddy/booking-service/internal/booking"
	"github.com/medbuddy/booking-service/internal/metrics"
)

type RouterConfig struct {
	Service  *booking.Service
	Admin    *booking.Admin
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
	Registry *prometheus.Registry
	HTTP     *metrics.HTTPMetrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	if cfg.HTTP != nil {
		r.Use(MetricsMiddleware(cfg.HTTP))
	}

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// Patient endpoints
	r.Get("/slots", listSlotsHandler(cfg.Service))
	r.Post("/appointments", bookHandler(cfg.Service))
	r.Get("/appointments", historyHandler(cfg.Service))
	r.Get("/appointments/{code}", statusHandler(cfg.Service))
	r.Post("/appointments/{code}/cancel", cancelHandler(cfg.Service))

	// Admin endpoints. Authentication is handled by the deployment edge,
	// out of scope here.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/slots", createSlotHandler(cfg.Admin))
		r.Get("/appointments", searchAppointmentsHandler(cfg.Admin))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Admin))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Admin))
		r.Get("/settings", getSettingsHandler(cfg.Admin))
		r.Put("/settings", updateSettingsHandler(cfg.Admin))
	})

	return r
}
