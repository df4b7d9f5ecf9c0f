package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotwise/doctor-calendar/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments/open-times", openTimesHandler(cfg.Service))
	r.Get("/appointments/open", listOpenHandler(cfg.Service))
	r.Get("/appointments/taken", listTakenHandler(cfg.Service))
	r.Get("/appointments/patient", patientAppointmentsHandler(cfg.Service))
	r.Post("/appointments/{id}/book", bookAppointmentHandler(cfg.Service))
	r.Delete("/appointments/{id}", retractAppointmentHandler(cfg.Service))

	return r
}
