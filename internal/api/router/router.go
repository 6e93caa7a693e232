package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/advice"
	"github.com/wolfman30/mediq-platform/internal/appointments"
	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/doctors"
	httpmiddleware "github.com/wolfman30/mediq-platform/internal/http/middleware"
	"github.com/wolfman30/mediq-platform/internal/http/respond"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	AuthSecret     string
	CORS           httpmiddleware.CORSConfig
	RateLimiter    *httpmiddleware.RateLimiter
	MetricsHandler http.Handler
	HealthChecks   map[string]Pinger

	Appointments *appointments.Handler
	Doctors      *doctors.Handler
	Accounts     *accounts.Handler
	Advice       *advice.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORS))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.Authenticate(cfg.AuthSecret))
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		anyRole := httpmiddleware.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin)
		patient := httpmiddleware.RequireRole(auth.RolePatient)
		doctor := httpmiddleware.RequireRole(auth.RoleDoctor)

		api.Group(func(r chi.Router) {
			r.Use(anyRole)
			r.Get("/doctors", cfg.Doctors.List)
			r.Get("/doctors/{doctorID}", cfg.Doctors.Get)
			r.Get("/doctors/{doctorID}/slots", cfg.Appointments.ListSlots)
			r.Get("/me", cfg.Accounts.Me)
		})

		api.With(httpmiddleware.RequireRole(auth.RoleDoctor, auth.RoleAdmin)).Post("/slots", cfg.Appointments.CreateSlot)

		api.Group(func(r chi.Router) {
			r.Use(patient)
			r.Post("/appointments/book", cfg.Appointments.Book)
			r.Post("/appointments/book-general", cfg.Appointments.BookGeneral)
			r.Get("/appointments/my", cfg.Appointments.ListMine)
			r.Put("/appointments/{id}/pay", cfg.Appointments.Pay)
			r.Put("/appointments/{id}/cancel", cfg.Appointments.Cancel)
			r.Post("/reviews", cfg.Appointments.SubmitReview)
			r.Post("/subscription/upgrade", cfg.Accounts.Upgrade)
			if cfg.Advice != nil {
				r.Post("/advice", cfg.Advice.Ask)
			}
		})

		api.Route("/doctor", func(r chi.Router) {
			r.Use(doctor)
			r.Get("/requests", cfg.Appointments.Requests)
			r.Get("/queue", cfg.Appointments.Queue)
			r.Put("/queue/{id}/claim", cfg.Appointments.Claim)
			r.Get("/appointments", cfg.Appointments.Confirmed)
			r.Put("/appointments/{id}/{action}", cfg.Appointments.DoctorAction)
			r.Get("/stats", cfg.Doctors.Stats)
			r.Put("/me", cfg.Doctors.UpdateMe)
		})
	})

	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]string{"status": "ok"}
		status := http.StatusOK
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				body[name] = "unavailable"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		respond.JSON(w, status, body)
	}
}
