package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jeevancare/appointment-platform/internal/appointments"
	httpmiddleware "github.com/jeevancare/appointment-platform/internal/http/middleware"
	"github.com/jeevancare/appointment-platform/internal/payments"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	PaymentsHandler     *payments.Handler
	MetricsHandler      http.Handler
	PatientJWTSecret    string
	CORSAllowedOrigins  []string

	// Requests per second and burst for the booking and verify endpoints.
	// Zero disables rate limiting.
	WriteRateLimit float64
	WriteRateBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Patient API, behind the session token.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.PatientJWT(cfg.PatientJWTSecret))

		writeLimited := func(next http.Handler) http.Handler { return next }
		if cfg.WriteRateLimit > 0 && cfg.WriteRateBurst > 0 {
			writeLimited = httpmiddleware.RateLimit(cfg.WriteRateLimit, cfg.WriteRateBurst)
		}

		api.Get("/doctors/{doctorID}/slots", cfg.AppointmentsHandler.AvailableSlots)

		api.Route("/appointments", func(appts chi.Router) {
			appts.Get("/", cfg.AppointmentsHandler.ListMine)
			appts.With(writeLimited).Post("/", cfg.AppointmentsHandler.BookSlot)
			appts.Post("/{appointmentID}/cancel", cfg.AppointmentsHandler.Cancel)
		})

		api.Route("/payments", func(pay chi.Router) {
			pay.Get("/key", cfg.PaymentsHandler.Key)
			pay.With(writeLimited).Post("/order", cfg.PaymentsHandler.CreateOrder)
			pay.With(writeLimited).Post("/verify", cfg.PaymentsHandler.Verify)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
