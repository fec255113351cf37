package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/auth"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// NewRouter builds the API router with its middleware stack.
func NewRouter(h *BookingHandler, verifier *auth.Verifier, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Tracing)                 // server span per request
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)                    // permissive CORS

	// Public
	r.Get("/health", HealthCheck)
	r.Get("/venues/{venueID}/availability", h.GetAvailability)

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(verifier))

		r.With(RequireRole(model.RoleOwner, model.RoleAdmin)).
			Post("/courts/{courtID}/slots/generate", h.GenerateSlots)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/", h.ListMyBookings)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/confirm", h.ConfirmBooking)
		})

		r.Get("/venues/{venueID}/bookings", h.ListVenueBookings)
		r.With(RequireRole(model.RoleAdmin)).Post("/admin/sweep", h.Sweep)
	})

	return r
}
