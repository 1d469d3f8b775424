/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. Authenticate: user header -> timeoff.User (everything but /api/health)

ROUTE GROUPS:
  /api/health           Liveness
  /api/me               Authenticated user
  /api/requests/*       Requests and approval workflow
  /api/calendar/*       Calendar annotations and selection
  /api/holidays         Holiday list

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", h.UserHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/me", h.Me)

			// Request routes
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.CreateRequest)
				r.Delete("/{id}", h.DeleteRequest)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
			})

			// Calendar routes
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/", h.GetCalendar)
				r.Post("/tap", h.Tap)
			})

			r.Get("/holidays", h.ListHolidays)
		})
	})

	return r
}
