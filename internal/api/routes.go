package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tripvera/travel-intake/internal/pkg/httputil"
)

// SetupRoutes configures all API routes. Everything under /api/v1 is the
// orchestrator contract and requires the shared webhook secret; health
// probes stay public for load balancers.
func SetupRoutes(h *Handlers, hc *HealthChecker, webhookSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - the orchestrator calls server-to-server, but the read API is
	// also used from internal dashboards.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Webhook-Secret"},
		MaxAge:         300,
	}))

	// Health checks (no secret required)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireWebhookSecret(webhookSecret))

		// Webhook endpoints called by n8n
		r.Post("/ingest", h.HandleIngest)
		r.Post("/simulate-issuance", h.HandleSimulateIssuance)

		// Read-only case API
		r.Get("/cases", h.HandleListCases)
		r.Get("/cases/{caseID}", h.HandleGetCase)
		r.Get("/stats", h.HandleStats)
	})

	return r
}

// requireWebhookSecret rejects any request whose X-Webhook-Secret header
// does not match the configured secret.
func requireWebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Webhook-Secret") != secret {
				httputil.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
