package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/portrouter/internal/backend"
	"github.com/angeloszaimis/portrouter/internal/circuitbreaker"
	"github.com/angeloszaimis/portrouter/internal/handler"
	"github.com/angeloszaimis/portrouter/internal/metrics"
)

// setupAdminRouter serves the admin API both at the root and under the
// reserved /gui prefix.
func setupAdminRouter(log *slog.Logger, admin *handler.AdminHandler, metricsCollector *metrics.Collector, backends func() map[int]metrics.BackendStatus) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(handler.RequestLogger(log))

	r.Get("/", admin.ServePage)
	r.Get("/gui", admin.ServePage)
	r.Get("/gui/", admin.ServePage)

	for _, prefix := range []string{"", "/gui"} {
		r.Get(prefix+"/get", admin.ServeRoutes)
		r.Post(prefix+"/update", admin.ServeUpdate)
		r.Get(prefix+"/metrics", metricsCollector.Handler(backends))
	}

	return r
}

// backendStatus merges in-flight counts and breaker states per port.
func backendStatus(pool *backend.Pool, breakers *circuitbreaker.Registry) func() map[int]metrics.BackendStatus {
	return func() map[int]metrics.BackendStatus {
		status := make(map[int]metrics.BackendStatus)

		for port, inFlight := range pool.ActiveConnections() {
			s := status[port]
			s.InFlight = inFlight
			status[port] = s
		}
		for port, state := range breakers.Stats() {
			s := status[port]
			s.Breaker = state.String()
			status[port] = s
		}

		return status
	}
}
