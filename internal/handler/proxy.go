package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/portrouter/internal/backend"
	"github.com/angeloszaimis/portrouter/internal/circuitbreaker"
	"github.com/angeloszaimis/portrouter/internal/metrics"
	"github.com/angeloszaimis/portrouter/internal/resolver"
	"github.com/angeloszaimis/portrouter/internal/routing"
)

const requestIDHeader = "X-Request-Id"

type ProxyHandler struct {
	logger           *slog.Logger
	resolver         *resolver.Resolver
	backends         *backend.Pool
	breakers         *circuitbreaker.Registry
	metricsCollector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func NewProxyHandler(logger *slog.Logger, res *resolver.Resolver, backends *backend.Pool, breakers *circuitbreaker.Registry, collector *metrics.Collector) *ProxyHandler {
	return &ProxyHandler{
		logger:           logger,
		resolver:         res,
		backends:         backends,
		breakers:         breakers,
		metricsCollector: collector,
	}
}

func (p *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if routing.IsReserved(path) {
		p.logger.Debug("Rejected reserved path", slog.String("path", path))
		http.NotFound(w, r)
		return
	}

	match, ok := p.resolver.Resolve(path, r.Referer())
	if !ok {
		p.metricsCollector.Emit(metrics.MetricEvent{Type: metrics.EventRouteMissed})
		p.logger.Debug("No route matched",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.String("referer", r.Referer()))
		http.Error(w, "no route for "+path, http.StatusNotFound)
		return
	}

	p.metricsCollector.Emit(metrics.MetricEvent{
		Type:     metrics.EventRouteMatched,
		Endpoint: match.Endpoint,
		Referer:  match.Kind == resolver.MatchReferer,
	})

	out := r.Clone(r.Context())
	out.URL.Path, out.URL.RawPath = forwardPaths(match, r.URL)

	requestID := out.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		out.Header.Set(requestIDHeader, requestID)
	}

	log := p.logger.With(
		slog.String("request_id", requestID),
		slog.String("endpoint", match.Endpoint),
		slog.Int("port", match.Port))

	breaker := p.breakers.GetBreaker(match.Port)
	if !breaker.Allow() {
		err := &backend.UnreachableError{Port: match.Port}
		p.metricsCollector.Emit(metrics.MetricEvent{Type: metrics.EventBackendUnreachable, Endpoint: match.Endpoint})
		log.Warn("Circuit open, not forwarding", slog.String("path", path))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	// The reverse proxy panics with http.ErrAbortHandler when a response is
	// cut mid-body; the breaker must not be left holding a trial open.
	defer func() {
		if rec := recover(); rec != nil {
			breaker.Release()
			log.Debug("Response aborted mid-body", slog.Any("reason", rec))
			panic(rec)
		}
	}()

	log.Debug("Forwarding request",
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.String("match", match.Kind.String()),
		slog.String("forward_path", out.URL.Path))

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	err := p.backends.Get(match.Port).Forward(wrapped, out)
	duration := time.Since(start)

	switch {
	case err == nil:
		breaker.RecordSuccess()
	case r.Context().Err() != nil:
		breaker.Release()
		log.Debug("Caller went away before the backend answered", slog.Any("err", err))
	default:
		breaker.RecordFailure()
		p.metricsCollector.Emit(metrics.MetricEvent{Type: metrics.EventBackendUnreachable, Endpoint: match.Endpoint})
		log.Warn("Backend unreachable", slog.Any("err", err))
	}

	p.metricsCollector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Endpoint:   match.Endpoint,
		Duration:   duration,
		StatusCode: wrapped.statusCode,
	})

	log.Debug("Request completed",
		slog.Int("status", wrapped.statusCode),
		slog.Duration("duration", duration))
}

// forwardPaths returns the decoded and raw paths for the backend request.
// Endpoints contain no escapable characters, so the prefix is the same in
// both forms.
func forwardPaths(match resolver.Match, u *url.URL) (string, string) {
	path := match.ForwardPath(u.Path)

	rawPath := ""
	if u.RawPath != "" {
		rawPath = match.ForwardPath(u.RawPath)
	}

	return path, rawPath
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController, which the
// reverse proxy uses to flush streamed responses.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
