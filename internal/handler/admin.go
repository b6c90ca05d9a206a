package handler

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/portrouter/internal/circuitbreaker"
	"github.com/angeloszaimis/portrouter/internal/metrics"
	"github.com/angeloszaimis/portrouter/internal/routing"
)

const (
	ActionAdd    = "add"
	ActionDelete = "delete"
	ActionRename = "rename"
)

const maxUpdateBody = 1 << 20

// ErrMalformedRequest reports an admin payload that could not be decoded or
// names an unknown action.
var ErrMalformedRequest = errors.New("malformed request")

//go:embed static/index.html
var adminPage []byte

// LivenessProber reports which ports answer.
type LivenessProber interface {
	ProbeAll(ctx context.Context, ports []int) map[int]bool
}

// RouteStatus is one entry of the admin read response.
type RouteStatus struct {
	Port   int  `json:"port"`
	Online bool `json:"online"`
}

// UpdateRequest is the admin write payload. Port may be a JSON number or a
// numeric string.
type UpdateRequest struct {
	Action      string `json:"action"`
	Endpoint    string `json:"endpoint,omitempty"`
	Port        any    `json:"port,omitempty"`
	OldEndpoint string `json:"oldEndpoint,omitempty"`
	NewEndpoint string `json:"newEndpoint,omitempty"`
}

type AdminHandler struct {
	logger           *slog.Logger
	table            *routing.Table
	prober           LivenessProber
	breakers         *circuitbreaker.Registry
	metricsCollector *metrics.Collector
}

func NewAdminHandler(logger *slog.Logger, table *routing.Table, prober LivenessProber, breakers *circuitbreaker.Registry, collector *metrics.Collector) *AdminHandler {
	return &AdminHandler{
		logger:           logger,
		table:            table,
		prober:           prober,
		breakers:         breakers,
		metricsCollector: collector,
	}
}

// ServePage serves the embedded admin page.
func (a *AdminHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(adminPage)
}

// ServeRoutes writes every route with a freshly probed liveness flag.
func (a *AdminHandler) ServeRoutes(w http.ResponseWriter, r *http.Request) {
	routes := a.table.List()

	ports := make([]int, 0, len(routes))
	for _, port := range routes {
		ports = append(ports, port)
	}
	online := a.prober.ProbeAll(r.Context(), ports)

	status := make(map[string]RouteStatus, len(routes))
	for endpoint, port := range routes {
		status[endpoint] = RouteStatus{Port: port, Online: online[port]}

		if online[port] && a.breakers != nil {
			a.breakers.MarkAlive(port)
		}
		a.metricsCollector.Emit(metrics.MetricEvent{
			Type:     metrics.EventLivenessProbed,
			Endpoint: endpoint,
			Online:   online[port],
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logger.Error("Failed to encode routes", slog.Any("err", err))
	}
}

// ServeUpdate applies one add, delete, or rename.
func (a *AdminHandler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		a.writeError(w, err)
		return
	}

	if err := a.apply(req); err != nil {
		a.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (a *AdminHandler) apply(req UpdateRequest) error {
	switch req.Action {
	case ActionAdd:
		port, err := parsePort(req.Port)
		if err != nil {
			return err
		}
		return a.table.Set(req.Endpoint, port)
	case ActionDelete:
		return a.table.Delete(req.Endpoint)
	case ActionRename:
		return a.table.Rename(req.OldEndpoint, req.NewEndpoint)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrMalformedRequest, req.Action)
	}
}

func (a *AdminHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrMalformedRequest),
		errors.Is(err, routing.ErrInvalidEndpoint),
		errors.Is(err, routing.ErrInvalidPort):
		status = http.StatusBadRequest
	case errors.Is(err, routing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, routing.ErrPersistence):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error("Admin update failed", slog.Any("err", err))
	} else {
		a.logger.Info("Admin update rejected", slog.Any("err", err))
	}

	http.Error(w, err.Error(), status)
}

func decodeUpdate(body io.Reader) (UpdateRequest, error) {
	var req UpdateRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Action,
			validation.Required,
			validation.In(ActionAdd, ActionDelete, ActionRename),
		),
	)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	return req, nil
}

func parsePort(value any) (int, error) {
	var port int

	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("%w %v: must be an integer", routing.ErrInvalidPort, v)
		}
		port = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w %q: must be numeric", routing.ErrInvalidPort, v)
		}
		port = n
	case nil:
		return 0, fmt.Errorf("%w: port is required", routing.ErrInvalidPort)
	default:
		return 0, fmt.Errorf("%w: unexpected %T", routing.ErrInvalidPort, value)
	}

	if err := routing.ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}
