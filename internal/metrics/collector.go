package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRouteMatched       EventType = "route_matched"
	EventRouteMissed        EventType = "route_missed"
	EventResponseCompleted  EventType = "response_completed"
	EventBackendUnreachable EventType = "backend_unreachable"
	EventLivenessProbed     EventType = "liveness_probed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Endpoint   string
	Referer    bool
	Duration   time.Duration
	StatusCode int
	Online     bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event, dropping it if the buffer is full. Safe on a nil
// Collector.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRouteMatched:
		c.metrics.RecordMatch(event.Endpoint, event.Referer)

	case EventRouteMissed:
		c.metrics.RecordMiss()

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Endpoint, event.Duration, event.StatusCode)

	case EventBackendUnreachable:
		c.metrics.RecordUnreachable(event.Endpoint)

	case EventLivenessProbed:
		c.metrics.UpdateLiveness(event.Endpoint, event.Online)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}
