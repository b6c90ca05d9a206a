// Package metrics collects per-endpoint proxy statistics.
//
// Handlers emit events on a buffered channel with non-blocking sends; a
// single collector goroutine folds them into counters covering:
//   - Requests routed to each endpoint, and how many matched via Referer
//   - Requests that matched no endpoint
//   - Backend unreachability
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - The last liveness probe result
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Endpoint:   "/app",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// On shutdown the collector drains events already queued.
package metrics
