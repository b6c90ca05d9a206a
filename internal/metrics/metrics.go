package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	requests       map[string]int64
	refererMatches map[string]int64
	unreachable    map[string]int64
	responseTimes  map[string][]time.Duration
	statusCodes    map[string]map[int]int64
	liveness       map[string]bool
	unmatched      int64
	startTime      time.Time
}

type Snapshot struct {
	TotalRequests int64                      `json:"total_requests"`
	Unmatched     int64                      `json:"unmatched"`
	Uptime        time.Duration              `json:"uptime"`
	Endpoints     map[string]EndpointMetrics `json:"endpoints"`
	Backends      map[int]BackendStatus      `json:"backends,omitempty"`
}

// BackendStatus is the live state of one backend port: requests currently
// being forwarded and, when a breaker exists, its state.
type BackendStatus struct {
	InFlight int    `json:"in_flight"`
	Breaker  string `json:"breaker,omitempty"`
}

type EndpointMetrics struct {
	Requests       int64         `json:"requests"`
	RefererMatches int64         `json:"referer_matches"`
	Unreachable    int64         `json:"unreachable"`
	Online         *bool         `json:"online,omitempty"`
	AvgResponse    time.Duration `json:"avg_response"`
	P50Response    time.Duration `json:"p50_response"`
	P95Response    time.Duration `json:"p95_response"`
	P99Response    time.Duration `json:"p99_response"`
	StatusCodes    map[int]int64 `json:"status_codes,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:       make(map[string]int64),
		refererMatches: make(map[string]int64),
		unreachable:    make(map[string]int64),
		responseTimes:  make(map[string][]time.Duration),
		statusCodes:    make(map[string]map[int]int64),
		liveness:       make(map[string]bool),
		startTime:      time.Now(),
	}
}

func (m *Metrics) RecordMatch(endpoint string, viaReferer bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[endpoint]++
	if viaReferer {
		m.refererMatches[endpoint]++
	}
}

func (m *Metrics) RecordMiss() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.unmatched++
}

func (m *Metrics) RecordUnreachable(endpoint string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.unreachable[endpoint]++
}

func (m *Metrics) RecordResponse(endpoint string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[endpoint] = append(m.responseTimes[endpoint], duration)
	if len(m.responseTimes[endpoint]) > maxSamples {
		m.responseTimes[endpoint] = m.responseTimes[endpoint][1:]
	}

	if m.statusCodes[endpoint] == nil {
		m.statusCodes[endpoint] = make(map[int]int64)
	}
	m.statusCodes[endpoint][statusCode]++
}

func (m *Metrics) UpdateLiveness(endpoint string, online bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.liveness[endpoint] = online
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Unmatched: m.unmatched,
		Uptime:    time.Since(m.startTime),
		Endpoints: make(map[string]EndpointMetrics),
	}
	snap.TotalRequests = m.unmatched

	seen := make(map[string]bool)
	for _, set := range []map[string]int64{m.requests, m.unreachable} {
		for endpoint := range set {
			seen[endpoint] = true
		}
	}
	for endpoint := range m.responseTimes {
		seen[endpoint] = true
	}
	for endpoint := range m.liveness {
		seen[endpoint] = true
	}

	for endpoint := range seen {
		snap.TotalRequests += m.requests[endpoint]

		em := EndpointMetrics{
			Requests:       m.requests[endpoint],
			RefererMatches: m.refererMatches[endpoint],
			Unreachable:    m.unreachable[endpoint],
		}

		if online, ok := m.liveness[endpoint]; ok {
			em.Online = &online
		}

		if codes := m.statusCodes[endpoint]; len(codes) > 0 {
			em.StatusCodes = make(map[int]int64, len(codes))
			for code, n := range codes {
				em.StatusCodes[code] = n
			}
		}

		durations := m.responseTimes[endpoint]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			em.AvgResponse = average(sorted)
			em.P50Response = percentile(sorted, 0.50)
			em.P95Response = percentile(sorted, 0.95)
			em.P99Response = percentile(sorted, 0.99)
		}

		snap.Endpoints[endpoint] = em
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
