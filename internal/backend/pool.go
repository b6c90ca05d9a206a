package backend

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Pool hands out one Backend per port, all sharing a single transport.
type Pool struct {
	mutex     sync.RWMutex
	backends  map[int]*Backend
	host      string
	transport http.RoundTripper
	logger    *slog.Logger
}

func NewPool(host string, logger *slog.Logger) *Pool {
	return &Pool{
		backends:  make(map[int]*Backend),
		host:      host,
		transport: newTransport(),
		logger:    logger,
	}
}

// Get returns the Backend for port, creating it on first use.
func (p *Pool) Get(port int) *Backend {
	p.mutex.RLock()
	b, exists := p.backends[port]
	p.mutex.RUnlock()

	if exists {
		return b
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if b, exists = p.backends[port]; exists {
		return b
	}

	b = newBackend(p.host, port, p.transport, p.logger)
	p.backends[port] = b
	return b
}

// ActiveConnections reports in-flight requests per port.
func (p *Pool) ActiveConnections() map[int]int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	active := make(map[int]int, len(p.backends))
	for port, b := range p.backends {
		active[port] = b.ActiveConnections()
	}
	return active
}

// newTransport dials backends directly, ignoring proxy environment
// variables, and leaves proxied requests without an overall deadline.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
