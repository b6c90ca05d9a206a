package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync"
)

// UnreachableError reports that the backend on Port could not be reached.
type UnreachableError struct {
	Port int
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("backend on port %d is unreachable", e.Port)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

type forwardErrKey struct{}

// Backend is a local service reachable at host:port.
type Backend struct {
	port              int
	url               *url.URL
	proxy             *httputil.ReverseProxy
	mutex             sync.Mutex
	activeConnections int
}

func newBackend(host string, port int, transport http.RoundTripper, logger *slog.Logger) *Backend {
	target := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.FlushInterval = -1
	proxy.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		unreachable := &UnreachableError{Port: port, Err: err}
		if p, ok := r.Context().Value(forwardErrKey{}).(*error); ok {
			*p = unreachable
		}
		http.Error(w, unreachable.Error(), http.StatusBadGateway)
	}

	return &Backend{
		port:  port,
		url:   target,
		proxy: proxy,
	}
}

func (b *Backend) Port() int {
	return b.port
}

func (b *Backend) URL() *url.URL {
	return b.url
}

// Forward proxies r to the backend, writing the backend's response (or a
// 502 naming the port) to w. The returned error is an *UnreachableError
// when the backend could not be reached.
func (b *Backend) Forward(w http.ResponseWriter, r *http.Request) error {
	b.incrementConn()
	defer b.decrementConn()

	var forwardErr error
	ctx := context.WithValue(r.Context(), forwardErrKey{}, &forwardErr)
	b.proxy.ServeHTTP(w, r.WithContext(ctx))

	return forwardErr
}

// ActiveConnections returns the number of requests currently in flight.
func (b *Backend) ActiveConnections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.activeConnections
}

func (b *Backend) incrementConn() {
	b.mutex.Lock()
	b.activeConnections++
	b.mutex.Unlock()
}

func (b *Backend) decrementConn() {
	b.mutex.Lock()
	if b.activeConnections > 0 {
		b.activeConnections--
	}
	b.mutex.Unlock()
}
