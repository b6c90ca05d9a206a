package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 2 * time.Second

// Prober probes backends listening on host.
type Prober struct {
	client *http.Client
	host   string
	logger *slog.Logger
}

func NewProber(host string, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             nil,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		host:   host,
		logger: logger,
	}
}

// Probe sends HEAD / to the backend on port. Any response below 500 counts
// as online; errors, timeouts, and 5xx count as offline.
func (p *Prober) Probe(ctx context.Context, port int) bool {
	target := "http://" + net.JoinHostPort(p.host, strconv.Itoa(port)) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}

	res, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Liveness probe failed",
			slog.Int("port", port),
			slog.Any("err", err))
		return false
	}
	defer res.Body.Close()

	return res.StatusCode < http.StatusInternalServerError
}

// ProbeAll probes every distinct port concurrently.
func (p *Prober) ProbeAll(ctx context.Context, ports []int) map[int]bool {
	var (
		mutex  sync.Mutex
		status = make(map[int]bool, len(ports))
		group  errgroup.Group
	)

	for _, port := range ports {
		mutex.Lock()
		_, seen := status[port]
		status[port] = false
		mutex.Unlock()
		if seen {
			continue
		}

		group.Go(func() error {
			online := p.Probe(ctx, port)
			mutex.Lock()
			status[port] = online
			mutex.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return status
}
