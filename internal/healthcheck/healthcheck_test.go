package healthcheck_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/portrouter/internal/healthcheck"
)

var _ = Describe("Prober", func() {
	var (
		prober *healthcheck.Prober
		log    *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		prober = healthcheck.NewProber("127.0.0.1", 500*time.Millisecond, log)
	})

	newBackend := func(h http.HandlerFunc) (*httptest.Server, int) {
		srv := httptest.NewServer(h)
		DeferCleanup(srv.Close)
		return srv, portOf(srv.URL)
	}

	It("should report a 200 backend as online using HEAD", func() {
		methods := make(chan string, 1)
		_, port := newBackend(func(w http.ResponseWriter, r *http.Request) {
			methods <- r.Method + " " + r.URL.Path
			w.WriteHeader(http.StatusOK)
		})

		Expect(prober.Probe(context.Background(), port)).To(BeTrue())
		Expect(<-methods).To(Equal("HEAD /"))
	})

	It("should report a 404 backend as online", func() {
		_, port := newBackend(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		Expect(prober.Probe(context.Background(), port)).To(BeTrue())
	})

	It("should not follow redirects", func() {
		_, port := newBackend(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "http://127.0.0.1:1/elsewhere", http.StatusFound)
		})
		Expect(prober.Probe(context.Background(), port)).To(BeTrue())
	})

	It("should report a 500 backend as offline", func() {
		_, port := newBackend(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		Expect(prober.Probe(context.Background(), port)).To(BeFalse())
	})

	It("should report a closed port as offline", func() {
		Expect(prober.Probe(context.Background(), closedPort())).To(BeFalse())
	})

	It("should report a slow backend as offline after the timeout", func() {
		release := make(chan struct{})
		_, port := newBackend(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		start := time.Now()
		Expect(prober.Probe(context.Background(), port)).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	})

	It("should probe many ports at once", func() {
		_, up := newBackend(func(w http.ResponseWriter, r *http.Request) {})
		down := closedPort()

		status := prober.ProbeAll(context.Background(), []int{up, down, up})
		Expect(status).To(Equal(map[int]bool{up: true, down: false}))
	})
})

func portOf(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		panic(err)
	}
	return port
}

func closedPort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}
