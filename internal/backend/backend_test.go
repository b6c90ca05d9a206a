package backend_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/portrouter/internal/backend"
)

var _ = Describe("Backend", func() {
	var (
		pool *backend.Pool
		log  *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		pool = backend.NewPool("127.0.0.1", log)
	})

	Describe("Pool", func() {
		It("should return the same backend for a port", func() {
			Expect(pool.Get(8080)).To(BeIdenticalTo(pool.Get(8080)))
		})

		It("should return distinct backends for distinct ports", func() {
			Expect(pool.Get(8080)).NotTo(BeIdenticalTo(pool.Get(8081)))
		})

		It("should target the configured host", func() {
			b := pool.Get(8080)
			Expect(b.Port()).To(Equal(8080))
			Expect(b.URL().String()).To(Equal("http://127.0.0.1:8080"))
		})

		It("should be safe for concurrent use", func() {
			var wg sync.WaitGroup
			got := make([]*backend.Backend, 50)
			for i := range got {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got[i] = pool.Get(9000)
				}()
			}
			wg.Wait()
			for _, b := range got {
				Expect(b).To(BeIdenticalTo(got[0]))
			}
		})
	})

	Describe("Forward", func() {
		It("should pass method, path, query, headers and body through", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				w.Header().Set("X-Seen", r.Method+" "+r.URL.RequestURI()+" "+r.Header.Get("X-Custom"))
				w.WriteHeader(http.StatusCreated)
				w.Write(body)
			}))
			defer srv.Close()

			req := httptest.NewRequest(http.MethodPost, "/items?a=1", strings.NewReader("payload"))
			req.Header.Set("X-Custom", "yes")
			w := httptest.NewRecorder()

			err := pool.Get(portOf(srv.URL)).Forward(w, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Header().Get("X-Seen")).To(Equal("POST /items?a=1 yes"))
			Expect(w.Body.String()).To(Equal("payload"))
		})

		It("should report an unreachable backend with a 502 naming the port", func() {
			port := closedPort()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			err := pool.Get(port).Forward(w, req)

			var unreachable *backend.UnreachableError
			Expect(errors.As(err, &unreachable)).To(BeTrue())
			Expect(unreachable.Port).To(Equal(port))
			Expect(w.Code).To(Equal(http.StatusBadGateway))
			Expect(w.Body.String()).To(ContainSubstring(strconv.Itoa(port)))
		})

		It("should track in-flight requests", func() {
			entered := make(chan struct{})
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(entered)
				<-release
			}))
			defer srv.Close()

			b := pool.Get(portOf(srv.URL))
			done := make(chan struct{})
			go func() {
				defer close(done)
				b.Forward(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			}()

			Eventually(entered).Should(BeClosed())
			Expect(b.ActiveConnections()).To(Equal(1))
			Expect(pool.ActiveConnections()).To(HaveKeyWithValue(b.Port(), 1))

			close(release)
			Eventually(done, time.Second).Should(BeClosed())
			Expect(b.ActiveConnections()).To(Equal(0))
		})
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
