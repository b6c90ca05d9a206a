package routing_test

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/portrouter/internal/routing"
	"github.com/angeloszaimis/portrouter/internal/store"
)

type memStore struct {
	mutex   sync.Mutex
	data    map[string]int
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load() (map[string]int, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.data), nil
}

func (m *memStore) Save(routes map[string]int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = maps.Clone(routes)
	return nil
}

func (m *memStore) Close() error { return nil }

var _ = Describe("Table", func() {
	var (
		st    *memStore
		table *routing.Table
		log   *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		st = &memStore{data: map[string]int{}}
		table = routing.NewTable(st, log)
	})

	Describe("Load", func() {
		It("should load stored routes", func() {
			st.data = map[string]int{"/app": 8080, "/app/api": 9090}
			Expect(table.Load()).To(Succeed())
			Expect(table.List()).To(Equal(map[string]int{"/app": 8080, "/app/api": 9090}))
		})

		It("should start empty when the store is unreadable", func() {
			st.loadErr = store.ErrUnreadable
			Expect(table.Load()).To(Succeed())
			Expect(table.Len()).To(Equal(0))
		})

		It("should fail on corrupt content", func() {
			st.loadErr = store.ErrCorrupt
			Expect(table.Load()).To(MatchError(store.ErrCorrupt))
		})

		It("should treat invalid stored endpoints as corrupt", func() {
			st.data = map[string]int{"/gui": 8080}
			Expect(table.Load()).To(MatchError(store.ErrCorrupt))
		})

		It("should treat non-canonical stored endpoints as corrupt", func() {
			st.data = map[string]int{"App": 8080}
			Expect(table.Load()).To(MatchError(store.ErrCorrupt))
		})

		It("should treat out of range stored ports as corrupt", func() {
			st.data = map[string]int{"/app": 70000}
			Expect(table.Load()).To(MatchError(store.ErrCorrupt))
		})
	})

	Describe("Set", func() {
		It("should store a route readable with Get", func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
			port, ok := table.Get("/app")
			Expect(ok).To(BeTrue())
			Expect(port).To(Equal(8080))
		})

		It("should canonicalize the endpoint", func() {
			Expect(table.Set("  MyApp ", 3000)).To(Succeed())
			port, ok := table.Get("/myapp")
			Expect(ok).To(BeTrue())
			Expect(port).To(Equal(3000))
		})

		It("should overwrite an existing route", func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
			Expect(table.Set("/app", 8081)).To(Succeed())
			port, _ := table.Get("/app")
			Expect(port).To(Equal(8081))
		})

		It("should persist after every mutation", func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
			Expect(st.data).To(Equal(map[string]int{"/app": 8080}))
			Expect(st.saves).To(Equal(1))
		})

		It("should reject an invalid endpoint and leave the table unchanged", func() {
			Expect(table.Set("My App!", 8080)).To(MatchError(routing.ErrInvalidEndpoint))
			Expect(table.Len()).To(Equal(0))
			Expect(st.saves).To(Equal(0))
		})

		It("should reject the reserved endpoint", func() {
			Expect(table.Set("GUI", 8080)).To(MatchError(routing.ErrInvalidEndpoint))
		})

		It("should reject an out of range port", func() {
			Expect(table.Set("/app", 70000)).To(MatchError(routing.ErrInvalidPort))
			Expect(table.Len()).To(Equal(0))
		})

		It("should keep the in-memory change when persisting fails", func() {
			st.saveErr = errors.New("disk full")
			Expect(table.Set("/app", 8080)).To(MatchError(routing.ErrPersistence))
			port, ok := table.Get("/app")
			Expect(ok).To(BeTrue())
			Expect(port).To(Equal(8080))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
		})

		It("should remove a route", func() {
			Expect(table.Delete("/app")).To(Succeed())
			_, ok := table.Get("/app")
			Expect(ok).To(BeFalse())
			Expect(st.data).To(BeEmpty())
		})

		It("should succeed for an absent endpoint without changing anything", func() {
			saves := st.saves
			Expect(table.Delete("/missing")).To(Succeed())
			Expect(table.List()).To(Equal(map[string]int{"/app": 8080}))
			Expect(st.saves).To(Equal(saves))
		})

		It("should reject an invalid endpoint", func() {
			Expect(table.Delete("bad name")).To(MatchError(routing.ErrInvalidEndpoint))
		})
	})

	Describe("Rename", func() {
		BeforeEach(func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
		})

		It("should move the port to the new endpoint", func() {
			Expect(table.Rename("/app", "/web")).To(Succeed())

			_, ok := table.Get("/app")
			Expect(ok).To(BeFalse())
			port, ok := table.Get("/web")
			Expect(ok).To(BeTrue())
			Expect(port).To(Equal(8080))
			Expect(st.data).To(Equal(map[string]int{"/web": 8080}))
		})

		It("should canonicalize both endpoints", func() {
			Expect(table.Rename("APP", " Web ")).To(Succeed())
			Expect(table.List()).To(Equal(map[string]int{"/web": 8080}))
		})

		It("should fail with not found when the source is absent", func() {
			Expect(table.Rename("/missing", "/web")).To(MatchError(routing.ErrNotFound))
		})

		It("should fail with invalid endpoint for a bad target", func() {
			Expect(table.Rename("/app", "/gui")).To(MatchError(routing.ErrInvalidEndpoint))
			Expect(table.List()).To(Equal(map[string]int{"/app": 8080}))
		})

		It("should overwrite an existing target", func() {
			Expect(table.Set("/web", 9090)).To(Succeed())
			Expect(table.Rename("/app", "/web")).To(Succeed())
			Expect(table.List()).To(Equal(map[string]int{"/web": 8080}))
		})

		It("should treat renaming to itself as a no-op", func() {
			Expect(table.Rename("/app", "/app")).To(Succeed())
			Expect(table.List()).To(Equal(map[string]int{"/app": 8080}))
		})

		It("should never expose a torn state to concurrent readers", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})

			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					for {
						select {
						case <-stop:
							return
						default:
						}
						snapshot := table.List()
						Expect(snapshot).To(HaveLen(1))
					}
				}()
			}

			names := []string{"/app", "/web"}
			for i := 0; i < 200; i++ {
				Expect(table.Rename(names[i%2], names[(i+1)%2])).To(Succeed())
			}
			close(stop)
			wg.Wait()
		})
	})

	Describe("List", func() {
		It("should return an independent copy", func() {
			Expect(table.Set("/app", 8080)).To(Succeed())
			snapshot := table.List()
			snapshot["/other"] = 1
			Expect(table.Len()).To(Equal(1))
		})
	})
})
