package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/portrouter/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(2, 30*time.Second)
	})

	Describe("GetBreaker", func() {
		It("should return the same breaker for the same port", func() {
			Expect(registry.GetBreaker(8080)).To(BeIdenticalTo(registry.GetBreaker(8080)))
		})

		It("should return different breakers for different ports", func() {
			Expect(registry.GetBreaker(8080)).NotTo(BeIdenticalTo(registry.GetBreaker(8081)))
		})

		It("should use the registry threshold", func() {
			cb := registry.GetBreaker(8080)
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should create one breaker under concurrent access", func() {
			var wg sync.WaitGroup
			got := make([]*circuitbreaker.CircuitBreaker, 50)
			for i := range got {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got[i] = registry.GetBreaker(9000)
				}()
			}
			wg.Wait()
			for _, cb := range got {
				Expect(cb).To(BeIdenticalTo(got[0]))
			}
		})
	})

	Describe("MarkAlive", func() {
		It("should close an open breaker", func() {
			cb := registry.GetBreaker(8080)
			cb.RecordFailure()
			cb.RecordFailure()
			registry.MarkAlive(8080)
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should not create breakers for unknown ports", func() {
			registry.MarkAlive(1234)
			Expect(registry.Stats()).To(BeEmpty())
		})
	})

	Describe("Stats", func() {
		It("should report the state per port", func() {
			registry.GetBreaker(8080)
			open := registry.GetBreaker(8081)
			open.RecordFailure()
			open.RecordFailure()

			Expect(registry.Stats()).To(Equal(map[int]circuitbreaker.State{
				8080: circuitbreaker.StateClosed,
				8081: circuitbreaker.StateOpen,
			}))
		})
	})
})
