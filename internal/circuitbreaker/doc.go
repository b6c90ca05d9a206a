// Package circuitbreaker stops the proxy from dialing a backend port that
// keeps failing.
//
// A breaker has three states:
//
//   - CLOSED: requests are forwarded
//   - OPEN: the port failed threshold times in a row; requests get a 502
//     without a dial until the reset timeout passes
//   - HALF-OPEN: one trial request is let through; success closes the
//     breaker, failure opens it again
//
// A threshold of zero disables breaking entirely.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 5*time.Second)
//	cb := registry.GetBreaker(8080)
//	if cb.Allow() {
//	    // forward...
//	}
package circuitbreaker
