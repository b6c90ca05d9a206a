// Package backend forwards requests to local services addressed by port.
// Each port gets one httputil.ReverseProxy, created on first use and shared
// by all requests routed to that port. Request and response bodies are
// streamed; the outbound request carries the inbound context, so it is
// aborted when the caller goes away.
package backend
