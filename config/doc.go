// Package config loads the router configuration from defaults, an optional
// YAML file, environment variables and command-line flags, and validates it.
// It covers listener ports, the route store, liveness probing, the circuit
// breaker, metrics buffering and logging.
package config
