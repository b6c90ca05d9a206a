package routing

import "errors"

var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrInvalidPort     = errors.New("invalid port")
	ErrNotFound        = errors.New("endpoint not found")

	// ErrPersistence reports a failed store write. The in-memory change that
	// preceded it has already been applied.
	ErrPersistence = errors.New("failed to persist routes")
)
