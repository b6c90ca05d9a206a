package store

import (
	"errors"
	"fmt"
)

const (
	DriverJSON = "json"
	DriverBolt = "bolt"
)

var (
	// ErrCorrupt is returned by Load when stored content exists but cannot
	// be decoded into an endpoint-to-port mapping.
	ErrCorrupt = errors.New("corrupt route store")

	// ErrUnreadable is returned by Load when the store exists but could not
	// be read.
	ErrUnreadable = errors.New("unreadable route store")
)

// Store loads and saves the complete routing mapping.
type Store interface {
	// Load returns the stored mapping, or an empty mapping if nothing has
	// been stored yet.
	Load() (map[string]int, error)
	// Save replaces the stored mapping with routes.
	Save(routes map[string]int) error
	Close() error
}

// Open returns the Store for the named driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverJSON, "":
		return NewJSONFile(path), nil
	case DriverBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
