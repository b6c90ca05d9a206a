package routing

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ReservedEndpoint hosts the admin interface and can never be a proxy target.
const ReservedEndpoint = "/gui"

const (
	MinPort = 1
	MaxPort = 65535
)

var endpointPattern = regexp.MustCompile(`^(/[a-z0-9_-]+)+$`)

// Canonicalize trims whitespace, lowercases, and ensures a single leading
// slash. Blank input yields the empty string.
func Canonicalize(raw string) string {
	endpoint := strings.ToLower(strings.TrimSpace(raw))
	if endpoint == "" {
		return ""
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}

// IsReserved reports whether path is the admin prefix or nested under it.
func IsReserved(path string) bool {
	return path == ReservedEndpoint || strings.HasPrefix(path, ReservedEndpoint+"/")
}

// ValidateEndpoint checks an already canonicalized endpoint.
func ValidateEndpoint(endpoint string) error {
	err := validation.Validate(endpoint,
		validation.Required.Error("endpoint is required"),
		validation.Match(endpointPattern).Error("must be /-separated segments of a-z, 0-9, '-' or '_'"),
		validation.By(notReserved),
	)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidEndpoint, endpoint, err)
	}
	return nil
}

func ValidatePort(port int) error {
	err := validation.Validate(port,
		validation.Required.Error("port is required"),
		validation.Min(MinPort),
		validation.Max(MaxPort),
	)
	if err != nil {
		return fmt.Errorf("%w %d: %v", ErrInvalidPort, port, err)
	}
	return nil
}

func notReserved(value interface{}) error {
	endpoint, _ := value.(string)
	if IsReserved(endpoint) {
		return validation.NewError("validation_reserved_endpoint", ReservedEndpoint+" is reserved for the admin interface")
	}
	return nil
}
