package resolver

import (
	"net/url"
	"sort"
	"strings"
)

type MatchKind int

const (
	MatchDirect MatchKind = iota
	MatchReferer
)

func (k MatchKind) String() string {
	switch k {
	case MatchDirect:
		return "direct"
	case MatchReferer:
		return "referer"
	default:
		return "unknown"
	}
}

// Match is the outcome of resolving one request.
type Match struct {
	Endpoint string
	Port     int
	Kind     MatchKind
}

// ForwardPath returns the path to send to the backend. Direct matches have
// the endpoint stripped (an empty remainder becomes "/"); referer-derived
// matches keep the original path.
func (m Match) ForwardPath(path string) string {
	if m.Kind != MatchDirect {
		return path
	}

	rest := strings.TrimPrefix(path, m.Endpoint)
	if rest == "" {
		return "/"
	}
	return rest
}

// RouteLister supplies a consistent snapshot of endpoint to port.
type RouteLister interface {
	List() map[string]int
}

type Resolver struct {
	routes RouteLister
}

func New(routes RouteLister) *Resolver {
	return &Resolver{routes: routes}
}

// Resolve finds the route for path, falling back to the path of referer.
func (r *Resolver) Resolve(path, referer string) (Match, bool) {
	routes := r.routes.List()
	if len(routes) == 0 {
		return Match{}, false
	}
	endpoints := sortedEndpoints(routes)

	if endpoint, ok := longestPrefix(endpoints, path); ok {
		return Match{Endpoint: endpoint, Port: routes[endpoint], Kind: MatchDirect}, true
	}

	if referer == "" {
		return Match{}, false
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" {
		return Match{}, false
	}

	if endpoint, ok := longestPrefix(endpoints, u.Path); ok {
		return Match{Endpoint: endpoint, Port: routes[endpoint], Kind: MatchReferer}, true
	}

	return Match{}, false
}

// sortedEndpoints orders by descending length, then lexicographically.
func sortedEndpoints(routes map[string]int) []string {
	endpoints := make([]string, 0, len(routes))
	for endpoint := range routes {
		endpoints = append(endpoints, endpoint)
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if len(endpoints[i]) != len(endpoints[j]) {
			return len(endpoints[i]) > len(endpoints[j])
		}
		return endpoints[i] < endpoints[j]
	})

	return endpoints
}

func longestPrefix(endpoints []string, path string) (string, bool) {
	for _, endpoint := range endpoints {
		if path == endpoint || strings.HasPrefix(path, endpoint+"/") {
			return endpoint, true
		}
	}
	return "", false
}
