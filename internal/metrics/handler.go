package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the snapshot as JSON. backends, when non-nil, supplies the
// per-port live state added under "backends".
func (c *Collector) Handler(backends func() map[int]BackendStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.Snapshot()
		if backends != nil {
			snap.Backends = backends()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
