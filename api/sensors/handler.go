package sensors

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/cdsensor/core/history"
	"github.com/kilianp07/cdsensor/core/platform"
)

// SnapshotProvider exposes the current entity snapshots.
type SnapshotProvider interface {
	Snapshots() []platform.Snapshot
}

// NewSensorsHandler returns an HTTP handler exposing entity snapshots via
// GET /api/sensors. The optional vin and service parameters filter the list.
func NewSensorsHandler(p SnapshotProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vin := strings.ToUpper(r.URL.Query().Get("vin"))
		service := strings.ToUpper(r.URL.Query().Get("service"))
		out := make([]platform.Snapshot, 0)
		for _, s := range p.Snapshots() {
			if vin != "" && s.Device.VIN != vin {
				continue
			}
			if service != "" && string(s.Descriptor.Service) != service {
				continue
			}
			out = append(out, s)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewHistoryHandler returns an HTTP handler exposing state history via
// GET /api/sensors/history. Requests must include an Authorization header
// with "Bearer <token>" when token is non-empty.
func NewHistoryHandler(store history.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := history.Query{
			VIN:      strings.ToUpper(r.URL.Query().Get("vin")),
			UniqueID: r.URL.Query().Get("unique_id"),
		}
		for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := r.URL.Query().Get(name)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid "+name, http.StatusBadRequest)
				return
			}
			*dst = t
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []history.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
