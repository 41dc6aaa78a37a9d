// Package history persists the state changes of sensor entities.
package history

import (
	"context"
	"fmt"
	"time"
)

// Record is one observed sensor state.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	UniqueID  string    `json:"unique_id"`
	VIN       string    `json:"vin"`
	Service   string    `json:"service"`
	Attribute string    `json:"attribute"`
	State     string    `json:"state"`
	Unit      string    `json:"unit,omitempty"`
	Available bool      `json:"available"`
}

// Query defines filters for retrieving records. Zero values match
// everything; Limit keeps the most recent records.
type Query struct {
	Start    time.Time
	End      time.Time
	VIN      string
	UniqueID string
	Limit    int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VIN != "" && r.VIN != q.VIN {
		return false
	}
	if q.UniqueID != "" && r.UniqueID != q.UniqueID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// Query returns matching records ordered by timestamp.
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Options configures Open.
type Options struct {
	// Backend is "jsonl" or "sqlite".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "jsonl":
		return NewRotatingJSONLStore(opts.Path, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", opts.Backend)
	}
}

func limit(recs []Record, n int) []Record {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
