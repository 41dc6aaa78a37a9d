package history

import (
	"context"
	"sync"

	"github.com/kilianp07/cdsensor/core/logger"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

// Recorder appends snapshots to a Store, skipping those whose state and
// availability did not change since the previous one.
type Recorder struct {
	store Store
	log   logger.Logger

	mu   sync.Mutex
	last map[string]Record
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, log logger.Logger) *Recorder {
	return &Recorder{store: store, log: log, last: map[string]Record{}}
}

// FromSnapshot converts a platform snapshot into a history record.
func FromSnapshot(s platform.Snapshot) Record {
	return Record{
		Timestamp: s.UpdatedAt,
		UniqueID:  s.UniqueID,
		VIN:       s.Device.VIN,
		Service:   string(s.Descriptor.Service),
		Attribute: s.Descriptor.Key(),
		State:     sensor.FormatState(s.State),
		Unit:      s.Unit,
		Available: s.Available,
	}
}

// Record appends s when it differs from the last appended record of the
// same entity. It reports whether a record was written.
func (r *Recorder) Record(ctx context.Context, s platform.Snapshot) (bool, error) {
	rec := FromSnapshot(s)
	r.mu.Lock()
	prev, seen := r.last[rec.UniqueID]
	r.mu.Unlock()
	if seen && prev.State == rec.State && prev.Available == rec.Available && prev.Unit == rec.Unit {
		return false, nil
	}
	if err := r.store.Append(ctx, rec); err != nil {
		return false, err
	}
	r.mu.Lock()
	r.last[rec.UniqueID] = rec
	r.mu.Unlock()
	return true, nil
}

// Start records snapshots from bus until ctx is canceled. The returned
// channel is closed once the recorder stopped.
func (r *Recorder) Start(ctx context.Context, bus *eventbus.TypedBus[platform.Snapshot]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-sub:
				if !ok {
					return
				}
				if _, err := r.Record(ctx, s); err != nil {
					r.log.Errorf("history append %s: %v", s.UniqueID, err)
				}
			}
		}
	}()
	return done
}
