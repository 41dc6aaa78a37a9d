// Package platform hosts sensor entities: it keeps the entity registry,
// runs the periodic update cycle and tracks availability.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/cdsensor/core/entity"
	"github.com/kilianp07/cdsensor/core/logger"
	"github.com/kilianp07/cdsensor/core/metrics"
	"github.com/kilianp07/cdsensor/core/monitoring"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

// ErrDuplicateEntity is returned when an entity with the same unique id is
// already registered.
var ErrDuplicateEntity = errors.New("duplicate entity")

// Entity is the contract of a hosted sensor.
type Entity interface {
	UniqueID() string
	Name() string
	Device() sensor.Device
	Descriptor() entity.Descriptor
	State() any
	HasValue() bool
	Unit() string
	Icon() string
	Update(ctx context.Context) error
}

// Snapshot is the externally visible state of an entity after an update.
type Snapshot struct {
	UniqueID   string            `json:"unique_id"`
	Name       string            `json:"name"`
	Device     sensor.Device     `json:"device"`
	Descriptor entity.Descriptor `json:"descriptor"`
	State      any               `json:"state"`
	Unit       string            `json:"unit,omitempty"`
	Icon       string            `json:"icon,omitempty"`
	Available  bool              `json:"available"`
	Error      string            `json:"error,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Event converts the snapshot into a metrics event.
func (s Snapshot) Event() metrics.SensorStateEvent {
	return metrics.SensorStateEvent{
		UniqueID:  s.UniqueID,
		VIN:       s.Device.VIN,
		Service:   string(s.Descriptor.Service),
		Attribute: s.Descriptor.Key(),
		State:     s.State,
		Unit:      s.Unit,
		Available: s.Available,
		Error:     s.Error,
		Time:      s.UpdatedAt,
	}
}

// Platform is the entity host.
type Platform struct {
	mu       sync.RWMutex
	entities map[string]Entity
	order    []string
	snaps    map[string]Snapshot

	bus     *eventbus.TypedBus[Snapshot]
	sink    metrics.MetricsSink
	clock   clock.Clock
	prepare func(context.Context) error
	log     logger.Logger
}

// Option configures a Platform.
type Option func(*Platform)

// WithClock sets the clock driving Run.
func WithClock(c clock.Clock) Option { return func(p *Platform) { p.clock = c } }

// WithBus sets the bus snapshots are published on.
func WithBus(b *eventbus.TypedBus[Snapshot]) Option { return func(p *Platform) { p.bus = b } }

// WithMetrics sets the sink refresh cycles are recorded to.
func WithMetrics(s metrics.MetricsSink) Option { return func(p *Platform) { p.sink = s } }

// WithPrepare sets a hook run before every refresh cycle, typically to
// reload the vehicle snapshots of the account. A failing hook is reported
// and the entities are updated from the snapshots already held.
func WithPrepare(fn func(context.Context) error) Option {
	return func(p *Platform) { p.prepare = fn }
}

// New creates an empty platform.
func New(log logger.Logger, opts ...Option) *Platform {
	p := &Platform{
		entities: map[string]Entity{},
		snaps:    map[string]Snapshot{},
		clock:    clock.New(),
		sink:     metrics.NopSink{},
		log:      log,
	}
	for _, o := range opts {
		o(p)
	}
	if p.bus == nil {
		p.bus = eventbus.NewTyped[Snapshot]()
	}
	return p
}

// Bus returns the bus snapshots are published on.
func (p *Platform) Bus() *eventbus.TypedBus[Snapshot] { return p.bus }

// Add registers entities. Nothing is registered when one of them has a
// unique id that is already taken.
func (p *Platform) Add(entities ...Entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := map[string]bool{}
	for _, e := range entities {
		id := e.UniqueID()
		if _, ok := p.entities[id]; ok || seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
		}
		seen[id] = true
	}
	for _, e := range entities {
		id := e.UniqueID()
		p.entities[id] = e
		p.order = append(p.order, id)
		p.snaps[id] = p.snapshot(e, nil, time.Time{})
	}
	return nil
}

// Entities returns the registered entities in registration order.
func (p *Platform) Entities() []Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entity, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.entities[id])
	}
	return out
}

// Snapshot returns the last snapshot of the entity with the given id.
func (p *Platform) Snapshot(uid string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snaps[uid]
	return s, ok
}

// Snapshots returns the last snapshot of every entity sorted by unique id.
func (p *Platform) Snapshots() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Snapshot, 0, len(p.snaps))
	for _, s := range p.snaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

func (p *Platform) snapshot(e Entity, err error, at time.Time) Snapshot {
	s := Snapshot{
		UniqueID:   e.UniqueID(),
		Name:       e.Name(),
		Device:     e.Device(),
		Descriptor: e.Descriptor(),
		State:      e.State(),
		Unit:       e.Unit(),
		Icon:       e.Icon(),
		Available:  err == nil && e.HasValue(),
		UpdatedAt:  at,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Refresh updates every entity once. A failing entity is reported and
// marked unavailable; the others are unaffected.
func (p *Platform) Refresh(ctx context.Context) error {
	start := p.clock.Now()
	if p.prepare != nil {
		if err := p.prepare(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Errorf("prepare refresh: %v", err)
			monitoring.CaptureException(err, map[string]string{"module": "platform"})
		}
	}
	entities := p.Entities()
	failures := 0
	dropped := p.bus.Dropped()
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.Update(ctx)
		if err != nil {
			failures++
			p.log.Warnf("update %s: %v", e.UniqueID(), err)
			monitoring.CaptureException(err, map[string]string{
				"vin":       e.Device().VIN,
				"unique_id": e.UniqueID(),
				"module":    "platform",
			})
		}
		snap := p.snapshot(e, err, p.clock.Now())
		p.mu.Lock()
		p.snaps[snap.UniqueID] = snap
		p.mu.Unlock()
		p.bus.Publish(snap)
	}
	if d := p.bus.Dropped() - dropped; d > 0 {
		p.log.Warnf("%d snapshot deliveries dropped, consumers are too slow", d)
	}
	if rec, ok := p.sink.(metrics.RefreshRecorder); ok {
		ev := metrics.RefreshEvent{
			Entities: len(entities),
			Failures: failures,
			Duration: p.clock.Since(start),
			Time:     start,
		}
		if err := rec.RecordRefresh(ev); err != nil {
			p.log.Errorf("record refresh: %v", err)
		}
	}
	p.log.Debugw("refresh done", map[string]any{"entities": len(entities), "failures": failures})
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (p *Platform) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("platform: invalid interval %s", interval)
	}
	if err := p.Refresh(ctx); err != nil {
		return ignoreDone(ctx, err)
	}
	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				return ignoreDone(ctx, err)
			}
		}
	}
}

func ignoreDone(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
