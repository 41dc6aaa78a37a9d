package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/thoas/go-funk"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

// ErrVehicleNotFound is returned when a configured VIN is not part of the
// account.
var ErrVehicleNotFound = errors.New("cannot find vehicle")

// Account gives access to the current vehicle snapshots.
type Account interface {
	Vehicles() []*vehicle.Vehicle
	Vehicle(vin string) (*vehicle.Vehicle, bool)
}

// Source loads vehicle snapshots from an external producer.
type Source interface {
	Load(ctx context.Context) ([]*vehicle.Vehicle, error)
}

const topicUpdated = "vehicle:updated"

// Memory is a concurrency safe Account. Snapshots are replaced on every
// write and never mutated in place.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]*vehicle.Vehicle
	updated map[string]time.Time
	bus     EventBus.Bus
	now     func() time.Time
}

// NewMemory returns a Memory holding the given vehicles.
func NewMemory(vehicles ...*vehicle.Vehicle) *Memory {
	m := &Memory{
		data:    map[string]*vehicle.Vehicle{},
		updated: map[string]time.Time{},
		bus:     EventBus.New(),
		now:     time.Now,
	}
	for _, v := range vehicles {
		m.put(v)
	}
	return m
}

func (m *Memory) put(v *vehicle.Vehicle) string {
	vin := strings.ToUpper(v.VIN)
	m.mu.Lock()
	m.data[vin] = v
	m.updated[vin] = m.now()
	m.mu.Unlock()
	return vin
}

// Set stores v as the current snapshot of its VIN and notifies update
// subscribers.
func (m *Memory) Set(v *vehicle.Vehicle) {
	if v == nil || v.VIN == "" {
		return
	}
	m.bus.Publish(topicUpdated, m.put(v))
}

// SetAll stores every snapshot in vs.
func (m *Memory) SetAll(vs []*vehicle.Vehicle) {
	for _, v := range vs {
		m.Set(v)
	}
}

// OnUpdate registers fn to be called with the VIN of every stored snapshot.
func (m *Memory) OnUpdate(fn func(vin string)) error {
	return m.bus.Subscribe(topicUpdated, fn)
}

// Vehicle returns the current snapshot for vin.
func (m *Memory) Vehicle(vin string) (*vehicle.Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[strings.ToUpper(vin)]
	return v, ok
}

// Vehicles returns all snapshots sorted by VIN.
func (m *Memory) Vehicles() []*vehicle.Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*vehicle.Vehicle, 0, len(m.data))
	for _, v := range m.data {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VIN < res[j].VIN })
	return res
}

// UpdatedAt returns the time the snapshot of vin was last stored.
func (m *Memory) UpdatedAt(vin string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.updated[strings.ToUpper(vin)]
	return t, ok
}

// Refresh loads snapshots from src and stores them.
func (m *Memory) Refresh(ctx context.Context, src Source) error {
	vs, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	m.SetAll(vs)
	return nil
}

// Select keeps the vehicles whose VIN is listed in vins. An empty list keeps
// all vehicles. Unknown VINs yield ErrVehicleNotFound.
func Select(vehicles []*vehicle.Vehicle, vins []string) ([]*vehicle.Vehicle, error) {
	if len(vins) == 0 {
		return vehicles, nil
	}
	known := make([]string, len(vehicles))
	for i, v := range vehicles {
		known[i] = strings.ToUpper(v.VIN)
	}
	wanted := make([]string, 0, len(vins))
	for _, vin := range vins {
		vin = strings.ToUpper(strings.TrimSpace(vin))
		if !funk.ContainsString(known, vin) {
			return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, vin)
		}
		wanted = append(wanted, vin)
	}
	var out []*vehicle.Vehicle
	for i, v := range vehicles {
		if funk.ContainsString(wanted, known[i]) {
			out = append(out, v)
		}
	}
	return out, nil
}
