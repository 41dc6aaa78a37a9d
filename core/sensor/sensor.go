// Package sensor adapts vehicle snapshots to read-only sensor entities.
//
// A Sensor is bound to one leaf descriptor of one vehicle. Every Update
// reads the current snapshot from the account, selects the section of the
// descriptor's service and resolves the leaf value. Distances and volumes
// are converted to the unit system of the attribute registry and rounded.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/cdsensor/core/account"
	"github.com/kilianp07/cdsensor/core/attribute"
	"github.com/kilianp07/cdsensor/core/entity"
	"github.com/kilianp07/cdsensor/core/units"
	"github.com/kilianp07/cdsensor/core/vehicle"
)

var (
	// ErrMissingField is returned when the vehicle, section, field, timer or
	// sub-field backing a sensor is not reported.
	ErrMissingField = errors.New("missing field")
	// ErrTypeMismatch is returned when a reported value cannot be converted.
	ErrTypeMismatch = errors.New("type mismatch")
)

const batteryLevelField = "charging_level_hv"

// Device describes the vehicle a sensor belongs to.
type Device struct {
	VIN        string             `json:"vin"`
	Name       string             `json:"name"`
	Model      string             `json:"model,omitempty"`
	DriveTrain vehicle.DriveTrain `json:"drive_train,omitempty"`
}

// Sensor is one leaf sensor entity.
type Sensor struct {
	account  account.Account
	registry *attribute.Registry
	device   Device
	desc     entity.Descriptor
	uniqueID string
	name     string

	mu       sync.RWMutex
	state    any
	icon     string
	hasValue bool
}

// New creates the sensor for descriptor d of vehicle v. The vehicle is only
// used for naming; values are read from acct on every update.
func New(acct account.Account, reg *attribute.Registry, v *vehicle.Vehicle, d entity.Descriptor) *Sensor {
	s := &Sensor{
		account:  acct,
		registry: reg,
		device: Device{
			VIN:        v.VIN,
			Name:       v.Name,
			Model:      v.Model,
			DriveTrain: v.DriveTrain,
		},
		desc:     d,
		uniqueID: d.UniqueID(v.VIN),
		name:     d.Name(v.Name),
	}
	s.icon = s.baseIcon()
	return s
}

// NewSensors discovers the descriptors of every vehicle and creates one
// sensor per descriptor.
func NewSensors(acct account.Account, reg *attribute.Registry, vehicles []*vehicle.Vehicle) []*Sensor {
	var out []*Sensor
	for _, v := range vehicles {
		for _, d := range entity.Discover(v) {
			out = append(out, New(acct, reg, v, d))
		}
	}
	return out
}

func (s *Sensor) UniqueID() string { return s.uniqueID }
func (s *Sensor) Name() string { return s.name }
func (s *Sensor) VIN() string { return s.device.VIN }
func (s *Sensor) Device() Device { return s.device }
func (s *Sensor) Descriptor() entity.Descriptor { return s.desc }
func (s *Sensor) Attribute() attribute.Descriptor { return s.registry.Lookup(s.desc.Field) }
func (s *Sensor) Unit() string { return s.Attribute().Unit }

// State returns the last value read, nil before the first successful
// update.
func (s *Sensor) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HasValue reports whether an update succeeded at least once.
func (s *Sensor) HasValue() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasValue
}

// Icon returns the icon computed at the last update.
func (s *Sensor) Icon() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.icon
}

func (s *Sensor) baseIcon() string {
	if s.desc.Field == batteryLevelField {
		return attribute.ForBatteryLevel(nil, false)
	}
	return s.Attribute().Icon
}

// Update reads the current value from the account. On error the previous
// value is kept.
func (s *Sensor) Update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, ok := s.account.Vehicle(s.device.VIN)
	if !ok {
		return fmt.Errorf("%w: vehicle %s", ErrMissingField, s.device.VIN)
	}
	raw, err := s.read(v)
	if err != nil {
		return fmt.Errorf("%s: %w", s.uniqueID, err)
	}
	state, err := s.convert(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", s.uniqueID, err)
	}
	icon := s.baseIcon()
	if s.desc.Field == batteryLevelField && v.Status != nil {
		icon = attribute.ForBatteryLevel(v.Status.ChargingLevelHV, v.Charging())
	}

	s.mu.Lock()
	s.state = state
	s.icon = icon
	s.hasValue = true
	s.mu.Unlock()
	return nil
}

func (s *Sensor) read(v *vehicle.Vehicle) (any, error) {
	d := s.desc
	sec, ok := v.Section(d.Service)
	if !ok {
		return nil, fmt.Errorf("%w: section %s", ErrMissingField, d.Service)
	}
	val, ok := sec.Fields()[d.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, d.Field)
	}

	switch x := val.(type) {
	case vehicle.ChargingState:
		return x.Label(), nil
	case vehicle.ChargingWindow:
		return readWindow(x, d.SubField)
	case vehicle.Aggregate:
		f, ok := x[d.SubField]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, d.Field, d.SubField)
		}
		return f, nil
	case []vehicle.DepartureTimer:
		if d.Timer == "" {
			return len(x), nil
		}
		return readTimer(sec, d)
	case []vehicle.Destination:
		return len(x), nil
	}
	if d.SubField != "" {
		return nil, fmt.Errorf("%w: %s has no sub-field %s", ErrTypeMismatch, d.Field, d.SubField)
	}
	return val, nil
}

func readWindow(w vehicle.ChargingWindow, sub string) (any, error) {
	switch sub {
	case vehicle.WindowStartTime:
		return w.StartTime, nil
	case vehicle.WindowEndTime:
		return w.EndTime, nil
	case "":
		return w.StartTime + "-" + w.EndTime, nil
	}
	return nil, fmt.Errorf("%w: preferred_charging_window.%s", ErrMissingField, sub)
}

func readTimer(sec vehicle.Section, d entity.Descriptor) (any, error) {
	profile, ok := sec.(*vehicle.ChargingProfile)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a charging profile", ErrTypeMismatch, d.Service)
	}
	t, ok := profile.Timer(d.Timer)
	if !ok {
		return nil, fmt.Errorf("%w: timer %s", ErrMissingField, d.Timer)
	}
	switch d.SubField {
	case vehicle.TimerEnabled:
		if t.Enabled != nil {
			return *t.Enabled, nil
		}
	case vehicle.TimerDepartureTime:
		if t.DepartureTime != nil {
			return *t.DepartureTime, nil
		}
	case vehicle.TimerWeekdays:
		if t.Weekdays != nil {
			return t.Weekdays, nil
		}
	}
	return nil, fmt.Errorf("%w: timer %s.%s", ErrMissingField, d.Timer, d.SubField)
}

func (s *Sensor) convert(raw any) (any, error) {
	system := s.registry.System()
	switch s.Unit() {
	case units.Gallons:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: volume %T", ErrTypeMismatch, raw)
		}
		out, err := system.Volume(f, units.Liters)
		if err != nil {
			return nil, err
		}
		return units.Round(out), nil
	case units.Miles:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: distance %T", ErrTypeMismatch, raw)
		}
		out, err := system.Length(f, units.Kilometers)
		if err != nil {
			return nil, err
		}
		return units.Round(out), nil
	}
	return raw, nil
}
