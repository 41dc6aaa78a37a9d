package main

import "sync"

// Battery models the high-voltage battery of an electrified vehicle.
type Battery struct {
	CapacityKWh    float64 // usable capacity
	Level          float64 // state of charge in percent
	ChargeRateKW   float64 // charging power while plugged in
	ConsumptionKWh float64 // energy used per 100 km
	mu             sync.Mutex
}

// Drive consumes the energy of km kilometers and returns the distance that
// could be driven electrically.
func (b *Battery) Drive(km float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if km <= 0 || b.CapacityKWh <= 0 {
		return 0
	}
	available := b.Level / 100 * b.CapacityKWh
	needed := km * b.ConsumptionKWh / 100
	if needed > available {
		needed = available
		km = needed / b.ConsumptionKWh * 100
	}
	b.Level -= needed / b.CapacityKWh * 100
	b.clamp()
	return km
}

// Charge adds the energy of hours of charging and reports whether the
// battery is full.
func (b *Battery) Charge(hours float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hours > 0 && b.CapacityKWh > 0 {
		b.Level += b.ChargeRateKW * hours / b.CapacityKWh * 100
	}
	b.clamp()
	return b.Level >= 100
}

// Range returns the electric range left at the current level.
func (b *Battery) Range() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ConsumptionKWh <= 0 {
		return 0
	}
	return b.Level / 100 * b.CapacityKWh / b.ConsumptionKWh * 100
}

// MaxRange returns the electric range of a full battery.
func (b *Battery) MaxRange() float64 {
	if b.ConsumptionKWh <= 0 {
		return 0
	}
	return b.CapacityKWh / b.ConsumptionKWh * 100
}

// HoursToFull returns the charging time left at the configured rate.
func (b *Battery) HoursToFull() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ChargeRateKW <= 0 {
		return 0
	}
	return (100 - b.Level) / 100 * b.CapacityKWh / b.ChargeRateKW
}

func (b *Battery) clamp() {
	if b.Level < 0 {
		b.Level = 0
	}
	if b.Level > 100 {
		b.Level = 100
	}
}
