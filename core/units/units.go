package units

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/unit"
)

// Unit symbols used by sensor entities.
const (
	Kilometers = "km"
	Miles      = "mi"
	Liters     = "L"
	Gallons    = "gal"

	Percentage   = "%"
	Hours        = "h"
	Minutes      = "min"
	WattHour     = "Wh"
	KiloWattHour = "kWh"
	Kilograms    = "kg"
)

// Names of the supported unit systems.
const (
	MetricName   = "metric"
	ImperialName = "imperial"
)

// ErrUnknownUnit is returned when a conversion involves an unsupported unit.
var ErrUnknownUnit = errors.New("unknown unit")

var (
	lengths = map[string]unit.Length{
		Kilometers: 1e3,
		Miles:      1609.344,
	}
	volumes = map[string]unit.Volume{
		Liters:  1e-3,
		Gallons: 3.785411784e-3,
	}
)

// System describes the active measurement units of the host.
type System struct {
	Name       string
	LengthUnit string
	VolumeUnit string
}

var (
	// Metric uses kilometers and liters.
	Metric = System{Name: MetricName, LengthUnit: Kilometers, VolumeUnit: Liters}
	// Imperial uses miles and (US) gallons.
	Imperial = System{Name: ImperialName, LengthUnit: Miles, VolumeUnit: Gallons}
)

// FromName selects the unit system by name. Anything other than "imperial"
// resolves to the metric system.
func FromName(name string) System {
	if strings.EqualFold(strings.TrimSpace(name), ImperialName) {
		return Imperial
	}
	return Metric
}

// IsImperial reports whether the system uses imperial units.
func (s System) IsImperial() bool { return s.Name == ImperialName }

// Length converts value given in the from unit into the system length unit.
func (s System) Length(value float64, from string) (float64, error) {
	src, ok := lengths[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, from)
	}
	dst, ok := lengths[s.LengthUnit]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, s.LengthUnit)
	}
	si := unit.Length(value) * src
	return float64(si / dst), nil
}

// Volume converts value given in the from unit into the system volume unit.
func (s System) Volume(value float64, from string) (float64, error) {
	src, ok := volumes[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, from)
	}
	dst, ok := volumes[s.VolumeUnit]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, s.VolumeUnit)
	}
	si := unit.Volume(value) * src
	return float64(si / dst), nil
}

// Round rounds a converted state to an integer, halves to even.
func Round(v float64) float64 {
	return math.RoundToEven(v)
}

// Per100 renders a consumption unit such as "kWh/100km".
func Per100(quantity, distance string) string {
	return quantity + "/100" + distance
}
