package entity

import (
	"github.com/thoas/go-funk"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

// Discover returns the leaf descriptors for every sensor the vehicle can
// provide. Services are visited in advertised order and the same vehicle
// always yields the same descriptors.
func Discover(v *vehicle.Vehicle) []Descriptor {
	var out []Descriptor
	seen := map[vehicle.Service]bool{}
	for _, s := range v.AvailableServices {
		if seen[s] {
			continue
		}
		seen[s] = true
		switch s {
		case vehicle.ServiceStatus:
			out = append(out, discoverStatus(v)...)
		case vehicle.ServiceLastTrip, vehicle.ServiceAllTrips,
			vehicle.ServiceChargingProfile, vehicle.ServiceDestinations:
			sec, ok := v.Section(s)
			if !ok {
				continue
			}
			values := sec.Fields()
			for _, field := range sec.AvailableAttributes() {
				out = append(out, expand(s, field, values[field])...)
			}
		}
	}
	return out
}

// DiscoverAll runs Discover for every vehicle and keys the result by VIN.
func DiscoverAll(vehicles []*vehicle.Vehicle) map[string][]Descriptor {
	out := make(map[string][]Descriptor, len(vehicles))
	for _, v := range vehicles {
		out[v.VIN] = Discover(v)
	}
	return out
}

func discoverStatus(v *vehicle.Vehicle) []Descriptor {
	reported := v.AvailableAttributes()
	var out []Descriptor
	for _, field := range v.DriveTrainAttributes() {
		if funk.ContainsString(reported, field) {
			out = append(out, Descriptor{Service: vehicle.ServiceStatus, Field: field})
		}
	}
	return out
}

func expand(s vehicle.Service, field string, value any) []Descriptor {
	base := Descriptor{Service: s, Field: field}
	switch x := value.(type) {
	case vehicle.Aggregate:
		return withSubFields(base, x.SubFields()...)
	case vehicle.ChargingWindow:
		return withSubFields(base, vehicle.WindowStartTime, vehicle.WindowEndTime)
	case []vehicle.DepartureTimer:
		out := make([]Descriptor, 0, len(vehicle.Timers)*len(vehicle.TimerFields))
		for _, id := range vehicle.Timers {
			d := base
			d.Timer = id
			out = append(out, withSubFields(d, vehicle.TimerFields...)...)
		}
		return out
	}
	return []Descriptor{base}
}

func withSubFields(base Descriptor, subs ...string) []Descriptor {
	out := make([]Descriptor, 0, len(subs))
	for _, sub := range subs {
		d := base
		d.SubField = sub
		out = append(out, d)
	}
	return out
}
