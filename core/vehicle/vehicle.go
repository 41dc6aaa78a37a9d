// Package vehicle holds the vehicle-state snapshot consumed by the sensor
// entities: the services a vehicle advertises and the state section each
// service reports.
package vehicle

import (
	"strings"

	"github.com/thoas/go-funk"
)

// Service is a remote data category reported by the vehicle.
type Service string

const (
	ServiceStatus          Service = "STATUS"
	ServiceLastTrip        Service = "LAST_TRIP"
	ServiceAllTrips        Service = "ALL_TRIPS"
	ServiceChargingProfile Service = "CHARGING_PROFILE"
	ServiceDestinations    Service = "DESTINATIONS"
)

// Services lists every known service.
var Services = []Service{
	ServiceStatus,
	ServiceLastTrip,
	ServiceAllTrips,
	ServiceChargingProfile,
	ServiceDestinations,
}

// Lower returns the lower-case service name used in entity names and ids.
func (s Service) Lower() string { return strings.ToLower(string(s)) }

// Known reports whether s is one of Services.
func (s Service) Known() bool {
	return funk.Contains(Services, s)
}

// DriveTrain describes the propulsion of a vehicle.
type DriveTrain string

const (
	DriveTrainConventional DriveTrain = "CONVENTIONAL"
	DriveTrainPHEV         DriveTrain = "PHEV"
	DriveTrainBEV          DriveTrain = "BEV"
	DriveTrainBEVRangeExt  DriveTrain = "BEV_REX"
)

var (
	commonAttributes   = []string{"mileage", "remaining_range_total"}
	fuelAttributes     = []string{"remaining_fuel", "remaining_range_fuel"}
	electricAttributes = []string{
		"charging_time_remaining",
		"charging_status",
		"charging_level_hv",
		"remaining_range_electric",
		"max_range_electric",
	}
)

// Attributes returns the status attributes relevant for the drive train.
// Unknown drive trains only get the common attributes.
func (d DriveTrain) Attributes() []string {
	out := append([]string(nil), commonAttributes...)
	switch d {
	case DriveTrainConventional:
		out = append(out, fuelAttributes...)
	case DriveTrainPHEV, DriveTrainBEVRangeExt:
		out = append(out, fuelAttributes...)
		out = append(out, electricAttributes...)
	case DriveTrainBEV:
		out = append(out, electricAttributes...)
	}
	return out
}

// Vehicle is a snapshot of one vehicle as reported by the remote API.
type Vehicle struct {
	VIN               string     `json:"vin"`
	Name              string     `json:"name"`
	Model             string     `json:"model,omitempty"`
	DriveTrain        DriveTrain `json:"drive_train"`
	AvailableServices []Service  `json:"available_services"`
	State
}

// DriveTrainAttributes returns the status attributes relevant for the drive
// train of the vehicle.
func (v *Vehicle) DriveTrainAttributes() []string {
	return v.DriveTrain.Attributes()
}

// AvailableAttributes returns the status attributes the vehicle reports.
func (v *Vehicle) AvailableAttributes() []string {
	if v.Status == nil {
		return nil
	}
	return v.Status.AvailableAttributes()
}

// HasService reports whether the vehicle advertises s.
func (v *Vehicle) HasService(s Service) bool {
	return funk.Contains(v.AvailableServices, s)
}

// Section returns the state section reported for s. The second result is
// false when the vehicle did not report the section.
func (v *Vehicle) Section(s Service) (Section, bool) {
	switch s {
	case ServiceStatus:
		if v.Status != nil {
			return v.Status, true
		}
	case ServiceLastTrip:
		if v.LastTrip != nil {
			return v.LastTrip, true
		}
	case ServiceAllTrips:
		if v.AllTrips != nil {
			return v.AllTrips, true
		}
	case ServiceChargingProfile:
		if v.ChargingProfile != nil {
			return v.ChargingProfile, true
		}
	case ServiceDestinations:
		if v.LastDestinations != nil {
			return v.LastDestinations, true
		}
	}
	return nil, false
}

// Charging reports whether the vehicle is currently charging.
func (v *Vehicle) Charging() bool {
	return v.Status != nil && v.Status.ChargingStatus != nil &&
		*v.Status.ChargingStatus == ChargingStateCharging
}
