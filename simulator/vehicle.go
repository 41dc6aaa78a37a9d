package main

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

const (
	averageSpeedKmh  = 40
	fuelPer100Km     = 6.5
	replugLevel      = 30
	refuelTankFactor = 0.1
)

// SimulatedVehicle drives and charges in simulated time and reports its
// state as a vehicle snapshot.
type SimulatedVehicle struct {
	VIN        string
	Name       string
	DriveTrain vehicle.DriveTrain
	Mileage    float64
	Fuel       float64
	TankLiters float64
	Battery    *Battery

	mu       sync.Mutex
	rng      *rand.Rand
	plugged  bool
	tripKm   float64
	tripEKm  float64
	tripTime time.Duration
	tripDate time.Time
	totalEKm float64
}

// Electrified reports whether the vehicle has a high-voltage battery.
func (v *SimulatedVehicle) Electrified() bool { return v.Battery != nil }

// Step advances the vehicle by dt. A plugged-in vehicle charges until full;
// otherwise it drives and plugs in once the battery runs low.
func (v *SimulatedVehicle) Step(dt time.Duration, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.plugged && v.Battery != nil {
		if v.Battery.Charge(dt.Hours()) {
			v.plugged = false
		}
		return
	}
	factor := 1.0
	if v.rng != nil {
		factor = 0.5 + v.rng.Float64()
	}
	km := averageSpeedKmh * dt.Hours() * factor
	electric := 0.0
	if v.Battery != nil {
		electric = v.Battery.Drive(km)
		if v.DriveTrain == vehicle.DriveTrainBEV {
			km = electric
		}
	}
	if burned := (km - electric) * fuelPer100Km / 100; burned > 0 {
		v.Fuel = math.Max(0, v.Fuel-burned)
		if v.Fuel < v.TankLiters*refuelTankFactor {
			v.Fuel = v.TankLiters
		}
	}
	v.Mileage += km
	v.tripKm, v.tripEKm, v.tripTime, v.tripDate = km, electric, dt, now
	v.totalEKm += electric
	if v.Battery != nil && v.Battery.Level < replugLevel {
		v.plugged = true
	}
}

// Snapshot returns the current state of the vehicle.
func (v *SimulatedVehicle) Snapshot() *vehicle.Vehicle {
	v.mu.Lock()
	defer v.mu.Unlock()
	services := []vehicle.Service{vehicle.ServiceStatus, vehicle.ServiceLastTrip}
	status := &vehicle.VehicleStatus{Mileage: ptr(math.Round(v.Mileage))}
	total := 0.0
	if v.TankLiters > 0 {
		fuelRange := round1(v.Fuel / fuelPer100Km * 100)
		status.RemainingFuel = ptr(round1(v.Fuel))
		status.RemainingRangeFuel = ptr(fuelRange)
		total += fuelRange
	}
	var profile *vehicle.ChargingProfile
	if b := v.Battery; b != nil {
		services = append(services, vehicle.ServiceChargingProfile)
		electricRange := round1(b.Range())
		total += electricRange
		cs := vehicle.ChargingStateNotCharging
		remaining := 0.0
		if v.plugged {
			cs = vehicle.ChargingStateCharging
			remaining = math.Round(b.HoursToFull() * 60)
		}
		status.ChargingLevelHV = ptr(round1(b.Level))
		status.RemainingRangeElectric = ptr(electricRange)
		status.MaxRangeElectric = ptr(round1(b.MaxRange()))
		status.ChargingStatus = &cs
		status.ChargingTimeRemaining = ptr(remaining)
		profile = &vehicle.ChargingProfile{
			IsPreEntryClimatizationEnabled: ptr(false),
			PreferredChargingWindow:        &vehicle.ChargingWindow{StartTime: "22:00", EndTime: "06:00"},
			PreEntryClimatizationTimer: []vehicle.DepartureTimer{
				{TimerID: vehicle.Timer1, Enabled: ptr(true), DepartureTime: ptr("07:30"), Weekdays: []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}},
				{TimerID: vehicle.Timer2, Enabled: ptr(false)},
				{TimerID: vehicle.Timer3, Enabled: ptr(false)},
			},
			ChargingMode:        ptr("IMMEDIATE_CHARGING"),
			ChargingPreferences: ptr("NO_PRESELECTION"),
		}
	}
	status.RemainingRangeTotal = ptr(round1(total))

	trip := &vehicle.LastTrip{
		TotalDistance: ptr(round1(v.tripKm)),
		Duration:      ptr(math.Round(v.tripTime.Minutes())),
	}
	if !v.tripDate.IsZero() {
		trip.Date = ptr(v.tripDate.UTC().Format(time.RFC3339))
	}
	if v.Battery != nil {
		trip.ElectricDistance = ptr(round1(v.tripEKm))
		if v.tripKm > 0 {
			trip.ElectricDistanceRatio = ptr(round1(v.tripEKm / v.tripKm * 100))
		}
	}

	var trips *vehicle.AllTrips
	if v.Battery != nil {
		services = append(services, vehicle.ServiceAllTrips)
		trips = &vehicle.AllTrips{
			TotalElectricDistance: vehicle.Aggregate{vehicle.UserTotal: round1(v.totalEKm)},
			BatterySizeMax:        ptr(round1(v.Battery.CapacityKWh * 1000)),
		}
	}
	return &vehicle.Vehicle{
		VIN:               v.VIN,
		Name:              v.Name,
		DriveTrain:        v.DriveTrain,
		AvailableServices: services,
		State: vehicle.State{
			Status:          status,
			LastTrip:        trip,
			AllTrips:        trips,
			ChargingProfile: profile,
		},
	}
}

func ptr[T any](v T) *T { return &v }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
