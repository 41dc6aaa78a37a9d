package vehicle

import (
	"strings"

	"github.com/fatih/structs"
)

// Section is the state reported by one service. Fields that the remote did
// not report are absent from both methods.
type Section interface {
	// AvailableAttributes lists the reported keys in declaration order.
	AvailableAttributes() []string
	// Fields maps the reported keys to their values. Pointer fields are
	// dereferenced.
	Fields() map[string]any
}

// State groups the per-service sections of a vehicle snapshot. A nil section
// was not reported.
type State struct {
	Status           *VehicleStatus    `json:"status,omitempty"`
	LastTrip         *LastTrip         `json:"last_trip,omitempty"`
	AllTrips         *AllTrips         `json:"all_trips,omitempty"`
	ChargingProfile  *ChargingProfile  `json:"charging_profile,omitempty"`
	LastDestinations *LastDestinations `json:"last_destinations,omitempty"`
}

// ChargingState is the charging status enumeration of the high-voltage
// battery.
type ChargingState string

const (
	ChargingStateCharging           ChargingState = "CHARGING"
	ChargingStateError              ChargingState = "ERROR"
	ChargingStateFullyCharged       ChargingState = "FINISHED_FULLY_CHARGED"
	ChargingStateFinishedNotFull    ChargingState = "FINISHED_NOT_FULL"
	ChargingStateInvalid            ChargingState = "INVALID"
	ChargingStateNotCharging        ChargingState = "NOT_CHARGING"
	ChargingStatePluggedIn          ChargingState = "PLUGGED_IN"
	ChargingStateWaitingForCharging ChargingState = "WAITING_FOR_CHARGING"
)

// Label returns the scalar label of the state.
func (c ChargingState) Label() string { return string(c) }

// VehicleStatus is the STATUS section. Distances are in kilometers and
// volumes in liters.
type VehicleStatus struct {
	Mileage                *float64       `json:"mileage,omitempty"`
	RemainingRangeTotal    *float64       `json:"remaining_range_total,omitempty"`
	RemainingRangeElectric *float64       `json:"remaining_range_electric,omitempty"`
	RemainingRangeFuel     *float64       `json:"remaining_range_fuel,omitempty"`
	MaxRangeElectric       *float64       `json:"max_range_electric,omitempty"`
	RemainingFuel          *float64       `json:"remaining_fuel,omitempty"`
	ChargingTimeRemaining  *float64       `json:"charging_time_remaining,omitempty"`
	ChargingStatus         *ChargingState `json:"charging_status,omitempty"`
	ChargingLevelHV        *float64       `json:"charging_level_hv,omitempty"`
}

func (s *VehicleStatus) AvailableAttributes() []string { return reported(s) }
func (s *VehicleStatus) Fields() map[string]any        { return fields(s) }

// LastTrip is the LAST_TRIP section.
type LastTrip struct {
	AverageCombinedConsumption *float64 `json:"average_combined_consumption,omitempty"`
	AverageElectricConsumption *float64 `json:"average_electric_consumption,omitempty"`
	AverageRecuperation        *float64 `json:"average_recuperation,omitempty"`
	ElectricDistance           *float64 `json:"electric_distance,omitempty"`
	SavedFuel                  *float64 `json:"saved_fuel,omitempty"`
	TotalDistance              *float64 `json:"total_distance,omitempty"`
	Date                       *string  `json:"date,omitempty"`
	Duration                   *float64 `json:"duration,omitempty"`
	ElectricDistanceRatio      *float64 `json:"electric_distance_ratio,omitempty"`
}

func (s *LastTrip) AvailableAttributes() []string { return reported(s) }
func (s *LastTrip) Fields() map[string]any        { return fields(s) }

// AllTrips is the ALL_TRIPS section. Consumption and range statistics are
// reported as aggregates.
type AllTrips struct {
	AverageCombinedConsumption Aggregate `json:"average_combined_consumption,omitempty"`
	AverageElectricConsumption Aggregate `json:"average_electric_consumption,omitempty"`
	AverageRecuperation        Aggregate `json:"average_recuperation,omitempty"`
	ChargecycleRange           Aggregate `json:"chargecycle_range,omitempty"`
	TotalElectricDistance      Aggregate `json:"total_electric_distance,omitempty"`
	BatterySizeMax             *float64  `json:"battery_size_max,omitempty"`
	ResetDate                  *string   `json:"reset_date,omitempty"`
	SavedCO2                   *float64  `json:"saved_co2,omitempty"`
	SavedCO2GreenEnergy        *float64  `json:"saved_co2_green_energy,omitempty"`
	TotalSavedFuel             *float64  `json:"total_saved_fuel,omitempty"`
}

func (s *AllTrips) AvailableAttributes() []string { return reported(s) }
func (s *AllTrips) Fields() map[string]any        { return fields(s) }

// ChargingProfile is the CHARGING_PROFILE section.
type ChargingProfile struct {
	IsPreEntryClimatizationEnabled *bool            `json:"is_pre_entry_climatization_enabled,omitempty"`
	PreferredChargingWindow        *ChargingWindow  `json:"preferred_charging_window,omitempty"`
	PreEntryClimatizationTimer     []DepartureTimer `json:"pre_entry_climatization_timer,omitempty"`
	ChargingMode                   *string          `json:"charging_mode,omitempty"`
	ChargingPreferences            *string          `json:"charging_preferences,omitempty"`
}

func (s *ChargingProfile) AvailableAttributes() []string { return reported(s) }
func (s *ChargingProfile) Fields() map[string]any        { return fields(s) }

// Timer returns the departure timer with the given id.
func (s *ChargingProfile) Timer(id TimerID) (DepartureTimer, bool) {
	for _, t := range s.PreEntryClimatizationTimer {
		if strings.EqualFold(string(t.TimerID), string(id)) {
			return t, true
		}
	}
	return DepartureTimer{}, false
}

// LastDestinations is the DESTINATIONS section.
type LastDestinations struct {
	LastDestinations []Destination `json:"last_destinations,omitempty"`
}

func (s *LastDestinations) AvailableAttributes() []string { return reported(s) }
func (s *LastDestinations) Fields() map[string]any        { return fields(s) }

// Aggregate holds the community and user statistics of a trip value keyed by
// sub-field.
type Aggregate map[string]float64

// Aggregate sub-fields.
const (
	CommunityLow           = "community_low"
	CommunityAverage       = "community_average"
	CommunityHigh          = "community_high"
	UserAverage            = "user_average"
	UserTotal              = "user_total"
	UserHigh               = "user_high"
	UserCurrentChargeCycle = "user_current_charge_cycle"
)

// AggregateFields lists the aggregate sub-fields in canonical order.
var AggregateFields = []string{
	CommunityLow,
	CommunityAverage,
	CommunityHigh,
	UserAverage,
	UserTotal,
	UserHigh,
	UserCurrentChargeCycle,
}

// SubFields returns the reported sub-fields in canonical order. Unknown
// sub-fields are ignored.
func (a Aggregate) SubFields() []string {
	var out []string
	for _, f := range AggregateFields {
		if _, ok := a[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ChargingWindow sub-fields.
const (
	WindowStartTime = "start_time"
	WindowEndTime   = "end_time"
)

// ChargingWindow is the preferred time window for charging, as HH:MM.
type ChargingWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// TimerID identifies a climatization departure timer.
type TimerID string

const (
	Timer1 TimerID = "TIMER1"
	Timer2 TimerID = "TIMER2"
	Timer3 TimerID = "TIMER3"
)

// Timers lists the timer slots a vehicle offers.
var Timers = []TimerID{Timer1, Timer2, Timer3}

// Departure timer sub-fields.
const (
	TimerEnabled       = "enabled"
	TimerDepartureTime = "departure_time"
	TimerWeekdays      = "weekdays"
)

// TimerFields lists the departure timer sub-fields exposed as sensors.
var TimerFields = []string{TimerEnabled, TimerDepartureTime, TimerWeekdays}

// DepartureTimer is one climatization timer slot.
type DepartureTimer struct {
	TimerID       TimerID  `json:"timer_id"`
	Enabled       *bool    `json:"enabled,omitempty"`
	DepartureTime *string  `json:"departure_time,omitempty"`
	Weekdays      []string `json:"weekdays,omitempty"`
}

// Destination is a recently navigated destination.
type Destination struct {
	Type      string  `json:"type,omitempty"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Street    string  `json:"street,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

const tagName = "json"

func fieldKey(f *structs.Field) string {
	name, _, _ := strings.Cut(f.Tag(tagName), ",")
	if name == "" {
		return f.Name()
	}
	return name
}

func reported(section any) []string {
	var keys []string
	for _, f := range structs.Fields(section) {
		if f.IsZero() {
			continue
		}
		keys = append(keys, fieldKey(f))
	}
	return keys
}

func fields(section any) map[string]any {
	out := map[string]any{}
	for _, f := range structs.Fields(section) {
		if f.IsZero() {
			continue
		}
		out[fieldKey(f)] = deref(f.Value())
	}
	return out
}

func deref(v any) any {
	switch x := v.(type) {
	case *float64:
		return *x
	case *string:
		return *x
	case *bool:
		return *x
	case *ChargingState:
		return *x
	case *ChargingWindow:
		return *x
	}
	return v
}
