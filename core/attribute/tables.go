package attribute

import "github.com/kilianp07/cdsensor/core/units"

const (
	iconDistance = "mdi:map-marker-distance"
	iconFuel     = "mdi:fuel"
	iconCalendar = "mdi:calendar-blank"
	iconTree     = "mdi:tree-outline"
)

// unitTable builds the unit-dependent entries for the given distance and
// volume units.
func unitTable(distance, volume string) Table {
	consumption := units.Per100(units.KiloWattHour, distance)
	return Table{
		// status
		"mileage":                  {Icon: "mdi:speedometer", Unit: distance},
		"remaining_range_total":    {Icon: iconDistance, Unit: distance},
		"remaining_range_electric": {Icon: iconDistance, Unit: distance},
		"remaining_range_fuel":     {Icon: iconDistance, Unit: distance},
		"max_range_electric":       {Icon: iconDistance, Unit: distance},
		"remaining_fuel":           {Icon: "mdi:gas-station", Unit: volume},
		// last trip
		"average_combined_consumption": {Icon: "mdi:flash", Unit: consumption},
		"average_electric_consumption": {Icon: "mdi:power-plug-outline", Unit: consumption},
		"average_recuperation":         {Icon: "mdi:recycle-variant", Unit: consumption},
		"electric_distance":            {Icon: iconDistance, Unit: distance},
		"saved_fuel":                   {Icon: iconFuel, Unit: volume},
		"total_distance":               {Icon: iconDistance, Unit: distance},
		// all trips
		"chargecycle_range":       {Icon: iconDistance, Unit: distance},
		"total_electric_distance": {Icon: iconDistance, Unit: distance},
		"total_saved_fuel":        {Icon: iconFuel, Unit: volume},
	}
}

var (
	metricTable   = unitTable(units.Kilometers, units.Liters)
	imperialTable = unitTable(units.Miles, units.Gallons)

	genericTable = Table{
		"charging_time_remaining": {Icon: "mdi:update", Unit: units.Hours},
		"charging_status":         {Icon: "mdi:battery-charging"},
		// icon computed from the battery level, see ForBatteryLevel
		"charging_level_hv": {Unit: units.Percentage},
		// last trip
		"date":                    {Icon: iconCalendar},
		"duration":                {Icon: "mdi:timer-outline", Unit: units.Minutes},
		"electric_distance_ratio": {Icon: "mdi:percent-outline", Unit: units.Percentage},
		// all trips
		"battery_size_max":       {Icon: "mdi:battery-charging-high", Unit: units.WattHour},
		"reset_date":             {Icon: iconCalendar},
		"saved_co2":              {Icon: iconTree, Unit: units.Kilograms},
		"saved_co2_green_energy": {Icon: iconTree, Unit: units.Kilograms},
		// charging profile
		"is_pre_entry_climatization_enabled": {Icon: "mdi:snowflake"},
		"preferred_charging_window":          {Icon: "mdi:dock-window"},
		"pre_entry_climatization_timer":      {Icon: "mdi:av-timer"},
		// destinations
		"last_destinations": {Icon: "mdi:pin-outline"},
	}
)
