package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawI3() map[string]any {
	return map[string]any{
		"vin":                " wby1z21080v000000 ",
		"name":               "i3 94 REX",
		"drive_train":        "BEV_REX",
		"available_services": []any{"STATUS", "last_trip", "ALL_TRIPS", "CHARGING_PROFILE", "DESTINATIONS"},
		"status": map[string]any{
			"mileage":           12345,
			"remaining_fuel":    37.8,
			"charging_status":   "CHARGING",
			"charging_level_hv": 80,
		},
		"last_trip": map[string]any{
			"total_distance": 12.5,
			"date":           "2021-01-02T10:00:00",
		},
		"all_trips": map[string]any{
			"average_combined_consumption": map[string]any{"community_low": 0, "user_average": 15.1},
			"battery_size_max":             33200,
		},
		"charging_profile": map[string]any{
			"is_pre_entry_climatization_enabled": false,
			"preferred_charging_window":          map[string]any{"start_time": "22:00", "end_time": "06:00"},
			"pre_entry_climatization_timer": []any{
				map[string]any{"timer_id": "TIMER1", "enabled": true, "departure_time": "07:30", "weekdays": []any{"MONDAY"}},
			},
		},
		"last_destinations": map[string]any{
			"last_destinations": []any{
				map[string]any{"city": "Munich", "lat": 48.1, "lon": 11.5},
				map[string]any{"city": "Berlin"},
			},
		},
	}
}

func TestDecode(t *testing.T) {
	v, err := Decode(rawI3())
	require.NoError(t, err)
	assert.Equal(t, "WBY1Z21080V000000", v.VIN)
	assert.Equal(t, DriveTrainBEVRangeExt, v.DriveTrain)
	assert.True(t, v.HasService(ServiceLastTrip))
	require.NotNil(t, v.Status)
	assert.InDelta(t, 12345, *v.Status.Mileage, 1e-9)
	assert.True(t, v.Charging())
	require.NotNil(t, v.AllTrips)
	assert.InDelta(t, 15.1, v.AllTrips.AverageCombinedConsumption["user_average"], 1e-9)
	require.NotNil(t, v.ChargingProfile)
	assert.Equal(t, "22:00", v.ChargingProfile.PreferredChargingWindow.StartTime)
	require.NotNil(t, v.LastDestinations)
	assert.Len(t, v.LastDestinations.LastDestinations, 2)
}

func TestDecodeMissingVIN(t *testing.T) {
	_, err := Decode(map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrMissingVIN)
}

func TestDecodeListRejectsNonMaps(t *testing.T) {
	_, err := DecodeList([]any{"oops"})
	assert.Error(t, err)
}

func TestAvailableAttributesDeclarationOrder(t *testing.T) {
	v, err := Decode(rawI3())
	require.NoError(t, err)
	assert.Equal(t, []string{"mileage", "remaining_fuel", "charging_status", "charging_level_hv"}, v.AvailableAttributes())

	sec, ok := v.Section(ServiceChargingProfile)
	require.True(t, ok)
	assert.Equal(t, []string{
		"is_pre_entry_climatization_enabled",
		"preferred_charging_window",
		"pre_entry_climatization_timer",
	}, sec.AvailableAttributes())

	f := sec.Fields()
	assert.Equal(t, false, f["is_pre_entry_climatization_enabled"])
	assert.Equal(t, ChargingWindow{StartTime: "22:00", EndTime: "06:00"}, f["preferred_charging_window"])
}

func TestSectionNotReported(t *testing.T) {
	v := &Vehicle{VIN: "X"}
	for _, s := range Services {
		_, ok := v.Section(s)
		assert.False(t, ok, s)
	}
	assert.Nil(t, v.AvailableAttributes())
	assert.False(t, v.Charging())
}

func TestDriveTrainAttributes(t *testing.T) {
	assert.Equal(t, []string{"mileage", "remaining_range_total", "remaining_fuel", "remaining_range_fuel"},
		DriveTrainConventional.Attributes())
	assert.NotContains(t, DriveTrainBEV.Attributes(), "remaining_fuel")
	assert.Contains(t, DriveTrainBEV.Attributes(), "charging_level_hv")
	assert.Len(t, DriveTrainPHEV.Attributes(), 9)
	assert.Equal(t, DriveTrainPHEV.Attributes(), DriveTrainBEVRangeExt.Attributes())
	assert.Equal(t, commonAttributes, DriveTrain("HYDROGEN").Attributes())
}

func TestTimerLookup(t *testing.T) {
	v, err := Decode(rawI3())
	require.NoError(t, err)
	tm, ok := v.ChargingProfile.Timer(Timer1)
	require.True(t, ok)
	assert.Equal(t, "07:30", *tm.DepartureTime)
	_, ok = v.ChargingProfile.Timer(Timer2)
	assert.False(t, ok)
}

func TestServiceHelpers(t *testing.T) {
	assert.Equal(t, "charging_profile", ServiceChargingProfile.Lower())
	assert.True(t, ServiceDestinations.Known())
	assert.False(t, Service("REMOTE").Known())
}

func TestAggregateSubFieldsCanonicalOrder(t *testing.T) {
	a := Aggregate{UserHigh: 1, CommunityLow: 2, "bogus": 3, UserAverage: 4}
	assert.Equal(t, []string{CommunityLow, UserAverage, UserHigh}, a.SubFields())
	assert.Empty(t, Aggregate{}.SubFields())
}
