package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cdsensor/core/account"
	"github.com/kilianp07/cdsensor/core/vehicle"
)

const fleetYAML = `
vehicles:
  - vin: WBY1Z21080V000000
    name: i3 94 REX
    drive_train: BEV_REX
    available_services: [STATUS, CHARGING_PROFILE]
    status:
      mileage: 12345
      remaining_fuel: 37.8
      charging_status: CHARGING
    charging_profile:
      preferred_charging_window:
        start_time: "22:00"
        end_time: "06:00"
  - vin: wba00000000000001
    drive_train: CONVENTIONAL
    available_services: [status]
    status:
      mileage: 500
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLFleet(t *testing.T) {
	src := NewFileSource(write(t, "vehicles.yaml", fleetYAML))
	vs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 2)

	i3 := vs[0]
	assert.Equal(t, "WBY1Z21080V000000", i3.VIN)
	assert.Equal(t, vehicle.DriveTrainBEVRangeExt, i3.DriveTrain)
	require.NotNil(t, i3.Status)
	assert.InDelta(t, 37.8, *i3.Status.RemainingFuel, 1e-9)
	require.NotNil(t, i3.ChargingProfile)
	assert.Equal(t, "06:00", i3.ChargingProfile.PreferredChargingWindow.EndTime)

	assert.Equal(t, "WBA00000000000001", vs[1].VIN)
	assert.Equal(t, vs[1].VIN, vs[1].Name)
	assert.True(t, vs[1].HasService(vehicle.ServiceStatus))
}

func TestLoadJSONSingleVehicle(t *testing.T) {
	src := NewFileSource(write(t, "snap.json", `{"vin":"WBY1","drive_train":"BEV","status":{"charging_level_hv":55}}`))
	vs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.InDelta(t, 55, *vs[0].Status.ChargingLevelHV, 1e-9)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewFileSource(write(t, "snap.toml", "vin = 1")).Load(ctx)
	assert.Error(t, err)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).Load(ctx)
	assert.Error(t, err)

	_, err = NewFileSource(write(t, "bad.yaml", "vehicles: nope\n")).Load(ctx)
	assert.Error(t, err)

	_, err = NewFileSource(write(t, "novin.yaml", "vehicles:\n  - name: x\n")).Load(ctx)
	assert.ErrorIs(t, err, vehicle.ErrMissingVIN)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewFileSource(write(t, "ok.yaml", fleetYAML)).Load(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshAccount(t *testing.T) {
	path := write(t, "vehicles.yaml", fleetYAML)
	acct := account.NewMemory()
	require.NoError(t, acct.Refresh(context.Background(), NewFileSource(path)))
	assert.Len(t, acct.Vehicles(), 2)

	require.NoError(t, os.WriteFile(path, []byte("vehicles:\n  - vin: WBY1Z21080V000000\n    status: {mileage: 12400}\n"), 0o644))
	require.NoError(t, acct.Refresh(context.Background(), NewFileSource(path)))
	v, ok := acct.Vehicle("WBY1Z21080V000000")
	require.True(t, ok)
	assert.InDelta(t, 12400, *v.Status.Mileage, 1e-9)
}
