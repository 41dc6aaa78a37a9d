package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

type staticSource struct {
	vs  []*vehicle.Vehicle
	err error
}

func (s staticSource) Load(context.Context) ([]*vehicle.Vehicle, error) { return s.vs, s.err }

func TestMemorySetReplaces(t *testing.T) {
	m := NewMemory(&vehicle.Vehicle{VIN: "B", Name: "first"})
	old, ok := m.Vehicle("b")
	require.True(t, ok)

	m.Set(&vehicle.Vehicle{VIN: "B", Name: "second"})
	cur, _ := m.Vehicle("B")
	assert.Equal(t, "second", cur.Name)
	assert.Equal(t, "first", old.Name, "previous snapshot must stay untouched")
}

func TestMemoryVehiclesSorted(t *testing.T) {
	m := NewMemory(&vehicle.Vehicle{VIN: "C"}, &vehicle.Vehicle{VIN: "A"}, &vehicle.Vehicle{VIN: "B"})
	var vins []string
	for _, v := range m.Vehicles() {
		vins = append(vins, v.VIN)
	}
	assert.Equal(t, []string{"A", "B", "C"}, vins)
	_, ok := m.UpdatedAt("a")
	assert.True(t, ok)
}

func TestMemoryIgnoresEmptyVIN(t *testing.T) {
	m := NewMemory()
	m.Set(nil)
	m.Set(&vehicle.Vehicle{})
	assert.Empty(t, m.Vehicles())
}

func TestMemoryOnUpdate(t *testing.T) {
	m := NewMemory()
	var got []string
	require.NoError(t, m.OnUpdate(func(vin string) { got = append(got, vin) }))
	m.SetAll([]*vehicle.Vehicle{{VIN: "x1"}, {VIN: "X2"}})
	assert.Equal(t, []string{"X1", "X2"}, got)
}

func TestMemoryRefresh(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Refresh(context.Background(), staticSource{vs: []*vehicle.Vehicle{{VIN: "A"}}}))
	assert.Len(t, m.Vehicles(), 1)

	boom := errors.New("boom")
	err := m.Refresh(context.Background(), staticSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestSelect(t *testing.T) {
	vs := []*vehicle.Vehicle{{VIN: "A"}, {VIN: "B"}, {VIN: "C"}}

	all, err := Select(vs, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sel, err := Select(vs, []string{" c ", "a"})
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, "A", sel[0].VIN)
	assert.Equal(t, "C", sel[1].VIN)

	_, err = Select(vs, []string{"Z"})
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}
