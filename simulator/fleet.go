package main

import (
	"fmt"
	"math/rand"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

var driveTrains = []vehicle.DriveTrain{
	vehicle.DriveTrainBEV,
	vehicle.DriveTrainBEVRangeExt,
	vehicle.DriveTrainPHEV,
	vehicle.DriveTrainConventional,
}

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size int
	Seed int64
}

// GenerateFleet creates Size vehicles with VINs WBASIM00000000001 and up.
// Drive trains rotate through BEV, BEV_REX, PHEV and CONVENTIONAL.
func GenerateFleet(cfg FleetConfig) []*SimulatedVehicle {
	if cfg.Size <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	vs := make([]*SimulatedVehicle, cfg.Size)
	for i := range vs {
		dt := driveTrains[i%len(driveTrains)]
		v := &SimulatedVehicle{
			VIN:        fmt.Sprintf("WBASIM%011d", i+1),
			Name:       fmt.Sprintf("sim %s %d", dt, i+1),
			DriveTrain: dt,
			Mileage:    1000 + rng.Float64()*50000,
			rng:        rand.New(rand.NewSource(cfg.Seed + int64(i) + 1)),
		}
		if dt != vehicle.DriveTrainConventional {
			v.Battery = &Battery{
				CapacityKWh:    20 + rng.Float64()*60,
				Level:          20 + rng.Float64()*80,
				ChargeRateKW:   7.4,
				ConsumptionKWh: 15 + rng.Float64()*5,
			}
		}
		if dt != vehicle.DriveTrainBEV {
			v.TankLiters = 9
			if dt == vehicle.DriveTrainConventional {
				v.TankLiters = 50
			}
			v.Fuel = v.TankLiters * (0.3 + rng.Float64()*0.7)
		}
		vs[i] = v
	}
	return vs
}
