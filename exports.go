package parklot

import (
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for everyday calls.

// Money is re-exported from types package.
type Money = types.Money

// Stamp is re-exported from the types package.
type Stamp = types.Stamp

// VehicleType is re-exported from vehicle package.
type VehicleType = vehicle.Type

// Vehicle type constants.
const (
	Motorcycle = vehicle.Motorcycle
	Car        = vehicle.Car
	Bus        = vehicle.Bus
)

// Filter is re-exported from spot package.
type Filter = spot.Filter

// Re-export Money constructors
var (
	NewMoney   = types.New
	USD        = types.USD
	Zero       = types.Zero
	ParseMoney = types.ParseMoney
)

// ParseVehicleType is re-exported from vehicle package.
var ParseVehicleType = vehicle.ParseType
