// Package allocation selects which spot a vehicle should receive.
//
// A Policy is pure: it chooses among candidates it is handed and never
// mutates them. Committing the choice is the inventory's job, inside its
// atomic section.
package allocation

import (
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/vehicle"
)

// Policy picks a spot for a vehicle type from a set of candidates.
// Select returns nil when no candidate is acceptable.
type Policy interface {
	Name() string
	Select(vt vehicle.Type, candidates []*spot.Spot) *spot.Spot
}

// BestFit fills low floors first and, within a floor, the smallest spot
// type that can legally hold the vehicle. Spot number breaks remaining ties,
// so the same inventory and vehicle type always yield the same spot.
type BestFit struct{}

var _ Policy = BestFit{}

// Name implements Policy.
func (BestFit) Name() string { return "best-fit" }

// Select implements Policy.
func (BestFit) Select(vt vehicle.Type, candidates []*spot.Spot) *spot.Spot {
	var best *spot.Spot
	for _, s := range candidates {
		if !Eligible(vt, s) {
			continue
		}
		if best == nil || spot.Less(s, best) {
			best = s
		}
	}
	return best
}

// Eligible reports whether s is free and of a type vt may occupy.
func Eligible(vt vehicle.Type, s *spot.Spot) bool {
	return s.Status == spot.StatusAvailable && vt.Fits(s.Type)
}
