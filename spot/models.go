// Package spot models physical parking spots and the occupancy counters
// derived from them.
package spot

import (
	"errors"
	"fmt"

	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ErrInvalid is returned when a spot definition fails validation.
var ErrInvalid = errors.New("spot: invalid spot")

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusOccupied    Status = "OCCUPIED"
	StatusMaintenance Status = "MAINTENANCE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// Spot is a single parking position. Occupant holds the normalised license
// plate of the parked vehicle and is non-empty iff Status is OCCUPIED.
type Spot struct {
	types.Stamp
	ID       id.SpotID    `json:"id"`
	Floor    int          `json:"floor"`
	Number   int          `json:"spot_number"`
	Type     vehicle.Type `json:"spot_type"`
	Status   Status       `json:"status"`
	Occupant string       `json:"occupant,omitempty"`
}

// Validate checks the spot's static fields and the occupant invariant.
func (s *Spot) Validate() error {
	switch {
	case s.Floor < 1:
		return fmt.Errorf("%w: floor must be >= 1, got %d", ErrInvalid, s.Floor)
	case s.Number < 1:
		return fmt.Errorf("%w: spot number must be >= 1, got %d", ErrInvalid, s.Number)
	case !s.Type.Valid():
		return fmt.Errorf("%w: spot type %q", ErrInvalid, s.Type)
	case !s.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalid, s.Status)
	case (s.Status == StatusOccupied) != (s.Occupant != ""):
		return fmt.Errorf("%w: occupant must be set iff status is OCCUPIED", ErrInvalid)
	}
	return nil
}

// Label is the human-facing position, e.g. "F2-017".
func (s *Spot) Label() string {
	return fmt.Sprintf("F%d-%03d", s.Floor, s.Number)
}

// Less reports whether a precedes b in best-fit order: floor ascending, then
// spot-type size ascending, then spot number ascending.
func Less(a, b *Spot) bool {
	if a.Floor != b.Floor {
		return a.Floor < b.Floor
	}
	if pa, pb := a.Type.SizePriority(), b.Type.SizePriority(); pa != pb {
		return pa < pb
	}
	return a.Number < b.Number
}

// Filter narrows availability and listing queries. Nil fields match all.
type Filter struct {
	Type   *vehicle.Type `json:"spot_type,omitempty"`
	Floor  *int          `json:"floor,omitempty"`
	Status *Status       `json:"status,omitempty"`
}

// Match reports whether s satisfies the filter.
func (f Filter) Match(s *Spot) bool {
	if f.Type != nil && s.Type != *f.Type {
		return false
	}
	if f.Floor != nil && s.Floor != *f.Floor {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	return true
}

type ListOpts struct {
	Filter
	Limit  int
	Offset int
}

// CheckAdminTransition reports whether from -> to is an operator-initiated
// move. Only AVAILABLE <-> MAINTENANCE qualifies; OCCUPIED is entered and
// left by entry and exit alone.
func CheckAdminTransition(from, to Status) error {
	switch {
	case from == StatusAvailable && to == StatusMaintenance,
		from == StatusMaintenance && to == StatusAvailable:
		return nil
	}
	return fmt.Errorf("%w: transition %s -> %s is not administrative", ErrInvalid, from, to)
}
