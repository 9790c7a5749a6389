package spot

import (
	"github.com/xraph/parklot/vehicle"
)

// Counts is an occupancy summary.
type Counts struct {
	Available   int `json:"available"`
	Occupied    int `json:"occupied"`
	Maintenance int `json:"maintenance"`
	Total       int `json:"total"`
}

func (c *Counts) add(status Status, n int) {
	switch status {
	case StatusAvailable:
		c.Available += n
	case StatusOccupied:
		c.Occupied += n
	case StatusMaintenance:
		c.Maintenance += n
	}
	c.Total += n
}

func (c *Counts) merge(o Counts) {
	c.Available += o.Available
	c.Occupied += o.Occupied
	c.Maintenance += o.Maintenance
	c.Total += o.Total
}

// Availability is a consistent snapshot of occupancy, overall and broken
// down by spot type and by floor.
type Availability struct {
	Counts
	ByType  map[vehicle.Type]Counts `json:"by_type"`
	ByFloor map[int]Counts          `json:"by_floor"`

	cells map[cell]Counts
}

// AvailableFor returns how many spots in the snapshot a vehicle of type vt
// could take right now.
func (a *Availability) AvailableFor(vt vehicle.Type) int {
	n := 0
	for _, st := range vt.EligibleSpotTypes() {
		n += a.ByType[st].Available
	}
	return n
}

type cell struct {
	floor int
	typ   vehicle.Type
}

// Tally maintains occupancy counters per (floor, spot type). It is not safe
// for concurrent use; owners update it inside the same critical section that
// mutates the spot records so the two never disagree.
type Tally struct {
	cells map[cell]*Counts
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{cells: make(map[cell]*Counts)}
}

// Count adjusts the counter for (floor, typ, status) by n.
func (t *Tally) Count(floor int, typ vehicle.Type, status Status, n int) {
	k := cell{floor: floor, typ: typ}
	c, ok := t.cells[k]
	if !ok {
		c = &Counts{}
		t.cells[k] = c
	}
	c.add(status, n)
}

// Track adds s to the counters.
func (t *Tally) Track(s *Spot) { t.Count(s.Floor, s.Type, s.Status, 1) }

// Untrack removes s from the counters.
func (t *Tally) Untrack(s *Spot) { t.Count(s.Floor, s.Type, s.Status, -1) }

// Transition moves s from status from to status to.
func (t *Tally) Transition(s *Spot, from, to Status) {
	t.Count(s.Floor, s.Type, from, -1)
	t.Count(s.Floor, s.Type, to, 1)
}

// Snapshot aggregates the counters matching f. Filter.Status is ignored.
func (t *Tally) Snapshot(f Filter) *Availability {
	a := &Availability{
		ByType:  make(map[vehicle.Type]Counts),
		ByFloor: make(map[int]Counts),
		cells:   make(map[cell]Counts),
	}
	for k, c := range t.cells {
		if f.Type != nil && k.typ != *f.Type {
			continue
		}
		if f.Floor != nil && k.floor != *f.Floor {
			continue
		}
		if c.Total == 0 {
			continue
		}
		a.merge(*c)
		a.cells[k] = *c

		bt := a.ByType[k.typ]
		bt.merge(*c)
		a.ByType[k.typ] = bt

		bf := a.ByFloor[k.floor]
		bf.merge(*c)
		a.ByFloor[k.floor] = bf
	}
	return a
}

// Narrow re-aggregates the snapshot under f without another read, so counts
// narrowed from one snapshot always agree with it.
func (a *Availability) Narrow(f Filter) *Availability {
	t := &Tally{cells: make(map[cell]*Counts, len(a.cells))}
	for k, c := range a.cells {
		t.cells[k] = &c
	}
	return t.Snapshot(f)
}

// Summarize builds an Availability from spot records.
func Summarize(spots []*Spot, f Filter) *Availability {
	t := NewTally()
	for _, s := range spots {
		t.Track(s)
	}
	return t.Snapshot(f)
}
