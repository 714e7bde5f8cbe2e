package particles

/* This file contains the serializable projection of an Ensemble. The
snapshot carries only exported fields so it can pass through encoding/gob
unchanged; the bookkeeping counters are rebuilt on restore. */

// Snapshot is the serializable state of an Ensemble.
type Snapshot struct {
	Capacity int

	X, Px, Y, Py []float64
	Zeta, Delta  []float64
	Beta0        []float64
	S            []float64

	State     []int64
	AtTurn    []int64
	AtElement []int64

	StartTrackingAtElement int
	Location               Location
	LostHidden             bool
	NumMoves               int
}

// Snapshot returns a deep serializable copy of the ensemble.
func (e *Ensemble) Snapshot() *Snapshot {
	c := e.Clone()
	return &Snapshot{
		Capacity: c.Capacity,
		X:        c.X, Px: c.Px, Y: c.Y, Py: c.Py,
		Zeta: c.Zeta, Delta: c.Delta,
		Beta0: c.Beta0, S: c.S,
		State: c.State, AtTurn: c.AtTurn, AtElement: c.AtElement,

		StartTrackingAtElement: c.StartTrackingAtElement,
		Location:               c.location,
		LostHidden:             c.lostHidden,
		NumMoves:               c.numMoves,
	}
}

// FromSnapshot rebuilds an Ensemble from a snapshot. The alive/lost counts
// are recomputed for host-resident buffers and left unknown otherwise.
func FromSnapshot(s *Snapshot) *Ensemble {
	e := &Ensemble{
		Capacity: s.Capacity,
		X:        s.X, Px: s.Px, Y: s.Y, Py: s.Py,
		Zeta: s.Zeta, Delta: s.Delta,
		Beta0: s.Beta0, S: s.S,
		State: s.State, AtTurn: s.AtTurn, AtElement: s.AtElement,

		StartTrackingAtElement: s.StartTrackingAtElement,
		location:               s.Location,
		lostHidden:             s.LostHidden,
		numMoves:               s.NumMoves,
	}
	if e.location == Host {
		e.Reorganize()
	} else {
		e.InvalidateCounts()
	}
	return e
}
