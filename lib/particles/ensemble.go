/*package particles contains the struct-of-arrays particle ensemble that is
threaded through the whole tracking call chain. Coordinates are stored as one
column per variable so that a bulk pass over a single variable touches
contiguous memory.*/
package particles

import (
	"fmt"
)

// State codes. Positive values mean the particle is alive, zero and negative
// values mean it has been lost and carry the reason it was stopped.
const (
	StateAlive        int64 = 1
	StateLostAperture int64 = -11
	StateLostInvalid  int64 = -30
)

// Location identifies which backend currently holds the canonical copy of an
// Ensemble's data. Moving between locations is an explicit, tracked side
// effect of the scheduler, never an implicit copy.
type Location int

const (
	Host Location = iota
	Device
)

func (l Location) String() string {
	switch l {
	case Host:
		return "host"
	case Device:
		return "device"
	default:
		return fmt.Sprintf("Location(%d)", int(l))
	}
}

// CountsUnknown is stored in the active/lost counters when the alive-first
// ordering of the columns can no longer be trusted (e.g. after the buffer
// came back from another backend). Reorganize restores valid counts.
const CountsUnknown = -1

// Ensemble is a fixed-capacity struct-of-arrays particle bunch. All columns
// have length Capacity; the slot of a particle never changes, lost particles
// are marked through State rather than removed.
type Ensemble struct {
	Capacity int

	// Transverse and longitudinal coordinates.
	X, Px, Y, Py []float64
	Zeta, Delta  []float64

	// Relativistic beta of the reference particle, per slot.
	Beta0 []float64

	// Path length along the lattice, reset at the end of a turn when the
	// tracker is configured to do so.
	S []float64

	// State is the alive/lost code, AtTurn the number of completed turns,
	// AtElement the index of the next element to process.
	State     []int64
	AtTurn    []int64
	AtElement []int64

	// StartTrackingAtElement overrides the tracker's start element once.
	// Negative means unset.
	StartTrackingAtElement int

	location   Location
	numActive  int
	numLost    int
	lostHidden bool
	numMoves   int
}

// New creates an Ensemble with the given capacity, all particles alive at
// the origin with the given reference beta.
func New(capacity int, beta0 float64) *Ensemble {
	e := &Ensemble{
		Capacity:  capacity,
		X:         make([]float64, capacity),
		Px:        make([]float64, capacity),
		Y:         make([]float64, capacity),
		Py:        make([]float64, capacity),
		Zeta:      make([]float64, capacity),
		Delta:     make([]float64, capacity),
		Beta0:     make([]float64, capacity),
		S:         make([]float64, capacity),
		State:     make([]int64, capacity),
		AtTurn:    make([]int64, capacity),
		AtElement: make([]int64, capacity),

		StartTrackingAtElement: -1,

		numActive: capacity,
		numLost:   0,
	}
	for i := 0; i < capacity; i++ {
		e.State[i] = StateAlive
		e.Beta0[i] = beta0
	}
	return e
}

// Location returns the backend that currently holds the canonical data.
func (e *Ensemble) Location() Location { return e.location }

// NumMoves returns how many times the ensemble has been moved between
// backends. Useful for asserting that moves are bracketed correctly.
func (e *Ensemble) NumMoves() int { return e.numMoves }

// Move transfers the canonical copy of the ensemble to the given backend.
// Moving invalidates the active/lost counts, since another backend may
// reorder or lose particles without maintaining them.
func (e *Ensemble) Move(to Location) {
	if e.location == to {
		return
	}
	e.location = to
	e.numMoves++
	if to != Host {
		e.numActive = CountsUnknown
		e.numLost = CountsUnknown
	}
}

// NumActive returns the number of alive particles, or CountsUnknown if
// Reorganize has not been run since the counts were invalidated.
func (e *Ensemble) NumActive() int { return e.numActive }

// NumLost returns the number of lost particles, or CountsUnknown.
func (e *Ensemble) NumLost() int { return e.numLost }

// HasValidCounts returns true if the alive/lost counters are usable.
func (e *Ensemble) HasValidCounts() bool {
	return e.numActive >= 0 && e.numLost >= 0
}

// InvalidateCounts marks the active/lost counters as unknown.
func (e *Ensemble) InvalidateCounts() {
	e.numActive = CountsUnknown
	e.numLost = CountsUnknown
}

// Reorganize recomputes the alive/lost counts. The slot order is left
// untouched: tracking identifies particles by slot, so a reorganization
// only refreshes the bookkeeping, it never compacts the columns.
func (e *Ensemble) Reorganize() {
	active := 0
	for i := 0; i < e.Capacity; i++ {
		if e.State[i] > 0 {
			active++
		}
	}
	e.numActive = active
	e.numLost = e.Capacity - active
}

// LostHidden returns true while lost particles are hidden from collective
// elements.
func (e *Ensemble) LostHidden() bool { return e.lostHidden }

// HideLost marks the ensemble so collective elements that cannot cope with
// dead slots skip them. Hiding twice is fine; the flag is not a counter.
func (e *Ensemble) HideLost() { e.lostHidden = true }

// UnhideLost undoes HideLost.
func (e *Ensemble) UnhideLost() { e.lostHidden = false }

// FirstActive returns the slot of the first alive particle, or -1 if every
// particle has been lost.
func (e *Ensemble) FirstActive() int {
	for i := 0; i < e.Capacity; i++ {
		if e.State[i] > 0 {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the ensemble, including bookkeeping state.
func (e *Ensemble) Clone() *Ensemble {
	out := New(e.Capacity, 0)
	copy(out.X, e.X)
	copy(out.Px, e.Px)
	copy(out.Y, e.Y)
	copy(out.Py, e.Py)
	copy(out.Zeta, e.Zeta)
	copy(out.Delta, e.Delta)
	copy(out.Beta0, e.Beta0)
	copy(out.S, e.S)
	copy(out.State, e.State)
	copy(out.AtTurn, e.AtTurn)
	copy(out.AtElement, e.AtElement)
	out.StartTrackingAtElement = e.StartTrackingAtElement
	out.location = e.location
	out.numActive = e.numActive
	out.numLost = e.numLost
	out.lostHidden = e.lostHidden
	out.numMoves = e.numMoves
	return out
}

// Check validates the column lengths against the capacity. It returns an
// error describing the first mismatch it finds.
func (e *Ensemble) Check() error {
	cols := []struct {
		name string
		n    int
	}{
		{"x", len(e.X)}, {"px", len(e.Px)},
		{"y", len(e.Y)}, {"py", len(e.Py)},
		{"zeta", len(e.Zeta)}, {"delta", len(e.Delta)},
		{"beta0", len(e.Beta0)}, {"s", len(e.S)},
		{"state", len(e.State)}, {"at_turn", len(e.AtTurn)},
		{"at_element", len(e.AtElement)},
	}
	for _, c := range cols {
		if c.n != e.Capacity {
			return fmt.Errorf(
				"The column '%s' has length %d, but the ensemble capacity is %d.",
				c.name, c.n, e.Capacity,
			)
		}
	}
	return nil
}
