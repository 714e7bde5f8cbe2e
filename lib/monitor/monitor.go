/*package monitor implements the fixed-capacity turn-by-turn recorder that
the dispatcher drives at well-defined points of the tracking loop. A recorder
owns (stopAtTurn - startAtTurn) * numSlots record cells; a write outside that
window is either skipped (turn not in the window) or refused (cell index out
of capacity), never silently dropped into adjacent cells.*/
package monitor

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/accelsim/ringtrack/lib/particles"
)

// Mode selects the granularity at which the dispatcher calls the recorder.
type Mode int

const (
	// Off records nothing.
	Off Mode = iota
	// PerTurn records every particle once per turn, before element 0.
	PerTurn
	// PerElement records every particle once per element. Only legal for
	// single-turn, purely bulk sweeps.
	PerElement
)

// Recorder is a fixed-capacity turn-by-turn sample buffer. Cells are indexed
// by (turn - StartAtTurn) * numSlots + slot. In element-by-element mode the
// particle's at_element counter takes the place of the turn.
type Recorder struct {
	StartAtTurn, StopAtTurn int

	// EBEMode indexes records by at_element instead of at_turn.
	EBEMode bool

	numSlots int

	X, Px, Y, Py []float64
	Zeta, Delta  []float64
	S            []float64
	State        []int64
	AtTurn       []int64

	written []bool
}

// NewRecorder creates a recorder for the turn window [startAtTurn,
// stopAtTurn) over numSlots particle slots.
func NewRecorder(startAtTurn, stopAtTurn, numSlots int) (*Recorder, error) {
	if stopAtTurn < startAtTurn {
		return nil, fmt.Errorf(
			"The monitor window [%d, %d) is inverted.", startAtTurn, stopAtTurn,
		)
	}
	if numSlots <= 0 {
		return nil, fmt.Errorf(
			"A monitor needs at least one particle slot, got %d.", numSlots,
		)
	}
	n := (stopAtTurn - startAtTurn) * numSlots
	return &Recorder{
		StartAtTurn: startAtTurn,
		StopAtTurn:  stopAtTurn,
		numSlots:    numSlots,
		X:           make([]float64, n),
		Px:          make([]float64, n),
		Y:           make([]float64, n),
		Py:          make([]float64, n),
		Zeta:        make([]float64, n),
		Delta:       make([]float64, n),
		S:           make([]float64, n),
		State:       make([]int64, n),
		AtTurn:      make([]int64, n),
		written:     make([]bool, n),
	}, nil
}

// NumSlots returns the number of particle slots per recorded turn.
func (r *Recorder) NumSlots() int { return r.numSlots }

// NumTurns returns the width of the recording window in turns.
func (r *Recorder) NumTurns() int { return r.StopAtTurn - r.StartAtTurn }

// Capacity returns the total number of record cells.
func (r *Recorder) Capacity() int { return len(r.X) }

// CheckWindow refuses a tracking request that would need more recorded
// turns than the window holds. This runs before the first element executes,
// so a miscomputed window can never cause an out-of-bounds write mid-run.
func (r *Recorder) CheckWindow(turnsNeeded int) error {
	if turnsNeeded > r.NumTurns() {
		return fmt.Errorf(
			"The tracking request records %d turns, but the monitor window "+
				"only holds %d.", turnsNeeded, r.NumTurns(),
		)
	}
	return nil
}

// RecordOne samples particle slot i of e into the cell addressed by the
// particle's own turn (or element) counter. Slots beyond the recorder's
// slot count and turns outside the window are skipped. A computed cell
// index outside the capacity is refused with an error.
func (r *Recorder) RecordOne(e *particles.Ensemble, i int) error {
	if i >= r.numSlots {
		return nil
	}
	turn := int(e.AtTurn[i])
	if r.EBEMode {
		turn = int(e.AtElement[i])
	}
	if turn < r.StartAtTurn || turn >= r.StopAtTurn {
		return nil
	}
	idx := (turn-r.StartAtTurn)*r.numSlots + i
	if idx < 0 || idx >= len(r.X) {
		return fmt.Errorf(
			"Record cell %d for particle %d at turn %d is outside the "+
				"monitor capacity %d.", idx, i, turn, len(r.X),
		)
	}

	r.X[idx] = e.X[i]
	r.Px[idx] = e.Px[i]
	r.Y[idx] = e.Y[i]
	r.Py[idx] = e.Py[i]
	r.Zeta[idx] = e.Zeta[i]
	r.Delta[idx] = e.Delta[i]
	r.S[idx] = e.S[i]
	r.State[idx] = e.State[i]
	r.AtTurn[idx] = e.AtTurn[i]
	r.written[idx] = true
	return nil
}

// Record samples every particle of e once. The dispatcher calls this at the
// per-turn granularity; the kernel calls RecordOne from its per-particle
// lanes instead.
func (r *Recorder) Record(e *particles.Ensemble) error {
	n := e.Capacity
	if n > r.numSlots {
		n = r.numSlots
	}
	for i := 0; i < n; i++ {
		if err := r.RecordOne(e, i); err != nil {
			return err
		}
	}
	return nil
}

// Written returns true if the cell for (turn, slot) has been written.
func (r *Recorder) Written(turn, slot int) bool {
	idx := (turn-r.StartAtTurn)*r.numSlots + slot
	return idx >= 0 && idx < len(r.written) && r.written[idx]
}

// TurnStats summarizes one recorded turn.
type TurnStats struct {
	Turn        int
	MeanX, StdX float64
	MeanY, StdY float64
	MeanZeta    float64
	NumAlive    int
}

// Stats computes per-turn centroid statistics over the alive records of
// each turn in the window.
func (r *Recorder) Stats() []TurnStats {
	out := make([]TurnStats, 0, r.NumTurns())
	xs := make([]float64, 0, r.numSlots)
	ys := make([]float64, 0, r.numSlots)
	zs := make([]float64, 0, r.numSlots)
	for t := r.StartAtTurn; t < r.StopAtTurn; t++ {
		xs, ys, zs = xs[:0], ys[:0], zs[:0]
		base := (t - r.StartAtTurn) * r.numSlots
		for s := 0; s < r.numSlots; s++ {
			if !r.written[base+s] || r.State[base+s] <= 0 {
				continue
			}
			xs = append(xs, r.X[base+s])
			ys = append(ys, r.Y[base+s])
			zs = append(zs, r.Zeta[base+s])
		}
		st := TurnStats{Turn: t, NumAlive: len(xs)}
		if len(xs) > 0 {
			st.MeanX, st.StdX = stat.MeanStdDev(xs, nil)
			st.MeanY, st.StdY = stat.MeanStdDev(ys, nil)
			st.MeanZeta = stat.Mean(zs, nil)
		}
		out = append(out, st)
	}
	return out
}
