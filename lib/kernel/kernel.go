/*package kernel executes bulk passes over the particle ensemble. A single
Track call covers a contiguous element range for a number of turns and is
data-parallel over the particle dimension: particles are split into chunks,
one goroutine per chunk, and each particle is carried through the whole
range independently. The result is deterministic for a given input buffer
and range regardless of the number of lanes.*/
package kernel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// Args describes one bulk dispatch: a contiguous element range, a turn
// count, and the bookkeeping flags that keep a split-up run identical to a
// single sweep.
type Args struct {
	// NumTurns is the number of times the range is traversed.
	NumTurns int
	// EleStart is the first element of the range, NumEleTrack the number
	// of elements covered.
	EleStart, NumEleTrack int

	// EndTurnActions enables the end-of-turn bookkeeping (increment
	// at_turn, reset at_element, optionally reset s).
	EndTurnActions bool
	// ResetSAtEndTurn zeroes the path length at the end of each turn.
	ResetSAtEndTurn bool

	// MonitorMode and Recorder drive turn-by-turn recording from inside
	// the kernel loop.
	MonitorMode monitor.Mode
	Recorder    *monitor.Recorder

	// Backtrack reverses the traversal order and the sign of the
	// at_element/at_turn increments.
	Backtrack bool

	// NumElemLine is the number of elements in the full line, needed to
	// rewind at_element across an end-of-turn boundary when backtracking.
	NumElemLine int
	// LineLength restores the path length across a backtracked end of
	// turn when ResetSAtEndTurn is set.
	LineLength float64
}

// Kernel is a compiled bulk pass over a purely bulk element sequence.
type Kernel struct {
	elements []lattice.BulkElement
	inverses []lattice.ReversibleElement

	// Threads is the number of parallel lanes over the particle
	// dimension. Zero means GOMAXPROCS.
	Threads int
}

// New builds a kernel from a line. Every element must be a bulk element;
// collective elements have to be replaced by placeholders first (the
// partitioner's shadow line does exactly that).
func New(line *lattice.Line) (*Kernel, error) {
	k := &Kernel{
		elements: make([]lattice.BulkElement, line.Len()),
		inverses: make([]lattice.ReversibleElement, line.Len()),
	}
	for i := 0; i < line.Len(); i++ {
		el := line.Element(i)
		bulk, ok := el.(lattice.BulkElement)
		if !ok {
			return nil, fmt.Errorf(
				"Element %d ('%s') is not a bulk element and cannot be "+
					"compiled into a kernel.", i, line.Name(i),
			)
		}
		k.elements[i] = bulk
		if rev, ok := el.(lattice.ReversibleElement); ok {
			k.inverses[i] = rev
		}
	}
	return k, nil
}

// NumElements returns the number of elements the kernel covers.
func (k *Kernel) NumElements() int { return len(k.elements) }

// Track runs one bulk dispatch. Dead particles are left marked in place,
// never removed. Alive particles have their at_element counter advanced by
// one per element and receive end-of-turn actions when enabled.
func (k *Kernel) Track(e *particles.Ensemble, a Args) error {
	if err := k.checkArgs(a); err != nil {
		return err
	}
	if a.NumTurns == 0 {
		return nil
	}

	threads := k.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	if threads > e.Capacity {
		threads = e.Capacity
	}
	if threads < 1 {
		threads = 1
	}
	chunk := (e.Capacity + threads - 1) / threads

	errs := make([]error, threads)
	wg := sync.WaitGroup{}
	for t := 0; t < threads; t++ {
		lo, hi := t*chunk, (t+1)*chunk
		if hi > e.Capacity {
			hi = e.Capacity
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(t, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if err := k.trackOne(e, i, a); err != nil {
					errs[t] = err
					return
				}
			}
		}(t, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) checkArgs(a Args) error {
	if a.NumTurns < 0 || a.NumEleTrack < 0 {
		return fmt.Errorf(
			"Negative dispatch extents: num_turns = %d, num_ele_track = %d.",
			a.NumTurns, a.NumEleTrack,
		)
	}
	if a.EleStart < 0 || a.EleStart+a.NumEleTrack > len(k.elements) {
		return fmt.Errorf(
			"The element range [%d, %d) is outside the kernel's %d elements.",
			a.EleStart, a.EleStart+a.NumEleTrack, len(k.elements),
		)
	}
	if a.MonitorMode != monitor.Off && a.Recorder == nil {
		return fmt.Errorf(
			"Monitoring was requested but no recorder was supplied.",
		)
	}
	if a.Backtrack {
		for i := a.EleStart; i < a.EleStart+a.NumEleTrack; i++ {
			if k.inverses[i] == nil {
				return fmt.Errorf(
					"Element %d is not reversible; the range cannot be "+
						"backtracked.", i,
				)
			}
		}
	}
	return nil
}

// trackOne carries a single particle through the whole dispatch. This is
// the per-lane body: it touches only slot i and the monitor cells owned by
// slot i, so lanes never contend.
func (k *Kernel) trackOne(e *particles.Ensemble, i int, a Args) error {
	if e.State[i] <= 0 {
		return nil
	}

	rec := a.Recorder
	eleStop := a.EleStart + a.NumEleTrack

	for turn := 0; turn < a.NumTurns; turn++ {
		idx, incr := a.EleStart, 1
		if a.Backtrack {
			idx, incr = eleStop-1, -1
			if a.EndTurnActions {
				e.AtTurn[i]--
				e.AtElement[i] = int64(a.NumElemLine)
				if a.ResetSAtEndTurn {
					e.S[i] = a.LineLength
				}
			}
		} else if a.MonitorMode == monitor.PerTurn {
			if err := rec.RecordOne(e, i); err != nil {
				return err
			}
		}

		alive := true
		for ; idx >= a.EleStart && idx < eleStop; idx += incr {
			if a.MonitorMode == monitor.PerElement {
				if err := rec.RecordOne(e, i); err != nil {
					return err
				}
			}

			if a.Backtrack {
				k.inverses[idx].UntrackParticle(e, i)
			} else {
				k.elements[idx].TrackParticle(e, i)
			}

			if e.State[i] <= 0 {
				alive = false
				break
			}
			e.AtElement[i] += int64(incr)
		}

		if a.MonitorMode == monitor.PerElement {
			// End-of-range record so a full element-by-element sweep
			// includes the final state.
			if err := rec.RecordOne(e, i); err != nil {
				return err
			}
		}

		if !a.Backtrack && a.EndTurnActions && alive {
			e.AtTurn[i]++
			e.AtElement[i] = 0
			if a.ResetSAtEndTurn {
				e.S[i] = 0
			}
		}

		if a.Backtrack && a.MonitorMode == monitor.PerTurn {
			if err := rec.RecordOne(e, i); err != nil {
				return err
			}
		}

		if !alive {
			return nil
		}
	}
	return nil
}
