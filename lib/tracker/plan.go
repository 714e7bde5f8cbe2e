package tracker

/* This file converts user-level tracking requests into a concrete range
plan: a first (possibly partial) turn, zero or more full middle turns, and
an optional partial last turn. The same plan drives both the pure-bulk fast
path (at most three kernel dispatches) and the collective per-segment loop. */

import (
	"fmt"

	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// NoStop marks the absence of a stop element in a plan ("run to the end of
// the lattice").
const NoStop = -1

// Options describes a user-level tracking request. Exactly one of
// {EleStop/NumTurns, NumElements} may be used; zero values mean "not
// given". An EleStop of 0 is treated as "end of lattice", since a
// zero-length last turn would be ambiguous.
type Options struct {
	// EleStart is the element index tracking starts at. EleStartName, if
	// non-empty, is resolved through the line and overrides EleStart.
	EleStart     int
	EleStartName string

	// EleStop is the element index tracking stops before (exclusive).
	// EleStopName, if non-empty, overrides it. If the stop point does not
	// come after the start point, it is reached on a later turn.
	EleStop     int
	EleStopName string

	// NumTurns is the number of turns to track. Zero means one turn.
	NumTurns int

	// NumElements is the total number of element-steps to perform,
	// starting at EleStart. Mutually exclusive with EleStop and NumTurns.
	NumElements int

	// MonitorMode selects turn-by-turn recording. Recorder, if non-nil,
	// receives the records; otherwise a recorder sized to the request is
	// created. PerElement mode is only legal for single-turn sweeps over
	// purely bulk lattices.
	MonitorMode monitor.Mode
	Recorder    *monitor.Recorder

	// Backtrack traverses the requested range in reverse. Only permitted
	// when every element in the lattice is reversible.
	Backtrack bool

	// Time measures the wall-clock duration of the run.
	Time bool
}

// plan is the resolved decomposition of a request.
type plan struct {
	eleStart int
	eleStop  int // NoStop = end of lattice
	numTurns int

	// Kernel decomposition: first turn, middle turns, last partial turn.
	numEleFirstTurn int
	numMiddleTurns  int
	numEleLastTurn  int

	// monitorTurns is the number of turn records the request produces.
	monitorTurns int
}

// resolveRange validates a request against the line and produces the plan.
// No state is mutated on error.
func resolveRange(line *lattice.Line, e *particles.Ensemble, opts Options) (plan, error) {
	n := line.Len()
	p := plan{eleStop: NoStop}

	eleStart := opts.EleStart
	if e != nil && e.StartTrackingAtElement >= 0 {
		if eleStart != 0 || opts.EleStartName != "" {
			return p, fmt.Errorf(
				"Both EleStart and the ensemble's StartTrackingAtElement "+
					"are set; use only one of the two.",
			)
		}
		eleStart = e.StartTrackingAtElement
	}
	if opts.EleStartName != "" {
		i, err := line.Lookup(opts.EleStartName)
		if err != nil {
			return p, err
		}
		eleStart = i
	}
	if eleStart < 0 || eleStart > n {
		return p, fmt.Errorf(
			"The start element %d is outside the lattice range [0, %d].",
			eleStart, n,
		)
	}
	p.eleStart = eleStart

	eleStop := opts.EleStop
	if opts.EleStopName != "" {
		i, err := line.Lookup(opts.EleStopName)
		if err != nil {
			return p, err
		}
		eleStop = i
	}
	haveStop := eleStop != 0 || opts.EleStopName != ""
	if haveStop && (eleStop < 0 || eleStop > n) {
		return p, fmt.Errorf(
			"The stop element %d is outside the lattice range [0, %d].",
			eleStop, n,
		)
	}
	// A stop at element 0 means "end of lattice": the alternative would
	// be a zero-length last turn.
	if eleStop == 0 || eleStop == n {
		haveStop = false
	}

	if opts.NumElements < 0 {
		return p, fmt.Errorf(
			"The number of elements must be non-negative, got %d.",
			opts.NumElements,
		)
	}
	if opts.NumElements > 0 {
		if haveStop {
			return p, fmt.Errorf("Cannot use both NumElements and EleStop.")
		}
		if opts.NumTurns > 0 {
			return p, fmt.Errorf("Cannot use both NumElements and NumTurns.")
		}
		if eleStart+opts.NumElements <= n {
			// Only the first, potentially partial, turn.
			p.numEleFirstTurn = opts.NumElements
			p.numTurns = 1
			stop := eleStart + opts.NumElements
			if stop < n {
				p.eleStop = stop
			}
		} else {
			p.numEleFirstTurn = n - eleStart
			total := eleStart + opts.NumElements
			p.numMiddleTurns = total/n - 1
			p.numEleLastTurn = total % n
			p.numTurns = p.numMiddleTurns + 1
			if p.numEleLastTurn > 0 {
				p.eleStop = p.numEleLastTurn
				p.numTurns++
			}
		}
	} else {
		numTurns := opts.NumTurns
		if numTurns == 0 {
			numTurns = 1
		}
		if numTurns < 0 {
			return p, fmt.Errorf(
				"The number of turns must be positive, got %d.", numTurns,
			)
		}
		if !haveStop {
			// The last turn is a full cycle, so it counts as a middle
			// turn.
			p.numEleFirstTurn = n - eleStart
			p.numMiddleTurns = numTurns - 1
			p.numTurns = numTurns
		} else {
			if eleStop <= eleStart {
				// The stop point is reached one cycle later.
				numTurns++
			}
			p.eleStop = eleStop
			p.numTurns = numTurns
			if numTurns == 1 {
				p.numEleFirstTurn = eleStop - eleStart
			} else {
				p.numEleFirstTurn = n - eleStart
				p.numMiddleTurns = numTurns - 2
				p.numEleLastTurn = eleStop
			}
		}
	}

	// One record for the first turn, one per middle turn, and one more
	// when a partial last turn exists.
	if p.numEleLastTurn > 0 {
		p.monitorTurns = p.numMiddleTurns + 2
	} else {
		p.monitorTurns = p.numMiddleTurns + 1
	}

	return p, nil
}
