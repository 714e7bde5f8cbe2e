package tracker

/* This file contains the turn/segment dispatch loop. A purely bulk lattice
is tracked with at most three kernel dispatches (first partial turn, middle
turns, last partial turn); a lattice with collective elements (or with
time-dependent parameters enabled) is walked turn by turn and segment by
segment, with explicit buffer moves bracketing host-requiring collective
steps and hold signals suspending the loop into a Session. */

import (
	"fmt"
	"time"

	"github.com/accelsim/ringtrack/lib/kernel"
	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// Tracker schedules the traversal of a beam line over turns and elements.
type Tracker struct {
	line *lattice.Line
	part *Partition
	kern *kernel.Kernel

	// marker is a single zero-length drift compiled into its own kernel.
	// Tracking it advances at_element by one for every alive particle, so
	// the bookkeeping after a collective segment is identical to what the
	// bulk kernel would have produced.
	marker *kernel.Kernel

	// EnableHold allows collective elements to suspend the run into a
	// Session instead of completing. Only meaningful for collective
	// lattices.
	EnableHold bool

	// ResetSAtEndTurn zeroes the path length at each end of turn.
	ResetSAtEndTurn bool

	// SkipEndTurnActions disables all end-of-turn bookkeeping.
	SkipEndTurnActions bool

	// TimeVars, if non-nil and enabled, gates the refresh of
	// time-dependent lattice parameters once per turn.
	TimeVars *TimeVars

	// RecordLastTrack is the recorder of the last completed run, nil if
	// the run was not monitored.
	RecordLastTrack *monitor.Recorder

	// TimeLastTrack is the wall-clock duration of the last run, if the
	// request asked for timing.
	TimeLastTrack time.Duration
}

// New builds a tracker for a line: it partitions the line into segments and
// compiles the bulk kernel from the all-bulk shadow line.
func New(line *lattice.Line) (*Tracker, error) {
	part, err := NewPartition(line)
	if err != nil {
		return nil, err
	}
	kern, err := kernel.New(part.Shadow())
	if err != nil {
		return nil, err
	}

	markerLine, err := lattice.NewLine(
		[]lattice.Element{lattice.Drift{L: 0}}, []string{"at_element_marker"},
	)
	if err != nil {
		return nil, err
	}
	marker, err := kernel.New(markerLine)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		line:            line,
		part:            part,
		kern:            kern,
		marker:          marker,
		ResetSAtEndTurn: true,
	}, nil
}

// Line returns the line the tracker was built for.
func (t *Tracker) Line() *lattice.Line { return t.line }

// Partition returns the segment decomposition of the line.
func (t *Tracker) Partition() *Partition { return t.part }

// Kernel returns the compiled bulk kernel over the all-bulk shadow line.
func (t *Tracker) Kernel() *kernel.Kernel { return t.kern }

// Track runs a tracking request over the ensemble. It returns a nil
// Session on completion, or a Session if a collective element held. No
// state is mutated when the request itself is invalid.
func (t *Tracker) Track(e *particles.Ensemble, opts Options) (*Session, error) {
	var t0 time.Time
	if opts.Time {
		t0 = time.Now()
	}

	if err := e.Check(); err != nil {
		return nil, err
	}
	p, err := resolveRange(t.line, e, opts)
	if err != nil {
		return nil, err
	}

	if opts.Backtrack {
		if t.line.HasCollective() {
			return nil, fmt.Errorf(
				"Backtracking is not available for lattices with " +
					"collective elements.",
			)
		}
		if !t.line.AllReversible() {
			return nil, fmt.Errorf(
				"The lattice contains non-reversible elements and cannot " +
					"be backtracked.",
			)
		}
	}

	mode, rec, err := t.setupRecorder(e, p, opts)
	if err != nil {
		return nil, err
	}

	collective := t.line.HasCollective() ||
		(t.TimeVars != nil && t.TimeVars.Enabled)
	if collective && p.eleStart >= t.line.Len() {
		return nil, fmt.Errorf(
			"The start element %d is past the last element %d; only "+
				"purely bulk lattices accept an end-of-turn-only start.",
			p.eleStart, t.line.Len()-1,
		)
	}

	// The one-shot start override is consumed only once the request is
	// known to be valid; a rejected request leaves it in place.
	e.StartTrackingAtElement = -1

	var sess *Session
	if collective {
		sess, err = t.trackCollective(e, p, mode, rec, nil)
	} else {
		err = t.trackBulk(e, p, mode, rec, opts.Backtrack)
	}
	if err != nil {
		return nil, err
	}

	if opts.Time {
		t.TimeLastTrack = time.Since(t0)
	}
	return sess, nil
}

// setupRecorder builds or validates the recorder for a request. The window
// check runs here, before any element executes.
func (t *Tracker) setupRecorder(
	e *particles.Ensemble, p plan, opts Options,
) (monitor.Mode, *monitor.Recorder, error) {
	mode := opts.MonitorMode
	if mode == monitor.Off {
		return mode, nil, nil
	}

	turns := p.monitorTurns
	if mode == monitor.PerElement {
		if t.line.HasCollective() {
			return mode, nil, fmt.Errorf(
				"Element-by-element monitoring is not available for " +
					"lattices with collective elements.",
			)
		}
		if p.numTurns != 1 {
			return mode, nil, fmt.Errorf(
				"Element-by-element monitoring requires a single-turn "+
					"sweep, but the request spans %d turns.", p.numTurns,
			)
		}
		turns = t.line.Len() + 1
	}

	rec := opts.Recorder
	if rec == nil {
		var err error
		rec, err = monitor.NewRecorder(0, turns, e.Capacity)
		if err != nil {
			return mode, nil, err
		}
		rec.EBEMode = mode == monitor.PerElement
	} else if err := rec.CheckWindow(turns); err != nil {
		return mode, nil, err
	}
	return mode, rec, nil
}

// trackBulk is the fast path for purely bulk lattices: at most three kernel
// dispatches cover the whole request.
func (t *Tracker) trackBulk(
	e *particles.Ensemble, p plan,
	mode monitor.Mode, rec *monitor.Recorder, backtrack bool,
) error {
	if e.Location() == particles.Host && !e.HasValidCounts() {
		return fmt.Errorf(
			"The ensemble's alive/lost counts are not valid for a host " +
				"dispatch; call Reorganize first.",
		)
	}

	n := t.line.Len()
	base := kernel.Args{
		MonitorMode:     mode,
		Recorder:        rec,
		ResetSAtEndTurn: t.ResetSAtEndTurn,
		Backtrack:       backtrack,
		NumElemLine:     n,
		LineLength:      t.line.Length(),
	}

	// First turn.
	first := base
	first.NumTurns = 1
	first.EleStart = p.eleStart
	first.NumEleTrack = p.numEleFirstTurn
	first.EndTurnActions = !t.SkipEndTurnActions &&
		p.eleStart+p.numEleFirstTurn == n
	if err := t.kern.Track(e, first); err != nil {
		return err
	}

	// Middle turns, always full cycles.
	if p.numMiddleTurns > 0 {
		middle := base
		middle.NumTurns = p.numMiddleTurns
		middle.EleStart = 0
		middle.NumEleTrack = n
		middle.EndTurnActions = !t.SkipEndTurnActions
		if err := t.kern.Track(e, middle); err != nil {
			return err
		}
	}

	// Last turn, only if incomplete. Never gets end-of-turn actions.
	if p.numEleLastTurn > 0 {
		last := base
		last.NumTurns = 1
		last.EleStart = 0
		last.NumEleTrack = p.numEleLastTurn
		if err := t.kern.Track(e, last); err != nil {
			return err
		}
	}

	t.RecordLastTrack = rec
	return nil
}

// trackCollective is the per-segment dispatch loop. resume, if non-nil, is
// a session being re-entered; all (turn, segment) pairs strictly before its
// saved position are skipped with the same semantics as elements before the
// requested start.
func (t *Tracker) trackCollective(
	e *particles.Ensemble, p plan,
	mode monitor.Mode, rec *monitor.Recorder, resume *Session,
) (*Session, error) {
	if resume == nil && e.Location() == particles.Host && !e.HasValidCounts() {
		return nil, fmt.Errorf(
			"The ensemble's alive/lost counts are not valid for a host " +
				"dispatch; call Reorganize first.",
		)
	}

	ttResume, ippResume := -1, -1
	if resume != nil {
		ttResume, ippResume = resume.tt, resume.ipp
	}

	segs := t.part.Segments()
	stopTracking := false
	for tt := 0; tt < p.numTurns; tt++ {
		if ttResume >= 0 && tt < ttResume {
			continue
		}
		resumingThisTurn := ttResume >= 0 && tt == ttResume

		// The first condition delays recording until the turn the start
		// element actually begins a full cycle.
		if mode == monitor.PerTurn && (p.eleStart == 0 || tt > 0) &&
			!resumingThisTurn {
			if err := rec.Record(e); err != nil {
				return nil, err
			}
		}

		if t.TimeVars != nil && t.TimeVars.Enabled && !resumingThisTurn {
			if t.TimeVars.Update(e, t.line.Length()) {
				// No particle is alive; terminate the run early.
				break
			}
		}

		movebackPending := false
		needUnhide := false
		for ipp := 0; ipp < len(segs); ipp++ {
			if ippResume >= 0 && ipp < ippResume {
				continue
			}
			seg := segs[ipp]
			if ippResume >= 0 && ipp == ippResume {
				// Re-enter exactly where the hold happened; the pending
				// obligations travel with the session.
				movebackPending = resume.movebackPending
				needUnhide = resume.needUnhide
				ttResume, ippResume = -1, -1
			} else {
				needUnhide, movebackPending =
					t.prepareForSegment(e, seg, movebackPending)
			}

			stop, skip, hold, err := t.trackSegment(e, seg, tt, ipp, p)
			if err != nil {
				return nil, err
			}

			if hold != nil {
				if !t.EnableHold {
					return nil, fmt.Errorf(
						"The collective element at index %d held, but "+
							"holds are not enabled for this tracker.",
						seg.Index,
					)
				}
				return &Session{
					tracker:         t,
					ensemble:        e,
					plan:            p,
					monitorMode:     mode,
					recorder:        rec,
					tt:              tt,
					ipp:             ipp,
					movebackPending: movebackPending,
					needUnhide:      needUnhide,
					hold:            hold,
				}, nil
			}

			// Nothing executed before the start element in the first turn.
			if skip {
				continue
			}

			// The bulk kernel advances at_element for the elements it
			// covers; for a collective segment the scheduler does it
			// through the zero-length marker.
			if seg.Collective && !stop {
				if err := t.markerAdvance(e); err != nil {
					return nil, err
				}
			}

			if needUnhide {
				e.UnhideLost()
				needUnhide = false
			}

			if stop {
				stopTracking = true
				break
			}
		}
		if stopTracking {
			break
		}

		if movebackPending {
			e.Move(particles.Device)
		}

		// End-of-turn actions through a zero-extent kernel dispatch, so
		// the bookkeeping matches the pure-bulk path exactly.
		err := t.kern.Track(e, kernel.Args{
			NumTurns:        1,
			EleStart:        t.line.Len(),
			NumEleTrack:     0,
			EndTurnActions:  !t.SkipEndTurnActions,
			ResetSAtEndTurn: t.ResetSAtEndTurn,
			NumElemLine:     t.line.Len(),
			LineLength:      t.line.Length(),
		})
		if err != nil {
			return nil, err
		}
	}

	t.RecordLastTrack = rec
	return nil, nil
}

// prepareForSegment brackets a segment with the explicit buffer moves and
// lost-particle hiding it requires. Move-out happens immediately before a
// host-requiring collective segment; move-back immediately before the next
// segment that does not need the host (or at end of turn).
func (t *Tracker) prepareForSegment(
	e *particles.Ensemble, seg Segment, movebackPending bool,
) (needUnhide, moveback bool) {
	if seg.Collective && seg.Element.NeedsHost() {
		if !movebackPending && e.Location() != particles.Host {
			e.Move(particles.Host)
			e.Reorganize()
			movebackPending = true
		}
	} else if movebackPending {
		e.Move(particles.Device)
		movebackPending = false
	}

	if seg.Collective {
		if h, ok := seg.Element.(lattice.HidesLostParticles); ok &&
			h.NeedsHiddenLostParticles() {
			if !e.LostHidden() {
				needUnhide = true
			}
			e.HideLost()
		}
	}
	return needUnhide, movebackPending
}

// trackSegment executes one (turn, segment) step of the state machine:
// skip before the start element on the first turn, execute from an offset
// in the segment containing the start, execute up to an offset in the
// segment containing the stop on the final turn, execute fully otherwise.
func (t *Tracker) trackSegment(
	e *particles.Ensemble, seg Segment, tt, ipp int, p plan,
) (stop, skip bool, hold *lattice.Hold, err error) {
	lastTurn := tt == p.numTurns-1

	switch {
	case tt == 0 && ipp < t.part.SegmentOf(p.eleStart):
		// Before the requested start in the first turn.
		skip = true

	case tt == 0 && t.part.SegmentOf(p.eleStart) == ipp:
		iStart := t.part.IndexInSegment(p.eleStart)
		if iStart < 0 {
			// The start segment is the collective element itself.
			hold, err = seg.Element.Step(e)
		} else if p.eleStop != NoStop && lastTurn &&
			t.part.SegmentOf(p.eleStop) == ipp &&
			t.part.IndexInSegment(p.eleStop) >= iStart {
			// The stop element falls in the same segment on the final
			// turn: execute only the slice between the two offsets.
			iStop := t.part.IndexInSegment(p.eleStop)
			err = t.bulkRange(e, seg, iStart, iStop-iStart)
			stop = true
		} else {
			err = t.bulkRange(e, seg, iStart, seg.Count-iStart)
		}

	case p.eleStop != NoStop && lastTurn &&
		t.part.SegmentOf(p.eleStop) == ipp:
		// The segment contains the stop element; the stop point is
		// exclusive, so a collective stop element does not execute.
		if iStop := t.part.IndexInSegment(p.eleStop); iStop >= 0 {
			err = t.bulkRange(e, seg, 0, iStop)
		}
		stop = true

	default:
		if seg.Collective {
			hold, err = seg.Element.Step(e)
		} else {
			err = t.bulkRange(e, seg, 0, seg.Count)
		}
	}
	return stop, skip, hold, err
}

// bulkRange dispatches a slice of a bulk segment through the kernel. End of
// turn actions never run here; the per-turn loop owns them.
func (t *Tracker) bulkRange(
	e *particles.Ensemble, seg Segment, offset, count int,
) error {
	// The kernel reads element parameters directly, so this dispatch
	// observes whatever the time gate's refresh wrote.
	if t.TimeVars != nil && t.TimeVars.Stale() {
		t.TimeVars.MarkFresh()
	}
	return t.kern.Track(e, kernel.Args{
		NumTurns:        1,
		EleStart:        seg.First + offset,
		NumEleTrack:     count,
		ResetSAtEndTurn: t.ResetSAtEndTurn,
		NumElemLine:     t.line.Len(),
		LineLength:      t.line.Length(),
	})
}

// markerAdvance tracks the zero-length marker kernel once, advancing
// at_element by one for every alive particle.
func (t *Tracker) markerAdvance(e *particles.Ensemble) error {
	return t.marker.Track(e, kernel.Args{
		NumTurns:    1,
		EleStart:    0,
		NumEleTrack: 1,
		NumElemLine: t.line.Len(),
		LineLength:  t.line.Length(),
	})
}
