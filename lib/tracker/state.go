package tracker

/* This file contains the serializable projection of a held Session, so a
suspended run can be written to disk (see lib/checkpoint) and picked up
again, possibly by another process holding an equivalently built tracker. */

import (
	"fmt"

	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// SessionState is the serializable state of a held Session. It carries the
// full range plan, the loop position, the pending obligations, and
// snapshots of the particle buffer and the recorder.
type SessionState struct {
	Turn, Segment int

	MovebackPending bool
	NeedUnhide      bool
	HoldReason      string

	EleStart, EleStop, NumTurns                     int
	NumEleFirstTurn, NumMiddleTurns, NumEleLastTurn int
	MonitorTurns                                    int
	MonitorMode                                     monitor.Mode

	Ensemble *particles.Snapshot
	Recorder *monitor.Snapshot
}

// State returns the serializable projection of the session. Taking the
// state does not consume the session.
func (s *Session) State() *SessionState {
	st := &SessionState{
		Turn:            s.tt,
		Segment:         s.ipp,
		MovebackPending: s.movebackPending,
		NeedUnhide:      s.needUnhide,

		EleStart:        s.plan.eleStart,
		EleStop:         s.plan.eleStop,
		NumTurns:        s.plan.numTurns,
		NumEleFirstTurn: s.plan.numEleFirstTurn,
		NumMiddleTurns:  s.plan.numMiddleTurns,
		NumEleLastTurn:  s.plan.numEleLastTurn,
		MonitorTurns:    s.plan.monitorTurns,
		MonitorMode:     s.monitorMode,

		Ensemble: s.ensemble.Snapshot(),
	}
	if s.hold != nil {
		st.HoldReason = s.hold.Reason
	}
	if s.recorder != nil {
		st.Recorder = s.recorder.Snapshot()
	}
	return st
}

// Restore rebuilds a resumable Session from a saved state. The caller is
// responsible for restoring it into a tracker built over the same lattice
// the state was captured from; the loop position is validated against this
// tracker's segmentation.
func (t *Tracker) Restore(st *SessionState) (*Session, error) {
	if st.Ensemble == nil {
		return nil, fmt.Errorf("The session state carries no ensemble.")
	}
	if st.Segment < 0 || st.Segment >= len(t.part.Segments()) {
		return nil, fmt.Errorf(
			"The saved segment index %d does not exist in this tracker's "+
				"%d segments.", st.Segment, len(t.part.Segments()),
		)
	}
	if st.Turn < 0 || st.Turn >= st.NumTurns {
		return nil, fmt.Errorf(
			"The saved turn index %d is outside the plan's %d turns.",
			st.Turn, st.NumTurns,
		)
	}

	s := &Session{
		tracker:  t,
		ensemble: particles.FromSnapshot(st.Ensemble),
		plan: plan{
			eleStart:        st.EleStart,
			eleStop:         st.EleStop,
			numTurns:        st.NumTurns,
			numEleFirstTurn: st.NumEleFirstTurn,
			numMiddleTurns:  st.NumMiddleTurns,
			numEleLastTurn:  st.NumEleLastTurn,
			monitorTurns:    st.MonitorTurns,
		},
		monitorMode:     st.MonitorMode,
		tt:              st.Turn,
		ipp:             st.Segment,
		movebackPending: st.MovebackPending,
		needUnhide:      st.NeedUnhide,
	}
	if st.HoldReason != "" {
		s.hold = &lattice.Hold{Reason: st.HoldReason}
	}
	if st.Recorder != nil {
		s.recorder = monitor.FromSnapshot(st.Recorder)
	}
	return s, nil
}
