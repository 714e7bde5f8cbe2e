package tracker

/* This file contains the hold/resume session: an explicit snapshot of the
dispatch loop position taken when a collective step signals it cannot
complete synchronously. A session is created once per hold and consumed
exactly once by resume; violating that protocol is a programming error, not
a recoverable condition, and panics. */

import (
	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// Session captures the exact loop position of a held tracking run: the
// turn and segment indices, the particle buffer, the resolved plan, and the
// pending end-of-segment obligations (move the buffer back to its original
// backend, unhide lost particles).
type Session struct {
	tracker  *Tracker
	ensemble *particles.Ensemble
	plan     plan

	monitorMode monitor.Mode
	recorder    *monitor.Recorder

	tt, ipp int

	movebackPending bool
	needUnhide      bool

	hold    *lattice.Hold
	resumed bool
}

// Hold returns the hold descriptor the collective element produced.
func (s *Session) Hold() *lattice.Hold { return s.hold }

// Position returns the turn and segment index the run is suspended at.
func (s *Session) Position() (turn, segment int) { return s.tt, s.ipp }

// Ensemble returns the suspended particle buffer. The caller must not
// track it through another run while the session is pending.
func (s *Session) Ensemble() *particles.Ensemble { return s.ensemble }

// Resumed reports whether the session has already been consumed.
func (s *Session) Resumed() bool { return s.resumed }

// Resume re-enters the dispatch loop at the session's saved position and
// proceeds exactly as a fresh invocation would from that point. It returns
// a new Session if a further hold occurs, or nil on completion.
//
// A session may be resumed at most once, and only by the tracker that
// created it; violating either rule panics.
func (t *Tracker) Resume(s *Session) (*Session, error) {
	if s.resumed {
		panic("tracker: session has already been resumed")
	}
	if s.tracker != t {
		panic("tracker: session was created by a different tracker")
	}
	s.resumed = true
	return t.trackCollective(s.ensemble, s.plan, s.monitorMode, s.recorder, s)
}
