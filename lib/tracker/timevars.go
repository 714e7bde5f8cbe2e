package tracker

/* This file gates the refresh of time-varying lattice parameters. Once per
turn, before any element is dispatched, the elapsed physical time is derived
from the first alive particle's turn count and kinematics; if a configured
minimum interval has elapsed the shared time variable is refreshed and
derived parameters are marked stale. */

import (
	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/particles"
)

// TimeVars is the run-scoped state behind time-dependent lattice
// parameters. It is owned by the run, not the lattice: the last refresh
// time must survive suspend/resume but not leak between runs.
type TimeVars struct {
	// Enabled turns the per-turn gate on.
	Enabled bool

	// T0 is the physical time at turn zero, in seconds.
	T0 float64

	// DtUpdate is the minimum interval between refreshes, in seconds.
	// Zero or negative refreshes every turn.
	DtUpdate float64

	// Refresh, if non-nil, is called with the new shared time whenever
	// the gate fires, so element parameters can be recomputed before the
	// next bulk dispatch observes them.
	Refresh func(tTurn float64)

	// TTurn is the shared time variable, updated by the gate.
	TTurn float64

	lastUpdate float64
	hasUpdated bool
	stale      bool
}

// Update runs the once-per-turn gate. It returns true if the run must stop
// early because no particle is alive.
func (tv *TimeVars) Update(e *particles.Ensemble, lineLength float64) (stopRun bool) {
	i := e.FirstActive()
	if i < 0 {
		return true
	}

	tTurn := float64(e.AtTurn[i])*lineLength/
		(e.Beta0[i]*lattice.SpeedOfLight) + tv.T0

	if !tv.hasUpdated || tv.DtUpdate <= 0 ||
		tTurn > tv.lastUpdate+tv.DtUpdate {
		tv.lastUpdate = tTurn
		tv.hasUpdated = true
		tv.TTurn = tTurn
		tv.stale = true
		if tv.Refresh != nil {
			tv.Refresh(tTurn)
		}
	}
	return false
}

// Stale reports whether derived lattice parameters changed since the last
// bulk dispatch consumed them.
func (tv *TimeVars) Stale() bool { return tv.stale }

// MarkFresh is called by the dispatcher once the next bulk dispatch has
// observed the refreshed parameters.
func (tv *TimeVars) MarkFresh() { tv.stale = false }
