package tracker

import (
	"testing"

	"github.com/accelsim/ringtrack/lib/eq"
	"github.com/accelsim/ringtrack/lib/lattice"
)

func TestBacktrackRoundTrip(t *testing.T) {
	trk := ringTracker(t)
	if !trk.Line().AllReversible() {
		t.Fatalf("Expected the ring cell to be fully reversible.")
	}

	e := beam(5)
	ref := beam(5)

	if _, err := trk.Track(e, Options{NumTurns: 3}); err != nil {
		t.Fatalf("Expected the forward run to complete, got: %v", err)
	}
	if _, err := trk.Track(e, Options{NumTurns: 3, Backtrack: true}); err != nil {
		t.Fatalf("Expected the backward run to complete, got: %v", err)
	}

	if !eq.Int64s(e.AtTurn, ref.AtTurn) ||
		!eq.Int64s(e.AtElement, ref.AtElement) {
		t.Errorf("Expected the counters to rewind exactly, got at_turn = %v, "+
			"at_element = %v.", e.AtTurn, e.AtElement)
	}
	if !eq.Float64sEps(e.X, ref.X, 1e-12) ||
		!eq.Float64sEps(e.Px, ref.Px, 1e-12) ||
		!eq.Float64sEps(e.Y, ref.Y, 1e-12) ||
		!eq.Float64sEps(e.Py, ref.Py, 1e-12) ||
		!eq.Float64sEps(e.Zeta, ref.Zeta, 1e-12) ||
		!eq.Float64sEps(e.Delta, ref.Delta, 1e-12) {
		t.Errorf("Expected the coordinates to be restored.")
	}
	if !eq.Float64sEps(e.S, ref.S, 1e-12) {
		t.Errorf("Expected the path length to be restored, got %v.", e.S)
	}
	if !eq.Int64s(e.State, ref.State) {
		t.Errorf("Expected every particle still alive, got %v.", e.State)
	}
}

func TestBacktrackPartialRange(t *testing.T) {
	trk := ringTracker(t)
	e := beam(4)
	ref := beam(4)

	fwd := Options{EleStart: 2, EleStop: 8}
	if _, err := trk.Track(e, fwd); err != nil {
		t.Fatalf("Expected the forward run to complete, got: %v", err)
	}

	bwd := fwd
	bwd.Backtrack = true
	if _, err := trk.Track(e, bwd); err != nil {
		t.Fatalf("Expected the backward run to complete, got: %v", err)
	}

	if !eq.Float64sEps(e.X, ref.X, 1e-12) ||
		!eq.Float64sEps(e.Px, ref.Px, 1e-12) {
		t.Errorf("Expected the coordinates to be restored.")
	}
	if !eq.Int64s(e.AtElement, ref.AtElement) {
		t.Errorf("Expected at_element to rewind to %v, got %v.",
			ref.AtElement, e.AtElement)
	}
}

func TestBacktrackRejections(t *testing.T) {
	coll := collectiveRingTracker(t)
	if _, err := coll.Track(beam(2), Options{Backtrack: true}); err == nil {
		t.Errorf("Expected backtracking to be rejected for a collective " +
			"lattice.")
	}

	line, err := lattice.NewLine(
		[]lattice.Element{
			lattice.Drift{L: 1},
			lattice.LimitRect{MinX: -1e-2, MaxX: 1e-2, MinY: -1e-2, MaxY: 1e-2},
		},
		[]string{"d0", "ap"},
	)
	if err != nil {
		t.Fatalf("Expected the line to build, got: %v", err)
	}
	trk, err := New(line)
	if err != nil {
		t.Fatalf("Expected the tracker to build, got: %v", err)
	}

	e := beam(2)
	if _, err := trk.Track(e, Options{Backtrack: true}); err == nil {
		t.Errorf("Expected backtracking over an aperture to be rejected.")
	}

	// The rejection happens before anything is tracked.
	ref := beam(2)
	checkEqualBuffers(t, "rejected backtrack", e, ref)

	if _, err := trk.Track(e, Options{}); err != nil {
		t.Errorf("Expected the forward run to still work, got: %v", err)
	}
}

func TestRejectedBacktrackKeepsStartOverride(t *testing.T) {
	trk := collectiveRingTracker(t)
	e := beam(2)
	e.StartTrackingAtElement = 3

	if _, err := trk.Track(e, Options{Backtrack: true}); err == nil {
		t.Fatalf("Expected backtracking to be rejected for a collective " +
			"lattice.")
	}
	if e.StartTrackingAtElement != 3 {
		t.Errorf("Expected the rejected request to leave the one-shot start "+
			"override in place, got %d.", e.StartTrackingAtElement)
	}

	// The override still applies to the next, valid request, which
	// consumes it.
	if _, err := trk.Track(e, Options{}); err != nil {
		t.Fatalf("Expected the forward run to complete, got: %v", err)
	}
	if e.StartTrackingAtElement != -1 {
		t.Errorf("Expected the forward run to consume the override, got %d.",
			e.StartTrackingAtElement)
	}

	ref := beam(2)
	refTrk := collectiveRingTracker(t)
	if _, err := refTrk.Track(ref, Options{EleStart: 3}); err != nil {
		t.Fatalf("Expected the reference run to complete, got: %v", err)
	}
	checkEqualBuffers(t, "start override vs explicit start", e, ref)
}
