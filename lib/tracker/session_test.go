package tracker

import (
	"testing"

	"github.com/accelsim/ringtrack/lib/lattice"
	"github.com/accelsim/ringtrack/lib/monitor"
	"github.com/accelsim/ringtrack/lib/particles"
)

// exchangeTracker builds a tracker whose line couples to a peer through a
// PortExchange, returning the channels so the test can play the peer.
func exchangeTracker(t *testing.T, chanCap int) (
	*Tracker, chan lattice.CentroidKick, chan lattice.CentroidKick,
) {
	t.Helper()
	in := make(chan lattice.CentroidKick, chanCap)
	out := make(chan lattice.CentroidKick, chanCap)
	line, err := lattice.NewLine(
		[]lattice.Element{
			lattice.Drift{L: 1},
			lattice.Multipole{Knl: []float64{0, 0.2}},
			&lattice.PortExchange{In: in, Out: out, Strength: 0.5},
			lattice.Drift{L: 2},
		},
		[]string{"d0", "qf", "xchg", "d1"},
	)
	if err != nil {
		t.Fatalf("Expected the line to build, got: %v", err)
	}
	trk, err := New(line)
	if err != nil {
		t.Fatalf("Expected the tracker to build, got: %v", err)
	}
	trk.EnableHold = true
	return trk, in, out
}

var peerKicks = []lattice.CentroidKick{
	{Px: 1e-5, Py: -2e-5},
	{Px: -3e-5, Py: 1e-5},
}

func TestHoldResumeMatchesUninterruptedRun(t *testing.T) {
	// Reference: the peer's kicks are already queued, so the run never
	// holds.
	refTrk, refIn, refOut := exchangeTracker(t, 2)
	refIn <- peerKicks[0]
	refIn <- peerKicks[1]
	ref := beam(4)
	sess, err := refTrk.Track(ref, Options{NumTurns: 2})
	if err != nil {
		t.Fatalf("Expected the reference run to complete, got: %v", err)
	}
	if sess != nil {
		t.Fatalf("Expected the reference run never to hold, got a session "+
			"at turn %d.", sess.tt)
	}
	drain(refOut)

	// Held run: the peer answers only after each hold.
	trk, in, out := exchangeTracker(t, 1)
	e := beam(4)
	sess, err = trk.Track(e, Options{NumTurns: 2})
	if err != nil {
		t.Fatalf("Expected the run to suspend cleanly, got: %v", err)
	}

	for turn := 0; sess != nil; turn++ {
		if turn >= len(peerKicks) {
			t.Fatalf("Expected at most %d holds, got more.", len(peerKicks))
		}
		if sess.Hold() == nil || sess.Hold().Reason == "" {
			t.Errorf("Expected the session to carry the hold reason.")
		}
		if gotTurn, gotSeg := sess.Position(); gotTurn != turn || gotSeg != 1 {
			t.Errorf("Expected a hold at turn %d, segment 1, got turn %d, "+
				"segment %d.", turn, gotTurn, gotSeg)
		}
		if sess.Resumed() {
			t.Errorf("Expected a fresh session not to be marked resumed.")
		}

		drain(out)
		in <- peerKicks[turn]
		sess, err = trk.Resume(sess)
		if err != nil {
			t.Fatalf("Expected the resume to proceed, got: %v", err)
		}
	}

	checkEqualBuffers(t, "held vs uninterrupted", e, ref)
}

func drain(ch chan lattice.CentroidKick) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestHoldCarriesMonitorState(t *testing.T) {
	refTrk, refIn, _ := exchangeTracker(t, 2)
	refIn <- peerKicks[0]
	refIn <- peerKicks[1]
	ref := beam(3)
	if _, err := refTrk.Track(ref, Options{
		NumTurns: 2, MonitorMode: monitor.PerTurn,
	}); err != nil {
		t.Fatalf("Expected the reference run to complete, got: %v", err)
	}

	trk, in, out := exchangeTracker(t, 1)
	e := beam(3)
	sess, err := trk.Track(e, Options{
		NumTurns: 2, MonitorMode: monitor.PerTurn,
	})
	if err != nil {
		t.Fatalf("Expected the run to suspend cleanly, got: %v", err)
	}
	for turn := 0; sess != nil; turn++ {
		drain(out)
		in <- peerKicks[turn]
		if sess, err = trk.Resume(sess); err != nil {
			t.Fatalf("Expected the resume to proceed, got: %v", err)
		}
	}

	refRec, rec := refTrk.RecordLastTrack, trk.RecordLastTrack
	if rec == nil {
		t.Fatalf("Expected the resumed run to leave a recorder behind.")
	}
	for turn := 0; turn < 2; turn++ {
		for slot := 0; slot < 3; slot++ {
			if !rec.Written(turn, slot) {
				t.Errorf("Expected cell (turn %d, slot %d) to be written.",
					turn, slot)
			}
			idx := turn*3 + slot
			if rec.X[idx] != refRec.X[idx] {
				t.Errorf("Expected the records to match at cell %d, got %g "+
					"and %g.", idx, rec.X[idx], refRec.X[idx])
			}
		}
	}
}

func TestResumeTwicePanics(t *testing.T) {
	trk, in, out := exchangeTracker(t, 1)
	e := beam(2)
	sess, err := trk.Track(e, Options{NumTurns: 1})
	if err != nil {
		t.Fatalf("Expected the run to suspend cleanly, got: %v", err)
	}

	drain(out)
	in <- peerKicks[0]
	if _, err := trk.Resume(sess); err != nil {
		t.Fatalf("Expected the resume to complete, got: %v", err)
	}
	if !sess.Resumed() {
		t.Errorf("Expected the session to be marked resumed.")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Expected resuming a consumed session to panic.")
		}
	}()
	trk.Resume(sess)
}

func TestResumeByForeignTrackerPanics(t *testing.T) {
	trk, _, _ := exchangeTracker(t, 1)
	other, _, _ := exchangeTracker(t, 1)

	sess, err := trk.Track(beam(2), Options{NumTurns: 1})
	if err != nil {
		t.Fatalf("Expected the run to suspend cleanly, got: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Expected a foreign tracker's resume to panic.")
		}
	}()
	other.Resume(sess)
}

func TestHoldWithoutEnableHoldIsAnError(t *testing.T) {
	trk, _, _ := exchangeTracker(t, 1)
	trk.EnableHold = false

	if _, err := trk.Track(beam(2), Options{NumTurns: 1}); err == nil {
		t.Errorf("Expected a hold to be an error when holds are not enabled.")
	}
}

func TestSessionStateRestoreRoundTrip(t *testing.T) {
	trk, in, out := exchangeTracker(t, 1)
	e := beam(3)
	sess, err := trk.Track(e, Options{
		NumTurns: 2, MonitorMode: monitor.PerTurn,
	})
	if err != nil {
		t.Fatalf("Expected the run to suspend cleanly, got: %v", err)
	}

	st := sess.State()
	if st.Turn != 0 || st.Segment != 1 {
		t.Errorf("Expected the state at turn 0, segment 1, got turn %d, "+
			"segment %d.", st.Turn, st.Segment)
	}
	if st.HoldReason == "" {
		t.Errorf("Expected the hold reason to be serialized.")
	}
	if st.Ensemble == nil || st.Recorder == nil {
		t.Fatalf("Expected the state to snapshot the buffer and recorder.")
	}

	// Finish the original session, then replay the restored one; both must
	// land on the same final buffer.
	for s := sess; s != nil; {
		drain(out)
		in <- peerKicks[s.tt]
		if s, err = trk.Resume(s); err != nil {
			t.Fatalf("Expected the resume to proceed, got: %v", err)
		}
	}

	// The restored session runs on a second tracker over an identically
	// built line, as a checkpointed run would after a process restart.
	trk2, in2, out2 := exchangeTracker(t, 1)
	restored, err := trk2.Restore(st)
	if err != nil {
		t.Fatalf("Expected the state to restore, got: %v", err)
	}
	for s := restored; s != nil; {
		drain(out2)
		in2 <- peerKicks[s.tt]
		if s, err = trk2.Resume(s); err != nil {
			t.Fatalf("Expected the restored resume to proceed, got: %v", err)
		}
	}

	checkEqualBuffers(t, "restored vs original", restored.Ensemble(), e)
}

func TestRestoreValidation(t *testing.T) {
	trk, _, _ := exchangeTracker(t, 1)

	if _, err := trk.Restore(&SessionState{NumTurns: 1}); err == nil {
		t.Errorf("Expected a state without an ensemble to be rejected.")
	}

	snap := particles.New(1, 1).Snapshot()
	bad := &SessionState{Ensemble: snap, NumTurns: 2, Turn: 0, Segment: 99}
	if _, err := trk.Restore(bad); err == nil {
		t.Errorf("Expected an out-of-range segment to be rejected.")
	}
	bad = &SessionState{Ensemble: snap, NumTurns: 2, Turn: 5, Segment: 0}
	if _, err := trk.Restore(bad); err == nil {
		t.Errorf("Expected an out-of-range turn to be rejected.")
	}
}
