package monitor

import (
	"testing"

	"github.com/accelsim/ringtrack/lib/particles"
)

func TestNewRecorder(t *testing.T) {
	r, err := NewRecorder(2, 7, 3)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}
	if r.NumTurns() != 5 {
		t.Errorf("Expected a 5-turn window, got %d.", r.NumTurns())
	}
	if r.NumSlots() != 3 {
		t.Errorf("Expected 3 slots, got %d.", r.NumSlots())
	}
	if r.Capacity() != 15 {
		t.Errorf("Expected 15 record cells, got %d.", r.Capacity())
	}

	if _, err := NewRecorder(5, 2, 3); err == nil {
		t.Errorf("Expected an inverted window to be rejected.")
	}
	if _, err := NewRecorder(0, 1, 0); err == nil {
		t.Errorf("Expected a slotless recorder to be rejected.")
	}
}

func TestCheckWindow(t *testing.T) {
	r, err := NewRecorder(0, 3, 2)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}

	if err := r.CheckWindow(3); err != nil {
		t.Errorf("Expected a 3-turn request to fit a 3-turn window, got: %v",
			err)
	}
	if err := r.CheckWindow(4); err == nil {
		t.Errorf("Expected a 4-turn request to be refused by a 3-turn window.")
	}
}

func TestRecordAddressesCellsByTurn(t *testing.T) {
	r, err := NewRecorder(1, 3, 2)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}

	e := particles.New(2, 1)
	e.X[0], e.X[1] = 1e-3, -1e-3

	// Turn 0 is below the window and must be skipped.
	if err := r.Record(e); err != nil {
		t.Fatalf("Expected the out-of-window record to be skipped, got: %v",
			err)
	}
	if r.Written(0, 0) || r.Written(1, 0) {
		t.Errorf("Expected no cell to be written for turn 0.")
	}

	e.AtTurn[0], e.AtTurn[1] = 1, 1
	if err := r.Record(e); err != nil {
		t.Fatalf("Expected the turn-1 record to succeed, got: %v", err)
	}
	if !r.Written(1, 0) || !r.Written(1, 1) {
		t.Errorf("Expected both turn-1 cells to be written.")
	}
	if r.X[0] != 1e-3 || r.X[1] != -1e-3 {
		t.Errorf("Expected x records (1e-3, -1e-3), got (%g, %g).",
			r.X[0], r.X[1])
	}

	// Slots past the recorder width are skipped, not an error.
	wide := particles.New(5, 1)
	for i := range wide.AtTurn {
		wide.AtTurn[i] = 2
	}
	if err := r.Record(wide); err != nil {
		t.Fatalf("Expected extra slots to be skipped, got: %v", err)
	}
	if !r.Written(2, 1) {
		t.Errorf("Expected slot 1 of turn 2 to be written.")
	}
}

func TestRecordEBEModeUsesAtElement(t *testing.T) {
	r, err := NewRecorder(0, 4, 1)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}
	r.EBEMode = true

	e := particles.New(1, 1)
	e.AtTurn[0] = 9 // ignored in element-by-element mode
	e.AtElement[0] = 2
	e.X[0] = 4e-3

	if err := r.RecordOne(e, 0); err != nil {
		t.Fatalf("Expected the record to succeed, got: %v", err)
	}
	if !r.Written(2, 0) {
		t.Errorf("Expected the cell for element 2 to be written.")
	}
	if r.X[2] != 4e-3 {
		t.Errorf("Expected x = 4e-3 in cell 2, got %g.", r.X[2])
	}
	if r.Written(int(e.AtTurn[0]), 0) {
		t.Errorf("Expected at_turn to be ignored in element-by-element mode.")
	}
}

func TestStats(t *testing.T) {
	r, err := NewRecorder(0, 2, 3)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}

	e := particles.New(3, 1)
	e.X[0], e.X[1], e.X[2] = 1e-3, 3e-3, 100
	e.State[2] = particles.StateLostAperture
	if err := r.Record(e); err != nil {
		t.Fatalf("Expected the record to succeed, got: %v", err)
	}

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 turns, got %d.", len(stats))
	}
	if stats[0].NumAlive != 2 {
		t.Errorf("Expected 2 alive records in turn 0, got %d.",
			stats[0].NumAlive)
	}
	if stats[0].MeanX != 2e-3 {
		t.Errorf("Expected mean x = 2e-3, got %g.", stats[0].MeanX)
	}
	if stats[1].NumAlive != 0 {
		t.Errorf("Expected no records in turn 1, got %d.", stats[1].NumAlive)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r, err := NewRecorder(0, 2, 2)
	if err != nil {
		t.Fatalf("Expected the recorder to build, got: %v", err)
	}
	r.EBEMode = true

	e := particles.New(2, 1)
	e.X[0], e.Zeta[1] = 5e-3, -1e-2
	if err := r.Record(e); err != nil {
		t.Fatalf("Expected the record to succeed, got: %v", err)
	}

	out := FromSnapshot(r.Snapshot())
	if out.NumSlots() != 2 || out.NumTurns() != 2 {
		t.Errorf("Expected a 2x2 recorder, got %dx%d.",
			out.NumTurns(), out.NumSlots())
	}
	if !out.EBEMode {
		t.Errorf("Expected the element-by-element flag to survive.")
	}
	if out.X[0] != 5e-3 || out.Zeta[1] != -1e-2 {
		t.Errorf("Expected the record cells to survive the round trip.")
	}
	if !out.Written(0, 0) || !out.Written(0, 1) || out.Written(1, 0) {
		t.Errorf("Expected the written map to survive the round trip.")
	}
}
