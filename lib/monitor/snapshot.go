package monitor

/* Serializable projection of a Recorder, used by checkpoint files. */

// Snapshot is the serializable state of a Recorder.
type Snapshot struct {
	StartAtTurn, StopAtTurn int
	NumSlots                int
	EBEMode                 bool

	X, Px, Y, Py []float64
	Zeta, Delta  []float64
	S            []float64
	State        []int64
	AtTurn       []int64
	Written      []bool
}

// Snapshot returns a deep serializable copy of the recorder.
func (r *Recorder) Snapshot() *Snapshot {
	s := &Snapshot{
		StartAtTurn: r.StartAtTurn,
		StopAtTurn:  r.StopAtTurn,
		NumSlots:    r.numSlots,
		EBEMode:     r.EBEMode,

		X:  append([]float64(nil), r.X...),
		Px: append([]float64(nil), r.Px...),
		Y:  append([]float64(nil), r.Y...),
		Py: append([]float64(nil), r.Py...),

		Zeta:  append([]float64(nil), r.Zeta...),
		Delta: append([]float64(nil), r.Delta...),
		S:     append([]float64(nil), r.S...),

		State:   append([]int64(nil), r.State...),
		AtTurn:  append([]int64(nil), r.AtTurn...),
		Written: append([]bool(nil), r.written...),
	}
	return s
}

// FromSnapshot rebuilds a Recorder from its snapshot.
func FromSnapshot(s *Snapshot) *Recorder {
	return &Recorder{
		StartAtTurn: s.StartAtTurn,
		StopAtTurn:  s.StopAtTurn,
		numSlots:    s.NumSlots,
		EBEMode:     s.EBEMode,

		X: s.X, Px: s.Px, Y: s.Y, Py: s.Py,
		Zeta: s.Zeta, Delta: s.Delta, S: s.S,
		State: s.State, AtTurn: s.AtTurn,
		written: s.Written,
	}
}
