/*package lattice describes beam lines as ordered element sequences. The
tracking scheduler only needs three facts about an element: its length, how
it updates a single particle (bulk elements), and whether it must instead run
as a discrete host-level step (collective elements).*/
package lattice

import (
	"fmt"

	"github.com/accelsim/ringtrack/lib/particles"
)

// Element is the minimal contract shared by every beam-line element.
type Element interface {
	// Length returns the length of the element along the beam line in
	// meters. Thin elements return 0.
	Length() float64
}

// BulkElement updates one particle in place. Any element implementing this
// interface can be folded into a single data-parallel kernel pass.
type BulkElement interface {
	Element
	TrackParticle(e *particles.Ensemble, i int)
}

// ReversibleElement is a bulk element whose map has an exact inverse, so
// that tracking can run backwards through it.
type ReversibleElement interface {
	BulkElement
	UntrackParticle(e *particles.Ensemble, i int)
}

// Hold is returned by a collective element that cannot complete its step
// synchronously, e.g. because it is waiting on data from a peer run. The
// scheduler suspends at the element and hands control back to the caller.
type Hold struct {
	// Reason is a human-readable description of what the step is waiting
	// on. It is carried into the suspended session for inspection.
	Reason string
}

// CollectiveElement runs as one discrete step over the whole ensemble. The
// step may return a Hold instead of completing.
type CollectiveElement interface {
	Element
	// Step processes the whole ensemble once. A nil, nil return means the
	// step completed. A non-nil *Hold means the step could not complete
	// and must be retried after the caller resolves the wait.
	Step(e *particles.Ensemble) (*Hold, error)
	// NeedsHost reports whether the step requires the ensemble to be
	// resident on the host backend.
	NeedsHost() bool
}

// HidesLostParticles is implemented by collective elements that cannot cope
// with lost particles in the buffer; the scheduler hides lost slots for the
// duration of their step.
type HidesLostParticles interface {
	NeedsHiddenLostParticles() bool
}

// IsCollective returns true if the element must be dispatched as a discrete
// step rather than folded into a bulk kernel pass.
func IsCollective(el Element) bool {
	_, ok := el.(CollectiveElement)
	return ok
}

// IsReversible returns true if the element's map has an exact inverse.
// Collective elements are never reversible.
func IsReversible(el Element) bool {
	_, ok := el.(ReversibleElement)
	return ok
}

// Line is an ordered beam line: elements plus their names. Names resolve to
// stable integer indices; the index of an element never changes once the
// line is built.
type Line struct {
	elements []Element
	names    []string
	index    map[string]int
}

// NewLine builds a Line from parallel element and name slices. Names must
// be unique.
func NewLine(elements []Element, names []string) (*Line, error) {
	if len(elements) != len(names) {
		return nil, fmt.Errorf(
			"The line has %d elements but %d names.", len(elements), len(names),
		)
	}
	index := map[string]int{}
	for i, name := range names {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf(
				"The element name '%s' is used more than once.", name,
			)
		}
		index[name] = i
	}
	return &Line{elements: elements, names: names, index: index}, nil
}

// Len returns the number of elements in the line.
func (l *Line) Len() int { return len(l.elements) }

// Element returns the element at index i.
func (l *Line) Element(i int) Element { return l.elements[i] }

// Elements returns the underlying element slice. Callers must not modify it.
func (l *Line) Elements() []Element { return l.elements }

// Name returns the name of the element at index i.
func (l *Line) Name(i int) string { return l.names[i] }

// Lookup resolves an element name to its index.
func (l *Line) Lookup(name string) (int, error) {
	i, ok := l.index[name]
	if !ok {
		return 0, fmt.Errorf("The line contains no element named '%s'.", name)
	}
	return i, nil
}

// Length returns the total length of the line in meters.
func (l *Line) Length() float64 {
	total := 0.0
	for _, el := range l.elements {
		total += el.Length()
	}
	return total
}

// HasCollective returns true if any element in the line is collective.
func (l *Line) HasCollective() bool {
	for _, el := range l.elements {
		if IsCollective(el) {
			return true
		}
	}
	return false
}

// AllReversible returns true if every element in the line can be tracked
// backwards.
func (l *Line) AllReversible() bool {
	for _, el := range l.elements {
		if !IsReversible(el) {
			return false
		}
	}
	return true
}
