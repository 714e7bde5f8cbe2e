/*package tracker contains the tracking scheduler: it decomposes a beam line
into bulk and collective segments, converts user-level tracking requests
into turn/element range plans, and drives the turn-by-turn dispatch loop,
including suspend/resume at collective boundaries.*/
package tracker

import (
	"github.com/accelsim/ringtrack/lib/lattice"
)

// Segment is one schedulable unit of the line: either a maximal run of
// contiguous bulk elements, executable as a single kernel dispatch, or
// exactly one collective element.
type Segment struct {
	// Collective marks a single-element collective segment.
	Collective bool

	// First and Count delimit the element range of a bulk segment.
	First, Count int

	// Element is the collective element; nil for bulk segments. Index is
	// its position in the line.
	Element lattice.CollectiveElement
	Index   int
}

// Partition is the segment decomposition of a line, together with the
// element-index bookkeeping needed to locate an arbitrary element inside
// its segment, and an all-bulk shadow line in which every collective
// element is replaced by a zero-kick placeholder of equal length.
type Partition struct {
	segments []Segment

	// segmentOf maps element index to the segment containing it.
	// indexInSegment maps element index to its offset inside a bulk
	// segment, or -1 for collective elements.
	segmentOf      []int
	indexInSegment []int

	shadow *lattice.Line
}

// NewPartition splits a line into maximal bulk runs and standalone
// collective elements. It is a pure function of the element sequence and
// its collective flags.
func NewPartition(line *lattice.Line) (*Partition, error) {
	p := &Partition{
		segmentOf:      make([]int, line.Len()),
		indexInSegment: make([]int, line.Len()),
	}

	runStart, runLen := 0, 0
	flush := func() {
		if runLen > 0 {
			p.segments = append(p.segments, Segment{
				First: runStart, Count: runLen,
			})
			runLen = 0
		}
	}

	shadowElements := make([]lattice.Element, line.Len())
	shadowNames := make([]string, line.Len())
	for i := 0; i < line.Len(); i++ {
		el := line.Element(i)
		shadowNames[i] = line.Name(i)

		if coll, ok := el.(lattice.CollectiveElement); ok {
			flush()
			p.segmentOf[i] = len(p.segments)
			p.indexInSegment[i] = -1
			p.segments = append(p.segments, Segment{
				Collective: true, Element: coll, Index: i,
			})
			runStart = i + 1
			// The placeholder keeps the same length so that s and
			// optics bookkeeping line up with the real line.
			shadowElements[i] = lattice.Drift{L: el.Length()}
		} else {
			p.segmentOf[i] = len(p.segments)
			p.indexInSegment[i] = runLen
			runLen++
			shadowElements[i] = el
		}
	}
	flush()

	shadow, err := lattice.NewLine(shadowElements, shadowNames)
	if err != nil {
		return nil, err
	}
	p.shadow = shadow
	return p, nil
}

// Segments returns the ordered segment list. Concatenating the segments in
// order reconstructs the element sequence exactly once.
func (p *Partition) Segments() []Segment { return p.segments }

// Shadow returns the all-bulk placeholder line.
func (p *Partition) Shadow() *lattice.Line { return p.shadow }

// SegmentOf returns the index of the segment containing element ele.
func (p *Partition) SegmentOf(ele int) int { return p.segmentOf[ele] }

// IndexInSegment returns the offset of element ele inside its bulk segment,
// or -1 if the element is collective.
func (p *Partition) IndexInSegment(ele int) int { return p.indexInSegment[ele] }
