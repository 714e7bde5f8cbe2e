package lattice

/* This file contains the collective elements: updates that need a reduction
over the whole ensemble (or I/O with another run) and therefore cannot be
folded into a per-particle kernel pass. */

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/accelsim/ringtrack/lib/particles"
)

// Damper is a bunch-by-bunch transverse feedback kick. Each step measures
// the centroid momentum of the alive particles and kicks every alive
// particle against it. The reduction over the ensemble is what makes the
// element collective.
type Damper struct {
	GainX, GainY float64

	scratch []float64
}

func (d *Damper) Length() float64 { return 0 }

func (d *Damper) NeedsHost() bool { return true }

func (d *Damper) Step(e *particles.Ensemble) (*Hold, error) {
	meanPx := d.centroid(e, e.Px)
	meanPy := d.centroid(e, e.Py)
	for i := 0; i < e.Capacity; i++ {
		if e.State[i] <= 0 {
			continue
		}
		e.Px[i] -= d.GainX * meanPx
		e.Py[i] -= d.GainY * meanPy
	}
	return nil, nil
}

func (d *Damper) centroid(e *particles.Ensemble, col []float64) float64 {
	d.scratch = d.scratch[:0]
	for i := 0; i < e.Capacity; i++ {
		if e.State[i] > 0 {
			d.scratch = append(d.scratch, col[i])
		}
	}
	if len(d.scratch) == 0 {
		return 0
	}
	return stat.Mean(d.scratch, nil)
}

// CentroidKick is a transverse kick exchanged between two runs.
type CentroidKick struct {
	Px, Py float64
}

// PortExchange couples this run to a peer run. Each step publishes the local
// centroid momenta on Out, then waits for the peer's kick on In. If the peer
// has not produced yet, the step returns a Hold so the scheduler can suspend
// instead of blocking.
type PortExchange struct {
	In  <-chan CentroidKick
	Out chan<- CentroidKick

	// Strength scales the received kick before it is applied.
	Strength float64

	sent    bool
	scratch []float64
}

func (p *PortExchange) Length() float64 { return 0 }

func (p *PortExchange) NeedsHost() bool { return true }

func (p *PortExchange) Step(e *particles.Ensemble) (*Hold, error) {
	if !p.sent {
		kick := CentroidKick{
			Px: p.mean(e, e.Px),
			Py: p.mean(e, e.Py),
		}
		select {
		case p.Out <- kick:
			p.sent = true
		default:
			return &Hold{Reason: "peer has not consumed the previous centroid"}, nil
		}
	}

	select {
	case kick, ok := <-p.In:
		if !ok {
			return nil, fmt.Errorf("The peer closed its exchange port mid-run.")
		}
		for i := 0; i < e.Capacity; i++ {
			if e.State[i] <= 0 {
				continue
			}
			e.Px[i] += p.Strength * kick.Px
			e.Py[i] += p.Strength * kick.Py
		}
		p.sent = false
		return nil, nil
	default:
		return &Hold{Reason: "waiting for peer centroid"}, nil
	}
}

func (p *PortExchange) mean(e *particles.Ensemble, col []float64) float64 {
	p.scratch = p.scratch[:0]
	for i := 0; i < e.Capacity; i++ {
		if e.State[i] > 0 {
			p.scratch = append(p.scratch, col[i])
		}
	}
	if len(p.scratch) == 0 {
		return 0
	}
	return stat.Mean(p.scratch, nil)
}
