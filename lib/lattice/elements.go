package lattice

/* This file contains the library of bulk single-particle maps. Every map
here updates exactly one particle slot and leaves the scheduler bookkeeping
columns (state, at_turn, at_element) alone; those are owned by the kernel
and the dispatcher. */

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/accelsim/ringtrack/lib/particles"
)

// SpeedOfLight is the speed of light in m/s.
const SpeedOfLight = 299792458.0

// Drift propagates a particle through field-free space of length L, to
// second order in the transverse momenta.
type Drift struct {
	L float64
}

func (d Drift) Length() float64 { return d.L }

func (d Drift) TrackParticle(e *particles.Ensemble, i int) {
	d.apply(e, i, d.L)
}

func (d Drift) UntrackParticle(e *particles.Ensemble, i int) {
	d.apply(e, i, -d.L)
}

func (d Drift) apply(e *particles.Ensemble, i int, l float64) {
	px, py := e.Px[i], e.Py[i]
	e.X[i] += l * px
	e.Y[i] += l * py
	e.Zeta[i] += l * (e.Delta[i] - (px*px+py*py)/2)
	e.S[i] += l
}

// Multipole is a thin magnetic multipole. Knl and Ksl are the integrated
// normal and skew strengths, indexed by multipole order. The kick changes
// only the momenta, so the inverse is the negated kick.
type Multipole struct {
	Knl, Ksl []float64
}

func (m Multipole) Length() float64 { return 0 }

func (m Multipole) TrackParticle(e *particles.Ensemble, i int) {
	dpx, dpy := m.kick(e.X[i], e.Y[i])
	e.Px[i] += dpx
	e.Py[i] += dpy
}

func (m Multipole) UntrackParticle(e *particles.Ensemble, i int) {
	dpx, dpy := m.kick(e.X[i], e.Y[i])
	e.Px[i] -= dpx
	e.Py[i] -= dpy
}

// kick evaluates the multipole expansion with a complex Horner scheme.
func (m Multipole) kick(x, y float64) (dpx, dpy float64) {
	order := len(m.Knl)
	if len(m.Ksl) > order {
		order = len(m.Ksl)
	}
	if order == 0 {
		return 0, 0
	}
	knl := func(n int) float64 {
		if n < len(m.Knl) {
			return m.Knl[n]
		}
		return 0
	}
	ksl := func(n int) float64 {
		if n < len(m.Ksl) {
			return m.Ksl[n]
		}
		return 0
	}

	invFact := make([]float64, order)
	invFact[0] = 1
	for n := 1; n < order; n++ {
		invFact[n] = invFact[n-1] / float64(n)
	}
	sumRe := knl(order-1) * invFact[order-1]
	sumIm := ksl(order-1) * invFact[order-1]
	for n := order - 2; n >= 0; n-- {
		re := sumRe*x - sumIm*y
		im := sumRe*y + sumIm*x
		sumRe = re + knl(n)*invFact[n]
		sumIm = im + ksl(n)*invFact[n]
	}
	return -sumRe, sumIm
}

// Cavity is a thin RF cavity. Voltage is in volts, Frequency in Hz, Lag in
// radians, PRef the reference momentum times c in eV. The energy kick
// depends only on zeta, which the cavity does not change, so the map is
// exactly invertible.
type Cavity struct {
	Voltage   float64
	Frequency float64
	Lag       float64
	PRef      float64
}

func (c Cavity) Length() float64 { return 0 }

func (c Cavity) TrackParticle(e *particles.Ensemble, i int) {
	e.Delta[i] += c.deltaKick(e, i)
}

func (c Cavity) UntrackParticle(e *particles.Ensemble, i int) {
	e.Delta[i] -= c.deltaKick(e, i)
}

func (c Cavity) deltaKick(e *particles.Ensemble, i int) float64 {
	k := 2 * math.Pi * c.Frequency / (e.Beta0[i] * SpeedOfLight)
	return c.Voltage / c.PRef * math.Sin(c.Lag-k*e.Zeta[i])
}

// LinearMap applies a 6x6 one-turn (or one-section) transfer matrix to the
// coordinate vector (x, px, y, py, zeta, delta). The inverse matrix is
// computed at construction so the map can be tracked backwards.
type LinearMap struct {
	L       float64
	m, mInv *mat.Dense
}

// NewLinearMap builds a LinearMap from a 6x6 matrix. It returns an error if
// the matrix is not 6x6 or is singular.
func NewLinearMap(length float64, m *mat.Dense) (*LinearMap, error) {
	r, c := m.Dims()
	if r != 6 || c != 6 {
		return nil, fmt.Errorf(
			"A transfer matrix must be 6x6, but this one is %dx%d.", r, c,
		)
	}
	inv := mat.NewDense(6, 6, nil)
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf(
			"The transfer matrix is singular and cannot be tracked backwards: %v.",
			err,
		)
	}
	return &LinearMap{L: length, m: mat.DenseCopyOf(m), mInv: inv}, nil
}

func (lm *LinearMap) Length() float64 { return lm.L }

func (lm *LinearMap) TrackParticle(e *particles.Ensemble, i int) {
	lm.apply(e, i, lm.m, lm.L)
}

func (lm *LinearMap) UntrackParticle(e *particles.Ensemble, i int) {
	lm.apply(e, i, lm.mInv, -lm.L)
}

func (lm *LinearMap) apply(e *particles.Ensemble, i int, m *mat.Dense, ds float64) {
	v := mat.NewVecDense(6, []float64{
		e.X[i], e.Px[i], e.Y[i], e.Py[i], e.Zeta[i], e.Delta[i],
	})
	out := mat.NewVecDense(6, nil)
	out.MulVec(m, v)
	e.X[i], e.Px[i] = out.AtVec(0), out.AtVec(1)
	e.Y[i], e.Py[i] = out.AtVec(2), out.AtVec(3)
	e.Zeta[i], e.Delta[i] = out.AtVec(4), out.AtVec(5)
	e.S[i] += ds
}

// LimitRect is a rectangular aperture. Particles outside the limits are
// marked lost; their coordinates are frozen where they died. Losing a
// particle cannot be undone, so the element is not reversible.
type LimitRect struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

func (a LimitRect) Length() float64 { return 0 }

func (a LimitRect) TrackParticle(e *particles.Ensemble, i int) {
	x, y := e.X[i], e.Y[i]
	if x < a.MinX || x > a.MaxX || y < a.MinY || y > a.MaxY {
		e.State[i] = particles.StateLostAperture
	}
}

// Marker is a named zero-length placeholder. It exists only so that a
// position in the line can be referenced by name.
type Marker struct{}

func (Marker) Length() float64                              { return 0 }
func (Marker) TrackParticle(e *particles.Ensemble, i int)   {}
func (Marker) UntrackParticle(e *particles.Ensemble, i int) {}
