package lattice

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/accelsim/ringtrack/lib/eq"
	"github.com/accelsim/ringtrack/lib/particles"
)

func testEnsemble() *particles.Ensemble {
	e := particles.New(1, 1)
	e.X[0], e.Px[0] = 1e-3, 2e-4
	e.Y[0], e.Py[0] = -5e-4, 1e-4
	e.Zeta[0], e.Delta[0] = 1e-2, 1e-3
	return e
}

func TestDrift(t *testing.T) {
	e := testEnsemble()
	d := Drift{L: 2}

	d.TrackParticle(e, 0)

	if e.X[0] != 1e-3+2*2e-4 {
		t.Errorf("Expected x = %g, got %g.", 1e-3+2*2e-4, e.X[0])
	}
	if !eq.Float64sEps([]float64{e.Y[0]}, []float64{-5e-4 + 2*1e-4}, 1e-15) {
		t.Errorf("Expected y = %g, got %g.", -5e-4+2*1e-4, e.Y[0])
	}
	zeta := 1e-2 + 2*(1e-3-(2e-4*2e-4+1e-4*1e-4)/2)
	if e.Zeta[0] != zeta {
		t.Errorf("Expected zeta = %g, got %g.", zeta, e.Zeta[0])
	}
	if e.S[0] != 2 {
		t.Errorf("Expected s = 2, got %g.", e.S[0])
	}
	if e.Px[0] != 2e-4 || e.Py[0] != 1e-4 || e.Delta[0] != 1e-3 {
		t.Errorf("Expected the drift to leave the momenta unchanged.")
	}
}

func TestMultipoleKicks(t *testing.T) {
	e := testEnsemble()

	// A thin dipole kicks by its integrated strength, independent of the
	// coordinates.
	dip := Multipole{Knl: []float64{3e-4}}
	dip.TrackParticle(e, 0)
	if !eq.Float64sEps([]float64{e.Px[0]}, []float64{2e-4 - 3e-4}, 1e-15) {
		t.Errorf("Expected px = %g after the dipole, got %g.",
			2e-4-3e-4, e.Px[0])
	}
	if e.Py[0] != 1e-4 {
		t.Errorf("Expected the normal dipole to leave py alone, got %g.",
			e.Py[0])
	}

	// A normal quadrupole focuses in x and defocuses in y.
	e = testEnsemble()
	quad := Multipole{Knl: []float64{0, 0.5}}
	quad.TrackParticle(e, 0)
	if !eq.Float64sEps([]float64{e.Px[0]}, []float64{2e-4 - 0.5*1e-3}, 1e-15) {
		t.Errorf("Expected px = %g after the quadrupole, got %g.",
			2e-4-0.5*1e-3, e.Px[0])
	}
	if !eq.Float64sEps([]float64{e.Py[0]}, []float64{1e-4 + 0.5*(-5e-4)}, 1e-15) {
		t.Errorf("Expected py = %g after the quadrupole, got %g.",
			1e-4+0.5*(-5e-4), e.Py[0])
	}
	if e.X[0] != 1e-3 || e.Y[0] != -5e-4 {
		t.Errorf("Expected the thin kick to leave the positions unchanged.")
	}
}

func TestCavityKick(t *testing.T) {
	e := testEnsemble()
	e.Zeta[0] = 0
	c := Cavity{Voltage: 1e6, Frequency: 4e8, Lag: math.Pi / 2, PRef: 7e12}

	c.TrackParticle(e, 0)

	want := 1e-3 + 1e6/7e12
	if !eq.Float64sEps([]float64{e.Delta[0]}, []float64{want}, 1e-18) {
		t.Errorf("Expected delta = %g at the crest, got %g.", want, e.Delta[0])
	}
	if e.Zeta[0] != 0 {
		t.Errorf("Expected the cavity to leave zeta unchanged, got %g.",
			e.Zeta[0])
	}
}

func TestLinearMap(t *testing.T) {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m.Set(i, i, 1)
	}
	m.Set(0, 1, 2) // x' = x + 2 px

	lm, err := NewLinearMap(3, m)
	if err != nil {
		t.Fatalf("Expected the matrix to be accepted, got: %v", err)
	}

	e := testEnsemble()
	lm.TrackParticle(e, 0)
	if !eq.Float64sEps([]float64{e.X[0]}, []float64{1e-3 + 2*2e-4}, 1e-15) {
		t.Errorf("Expected x = %g, got %g.", 1e-3+2*2e-4, e.X[0])
	}
	if e.S[0] != 3 {
		t.Errorf("Expected s = 3, got %g.", e.S[0])
	}

	lm.UntrackParticle(e, 0)
	ref := testEnsemble()
	got := []float64{e.X[0], e.Px[0], e.Y[0], e.Py[0], e.Zeta[0], e.Delta[0]}
	want := []float64{ref.X[0], ref.Px[0], ref.Y[0], ref.Py[0],
		ref.Zeta[0], ref.Delta[0]}
	if !eq.Float64sEps(got, want, 1e-12) {
		t.Errorf("Expected the inverse map to restore the coordinates, "+
			"got %v, want %v.", got, want)
	}
	if e.S[0] != 0 {
		t.Errorf("Expected s to return to 0, got %g.", e.S[0])
	}
}

func TestLinearMapRejectsBadMatrices(t *testing.T) {
	if _, err := NewLinearMap(0, mat.NewDense(4, 4, nil)); err == nil {
		t.Errorf("Expected a 4x4 matrix to be rejected.")
	}
	if _, err := NewLinearMap(0, mat.NewDense(6, 6, nil)); err == nil {
		t.Errorf("Expected a singular matrix to be rejected.")
	}
}

func TestReversibleRoundTrip(t *testing.T) {
	elements := []ReversibleElement{
		Drift{L: 1.5},
		Multipole{Knl: []float64{1e-4, 0.3, 12}, Ksl: []float64{0, 0.1}},
		Cavity{Voltage: 2e6, Frequency: 4e8, Lag: 0.3, PRef: 7e12},
		Marker{},
	}

	e := testEnsemble()
	ref := testEnsemble()
	for _, el := range elements {
		el.TrackParticle(e, 0)
	}
	for i := len(elements) - 1; i >= 0; i-- {
		elements[i].UntrackParticle(e, 0)
	}

	got := []float64{e.X[0], e.Px[0], e.Y[0], e.Py[0],
		e.Zeta[0], e.Delta[0], e.S[0]}
	want := []float64{ref.X[0], ref.Px[0], ref.Y[0], ref.Py[0],
		ref.Zeta[0], ref.Delta[0], ref.S[0]}
	if !eq.Float64sEps(got, want, 1e-12) {
		t.Errorf("Expected backwards tracking to restore the particle, "+
			"got %v, want %v.", got, want)
	}
}

func TestLimitRect(t *testing.T) {
	e := particles.New(3, 1)
	e.X[1] = 2e-2
	e.Y[2] = -3e-2
	a := LimitRect{MinX: -1e-2, MaxX: 1e-2, MinY: -1e-2, MaxY: 1e-2}

	for i := 0; i < e.Capacity; i++ {
		a.TrackParticle(e, i)
	}

	want := []int64{particles.StateAlive, particles.StateLostAperture,
		particles.StateLostAperture}
	if !eq.Int64s(e.State, want) {
		t.Errorf("Expected states %v, got %v.", want, e.State)
	}
	if e.X[1] != 2e-2 {
		t.Errorf("Expected the lost particle to keep its coordinates, "+
			"got x = %g.", e.X[1])
	}
	if IsReversible(a) {
		t.Errorf("Expected an aperture not to be reversible.")
	}
}
