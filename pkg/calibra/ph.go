package calibra

import (
	"errors"
	"fmt"
	"math"

	trd "github.com/alice-trd/trd_go/pkg"
	"gonum.org/v1/gonum/mat"
)

// Methods of the average pulse height analysis.
const (
	MethodSlope    = "slope"
	MethodPHFit    = "ph"
	MethodLagrange = "lagrange"
)

const lagrangeScanSteps = 200

var errShortProfile = errors.New("pulse height profile too short")

// phMarkers are the positions, in time bins, of the begin of the signal,
// the amplification peak and the end of the drift region.
type phMarkers struct {
	start, peak, end float64
}

// AnalysePH extracts the drift velocity and t0 of every group from the
// average pulse height.
func (c *Context) AnalysePH(h *Histograms) (*Analysis, error) {
	method := c.params.FitPHMethod
	var markers func(xs, ys []float64) (phMarkers, *Curve, error)
	switch method {
	case MethodSlope:
		markers = func(xs, ys []float64) (phMarkers, *Curve, error) {
			m, err := slopeMarkers(xs, ys, c.params.TakeTheMaxPH, pol2Extremum)
			return m, &Curve{X: xs, Y: ys}, err
		}
	case MethodLagrange:
		markers = func(xs, ys []float64) (phMarkers, *Curve, error) {
			m, err := slopeMarkers(xs, ys, c.params.TakeTheMaxPH, lagrangeExtremum)
			return m, &Curve{X: xs, Y: ys}, err
		}
	case MethodPHFit:
		markers = c.fitPHShape
	default:
		return nil, fmt.Errorf("unknown pulse height fit method %q", method)
	}

	a := &Analysis{Kind: KindPH, Method: method, Quantity: trd.QuantityVdrift, SecondQuantity: trd.QuantityT0}
	err := c.analyse(h, a, c.params.MinEntries, func(g Group, bins []Bin) (GroupResult, error) {
		xs := make([]float64, len(bins))
		ys := make([]float64, len(bins))
		for i, b := range bins {
			xs[i], ys[i] = b.X, b.Y
		}
		m, curve, err := markers(xs, ys)
		if err != nil {
			return GroupResult{}, err
		}
		vdrift, t0, err := c.vdriftT0(m)
		if err != nil {
			return GroupResult{}, err
		}
		return GroupResult{
			Coef:   Coefficient{Value: vdrift, Status: Fitted},
			Second: Coefficient{Value: t0, Status: Fitted},
			Curve:  curve,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.finish(a), nil
}

// vdriftT0 converts the pulse height markers to a drift velocity in cm/us
// and a t0 in time bins.
func (c *Context) vdriftT0(m phMarkers) (float64, float64, error) {
	if m.start > m.peak || m.peak >= m.end {
		return 0, 0, fmt.Errorf("pulse height markers out of order: %.3f %.3f %.3f", m.start, m.peak, m.end)
	}
	driftTime := (m.end - m.peak) / c.sim.SamplingFrequency
	vdrift := trd.DrThick / driftTime
	t0 := m.start - float64(c.sim.PretriggerBins) - c.params.T0Shift
	return vdrift, t0, nil
}

func argmax(ys []float64, from, to int) int {
	best := from
	for i := from; i < to; i++ {
		if ys[i] > ys[best] {
			best = i
		}
	}
	return best
}

func argmin(ys []float64, from, to int) int {
	best := from
	for i := from; i < to; i++ {
		if ys[i] < ys[best] {
			best = i
		}
	}
	return best
}

// slopeMarkers finds the maximum of the derivative before the peak, the
// peak and the minimum of the derivative after it, each refined around
// the bin by extremum.
func slopeMarkers(xs, ys []float64, takeTheMax bool, extremum func(xs, ys []float64, k int, wantMax bool) float64) (phMarkers, error) {
	n := len(ys)
	if n < 4 {
		return phMarkers{}, errShortProfile
	}
	dx := make([]float64, n-1)
	d := make([]float64, n-1)
	for k := 0; k < n-1; k++ {
		dx[k] = (xs[k] + xs[k+1]) / 2
		d[k] = ys[k+1] - ys[k]
	}

	iPeak := argmax(ys, 0, n)
	if iPeak == 0 || iPeak >= n-2 {
		return phMarkers{}, fmt.Errorf("pulse height maximum at the edge of the profile (bin %d)", iPeak)
	}
	var m phMarkers
	m.peak = extremum(xs, ys, iPeak, true)
	if takeTheMax {
		m.start = m.peak
	} else {
		m.start = extremum(dx, d, argmax(d, 0, iPeak), true)
	}
	m.end = extremum(dx, d, argmin(d, iPeak, n-1), false)
	return m, nil
}

func window(n, k, half int) (int, int) {
	return max(0, k-half), min(n-1, k+half)
}

// pol2Extremum fits a parabola to the points around k and returns the
// position of its extremum, or xs[k] when the parabola has none of the
// requested kind inside the window.
func pol2Extremum(xs, ys []float64, k int, wantMax bool) float64 {
	lo, hi := window(len(xs), k, 2)
	p, ok := Pol2(xs[lo:hi+1], ys[lo:hi+1])
	if !ok || p[2] == 0 || (wantMax && p[2] > 0) || (!wantMax && p[2] < 0) {
		return xs[k]
	}
	x := -p[1] / (2 * p[2])
	tol := 1e-9 * (xs[hi] - xs[lo])
	if x < xs[lo]-tol || x > xs[hi]+tol {
		return xs[k]
	}
	return math.Min(math.Max(x, xs[lo]), xs[hi])
}

// Pol2 returns the least squares parabola p0 + p1 x + p2 x^2 through the
// points.
func Pol2(xs, ys []float64) ([3]float64, bool) {
	var p [3]float64
	if len(xs) < 3 {
		return p, false
	}
	a := mat.NewDense(len(xs), 3, nil)
	for i, x := range xs {
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, x*x)
	}
	b := mat.NewVecDense(len(ys), append([]float64(nil), ys...))
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return p, false
	}
	for i := range p {
		p[i] = sol.AtVec(i)
	}
	return p, true
}

// LagrangeInterpolate evaluates at x the polynomial of degree len(xs)-1
// through the points.
func LagrangeInterpolate(xs, ys []float64, x float64) float64 {
	sum := 0.0
	for i := range xs {
		term := ys[i]
		for j := range xs {
			if j != i {
				term *= (x - xs[j]) / (xs[i] - xs[j])
			}
		}
		sum += term
	}
	return sum
}

// lagrangeExtremum interpolates up to five points around k with a
// Lagrange polynomial, of degree 2 to 4 depending on the bins available at
// the edges, and scans it for the extremum between the neighbours of k.
func lagrangeExtremum(xs, ys []float64, k int, wantMax bool) float64 {
	lo, hi := window(len(xs), k, 2)
	if hi-lo < 2 {
		return xs[k]
	}
	px, py := xs[lo:hi+1], ys[lo:hi+1]
	from, to := xs[max(lo, k-1)], xs[min(hi, k+1)]
	best, bestX := LagrangeInterpolate(px, py, xs[k]), xs[k]
	for i := 0; i <= lagrangeScanSteps; i++ {
		x := from + (to-from)*float64(i)/lagrangeScanSteps
		y := LagrangeInterpolate(px, py, x)
		if (wantMax && y > best) || (!wantMax && y < best) {
			best, bestX = y, x
		}
	}
	return bestX
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// phShape is the average pulse height: a pedestal plus a plateau opened
// at t0 with an amplification peak decaying with tau, closed at t1. The
// parameters are pedestal, plateau, peak excess, t0, t1, edge width and
// tau.
func phShape(t float64, ps []float64) float64 {
	c, a, b, t0, t1, w, tau := ps[0], ps[1], ps[2], ps[3], ps[4], math.Abs(ps[5]), math.Abs(ps[6])
	if w == 0 || tau == 0 {
		return c
	}
	peak := 1 + b*math.Exp(-math.Max(t-t0, 0)/tau)
	return c + a*sigmoid((t-t0)/w)*peak*sigmoid((t1-t)/w)
}

// fitPHShape fits phShape to the profile, seeded by the slope method.
func (c *Context) fitPHShape(xs, ys []float64) (phMarkers, *Curve, error) {
	seed, err := slopeMarkers(xs, ys, false, pol2Extremum)
	if err != nil {
		return phMarkers{}, nil, err
	}
	n := len(ys)
	mid := int((seed.peak+seed.end)/2 - xs[0])
	mid = min(max(mid, 0), n-1)
	pedestal := ys[0]
	plateau := math.Max(ys[mid]-pedestal, 1e-3)
	excess := math.Max(ys[argmax(ys, 0, n)]/(plateau+pedestal)-1, 0)

	out, err := c.fitter.Fit(phShape, xs, ys, nil, []float64{pedestal, plateau, excess, seed.start, seed.end, 0.5, 1})
	if err != nil {
		return phMarkers{}, nil, fmt.Errorf("pulse height shape fit: %w", err)
	}
	p := out.Params
	if p[1] <= 0 || p[5] == 0 || p[6] == 0 || p[4] <= p[3] {
		return phMarkers{}, nil, fmt.Errorf("pulse height shape fit: unphysical parameters %v", p)
	}
	// Signal start and amplification peak coincide in the model.
	m := phMarkers{start: p[3], peak: p[3], end: p[4]}
	curve := &Curve{X: xs, Y: ys, F: func(t float64) float64 { return phShape(t, p) }, Lo: xs[0], Hi: xs[n-1]}
	return m, curve, nil
}
