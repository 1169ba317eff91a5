package calibra

import (
	"fmt"
	"math"
	"sync"

	trd "github.com/alice-trd/trd_go/pkg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LinearFitter collects, per detector, the slope of the tracks against
// the drift speed of their tracklets. For a track of slope dy/dx the
// clusters move along the pads at dy/dt = -vd dy/dx + vd tan(alphaL), so a
// straight line fit gives both the drift velocity and the Lorentz angle.
type LinearFitter struct {
	mu     sync.Mutex
	detMin int
	detMax int
	x      map[int][]float64
	y      map[int][]float64
}

func NewLinearFitter(detMin, detMax int) *LinearFitter {
	return &LinearFitter{
		detMin: detMin,
		detMax: detMax,
		x:      make(map[int][]float64),
		y:      make(map[int][]float64),
	}
}

// Add records one tracklet of det: the track slope dy/dx and the speed
// dy/dt of its clusters in cm/us.
func (l *LinearFitter) Add(det int, slope, speed float64) {
	if det < l.detMin || det > l.detMax || math.IsNaN(slope) || math.IsNaN(speed) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.x[det] = append(l.x[det], slope)
	l.y[det] = append(l.y[det], speed)
}

// Points returns the number of tracklets recorded for det.
func (l *LinearFitter) Points(det int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.x[det])
}

func (l *LinearFitter) points(det int) ([]float64, []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.x[det]...), append([]float64(nil), l.y[det]...)
}

// AnalyseLinearFitter fits the tracklets of every detector and returns the
// drift velocities, with the tangent of the Lorentz angle as second
// coefficient. Detectors with fewer than MinEntriesLinear tracklets take
// the reference values.
func (c *Context) AnalyseLinearFitter(l *LinearFitter) (*Analysis, error) {
	c.setStage(StageInitMode)
	layout := NewLayout(c.geo, Mode{}, l.detMin, l.detMax)
	a := &Analysis{
		Kind:           KindPH,
		Method:         "linear",
		Quantity:       trd.QuantityVdrift,
		SecondQuantity: trd.QuantityTanLorentz,
		Layout:         layout,
		Scale:          1,
	}
	minPoints := max(c.params.MinEntriesLinear, 2)

	a.Results = c.fitGroups(layout, func(g Group) GroupResult {
		xs, ys := l.points(g.Detector)
		if len(xs) < minPoints {
			return c.fallbackResult(a, g, len(xs))
		}
		p0, p1 := stat.LinearRegression(xs, ys, nil, false)
		if !(p1 < 0) || math.IsNaN(p0) {
			fb := c.fallbackResult(a, g, len(xs))
			fb.Err = fmt.Errorf("linear fit of detector %d: slope %g", g.Detector, p1)
			return fb
		}
		return GroupResult{
			Group:   g,
			Entries: len(xs),
			Coef:    Coefficient{Value: -p1, Status: Fitted},
			Second:  Coefficient{Value: -p0 / p1, Status: Fitted},
			Curve: &Curve{
				X:  xs,
				Y:  ys,
				F:  func(x float64) float64 { return p0 + p1*x },
				Lo: floats.Min(xs),
				Hi: floats.Max(xs),
			},
		}
	})
	return c.finish(a), nil
}
