package calibra

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Number of group fits drawn per analysis.
const maxGroupPlots = 10

// Plot writes the QA plots of an analysis to dir: the coefficient of every
// group and the fits of the first fitted groups.
func (a *Analysis) Plot(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	prefix := filepath.Join(dir, fmt.Sprintf("%s_%s", a.Name(), a.Method))
	if err := a.plotCoefficients(prefix + "_coefficients.png"); err != nil {
		return err
	}
	drawn := 0
	for _, r := range a.Results {
		if drawn == maxGroupPlots {
			break
		}
		if !r.Coef.Fitted() || r.Curve == nil {
			continue
		}
		if err := a.plotGroup(r, fmt.Sprintf("%s_group%d.png", prefix, r.Group.Index)); err != nil {
			return err
		}
		drawn++
	}
	return nil
}

func (a *Analysis) plotCoefficients(file string) error {
	var fitted, fallback plotter.XYs
	for _, r := range a.Results {
		xy := plotter.XY{X: float64(r.Group.Index), Y: r.Coef.Value}
		if r.Coef.Fitted() {
			fitted = append(fitted, xy)
		} else {
			fallback = append(fallback, xy)
		}
	}

	p := hplot.New()
	p.Title.Text = fmt.Sprintf("%s %s", a.Name(), a.Quantity)
	p.X.Label.Text = "calibration group"
	p.Y.Label.Text = a.Quantity
	for _, set := range []struct {
		name  string
		xys   plotter.XYs
		color color.Color
	}{
		{"fitted", fitted, color.RGBA{B: 255, A: 255}},
		{"fallback", fallback, color.RGBA{R: 255, A: 255}},
	} {
		if len(set.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(set.xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", file, err)
		}
		s.GlyphStyle.Color = set.color
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add(set.name, s)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, file)
}

func (a *Analysis) plotGroup(r GroupResult, file string) error {
	p := hplot.New()
	p.Title.Text = fmt.Sprintf("%s group %d (detector %d)", a.Name(), r.Group.Index, r.Group.Detector)
	p.Y.Label.Text = "entries"

	if a.Kind == KindCH && a.hist != nil {
		p.X.Label.Text = "charge"
		h := hplot.NewH1D(a.hist.charge[r.Group.Index])
		h.LineStyle.Color = color.Gray{Y: 100}
		p.Add(h)
	} else {
		xys := make(plotter.XYs, len(r.Curve.X))
		for i := range r.Curve.X {
			xys[i] = plotter.XY{X: r.Curve.X[i], Y: r.Curve.Y[i]}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", file, err)
		}
		p.Add(s)
	}
	if r.Curve.F != nil {
		f := plotter.NewFunction(r.Curve.F)
		f.XMin, f.XMax = r.Curve.Lo, r.Curve.Hi
		f.Samples = 200
		f.Color = color.RGBA{R: 255, A: 255}
		p.Add(f)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, file)
}
