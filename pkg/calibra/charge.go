package calibra

import (
	"errors"
	"fmt"
	"math"

	trd "github.com/alice-trd/trd_go/pkg"
	"gonum.org/v1/gonum/floats"
)

// Methods of the charge (gain) analysis.
const (
	MethodMean  = "mean"
	MethodMeanW = "meanw"
	MethodCH    = "ch"
	MethodBisCH = "bisch"
)

// Weights of the truncated weighted mean, a polynomial in the fraction of
// the spectrum below the bin.
var meanWCoefficients = [5]float64{0.00228515, -0.00231487, 0.00044298, -0.00379239, 0.00338349}

const (
	meanWMaxFraction = 0.95
	// Relative chi2 margin allowed to the joint fits over the best single
	// component fit.
	chargeChi2Tolerance = 0.05
	peakScanSteps       = 1000
)

var errEmptySpectrum = errors.New("empty charge spectrum")

// AnalyseCH fits the charge spectra of every group and returns the gain
// factors. Fitted gains are normalised afterwards when configured.
func (c *Context) AnalyseCH(h *Histograms) (*Analysis, error) {
	method := c.params.FitCHMethod
	var fit func(bins []Bin) (chargeFit, error)
	switch method {
	case MethodMean:
		fit = fitMean
	case MethodMeanW:
		fit = fitMeanW
	case MethodCH:
		fit = c.fitCH
	case MethodBisCH:
		fit = c.fitBisCH
	default:
		return nil, fmt.Errorf("unknown charge fit method %q", method)
	}
	scale := c.params.ScaleFitFactor
	if scale <= 0 {
		scale = 1
	}

	a := &Analysis{Kind: KindCH, Method: method, Quantity: trd.QuantityGain}
	err := c.analyse(h, a, c.params.MinEntries, func(g Group, bins []Bin) (GroupResult, error) {
		out, err := fit(bins)
		if err != nil {
			return GroupResult{}, err
		}
		if !(out.value > 0) {
			return GroupResult{}, fmt.Errorf("non positive charge %g", out.value)
		}
		return GroupResult{
			Coef:  Coefficient{Value: out.value / scale, Status: Fitted},
			Error: out.err / scale,
			Chi2:  out.chi2,
			Curve: out.curve,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	c.Normalize(a)
	return c.finish(a), nil
}

type chargeFit struct {
	value float64
	err   float64
	chi2  float64
	curve *Curve
}

// spectrumStats returns the mean, the rms and the highest bin of a charge
// spectrum.
func spectrumStats(bins []Bin) (mean, rms float64, peak Bin, err error) {
	xs := make([]float64, 0, len(bins))
	ws := make([]float64, 0, len(bins))
	for _, b := range bins {
		if b.Y <= 0 {
			continue
		}
		xs = append(xs, b.X)
		ws = append(ws, b.Y)
		if b.Y > peak.Y {
			peak = b
		}
	}
	if floats.Sum(ws) <= 0 {
		return 0, 0, peak, errEmptySpectrum
	}
	mean = floats.Dot(xs, ws) / floats.Sum(ws)
	variance := 0.0
	for i, x := range xs {
		variance += ws[i] * (x - mean) * (x - mean)
	}
	rms = math.Sqrt(variance / floats.Sum(ws))
	return mean, rms, peak, nil
}

func fitMean(bins []Bin) (chargeFit, error) {
	mean, rms, _, err := spectrumStats(bins)
	if err != nil {
		return chargeFit{}, err
	}
	n := 0.0
	for _, b := range bins {
		n += b.Y
	}
	return chargeFit{value: mean, err: rms / math.Sqrt(n)}, nil
}

// fitMeanW is the mean of the spectrum with weights that suppress the
// Landau tail: bins above 95% of the cumulative charge do not count.
func fitMeanW(bins []Bin) (chargeFit, error) {
	total := 0.0
	for _, b := range bins {
		total += b.Y
	}
	if total <= 0 {
		return chargeFit{}, errEmptySpectrum
	}
	a, b1, c, d, e := meanWCoefficients[0], meanWCoefficients[1], meanWCoefficients[2], meanWCoefficients[3], meanWCoefficients[4]
	sum, sumW := 0.0, 0.0
	cumulative := 0.0
	for _, b := range bins {
		f := cumulative / total
		cumulative += b.Y
		if f > meanWMaxFraction {
			continue
		}
		w := a + b1*f + c*f*f + d*f*f*f + e*f*f*f*f
		sum += w * b.Y * b.X
		sumW += w * b.Y
	}
	if sumW <= 0 {
		return chargeFit{}, fmt.Errorf("weighted mean: sum of weights %g", sumW)
	}
	return chargeFit{value: sum / sumW}, nil
}

// chargeRange is the fit window of the spectrum fits.
func (c *Context) chargeRange(mean float64) (float64, float64) {
	begin := c.params.BeginFitCharge
	if begin <= 0 {
		begin = 1
	}
	return mean / begin, 3 * mean
}

func landauModel(x float64, ps []float64) float64 {
	return ps[0] * Landau(x, ps[1], ps[2])
}

func gausModel(x float64, ps []float64) float64 {
	return ps[0] * Gaus(x, ps[1], math.Abs(ps[2]))
}

func landauGausModel(x float64, ps []float64) float64 {
	return ps[0]*Landau(x, ps[1], ps[2]) + ps[3]*Gaus(x, ps[1], math.Abs(ps[4]))
}

// singleFits runs the Landau only and the Gauss only fits that seed the
// joint fits and bound their chi2.
func (c *Context) singleFits(bins []Bin) (landau, gauss CurveFit, xs, ys, errs []float64, err error) {
	if len(bins) < 2 {
		return landau, gauss, nil, nil, nil, errEmptySpectrum
	}
	mean, rms, peak, err := spectrumStats(bins)
	if err != nil {
		return landau, gauss, nil, nil, nil, err
	}
	lo, hi := c.chargeRange(mean)
	xs, ys, errs = points(bins, lo, hi)
	width := math.Max(rms/4, bins[1].X-bins[0].X)

	landau, err = c.fitter.Fit(landauModel, xs, ys, errs, []float64{peak.Y / 0.18, peak.X + 0.22*width, width})
	if err != nil {
		return landau, gauss, xs, ys, errs, fmt.Errorf("landau fit: %w", err)
	}
	gauss, err = c.fitter.Fit(gausModel, xs, ys, errs, []float64{peak.Y, peak.X, rms})
	if err != nil {
		return landau, gauss, xs, ys, errs, fmt.Errorf("gauss fit: %w", err)
	}
	return landau, gauss, xs, ys, errs, nil
}

func acceptJoint(joint, landau, gauss CurveFit) error {
	best := math.Min(landau.Chi2, gauss.Chi2)
	if joint.Chi2 > best*(1+chargeChi2Tolerance) {
		return fmt.Errorf("joint fit chi2 %.4g worse than single component fits %.4g", joint.Chi2, best)
	}
	return nil
}

func peakOf(f func(float64) float64, lo, hi float64) float64 {
	best, bestX := math.Inf(-1), lo
	for i := 0; i <= peakScanSteps; i++ {
		x := lo + (hi-lo)*float64(i)/peakScanSteps
		if y := f(x); y > best {
			best, bestX = y, x
		}
	}
	return bestX
}

// fitCH fits the sum of a Landau and a Gaussian sharing the same
// location. The gain is read at the peak of the fitted function.
func (c *Context) fitCH(bins []Bin) (chargeFit, error) {
	landau, gauss, xs, ys, errs, err := c.singleFits(bins)
	if err != nil {
		return chargeFit{}, err
	}
	lp, gp := landau.Params, gauss.Params
	joint, err := c.fitter.Fit(landauGausModel, xs, ys, errs, []float64{0.9 * lp[0], lp[1], lp[2], 0.1 * gp[0], math.Abs(gp[2])})
	if err != nil {
		return chargeFit{}, fmt.Errorf("landau+gauss fit: %w", err)
	}
	p := joint.Params
	if p[1] <= 0 || p[2] <= 0 || p[4] == 0 {
		return chargeFit{}, fmt.Errorf("landau+gauss fit: unphysical parameters %v", p)
	}
	if err := acceptJoint(joint, landau, gauss); err != nil {
		return chargeFit{}, err
	}
	f := func(x float64) float64 { return landauGausModel(x, p) }
	lo, hi := xs[0], xs[len(xs)-1]
	return chargeFit{
		value: peakOf(f, lo, hi),
		err:   paramError(joint, 1),
		chi2:  joint.Chi2,
		curve: &Curve{X: xs, Y: ys, F: f, Lo: lo, Hi: hi},
	}, nil
}

// fitBisCH fits the Landau and the Gaussian separately, then a Landau
// convolved with a Gaussian seeded by both. The gain is the maximum found
// by LanGauPro.
func (c *Context) fitBisCH(bins []Bin) (chargeFit, error) {
	landau, gauss, xs, ys, errs, err := c.singleFits(bins)
	if err != nil {
		return chargeFit{}, err
	}
	binWidth := bins[1].X - bins[0].X
	area := floats.Sum(ys) * binWidth
	lp, gp := landau.Params, gauss.Params
	seed := []float64{lp[2], lp[1] + mpShift*lp[2], area, math.Max(math.Abs(gp[2])/2, binWidth/2)}
	joint, err := c.fitter.Fit(LanGauFun, xs, ys, errs, seed)
	if err != nil {
		return chargeFit{}, fmt.Errorf("langau fit: %w", err)
	}
	p := joint.Params
	if p[0] <= 0 || p[1] <= 0 || p[3] <= 0 {
		return chargeFit{}, fmt.Errorf("langau fit: unphysical parameters %v", p)
	}
	if err := acceptJoint(joint, landau, gauss); err != nil {
		return chargeFit{}, err
	}
	maxx, _, code := LanGauPro(p)
	if code != 0 {
		return chargeFit{}, fmt.Errorf("langau peak search failed with code %d", code)
	}
	f := func(x float64) float64 { return LanGauFun(x, p) }
	return chargeFit{
		value: maxx,
		err:   paramError(joint, 1),
		chi2:  joint.Chi2,
		curve: &Curve{X: xs, Y: ys, F: f, Lo: xs[0], Hi: xs[len(xs)-1]},
	}, nil
}
