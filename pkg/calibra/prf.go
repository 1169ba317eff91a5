package calibra

import (
	"fmt"
	"math"

	trd "github.com/alice-trd/trd_go/pkg"
	"gonum.org/v1/gonum/mat"
)

// Methods of the pad response analysis.
const (
	MethodGaus   = "gaus"
	MethodRMS    = "rms"
	MethodGausMI = "gausmi"
)

// Statistics FitGausMI needs: total entries, and entries in a bin for it
// to count as populated.
const (
	gausMIMinEntries    = 700
	gausMIMinBinEntries = 15
)

// Failure codes of FitGausMI.
const (
	GausMISingular     = -1
	GausMINotConcave   = -2
	GausMINoStatistics = -4
)

// GausMIError reports a failed FitGausMI.
type GausMIError struct {
	Code int
}

func (e *GausMIError) Error() string {
	switch e.Code {
	case GausMISingular:
		return "gausmi: singular system"
	case GausMINotConcave:
		return "gausmi: log parabola is not concave"
	case GausMINoStatistics:
		return "gausmi: not enough statistics"
	default:
		return fmt.Sprintf("gausmi: failed with code %d", e.Code)
	}
}

// AnalysePRF extracts the width of the pad response function of every
// group from the pad response profiles.
func (c *Context) AnalysePRF(h *Histograms) (*Analysis, error) {
	method := c.params.FitPRFMethod
	var fit func(bins []Bin) (float64, *Curve, error)
	switch method {
	case MethodGaus:
		fit = c.fitPRFGaus
	case MethodRMS:
		fit = fitPRFRMS
	case MethodGausMI:
		fit = func(bins []Bin) (float64, *Curve, error) {
			sigma, code := FitGausMI(bins)
			if code != 0 {
				return 0, nil, &GausMIError{Code: code}
			}
			return sigma, nil, nil
		}
	default:
		return nil, fmt.Errorf("unknown pad response fit method %q", method)
	}

	a := &Analysis{Kind: KindPRF, Method: method, Quantity: trd.QuantityPRFWidth}
	err := c.analyse(h, a, c.params.MinEntries, func(g Group, bins []Bin) (GroupResult, error) {
		sigma, curve, err := fit(bins)
		if err != nil {
			return GroupResult{}, err
		}
		if !(sigma > 0) || math.IsInf(sigma, 0) {
			return GroupResult{}, fmt.Errorf("invalid pad response width %g", sigma)
		}
		return GroupResult{Coef: Coefficient{Value: sigma, Status: Fitted}, Curve: curve}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.finish(a), nil
}

// fitPRFGaus fits a gaussian to the profile inside the fit range. The fit
// is rejected when the width or the mean leave the fit range, or when it
// describes the profile no better than a constant.
func (c *Context) fitPRFGaus(bins []Bin) (float64, *Curve, error) {
	r := c.params.RangeFitPRF
	xs, ys, errs := points(bins, -r, r)
	if len(xs) == 0 {
		return 0, nil, fmt.Errorf("empty pad response profile")
	}
	rms, _, _ := fitPRFRMS(bins)
	if rms <= 0 {
		rms = 0.5
	}
	out, err := c.fitter.Fit(gausModel, xs, ys, errs, []float64{ys[argmax(ys, 0, len(ys))], 0, rms})
	if err != nil {
		return 0, nil, fmt.Errorf("pad response gauss fit: %w", err)
	}
	p := out.Params
	sigma := math.Abs(p[2])
	switch {
	case !(p[0] > 0):
		return 0, nil, fmt.Errorf("pad response gauss fit: amplitude %g", p[0])
	case math.Abs(p[1]) > r:
		return 0, nil, fmt.Errorf("pad response gauss fit: mean %g outside [-%g, %g]", p[1], r, r)
	case !(sigma >= minBinWidth(xs)) || sigma > r:
		return 0, nil, fmt.Errorf("pad response gauss fit: width %g outside the fit range", sigma)
	}
	if chi2, flat := ChiSquare(gausModel, xs, ys, errs, p), flatChiSquare(ys, errs); !(chi2 < flat) {
		return 0, nil, fmt.Errorf("pad response gauss fit: chi2 %g not below %g of a flat profile", chi2, flat)
	}
	curve := &Curve{X: xs, Y: ys, F: func(x float64) float64 { return gausModel(x, p) }, Lo: -r, Hi: r}
	return sigma, curve, nil
}

// flatChiSquare is the chi-square of the best constant through the points.
func flatChiSquare(ys, errs []float64) float64 {
	sw, swy := 0.0, 0.0
	for i, y := range ys {
		w := 1 / (errs[i] * errs[i])
		sw += w
		swy += w * y
	}
	mean := swy / sw
	chi2 := 0.0
	for i, y := range ys {
		d := (y - mean) / errs[i]
		chi2 += d * d
	}
	return chi2
}

func minBinWidth(xs []float64) float64 {
	w := math.Inf(1)
	for i := 1; i < len(xs); i++ {
		w = math.Min(w, xs[i]-xs[i-1])
	}
	if math.IsInf(w, 1) {
		return 0
	}
	return w
}

// fitPRFRMS is the rms of the profile around zero.
func fitPRFRMS(bins []Bin) (float64, *Curve, error) {
	sum, sumX2 := 0.0, 0.0
	for _, b := range bins {
		if b.Entries == 0 || b.Y <= 0 {
			continue
		}
		sum += b.Y
		sumX2 += b.Y * b.X * b.X
	}
	if sum <= 0 {
		return 0, nil, fmt.Errorf("empty pad response profile")
	}
	return math.Sqrt(sumX2 / sum), nil, nil
}

// FitGausMI fits ln y = a + b x + c x^2 by weighted linear least squares
// and returns the gaussian width sqrt(-1/2c). It needs at least 700
// entries and half of the bins with more than 15 entries; otherwise it
// returns GausMINoStatistics.
func FitGausMI(bins []Bin) (float64, int) {
	total := int64(0)
	populated := 0
	for _, b := range bins {
		total += b.Entries
		if b.Entries > gausMIMinBinEntries {
			populated++
		}
	}
	if total < gausMIMinEntries || 2*populated < len(bins) {
		return 0, GausMINoStatistics
	}

	var rows [][3]float64
	var z, w []float64
	for _, b := range bins {
		if b.Entries <= gausMIMinBinEntries || b.Y <= 0 {
			continue
		}
		// The error on ln y is err/y.
		weight := 1.0
		if b.Err > 0 {
			weight = (b.Y / b.Err) * (b.Y / b.Err)
		}
		rows = append(rows, [3]float64{1, b.X, b.X * b.X})
		z = append(z, math.Log(b.Y))
		w = append(w, weight)
	}
	if len(rows) < 3 {
		return 0, GausMISingular
	}

	// Normal equations (A^T W A) p = A^T W z.
	ata := mat.NewSymDense(3, nil)
	atz := mat.NewVecDense(3, nil)
	for k, row := range rows {
		for i := 0; i < 3; i++ {
			atz.SetVec(i, atz.AtVec(i)+w[k]*row[i]*z[k])
			for j := i; j < 3; j++ {
				ata.SetSym(i, j, ata.At(i, j)+w[k]*row[i]*row[j])
			}
		}
	}
	var p mat.VecDense
	if err := p.SolveVec(ata, atz); err != nil {
		return 0, GausMISingular
	}
	curvature := p.AtVec(2)
	if curvature >= 0 {
		return 0, GausMINotConcave
	}
	return math.Sqrt(-1 / (2 * curvature)), 0
}
