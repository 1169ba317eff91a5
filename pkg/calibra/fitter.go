package calibra

import (
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/fit"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Model is a parametrised function of one variable.
type Model func(x float64, ps []float64) float64

// CurveFit is the outcome of a chi-square fit.
type CurveFit struct {
	Params []float64
	Errors []float64
	Chi2   float64
	NDF    int
}

// CurveFitter minimises the chi-square of a model over data points.
type CurveFitter interface {
	Fit(f Model, xs, ys, errs, ps []float64) (CurveFit, error)
}

var ErrTooFewPoints = errors.New("fewer data points than free parameters")

// HepFitter fits with the Nelder-Mead minimiser of go-hep/fit and
// estimates the parameter errors from the Hessian of the chi-square.
type HepFitter struct {
	MaxIterations int
}

func (h *HepFitter) Fit(f Model, xs, ys, errs, ps []float64) (CurveFit, error) {
	if len(xs) <= len(ps) {
		return CurveFit{}, ErrTooFewPoints
	}
	var settings *optimize.Settings
	if h.MaxIterations > 0 {
		settings = &optimize.Settings{MajorIterations: h.MaxIterations}
	}
	res, err := fit.Curve1D(
		fit.Func1D{
			F:   f,
			X:   xs,
			Y:   ys,
			Err: errs,
			Ps:  ps,
		},
		settings, &optimize.NelderMead{},
	)
	if err != nil {
		return CurveFit{}, fmt.Errorf("curve fit: %w", err)
	}
	params := append([]float64(nil), res.X...)
	chi2 := func(p []float64) float64 { return ChiSquare(f, xs, ys, errs, p) }
	out := CurveFit{
		Params: params,
		Chi2:   chi2(params),
		NDF:    len(xs) - len(params),
		Errors: make([]float64, len(params)),
	}
	if math.IsNaN(out.Chi2) || math.IsInf(out.Chi2, 0) {
		return out, fmt.Errorf("curve fit: chi2 is %v", out.Chi2)
	}

	hess := mat.NewSymDense(len(params), nil)
	fd.Hessian(hess, chi2, params, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return out, nil
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return out, nil
	}
	for i := range params {
		out.Errors[i] = math.Sqrt(2 * cov.At(i, i))
	}
	return out, nil
}

// ChiSquare of the model with parameters ps. Points with a non-positive
// error have unit weight.
func ChiSquare(f Model, xs, ys, errs, ps []float64) float64 {
	sum := 0.0
	for i, x := range xs {
		d := ys[i] - f(x, ps)
		if errs != nil && errs[i] > 0 {
			d /= errs[i]
		}
		sum += d * d
	}
	return sum
}

func paramError(f CurveFit, i int) float64 {
	if i >= len(f.Errors) {
		return 0
	}
	return f.Errors[i]
}
