package calibra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHepFitterGaussian(t *testing.T) {
	var xs, ys, errs []float64
	for x := -3.0; x <= 3.0; x += 0.2 {
		xs = append(xs, x)
		ys = append(ys, gausModel(x, []float64{10, 0.3, 0.8}))
		errs = append(errs, 0.5)
	}

	fitter := &HepFitter{}
	res, err := fitter.Fit(gausModel, xs, ys, errs, []float64{8, 0, 1})
	require.NoError(t, err)
	require.Len(t, res.Params, 3)
	assert.InDelta(t, 10, res.Params[0], 0.1)
	assert.InDelta(t, 0.3, res.Params[1], 0.01)
	assert.InDelta(t, 0.8, math.Abs(res.Params[2]), 0.01)
	assert.Equal(t, len(xs)-3, res.NDF)
	assert.Less(t, res.Chi2, 0.01)
	for i, e := range res.Errors {
		assert.Greater(t, e, 0.0, "error of parameter %d", i)
	}
}

func TestHepFitterTooFewPoints(t *testing.T) {
	fitter := &HepFitter{}
	_, err := fitter.Fit(gausModel, []float64{0, 1, 2}, []float64{1, 2, 1}, nil, []float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestChiSquare(t *testing.T) {
	line := func(x float64, ps []float64) float64 { return ps[0] + ps[1]*x }
	xs := []float64{0, 1, 2}
	ys := []float64{1, 4, 5}
	// Residuals 0, 1, 0 with errors 1, 0.5 and unit weight.
	assert.InDelta(t, 4.0, ChiSquare(line, xs, ys, []float64{1, 0.5, 0}, []float64{1, 2}), 1e-12)
	assert.InDelta(t, 1.0, ChiSquare(line, xs, ys, nil, []float64{1, 2}), 1e-12)
}

func TestParamError(t *testing.T) {
	fit := CurveFit{Errors: []float64{0.1}}
	assert.Equal(t, 0.1, paramError(fit, 0))
	assert.Equal(t, 0.0, paramError(fit, 2))
}
