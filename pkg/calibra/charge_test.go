package calibra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrum(centers []float64, contents []float64) []Bin {
	bins := make([]Bin, len(centers))
	for i := range centers {
		bins[i] = Bin{X: centers[i], Y: contents[i], Err: sqrtOrOne(contents[i]), Entries: int64(contents[i]), SumW: contents[i]}
	}
	return bins
}

func TestFitMean(t *testing.T) {
	out, err := fitMean(spectrum([]float64{1, 2, 3, 4}, []float64{0, 10, 30, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 2.75, out.value, 1e-12)

	_, err = fitMean(spectrum([]float64{1, 2}, []float64{0, 0}))
	assert.ErrorIs(t, err, errEmptySpectrum)
}

func TestFitMeanW(t *testing.T) {
	// A single populated bin: every weight applies to the same centre.
	out, err := fitMeanW(spectrum([]float64{10, 20, 30}, []float64{0, 50, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 20, out.value, 1e-12)

	// The tail above 95% of the cumulative charge is ignored.
	centers := []float64{10, 20, 30, 1000}
	contents := []float64{40, 40, 17, 3}
	out, err = fitMeanW(spectrum(centers, contents))
	require.NoError(t, err)
	a, b, c, d, e := meanWCoefficients[0], meanWCoefficients[1], meanWCoefficients[2], meanWCoefficients[3], meanWCoefficients[4]
	w := func(f float64) float64 { return a + b*f + c*f*f + d*math.Pow(f, 3) + e*math.Pow(f, 4) }
	num := w(0)*40*10 + w(0.4)*40*20 + w(0.8)*17*30
	den := w(0)*40 + w(0.4)*40 + w(0.8)*17
	assert.InDelta(t, num/den, out.value, 1e-9)
	assert.Less(t, out.value, 30.0)
}

func TestChargeRange(t *testing.T) {
	config := testConfig()
	config.Calibration.BeginFitCharge = 4
	ctx, _ := newTestContext(config)
	lo, hi := ctx.chargeRange(80)
	assert.Equal(t, 20.0, lo)
	assert.Equal(t, 240.0, hi)
}

func TestAcceptJoint(t *testing.T) {
	landau := CurveFit{Chi2: 120}
	gauss := CurveFit{Chi2: 100}
	assert.NoError(t, acceptJoint(CurveFit{Chi2: 90}, landau, gauss))
	assert.NoError(t, acceptJoint(CurveFit{Chi2: 104}, landau, gauss))
	assert.Error(t, acceptJoint(CurveFit{Chi2: 110}, landau, gauss))
}

func TestPeakOf(t *testing.T) {
	peak := peakOf(func(x float64) float64 { return -(x - 3.3) * (x - 3.3) }, 0, 10)
	assert.InDelta(t, 3.3, peak, 0.01)
}
