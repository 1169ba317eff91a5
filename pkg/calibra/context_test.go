package calibra

import (
	"errors"
	"sync/atomic"
	"testing"

	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFitter struct {
	calls atomic.Int64
}

func (f *countingFitter) Fit(model Model, xs, ys, errs, ps []float64) (CurveFit, error) {
	f.calls.Add(1)
	return CurveFit{}, errors.New("not expected")
}

func TestInitFitMismatch(t *testing.T) {
	ctx, log := newTestContext(testConfig())

	layout, err := ctx.InitFit(2, KindCH)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Total())

	_, err = ctx.InitFit(5, KindPH)
	var mismatch *trd.ErrHistogramMismatch
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "PH", mismatch.Kind)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 5, mismatch.Found)
	assert.Len(t, log.errors, 1)
}

func TestAnalyseRejectsOtherGrouping(t *testing.T) {
	config := testConfig()
	ctx, _ := newTestContext(config)
	geo := trd.NewGeometry(config.Geometry)

	h := NewHistograms(KindCH, NewLayout(geo, Mode{Nz: 0, Nrphi: 1}, 0, 1), geo, config.Calibration)
	_, err := ctx.AnalyseCH(h)
	var mismatch *trd.ErrHistogramMismatch
	assert.True(t, errors.As(err, &mismatch))

	prf := NewHistograms(KindPRF, ctx.Layout(KindPRF), geo, config.Calibration)
	_, err = ctx.AnalyseCH(prf)
	assert.Error(t, err)
}

func TestFallbackNeverFits(t *testing.T) {
	config := testConfig()
	config.Calibration.MinEntries = 100
	config.Calibration.FitCHMethod = MethodBisCH
	config.Calibration.FitPHMethod = MethodPHFit
	config.Calibration.FitPRFMethod = MethodGaus
	ctx, _ := newTestContext(config)
	fitter := &countingFitter{}
	ctx.SetFitter(fitter)
	geo := trd.NewGeometry(config.Geometry)
	reference := trd.NewCalibrationSet(geo, config.Simulation)

	filler := ctx.NewFiller()
	for i := 0; i < 100; i++ {
		require.NoError(t, filler.CH.Fill(0, 60, 0))
		require.NoError(t, filler.PH.Fill(0, 10.5, 50))
		require.NoError(t, filler.PRF.Fill(0, 0.1, 0.6))
	}

	ch, err := ctx.AnalyseCH(filler.CH)
	require.NoError(t, err)
	ph, err := ctx.AnalysePH(filler.PH)
	require.NoError(t, err)
	prf, err := ctx.AnalysePRF(filler.PRF)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fitter.calls.Load())

	for det, r := range ch.Results {
		assert.Equal(t, Fallback, r.Coef.Status)
		assert.Equal(t, 1.0, r.Coef.Value)
		assert.Equal(t, -1.0, r.Coef.Encode(trd.QuantityGain), "detector %d", det)
	}
	assert.Equal(t, 100, ch.Results[0].Entries)
	assert.Equal(t, 0, ch.Results[1].Entries)
	assert.Equal(t, 2, ch.Fallbacks)

	for _, r := range ph.Results {
		assert.Equal(t, reference.Vdrift(r.Group.Detector), r.Coef.Value)
		assert.Less(t, r.Coef.Encode(trd.QuantityVdrift), 0.0)
		assert.False(t, r.Second.Fitted())
		assert.Equal(t, 100.0, r.Second.Encode(trd.QuantityT0))
	}
	for _, r := range prf.Results {
		want := reference.PRFWidth(r.Group.Detector, 0, 0)
		assert.InDelta(t, want, r.Coef.Value, 1e-12)
		assert.InDelta(t, -want, r.Coef.Encode(trd.QuantityPRFWidth), 1e-12)
	}
	assert.Equal(t, StageDone, ctx.Stage())
}

func TestZeroEntriesFallback(t *testing.T) {
	config := testConfig()
	config.Calibration.MinEntries = 0
	config.Calibration.FitCHMethod = MethodCH
	ctx, _ := newTestContext(config)
	fitter := &countingFitter{}
	ctx.SetFitter(fitter)

	filler := ctx.NewFiller()
	a, err := ctx.AnalyseCH(filler.CH)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fitter.calls.Load())
	for _, r := range a.Results {
		assert.Equal(t, 0, r.Entries)
		assert.False(t, r.Coef.Fitted())
		assert.Equal(t, 1.0, r.Coef.Value)
	}
}

func TestFitErrorFallsBack(t *testing.T) {
	config := testConfig()
	config.Calibration.FitCHMethod = MethodCH
	ctx, _ := newTestContext(config)
	fitter := &countingFitter{}
	ctx.SetFitter(fitter)

	filler := ctx.NewFiller()
	for i := 0; i < 50; i++ {
		require.NoError(t, filler.CH.Fill(1, 40+float64(i), 0))
	}
	a, err := ctx.AnalyseCH(filler.CH)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fitter.calls.Load())
	assert.False(t, a.Results[1].Coef.Fitted())
	assert.Error(t, a.Results[1].Err)
	assert.Equal(t, 1.0, a.Results[1].Coef.Value)
}

func fillCharge(t *testing.T, h *Histograms, group int, values ...float64) {
	t.Helper()
	for _, v := range values {
		for i := 0; i < 20; i++ {
			require.NoError(t, h.Fill(group, v, 0))
		}
	}
}

func TestGainNormalization(t *testing.T) {
	config := testConfig()
	config.Calibration.ModeCH = "CH2dNz0Nrphi1"
	config.Calibration.FitCHMethod = MethodMean
	config.Calibration.ScaleFitFactor = 40

	run := func(normalize bool) *Analysis {
		config.Calibration.Normalize = normalize
		ctx, _ := newTestContext(config)
		filler := ctx.NewFiller()
		require.Equal(t, 4, filler.CH.Len())
		fillCharge(t, filler.CH, 0, 40, 60)
		fillCharge(t, filler.CH, 1, 70)
		fillCharge(t, filler.CH, 2, 100, 110)
		a, err := ctx.AnalyseCH(filler.CH)
		require.NoError(t, err)
		return a
	}

	raw := run(false)
	norm := run(true)
	require.Equal(t, 3, norm.Fitted)
	assert.False(t, norm.Results[3].Coef.Fitted())
	assert.Equal(t, 1.0, norm.Results[3].Coef.Value)
	assert.Equal(t, raw.Scale, norm.Scale)

	sumRef, sumFit, sumRaw := 0.0, 0.0, 0.0
	for i, r := range norm.Results {
		if !r.Coef.Fitted() {
			continue
		}
		n := float64(r.Group.NPads())
		sumRef += 1.0 * n
		sumFit += r.Coef.Value * n
		sumRaw += raw.Results[i].Coef.Value * n
		assert.InDelta(t, raw.Results[i].Coef.Value*norm.Scale, r.Coef.Value, 1e-12)
	}
	assert.InDelta(t, sumRef, sumFit, 1e-9)
	assert.InDelta(t, sumRef, sumRaw*raw.Scale, 1e-9)
	assert.InDelta(t, 70.5/40, raw.Results[1].Coef.Value, 0.05)
}

func TestPanicInFitRecovered(t *testing.T) {
	config := testConfig()
	config.Calibration.FitCHMethod = MethodCH
	ctx, log := newTestContext(config)
	ctx.SetFitter(panicFitter{})

	filler := ctx.NewFiller()
	fillCharge(t, filler.CH, 0, 50, 60, 70)
	a, err := ctx.AnalyseCH(filler.CH)
	require.NoError(t, err)
	assert.False(t, a.Results[0].Coef.Fitted())
	assert.Equal(t, 1.0, a.Results[0].Coef.Value)
	assert.Error(t, a.Results[0].Err)
	assert.NotEmpty(t, log.errors)
}

type panicFitter struct{}

func (panicFitter) Fit(Model, []float64, []float64, []float64, []float64) (CurveFit, error) {
	panic("boom")
}
