package calibra

import (
	"testing"

	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyseLinearFitter(t *testing.T) {
	config := testConfig()
	config.Calibration.MinEntriesLinear = 20
	ctx, _ := newTestContext(config)
	fitter := &countingFitter{}
	ctx.SetFitter(fitter)

	const vdrift, tanL = 1.4, 0.12
	l := NewLinearFitter(0, 1)
	for i := 0; i < 40; i++ {
		slope := -0.3 + 0.015*float64(i)
		l.Add(0, slope, -vdrift*slope+vdrift*tanL)
	}
	for i := 0; i < 10; i++ {
		l.Add(1, 0.1*float64(i), 1)
	}
	l.Add(7, 0.1, 1)
	assert.Equal(t, 40, l.Points(0))
	assert.Equal(t, 0, l.Points(7))

	a, err := ctx.AnalyseLinearFitter(l)
	require.NoError(t, err)
	require.Len(t, a.Results, 2)
	assert.Equal(t, trd.QuantityTanLorentz, a.SecondQuantity)

	r := a.Results[0]
	require.True(t, r.Coef.Fitted())
	assert.InDelta(t, vdrift, r.Coef.Value, 1e-9)
	assert.InDelta(t, tanL, r.Second.Value, 1e-9)

	geo := trd.NewGeometry(config.Geometry)
	reference := trd.NewCalibrationSet(geo, config.Simulation)
	r = a.Results[1]
	assert.False(t, r.Coef.Fitted())
	assert.Equal(t, reference.Vdrift(1), r.Coef.Value)
	assert.Equal(t, reference.TanLorentz(1), r.Second.Value)
	assert.Equal(t, int64(0), fitter.calls.Load())
}
