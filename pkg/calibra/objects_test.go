package calibra

import (
	"testing"

	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectsGainPads(t *testing.T) {
	config := testConfig()
	ctx, _ := newTestContext(config)
	geo := trd.NewGeometry(config.Geometry)

	layout := NewLayout(geo, Mode{Nz: 0, Nrphi: 1}, 0, 1)
	require.Equal(t, 4, layout.Total())
	values := []Coefficient{
		{Value: 1.2, Status: Fitted},
		{Value: 0.8, Status: Fitted},
		{Value: 2.0, Status: Fitted},
		{Value: 1.0, Status: Fallback},
	}
	a := &Analysis{Kind: KindCH, Method: MethodMean, Quantity: trd.QuantityGain, Layout: layout, Scale: 1}
	for i, v := range values {
		a.Results = append(a.Results, GroupResult{Group: layout.Group(i), Coef: v})
	}

	objects := ctx.Objects(a)
	require.Len(t, objects, 1)
	gain := objects[0]
	assert.Equal(t, trd.QuantityGain, gain.Name)

	assert.InDelta(t, 1.0, gain.Det[0], 1e-12)
	assert.True(t, gain.Fitted[0])
	require.Len(t, gain.Pad[0], geo.NPads(0))
	assert.InDelta(t, 1.2, gain.Pad[0][0], 1e-12)
	assert.InDelta(t, 0.8, gain.Pad[0][3*trd.NCol+100], 1e-12)

	// Fallback groups do not enter the detector mean.
	assert.InDelta(t, 2.0, gain.Det[1], 1e-12)
	assert.InDelta(t, 0.5, gain.Pad[1][trd.NCol-1], 1e-12)

	assert.Equal(t, 1.0, gain.Det[7])
	assert.False(t, gain.Fitted[7])
	assert.NotContains(t, gain.Pad, 7)

	set := trd.NewCalibrationSet(geo, config.Simulation)
	require.NoError(t, ApplyTo(set, objects))
	assert.InDelta(t, 1.2, set.GainFactor(0, 5, 10), 1e-12)
	assert.InDelta(t, 0.8, set.GainFactor(0, 5, 80), 1e-12)
	assert.InDelta(t, 1.0, set.GainFactor(1, 5, 100), 1e-12)
	assert.Equal(t, 1.0, set.GainFactor(7, 0, 0))
}

func TestObjectsSecondQuantity(t *testing.T) {
	config := testConfig()
	ctx, _ := newTestContext(config)
	geo := trd.NewGeometry(config.Geometry)

	layout := NewLayout(geo, Mode{}, 0, 1)
	a := &Analysis{
		Kind:           KindPH,
		Method:         MethodSlope,
		Quantity:       trd.QuantityVdrift,
		SecondQuantity: trd.QuantityT0,
		Layout:         layout,
		Scale:          1,
		Results: []GroupResult{
			{Group: layout.Group(0), Coef: Coefficient{1.4, Fitted}, Second: Coefficient{0.7, Fitted}},
			{Group: layout.Group(1), Coef: Coefficient{1.5, Fallback}, Second: Coefficient{0, Fallback}},
		},
	}
	objects := ctx.Objects(a)
	require.Len(t, objects, 2)
	vdrift, t0 := objects[0], objects[1]
	assert.Equal(t, trd.QuantityT0, t0.Name)
	assert.Equal(t, 1.4, vdrift.Det[0])
	assert.Equal(t, 0.7, t0.Det[0])
	assert.Empty(t, vdrift.Pad)
	assert.False(t, vdrift.Fitted[1])
	assert.Equal(t, 1.5, vdrift.Det[1])
}

func TestPadValue(t *testing.T) {
	assert.Equal(t, 1.5, padValue(trd.QuantityGain, 3, 2))
	assert.Equal(t, 1.0, padValue(trd.QuantityVdrift, 3, 0))
	assert.Equal(t, -0.5, padValue(trd.QuantityT0, 1.5, 2))
	assert.Equal(t, 0.4, padValue(trd.QuantityPRFWidth, 0.4, 2))
}
