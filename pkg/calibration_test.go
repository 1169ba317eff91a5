package trd

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValue(t *testing.T) {
	tests := []struct {
		quantity string
		value    float64
		fitted   bool
		stored   float64
	}{
		{QuantityGain, 1.2, true, 1.2},
		{QuantityGain, 1.2, false, -1.2},
		{QuantityVdrift, 1.48, false, -1.48},
		{QuantityPRFWidth, 0.51, true, 0.51},
		{QuantityT0, 1.3, true, 1.3},
		{QuantityT0, 1.3, false, 101.3},
		{QuantityT0, -0.4, false, 99.6},
		{QuantityT0, -0.4, true, -0.4},
	}
	for _, tt := range tests {
		stored := EncodeValue(tt.quantity, tt.value, tt.fitted)
		assert.InDelta(t, tt.stored, stored, 1e-12, "%s %v", tt.quantity, tt.fitted)

		value, fitted := DecodeValue(tt.quantity, stored)
		assert.InDelta(t, tt.value, value, 1e-12, "%s %v", tt.quantity, tt.fitted)
		assert.Equal(t, tt.fitted, fitted, "%s %v", tt.quantity, tt.fitted)
	}
}

func TestCalibrationSetDefaults(t *testing.T) {
	params := DefaultSimParameters()
	geo := NewGeometry(DefaultConfiguration().Geometry)
	set := NewCalibrationSet(geo, params)

	assert.Equal(t, 1.0, set.GainFactor(10, 3, 4))
	assert.Equal(t, params.DriftVelocity, set.Vdrift(10))
	assert.Equal(t, 0.0, set.T0(10, 3, 4))
	assert.Equal(t, OmegaTau(params.DriftVelocity, params.Field), set.TanLorentz(10))
	plane := geo.Plane(10)
	assert.InDelta(t, NewPadResponse().Width(plane), set.PRFWidth(10, 0, 0), 1e-12)

	for _, name := range Quantities {
		obj, err := set.Object(name)
		require.NoError(t, err)
		assert.Equal(t, name, obj.Name)
		assert.Len(t, obj.Det, NDet)
	}
}

func TestCalibrationPadValues(t *testing.T) {
	geo := NewGeometry(DefaultConfiguration().Geometry)
	set := NewCalibrationSet(geo, DefaultSimParameters())

	gain, err := set.Object(QuantityGain)
	require.NoError(t, err)
	gain.Det[4] = 2
	pads := defaultPadValues(QuantityGain, geo.NPads(4), gain.Det[4])
	pads[3*NCol+7] = 0.5
	gain.Pad[4] = pads
	assert.Equal(t, 1.0, set.GainFactor(4, 3, 7))
	assert.Equal(t, 2.0, set.GainFactor(4, 3, 8))

	t0, err := set.Object(QuantityT0)
	require.NoError(t, err)
	t0.Det[4] = 1.5
	t0Pads := defaultPadValues(QuantityT0, geo.NPads(4), t0.Det[4])
	t0Pads[0] = -0.25
	t0.Pad[4] = t0Pads
	assert.Equal(t, 1.25, set.T0(4, 0, 0))
	assert.Equal(t, 1.5, set.T0(4, 0, 1))

	prf, err := set.Object(QuantityPRFWidth)
	require.NoError(t, err)
	prfPads := defaultPadValues(QuantityPRFWidth, geo.NPads(4), prf.Det[4])
	prfPads[1] = 0.7
	prf.Pad[4] = prfPads
	assert.Equal(t, 0.7, set.PRFWidth(4, 0, 1))
	assert.Equal(t, prf.Det[4], set.PRFWidth(4, 0, 2))
}

func TestCalibrationSetObject(t *testing.T) {
	geo := NewGeometry(DefaultConfiguration().Geometry)
	set := NewCalibrationSet(geo, DefaultSimParameters())

	_, err := set.Object("ChamberPedestal")
	var unknown *ErrUnknownQuantity
	assert.True(t, errors.As(err, &unknown))

	obj := NewCalibrationObject(QuantityVdrift, 1.7)
	require.NoError(t, set.SetObject(obj))
	assert.Equal(t, 1.7, set.Vdrift(100))

	short := &CalibrationObject{Name: QuantityVdrift, Det: make([]float64, 10)}
	assert.Error(t, set.SetObject(short))
	assert.Error(t, set.SetObject(NewCalibrationObject("gain", 1)))
}

func TestOmegaTauSign(t *testing.T) {
	pos := OmegaTau(1.5, 0.5)
	neg := OmegaTau(1.5, -0.5)
	assert.Greater(t, pos, 0.0)
	assert.InDelta(t, -pos, neg, 1e-12)
	assert.False(t, math.IsNaN(OmegaTau(1.5, 3)))
}
