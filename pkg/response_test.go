package trd

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeStructCache(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), rand.NewPCG(1, 2))

	first := r.TimeStruct(1.5, 1.23, 0.04)
	second := r.TimeStruct(1.5, 1.23, 0.04)
	_, _, ts := r.Samples()
	assert.Equal(t, 1, ts, "same drift velocity must not resample")
	assert.Equal(t, math.Float64bits(first), math.Float64bits(second))

	r.TimeStruct(1.62, 1.23, 0.04)
	_, _, ts = r.Samples()
	assert.Equal(t, 2, ts)

	// Back to the first value resamples and gives the same time.
	again := r.TimeStruct(1.5, 1.23, 0.04)
	_, _, ts = r.Samples()
	assert.Equal(t, 3, ts)
	assert.Equal(t, first, again)
}

func TestTimeStructGridPoint(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), nil)
	// On a table point of the 1.5 cm/us map the interpolation is exact.
	got := r.TimeStruct(1.5, 1.0, 0)
	want := cellDriftTime(1.0, 0, 1.5)
	assert.InDelta(t, want, got, 1e-12)
	assert.InDelta(t, 0.3/1.5+0.35/(1.6*1.5), got, 1e-12)
}

func TestTimeStructInterpolatesVdrift(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), nil)
	lo := cellDriftTime(2.0, 0, 1.5)
	hi := cellDriftTime(2.0, 0, 1.6)
	got := r.TimeStruct(1.55, 2.0, 0)
	assert.InDelta(t, 0.5*(lo+hi), got, 1e-9)
}

func TestTimeStructMonotonicInDistance(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), nil)
	prev := r.TimeStruct(1.5, 1.0, 0.05)
	for dist := 1.1; dist < 3.6; dist += 0.1 {
		next := r.TimeStruct(1.5, dist, 0.05)
		if next <= prev {
			t.Errorf("drift time not increasing at dist %.2f: %g <= %g", dist, next, prev)
		}
		prev = next
	}
}

func TestDiffusionCache(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), rand.NewPCG(3, 4))
	xyz := [3]float64{}
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Diffusion(1.5, 2.0, &xyz))
	}
	diff, _, _ := r.Samples()
	assert.Equal(t, 1, diff)

	dl, dt := r.DiffusionCoefficients(1.7)
	wantL, wantT := DiffusionCoefficients(1.7, 0.5)
	assert.Equal(t, wantL, dl)
	assert.Equal(t, wantT, dt)
	diff, _, _ = r.Samples()
	assert.Equal(t, 2, diff)
}

func TestDiffusionRejectsNonPositiveDrift(t *testing.T) {
	r := NewResponseModel(DefaultSimParameters(), rand.NewPCG(3, 4))
	xyz := [3]float64{1, 2, 3}
	assert.Error(t, r.Diffusion(1.5, 0, &xyz))
	assert.Error(t, r.Diffusion(0, 1, &xyz))
	assert.Equal(t, [3]float64{1, 2, 3}, xyz)
}

func TestDiffusionSpread(t *testing.T) {
	params := DefaultSimParameters()
	params.ExBOn = false
	r := NewResponseModel(params, rand.NewPCG(5, 6))
	const n = 20000
	var sumZ2 float64
	for i := 0; i < n; i++ {
		xyz := [3]float64{}
		require.NoError(t, r.Diffusion(1.5, 2.0, &xyz))
		sumZ2 += xyz[2] * xyz[2]
	}
	_, dt := DiffusionCoefficients(1.5, params.Field)
	want := dt * math.Sqrt(2.0)
	assert.InEpsilon(t, want, math.Sqrt(sumZ2/n), 0.03)
}

func TestExBDisplacement(t *testing.T) {
	params := DefaultSimParameters()
	r := NewResponseModel(params, nil)
	xyz := [3]float64{0, 1, 0}
	require.NoError(t, r.ExB(1.5, 2.0, &xyz))
	assert.InDelta(t, 1+OmegaTau(1.5, params.Field)*2.0, xyz[1], 1e-12)
	assert.Error(t, r.ExB(1.5, -0.1, &xyz))

	_, exb, _ := r.Samples()
	assert.Equal(t, 1, exb)
}

func TestLorentzFactor(t *testing.T) {
	params := DefaultSimParameters()
	r := NewResponseModel(params, nil)
	ot := OmegaTau(1.5, params.Field)
	assert.InDelta(t, 1/(1+ot*ot), r.LorentzFactor(1.5), 1e-12)

	params.ExBOn = false
	r = NewResponseModel(params, nil)
	assert.Equal(t, 1.0, r.LorentzFactor(1.5))
}
