package trd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadResponseSymmetric(t *testing.T) {
	prf := NewPadResponse()
	for plane := 0; plane < NPlan; plane++ {
		pad, ok := prf.Response(1000, 0, plane)
		assert.True(t, ok)
		assert.InDelta(t, pad[0], pad[2], 1e-9, "plane %d", plane)
		assert.InDelta(t, 1000, pad[0]+pad[1]+pad[2], 1e-9)
		// centre of gravity of a centred avalanche stays on the pad centre
		assert.InDelta(t, 0, (pad[2]-pad[0])/1000, 1e-12)
	}

	for _, dist := range []float64{0.1, 0.27, 0.4} {
		l, ok := prf.Response(1000, dist, 2)
		assert.True(t, ok)
		r, ok := prf.Response(1000, -dist, 2)
		assert.True(t, ok)
		assert.InDelta(t, l[0], r[2], 1e-9, "dist %g", dist)
		assert.InDelta(t, l[1], r[1], 1e-9, "dist %g", dist)
		assert.InDelta(t, l[2], r[0], 1e-9, "dist %g", dist)
	}
}

func TestPadResponseMatchesPRF(t *testing.T) {
	prf := NewPadResponse()
	sigma := prf.Sigma(0)
	pad, ok := prf.Response(1, 0.2, 0)
	assert.True(t, ok)
	want := [3]float64{PRFValue(1.2, sigma), PRFValue(0.2, sigma), PRFValue(0.8, sigma)}
	sum := want[0] + want[1] + want[2]
	for i := range pad {
		assert.InDelta(t, want[i]/sum, pad[i], 1e-4, "pad %d", i)
	}

	_, ok = prf.Response(1, 2, 0)
	assert.False(t, ok)
}
