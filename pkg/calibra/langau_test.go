package calibra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLandauDensity(t *testing.T) {
	const step = 0.001
	integral := 0.0
	peak, peakV := 0.0, 0.0
	for v := -6.0; v < 300; v += step {
		y := denlan(v)
		integral += y * step
		if y > peak {
			peak, peakV = y, v
		}
	}
	assert.InDelta(t, 1.0, integral, 0.01)
	assert.InDelta(t, mpShift, peakV, 0.002)
	assert.InDelta(t, 0.1806, peak, 0.001)

	assert.Equal(t, 0.0, Landau(3, 1, 0))
	assert.Equal(t, 0.0, denlan(-30))
	assert.Greater(t, denlan(1000), 0.0)
}

func TestLanGauFunArea(t *testing.T) {
	par := []float64{2, 40, 1000, 3}
	sum := 0.0
	for x := 0.0; x < 400; x += 0.05 {
		sum += LanGauFun(x, par) * 0.05
	}
	// The Landau tail beyond the range holds a few percent.
	assert.InDelta(t, 1000, sum, 30)
	assert.Equal(t, 0.0, LanGauFun(40, []float64{2, 40, 1000, 0}))
}

func TestLanGauPro(t *testing.T) {
	par := []float64{2, 40, 1000, 3}
	maxx, fwhm, code := LanGauPro(par)
	assert.Equal(t, 0, code)

	// Compare with a brute force scan.
	best, bestX := math.Inf(-1), 0.0
	for x := 20.0; x < 80; x += 0.001 {
		if y := LanGauFun(x, par); y > best {
			best, bestX = y, x
		}
	}
	assert.InDelta(t, bestX, maxx, 0.01)

	var left, right float64
	for x := bestX; x > 0; x -= 0.001 {
		if LanGauFun(x, par) < best/2 {
			left = x
			break
		}
	}
	for x := bestX; x < 200; x += 0.001 {
		if LanGauFun(x, par) < best/2 {
			right = x
			break
		}
	}
	assert.InDelta(t, right-left, fwhm, 0.05)
	assert.Greater(t, fwhm, 2*par[3])
}
