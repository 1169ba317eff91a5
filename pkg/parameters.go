package trd

import (
	"math"
)

// Width (sigma, in pad widths) of the avalanche charge induced on the pad
// plane, per plane.
var prfSigma = [NPlan]float64{0.46, 0.45, 0.44, 0.43, 0.42, 0.41}

const (
	prfBins = 600
	prfLo   = -1.5
	prfHi   = 1.5
)

// PadResponse is the sampled pad response function of the six planes.
type PadResponse struct {
	bins int
	lo   float64
	hi   float64
	wid  float64
	smp  [NPlan][]float64
}

func NewPadResponse() *PadResponse {
	p := &PadResponse{
		bins: prfBins,
		lo:   prfLo,
		hi:   prfHi,
	}
	p.wid = (p.hi - p.lo) / float64(p.bins)
	for plane := 0; plane < NPlan; plane++ {
		p.smp[plane] = make([]float64, p.bins)
		for i := 0; i < p.bins; i++ {
			x := p.lo + (float64(i)+0.5)*p.wid
			p.smp[plane][i] = PRFValue(x, prfSigma[plane])
		}
	}
	return p
}

// PRFValue is the fraction of the charge of an avalanche at distance x (pad
// widths) from a pad centre that is induced on that pad.
func PRFValue(x, sigma float64) float64 {
	s := math.Sqrt2 * sigma
	return 0.5 * (math.Erf((x+0.5)/s) - math.Erf((x-0.5)/s))
}

// Response spreads signal over the three pads around the pad that collects
// the avalanche. dist is the avalanche position relative to the centre of
// that pad, in pad widths. The three values add up to signal. It returns
// false when dist is outside the sampled range.
func (p *PadResponse) Response(signal, dist float64, plane int) ([3]float64, bool) {
	var pad [3]float64
	x := -dist
	if x < p.lo || x >= p.hi {
		return pad, false
	}
	pad[0] = p.sample(plane, x-1)
	pad[1] = p.sample(plane, x)
	pad[2] = p.sample(plane, x+1)
	sum := pad[0] + pad[1] + pad[2]
	if sum <= 0 {
		return [3]float64{}, false
	}
	for i := range pad {
		pad[i] *= signal / sum
	}
	return pad, true
}

// sample interpolates linearly between the samples, which sit at the bin
// centres. It is zero outside the sampled range.
func (p *PadResponse) sample(plane int, x float64) float64 {
	if x < p.lo || x >= p.hi {
		return 0
	}
	f := (x-p.lo)/p.wid - 0.5
	i := int(math.Floor(f))
	smp := p.smp[plane]
	switch {
	case i < 0:
		return smp[0]
	case i >= p.bins-1:
		return smp[p.bins-1]
	}
	frac := f - float64(i)
	return smp[i]*(1-frac) + smp[i+1]*frac
}

// Sigma returns the avalanche width of a plane in pad widths.
func (p *PadResponse) Sigma(plane int) float64 {
	return prfSigma[plane]
}

// Width returns the width of the pad response function of a plane as a
// Gaussian fit of the measured profile would see it.
func (p *PadResponse) Width(plane int) float64 {
	return math.Sqrt(prfSigma[plane]*prfSigma[plane] + 1.0/12.0)
}

// TimeResponse samples the shaper response per time bin, normalised to unit
// sum. Without TRF the whole signal stays in the first bin.
func TimeResponse(params SimParameters) []float64 {
	if !params.TRFOn || params.TRFTau <= 0 {
		return []float64{1}
	}
	binWidth := 1.0 / params.SamplingFrequency
	values := make([]float64, 0, 16)
	sum := 0.0
	peak := 4.0 / math.E / math.E // value of (t/tau)^2 exp(-t/tau) at t = 2 tau
	for i := 0; i < 64; i++ {
		t := (float64(i) + 0.5) * binWidth / params.TRFTau
		v := t * t * math.Exp(-t)
		if t > 2 && v < 1e-3*peak {
			break
		}
		values = append(values, v)
		sum += v
	}
	for i := range values {
		values[i] /= sum
	}
	return values
}

// Polynomial coefficients of the diffusion coefficients and of the Lorentz
// angle in the drift velocity, for Xe/CO2 (85/15) at five field values
// between 0.15 and 0.55 T.
var (
	diffP0T = [5]float64{0.009550, 0.009599, 0.009674, 0.009757, 0.009850}
	diffP1T = [5]float64{0.006667, 0.006539, 0.006359, 0.006153, 0.005925}
	diffP2T = [5]float64{-0.000853, -0.000798, -0.000721, -0.000635, -0.000541}
	diffP3T = [5]float64{0.000131, 0.000122, 0.000111, 0.000098, 0.000085}
	diffP0L = [5]float64{0.007440, 0.007493, 0.007513, 0.007672, 0.007831}
	diffP1L = [5]float64{0.019252, 0.018912, 0.018636, 0.018012, 0.017343}
	diffP2L = [5]float64{-0.005042, -0.004926, -0.004867, -0.004650, -0.004424}
	diffP3L = [5]float64{0.000195, 0.000189, 0.000195, 0.000182, 0.000169}

	exbP0 = [5]float64{0.004810, 0.007412, 0.010252, 0.013409, 0.016888}
	exbP1 = [5]float64{0.054875, 0.081534, 0.107333, 0.131983, 0.155455}
	exbP2 = [5]float64{-0.008682, -0.012896, -0.016987, -0.020880, -0.024623}
	exbP3 = [5]float64{0.000155, 0.000238, 0.000330, 0.000428, 0.000541}
)

func fieldBin(field float64) int {
	ib := int(10 * (math.Abs(field) - 0.15))
	if ib < 0 {
		ib = 0
	}
	if ib > 4 {
		ib = 4
	}
	return ib
}

func cubic(p0, p1, p2, p3, x float64) float64 {
	return p0 + p1*x + p2*x*x + p3*x*x*x
}

// DiffusionCoefficients returns the longitudinal and transverse diffusion
// coefficients (cm / sqrt(cm)) for a drift velocity in cm/us.
func DiffusionCoefficients(vdrift, field float64) (float64, float64) {
	ib := fieldBin(field)
	dl := cubic(diffP0L[ib], diffP1L[ib], diffP2L[ib], diffP3L[ib], vdrift)
	dt := cubic(diffP0T[ib], diffP1T[ib], diffP2T[ib], diffP3T[ib], vdrift)
	return dl, dt
}

// OmegaTau returns tan of the Lorentz angle for a drift velocity in cm/us.
func OmegaTau(vdrift, field float64) float64 {
	sign := 1.0
	if field < 0 {
		sign = -1.0
	}
	ib := fieldBin(field)
	alpha := cubic(exbP0[ib], exbP1[ib], exbP2[ib], exbP3[ib], vdrift)
	return math.Tan(sign * alpha)
}

// TimeBinSize is the length of one time bin in us.
func (p SimParameters) TimeBinSize() float64 {
	return 1.0 / p.SamplingFrequency
}
