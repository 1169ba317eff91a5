package trd

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// ResponseModel applies the drift of the ionisation electrons: diffusion,
// ExB displacement and the time structure of the drift cells. The
// coefficients depend on the drift velocity and are cached on the last
// value seen, so every worker owns its own model.
type ResponseModel struct {
	field  float64
	exbOn  bool
	normal distuv.Normal

	diffLastVdrift float64
	diffusionL     float64
	diffusionT     float64
	diffSamples    int

	exbLastVdrift float64
	omegaTau      float64
	exbSamples    int

	tsLastVdrift float64
	vdLo         float64
	vdHi         float64
	ts1          []float64
	ts2          []float64
	tsSamples    int
}

func NewResponseModel(params SimParameters, src rand.Source) *ResponseModel {
	return &ResponseModel{
		field:          params.Field,
		exbOn:          params.ExBOn,
		normal:         distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		diffLastVdrift: -1,
		exbLastVdrift:  -1,
		tsLastVdrift:   -1,
	}
}

func (r *ResponseModel) updateDiffusion(vdrift float64) {
	if vdrift == r.diffLastVdrift {
		return
	}
	r.diffLastVdrift = vdrift
	r.diffusionL, r.diffusionT = DiffusionCoefficients(vdrift, r.field)
	r.diffSamples++
}

func (r *ResponseModel) updateExB(vdrift float64) {
	if vdrift == r.exbLastVdrift {
		return
	}
	r.exbLastVdrift = vdrift
	r.omegaTau = OmegaTau(vdrift, r.field)
	r.exbSamples++
}

// DiffusionCoefficients returns the cached (longitudinal, transverse)
// coefficients for vdrift.
func (r *ResponseModel) DiffusionCoefficients(vdrift float64) (float64, float64) {
	r.updateDiffusion(vdrift)
	return r.diffusionL, r.diffusionT
}

// OmegaTau returns the cached tan of the Lorentz angle for vdrift.
func (r *ResponseModel) OmegaTau(vdrift float64) float64 {
	r.updateExB(vdrift)
	return r.omegaTau
}

// LorentzFactor reduces the diffusion perpendicular to the magnetic field.
func (r *ResponseModel) LorentzFactor(vdrift float64) float64 {
	if !r.exbOn {
		return 1
	}
	ot := r.OmegaTau(vdrift)
	return 1.0 / (1.0 + ot*ot)
}

// Diffusion smears the electron position xyz (x along the drift, y along
// the pad columns, z along the pad rows).
func (r *ResponseModel) Diffusion(vdrift, driftLength float64, xyz *[3]float64) error {
	if driftLength <= 0 || vdrift <= 0 {
		return fmt.Errorf("diffusion: invalid drift length %g or drift velocity %g", driftLength, vdrift)
	}
	r.updateDiffusion(vdrift)
	driftSqrt := math.Sqrt(driftLength)
	sigmaT := driftSqrt * r.diffusionT
	sigmaL := driftSqrt * r.diffusionL
	lorentz := r.LorentzFactor(vdrift)
	xyz[0] += r.normal.Rand() * sigmaL * lorentz
	xyz[1] += r.normal.Rand() * sigmaT * lorentz
	xyz[2] += r.normal.Rand() * sigmaT
	return nil
}

// ExB displaces the electron along the pad columns by the Lorentz angle.
func (r *ResponseModel) ExB(vdrift, driftLength float64, xyz *[3]float64) error {
	if driftLength < 0 || vdrift <= 0 {
		return fmt.Errorf("exb: invalid drift length %g or drift velocity %g", driftLength, vdrift)
	}
	xyz[1] += r.OmegaTau(vdrift) * driftLength
	return nil
}

// Binning of the time structure tables: distance from the pad plane in
// steps of 1 mm and distance from the anode wire in steps of 0.25 mm.
const (
	tsDistBins = 38
	tsZBins    = 11
)

var tsVdrift = []float64{1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.8, 1.9, 2.0, 2.1, 2.2, 2.3, 2.4}

var (
	tsTablesOnce sync.Once
	tsTables     [][]float64
)

// timeStructTables returns the drift time maps at the reference drift
// velocities. They are built once and never modified.
func timeStructTables() [][]float64 {
	tsTablesOnce.Do(func() {
		tsTables = make([][]float64, len(tsVdrift))
		for i, vd := range tsVdrift {
			table := make([]float64, tsDistBins*tsZBins)
			for kz := 0; kz < tsZBins; kz++ {
				z := float64(kz) * 0.025
				for kr := 0; kr < tsDistBins; kr++ {
					dist := float64(kr) * 0.1
					table[kr+tsDistBins*kz] = cellDriftTime(dist, z, vd)
				}
			}
			tsTables[i] = table
		}
	})
	return tsTables
}

// cellDriftTime models the drift time (us) of an electron starting at dist
// from the pad plane and z from the closest anode wire. In the drift region
// the electrons move with vd; inside the amplification region the field of
// the wires accelerates them and the path to the wire depends on z.
func cellDriftTime(dist, z, vd float64) float64 {
	wire := AmThick / 2
	amp := math.Sqrt(wire*wire+z*z) / (1.6 * vd) * (1 + 0.4*(z/(WirePitch/2))*(z/(WirePitch/2)))
	if dist <= AmThick {
		d := dist - wire
		return math.Sqrt(d*d+z*z) / (1.6 * vd) * (1 + 0.4*(z/(WirePitch/2))*(z/(WirePitch/2)))
	}
	return (dist-AmThick)/vd + amp
}

// SampleTimeStruct selects the two reference maps bracketing vdrift.
func (r *ResponseModel) SampleTimeStruct(vdrift float64) {
	tables := timeStructTables()
	n := len(tsVdrift)
	lo := 0
	switch {
	case vdrift <= tsVdrift[0]:
		lo = 0
	case vdrift >= tsVdrift[n-1]:
		lo = n - 2
	default:
		for lo = 0; lo < n-2; lo++ {
			if vdrift < tsVdrift[lo+1] {
				break
			}
		}
	}
	r.vdLo = tsVdrift[lo]
	r.vdHi = tsVdrift[lo+1]
	r.ts1 = tables[lo]
	r.ts2 = tables[lo+1]
	r.tsLastVdrift = vdrift
	r.tsSamples++
}

// TimeStruct returns the drift time (us) of an electron at dist (cm) from
// the pad plane and z (cm) from the anode wire.
func (r *ResponseModel) TimeStruct(vdrift, dist, z float64) float64 {
	if vdrift != r.tsLastVdrift {
		r.SampleTimeStruct(vdrift)
	}

	r1 := int(10 * dist)
	if r1 < 0 {
		r1 = 0
	}
	if r1 > tsDistBins-1 {
		r1 = tsDistBins - 1
	}
	r2 := r1 + 1
	if r2 > tsDistBins-1 {
		r2 = tsDistBins - 1
	}
	kz1 := int(100 * z / 2.5)
	if kz1 < 0 {
		kz1 = 0
	}
	if kz1 > tsZBins-1 {
		kz1 = tsZBins - 1
	}
	kz2 := kz1 + 1
	if kz2 > tsZBins-1 {
		kz2 = tsZBins - 1
	}

	at := func(table []float64, kr, kz int) float64 { return table[kr+tsDistBins*kz] }

	ky111 := at(r.ts1, r1, kz1)
	ky221 := at(r.ts1, r2, kz2)
	ky121 := at(r.ts1, r1, kz2)
	ky211 := at(r.ts1, r2, kz1)
	ky112 := at(r.ts2, r1, kz1)
	ky222 := at(r.ts2, r2, kz2)
	ky122 := at(r.ts2, r1, kz2)
	ky212 := at(r.ts2, r2, kz1)

	fr := 10*dist - float64(r1)
	fz := 100*z/2.5 - float64(kz1)

	// Interpolation in dist, lower and upper drift velocity maps
	ky11 := (ky211-ky111)*fr + ky111
	ky21 := (ky221-ky121)*fr + ky121
	ky12 := (ky212-ky112)*fr + ky112
	ky22 := (ky222-ky122)*fr + ky122

	// Interpolation in z
	ky1 := (ky21-ky11)*fz + ky11
	ky2 := (ky22-ky12)*fz + ky12

	// Interpolation in the drift velocity
	return (ky2-ky1)/(r.vdHi-r.vdLo)*(vdrift-r.vdLo) + ky1
}

// Samples returns how often the diffusion, ExB and time structure caches
// were refilled.
func (r *ResponseModel) Samples() (int, int, int) {
	return r.diffSamples, r.exbSamples, r.tsSamples
}
