package trd

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// Primary ionisation clusters per cm of a minimum ionising particle.
	primaryClustersPerCm = 48.0
	// Lowest and highest energy (eV) of a primary ionisation cluster. The
	// upper limit is lowered when delta rays are switched off.
	ionisationPotential = 12.1
	deltaRayEnergy      = 1.0e4
	noDeltaRayEnergy    = 500.0
)

// ParticleGun shoots charged tracks from the interaction point and
// produces the primary ionisation in the drift volumes they cross. Tracks
// bend in the solenoid field; energy loss is ignored.
type ParticleGun struct {
	geo     *Geometry
	params  GunParameters
	wion    float64
	field   float64
	uniform distuv.Uniform
	step    distuv.Exponential
}

func NewParticleGun(geo *Geometry, params GunParameters, sim SimParameters, src rand.Source) *ParticleGun {
	return &ParticleGun{
		geo:     geo,
		params:  params,
		wion:    sim.Wion,
		field:   sim.Field,
		uniform: distuv.Uniform{Min: 0, Max: 1, Src: src},
		step:    distuv.Exponential{Rate: primaryClustersPerCm, Src: src},
	}
}

// clusterElectrons samples the energy of a primary cluster from a 1/E^2
// spectrum and converts it into electrons.
func (g *ParticleGun) clusterElectrons() float64 {
	eMax := deltaRayEnergy
	if !g.params.DeltaRays {
		eMax = noDeltaRayEnergy
	}
	u := g.uniform.Rand()
	energy := ionisationPotential / (1 - u*(1-ionisationPotential/eMax))
	electrons := math.Floor(energy/g.wion) + 1
	return electrons
}

// Generate returns the hits of one event.
func (g *ParticleGun) Generate() []Hit {
	var hits []Hit
	for track := 0; track < g.params.Tracks; track++ {
		phi0 := 2 * math.Pi * g.uniform.Rand()
		eta := g.params.EtaMax * (2*g.uniform.Rand() - 1)
		pt := g.params.PtMin + (g.params.PtMax-g.params.PtMin)*g.uniform.Rand()
		charge := 1.0
		if g.uniform.Rand() < 0.5 {
			charge = -1.0
		}
		sinhEta := math.Sinh(eta)
		coshEta := math.Cosh(eta)
		// Radius of curvature in cm, pt in GeV and field in T
		radius := math.Inf(1)
		if g.field != 0 && pt > 0 {
			radius = pt / (0.003 * math.Abs(g.field))
		}
		phiAt := func(rho float64) (float64, bool) {
			if rho > 2*radius {
				return 0, false
			}
			return phi0 + charge*math.Asin(rho/(2*radius)), true
		}

		for plane := 0; plane < NPlan; plane++ {
			entry := Rmin + ChamberHeight*float64(plane) + RaThick
			exit := g.geo.Time0(plane) + AmThick/2

			phi, ok := phiAt(entry)
			if !ok {
				break
			}
			sector := g.geo.SectorOf([3]float64{math.Cos(phi), math.Sin(phi), 0})
			cosDelta := math.Cos(phi - sectorAngle(sector))
			rho := entry / cosDelta
			rhoEnd := exit / cosDelta
			for {
				rho += g.step.Rand() / coshEta
				if rho >= rhoEnd {
					break
				}
				phi, ok := phiAt(rho)
				if !ok {
					break
				}
				pos := [3]float64{rho * math.Cos(phi), rho * math.Sin(phi), rho * sinhEta}
				det := g.geo.FindDetector(pos)
				if det < 0 || !g.geo.IsActive(det) {
					continue
				}
				hits = append(hits, Hit{
					Detector: det,
					Track:    track,
					X:        pos[0],
					Y:        pos[1],
					Z:        pos[2],
					Q:        g.clusterElectrons(),
				})
			}
		}
	}
	return hits
}
