package trd

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// FastClusterizer builds clusters directly from the hits, smearing the
// r-phi position with a fixed resolution. Hits falling into the same pad and
// time bin are merged.
type FastClusterizer struct {
	geo   *Geometry
	sim   SimParameters
	calib Calibration
	smear distuv.Normal
}

func NewFastClusterizer(geo *Geometry, reco RecoParameters, sim SimParameters, calib Calibration, src rand.Source) *FastClusterizer {
	return &FastClusterizer{
		geo:   geo,
		sim:   sim,
		calib: calib,
		smear: distuv.Normal{Mu: 0, Sigma: reco.FastSigmaRphi, Src: src},
	}
}

type fastKey struct {
	row  int
	col  int
	time int
}

func (f *FastClusterizer) MakeClusters(det int, hits []Hit) ([]Cluster, error) {
	if err := f.geo.CheckDetector(det); err != nil {
		return nil, fmt.Errorf("fast clusterizer: %w", err)
	}
	plane := f.geo.Plane(det)
	padPlane := f.geo.PadPlane(plane, f.geo.Chamber(det))
	time0 := f.geo.Time0(plane)
	vdrift := f.sim.DriftVelocity
	if f.calib != nil {
		vdrift = f.calib.Vdrift(det)
	}
	if vdrift <= 0 {
		return nil, fmt.Errorf("fast clusterizer: detector %d: invalid drift velocity %g", det, vdrift)
	}

	index := make(map[fastKey]int)
	var clusters []Cluster
	for _, hit := range hits {
		if hit.Detector != det || hit.Q <= 0 {
			continue
		}
		local := f.geo.RotateBack(det, [3]float64{hit.X, hit.Y, hit.Z})
		driftLength := time0 - local[0]
		if driftLength < -AmThick/2 || driftLength > DrThick+AmThick/2 {
			continue
		}
		y := local[1]
		if f.smear.Sigma > 0 {
			y += f.smear.Rand()
		}
		row := padPlane.PadRowNumber(local[2])
		col := padPlane.PadColNumber(y)
		if row < 0 || col < 0 {
			continue
		}
		driftTime := math.Abs(driftLength)/vdrift + hit.Time
		timeBin := int(math.Floor(driftTime*f.sim.SamplingFrequency)) + f.sim.PretriggerBins
		if timeBin < 0 || timeBin >= f.geo.TimeMax() {
			continue
		}

		key := fastKey{row: row, col: col, time: timeBin}
		if i, ok := index[key]; ok {
			cl := &clusters[i]
			q := cl.Q + hit.Q
			cl.Y = (cl.Y*cl.Q + y*hit.Q) / q
			cl.Q = q
			cl.Center = (cl.Y - padPlane.Col0) / padPlane.ColSize
			if cl.Tracks[1] < 0 && int32(hit.Track) != cl.Tracks[0] {
				cl.Tracks[1] = int32(hit.Track)
			}
			continue
		}
		index[key] = len(clusters)
		clusters = append(clusters, Cluster{
			Detector: det,
			Y:        y,
			Z:        padPlane.RowPos(row) + padPlane.RowSize/2,
			Time:     driftTime,
			Q:        hit.Q,
			Sigma2: [2]float64{
				f.smear.Sigma * f.smear.Sigma,
				padPlane.RowSize * padPlane.RowSize / 12.0,
			},
			Type:    ThreePad,
			Row:     row,
			Col:     col,
			TimeBin: timeBin,
			Center:  (y - padPlane.Col0) / padPlane.ColSize,
			Tracks:  [3]int32{int32(hit.Track), -1, -1},
		})
	}
	return clusters, nil
}
