package trd

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// ClusterState follows a maximum through the pad row scan.
type ClusterState int

const (
	Scanning ClusterState = iota
	MaximumCandidate
	Accepted
	Merged
	Unfolded
)

func (s ClusterState) String() string {
	switch s {
	case Scanning:
		return "SCANNING"
	case MaximumCandidate:
		return "MAXIMUM_CANDIDATE"
	case Accepted:
		return "ACCEPTED"
	case Merged:
		return "MERGED"
	case Unfolded:
		return "UNFOLDED"
	default:
		return "UNKNOWN"
	}
}

// ClusterStats counts the transitions of one MakeClusters call.
type ClusterStats struct {
	Candidates   int
	Accepted     int
	Merged       int
	Unfolded     int
	NotConverged int
	ByType       map[ClusterType]int
}

func (s ClusterStats) String() string {
	return fmt.Sprintf("%d candidates, %d accepted, %d merged, %d unfolded (%d not converged), types %v",
		s.Candidates, s.Accepted, s.Merged, s.Unfolded, s.NotConverged, s.ByType)
}

// Clusterizer finds the local maxima of the digits of a detector and turns
// them into clusters. It owns its drift velocity caches and must not be
// shared between goroutines.
type Clusterizer struct {
	geo      *Geometry
	reco     RecoParameters
	sim      SimParameters
	calib    Calibration
	response *ResponseModel
	prf      *PadResponse
	lut      *PositionLUT

	stats ClusterStats
}

func NewClusterizer(geo *Geometry, reco RecoParameters, sim SimParameters, calib Calibration) *Clusterizer {
	return &Clusterizer{
		geo:      geo,
		reco:     reco,
		sim:      sim,
		calib:    calib,
		response: NewResponseModel(sim, nil),
		prf:      NewPadResponse(),
		lut:      NewPositionLUT(),
	}
}

// Stats returns the counters of the last MakeClusters call.
func (c *Clusterizer) Stats() ClusterStats {
	return c.stats
}

// isMaximum: the pad is above the maximum threshold, not smaller than its
// neighbours, and at least one neighbour is above the signal threshold and
// strictly smaller.
func isMaximum(sig []float64, col int, maxThresh, sigThresh float64) bool {
	s := sig[col]
	if s < maxThresh {
		return false
	}
	left := padAt(sig, col-1)
	right := padAt(sig, col+1)
	if left > s || right > s {
		return false
	}
	return (left >= sigThresh && left < s) || (right >= sigThresh && right < s)
}

func padAt(sig []float64, col int) float64 {
	if col < 0 || col >= len(sig) {
		return 0
	}
	return sig[col]
}

// clusterPads counts the contiguous pads above threshold around col.
func clusterPads(sig []float64, col int, sigThresh float64) int {
	n := 1
	for i := col - 1; i >= 0 && sig[i] >= sigThresh; i-- {
		n++
	}
	for i := col + 1; i < len(sig) && sig[i] >= sigThresh; i++ {
		n++
	}
	return n
}

// SigmaY2 is the charge weighted variance estimate of a 3-pad cluster, in
// pad units.
func SigmaY2(q0, q1, q2 float64) float64 {
	qTot := q0 + q1 + q2
	if qTot <= 0 {
		return 0
	}
	return (q1*(q0+q2) + 4*q0*q2) / (qTot * qTot)
}

// CenterOfGravity returns the pad position of a 3-pad cluster centred on col.
func CenterOfGravity(col int, q0, q1, q2 float64) float64 {
	qTot := q0 + q1 + q2
	if qTot <= 0 {
		return float64(col) + 0.5
	}
	return float64(col) + 0.5 + (q2-q0)/qTot
}

// MakeClusters reconstructs the clusters of one detector. Every maximum
// produces a cluster; clusters wider than five pads keep their centre of
// gravity position and are not unfolded.
func (c *Clusterizer) MakeClusters(digits *DetectorDigits) ([]Cluster, error) {
	det := digits.Detector
	c.stats = ClusterStats{ByType: make(map[ClusterType]int)}
	if err := c.geo.CheckDetector(det); err != nil {
		return nil, fmt.Errorf("clusterizer: %w", err)
	}
	plane := c.geo.Plane(det)
	chamber := c.geo.Chamber(det)
	padPlane := c.geo.PadPlane(plane, chamber)
	nRow, nCol, nTime := digits.Digits.Dims()

	vdrift := c.sim.DriftVelocity
	if c.calib != nil {
		vdrift = c.calib.Vdrift(det)
	}
	omegaTau := 0.0
	if c.reco.ExBCorrection && vdrift > 0 {
		omegaTau = c.response.OmegaTau(vdrift)
	}

	maxThresh := c.reco.ClusMaxThresh
	sigThresh := c.reco.ClusSigThresh
	baseline := float64(c.sim.ADCBaseline)

	var clusters []Cluster
	sig := make([]float64, nCol)
	raw := make([]int16, nCol)
	maxima := make([]bool, nCol)
	// Share of the left pad left over by an unfolding of the previous
	// maximum, negative when that pad was not unfolded.
	leftFactor := make([]float64, nCol+2)
	for row := 0; row < nRow; row++ {
		for time := 0; time < nTime; time++ {
			hasSignal := false
			for col := 0; col < nCol; col++ {
				raw[col] = digits.Digits.Get(row, col, time)
				sig[col] = math.Max(0, float64(raw[col])-baseline)
				maxima[col] = false
				if sig[col] > 0 {
					hasSignal = true
				}
			}
			if !hasSignal {
				continue
			}

			for col := 0; col < nCol; col++ {
				if !isMaximum(sig, col, maxThresh, sigThresh) {
					continue
				}
				c.stats.Candidates++
				if col > 0 && maxima[col-1] && sig[col-1] == sig[col] {
					c.stats.Merged++
					continue
				}
				maxima[col] = true
			}

			for i := range leftFactor {
				leftFactor[i] = -1
			}
			for col := 0; col < nCol; col++ {
				if !maxima[col] {
					continue
				}
				nPads := clusterPads(sig, col, sigThresh)

				q0 := padAt(sig, col-1)
				if f := leftFactor[col]; f >= 0 {
					q0 *= f
				}
				q1 := sig[col]
				q2 := padAt(sig, col+1)

				unfolded := false
				if nPads <= 5 && c.isFivePad(sig, maxima, col, sigThresh) {
					pads := [5]float64{q0, q1, q2, padAt(sig, col+2), padAt(sig, col+3)}
					result := c.prf.Unfold(unfoldEpsilon, plane, pads)
					if !result.Converged {
						c.stats.NotConverged++
					}
					q2 *= result.Ratio
					leftFactor[col+2] = 1.0 - result.Ratio
					c.stats.Unfolded++
					unfolded = true
				}
				if leftFactor[col] >= 0 {
					unfolded = true
				}

				cluster := c.buildCluster(digits, padPlane, row, col, time, [3]float64{q0, q1, q2}, raw, vdrift, omegaTau)
				cluster.Type = clusterTypeFromPads(nPads)
				if unfolded {
					cluster.Type = FivePad
					cluster.Unfolded = true
				}
				clusters = append(clusters, cluster)
				c.stats.Accepted++
				c.stats.ByType[cluster.Type]++
			}
		}
	}

	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Detector %d: %s", det, c.stats)
		logger.Info(message, "clusterizer")
	}
	return clusters, nil
}

// isFivePad reports a second maximum two pads to the right with nothing
// above threshold beyond either end of the double peak.
func (c *Clusterizer) isFivePad(sig []float64, maxima []bool, col int, sigThresh float64) bool {
	nCol := len(sig)
	if col >= nCol-3 || !maxima[col+2] {
		return false
	}
	if col < nCol-5 && sig[col+4] >= sigThresh {
		return false
	}
	if col > 1 && sig[col-2] >= sigThresh {
		return false
	}
	return true
}

func (c *Clusterizer) buildCluster(digits *DetectorDigits, padPlane *PadPlane, row, col, time int,
	q [3]float64, raw []int16, vdrift, omegaTau float64) Cluster {
	plane := padPlane.Plane
	qTot := q[0] + q[1] + q[2]

	var center float64
	if c.reco.LUTOn {
		center = float64(col) + 0.5 + c.lut.Position(plane, q[0], q[1], q[2])
	} else {
		center = CenterOfGravity(col, q[0], q[1], q[2])
	}

	t0 := 0.0
	if c.calib != nil {
		t0 = c.calib.T0(digits.Detector, row, col)
	}
	driftTime := (float64(time) + 0.5 - float64(c.sim.PretriggerBins) - t0) / c.sim.SamplingFrequency
	if omegaTau != 0 && driftTime > 0 {
		driftLength := driftTime * vdrift
		center -= omegaTau * driftLength / padPlane.ColSize
	}

	sigmaY2 := SigmaY2(q[0], q[1], q[2])
	cluster := Cluster{
		Detector:   digits.Detector,
		Y:          padPlane.Col0 + center*padPlane.ColSize,
		Z:          padPlane.RowPos(row) + padPlane.RowSize/2,
		Time:       driftTime,
		Q:          qTot,
		SigmaY2Pad: sigmaY2,
		Row:        row,
		Col:        col,
		TimeBin:    time,
		Center:     center,
		Sigma2: [2]float64{
			(sigmaY2 + 1.0/12.0) * padPlane.ColSize * padPlane.ColSize,
			padPlane.RowSize * padPlane.RowSize / 12.0,
		},
		Tracks: [3]int32{-1, -1, -1},
	}
	for i := range cluster.Signals {
		p := col - 3 + i
		if p >= 0 && p < len(raw) {
			cluster.Signals[i] = raw[p]
		}
	}

	n := 0
	for _, p := range []int{col, col - 1, col + 1} {
		if p < 0 || p >= len(raw) {
			continue
		}
		for _, track := range digits.Tracks(row, p, time) {
			if track < 0 || n >= len(cluster.Tracks) || slices.Contains(cluster.Tracks[:n], track) {
				continue
			}
			cluster.Tracks[n] = track
			n++
		}
	}
	return cluster
}
