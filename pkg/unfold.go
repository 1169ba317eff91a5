package trd

import "math"

const (
	unfoldEpsilon = 0.01
	unfoldMaxIter = 10
)

// UnfoldResult is the share of the overlapping pad assigned to the left
// cluster of a 5-pad double peak.
type UnfoldResult struct {
	Ratio      float64
	Iterations int
	Converged  bool
}

// Unfold splits the charge of the central pad of a 5-pad cluster made of
// two overlapping 3-pad clusters. The positions of both clusters are
// estimated from the current split, the pad response predicts the charge
// each induces on the shared pad and the split is updated until it moves
// by less than eps or after ten iterations. The last split is used when the
// iteration does not converge or stops on a degenerate configuration; both
// report Converged false.
func (p *PadResponse) Unfold(eps float64, plane int, pads [5]float64) UnfoldResult {
	ratio := 0.5
	prevRatio := 0.0
	it := 0
	stopped := false
	for math.Abs(prevRatio-ratio) > eps && it < unfoldMaxIter {
		it++
		prevRatio = ratio

		leftDenom := pads[0] + pads[1] + ratio*pads[2]
		rightDenom := (1.0-ratio)*pads[2] + pads[3] + pads[4]
		if leftDenom <= 0 || rightDenom <= 0 {
			stopped = true
			break
		}
		maxLeft := (ratio*pads[2] - pads[0]) / leftDenom
		maxRight := (pads[4] - (1.0-ratio)*pads[2]) / rightDenom

		unitLeft, okLeft := p.Response(1.0, maxLeft, plane)
		unitRight, okRight := p.Response(1.0, maxRight, plane)
		if !okLeft || !okRight || unitLeft[1] <= 0 || unitRight[1] <= 0 {
			stopped = true
			break
		}
		ampLeft := pads[1] / unitLeft[1]
		ampRight := pads[3] / unitRight[1]

		left, _ := p.Response(ampLeft, maxLeft, plane)
		right, _ := p.Response(ampRight, maxRight, plane)
		if left[2]+right[0] <= 0 {
			stopped = true
			break
		}
		ratio = math.Min(1.0, left[2]/(left[2]+right[0]))
	}
	return UnfoldResult{
		Ratio:      ratio,
		Iterations: it,
		Converged:  !stopped && math.Abs(prevRatio-ratio) <= eps,
	}
}
