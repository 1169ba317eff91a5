package trd

const lutSize = 128

// PositionLUT converts the charge asymmetry of a 3-pad cluster into the
// sub-pad position of the avalanche. One table per plane is derived from
// the pad response function.
type PositionLUT struct {
	xMin  [NPlan]float64
	xMax  [NPlan]float64
	table [NPlan][lutSize]float64
}

func NewPositionLUT() *PositionLUT {
	l := &PositionLUT{}
	for plane := 0; plane < NPlan; plane++ {
		sigma := prfSigma[plane]
		l.xMin[plane] = lutAsymmetry(0, sigma) + 0.000005
		l.xMax[plane] = lutAsymmetry(0.5, sigma) - 0.000005
		wid := (l.xMax[plane] - l.xMin[plane]) / float64(lutSize-1)
		for i := 0; i < lutSize; i++ {
			l.table[plane][i] = lutInvert(l.xMin[plane]+float64(i)*wid, sigma)
		}
	}
	return l
}

// lutAsymmetry is (qR - qL) / qC for an avalanche at d pad widths right of
// the centre of the central pad.
func lutAsymmetry(d, sigma float64) float64 {
	left := PRFValue(d+1, sigma)
	centre := PRFValue(d, sigma)
	right := PRFValue(d-1, sigma)
	return (right - left) / centre
}

// lutInvert solves lutAsymmetry(d) = x for d in [0, 0.5] by bisection.
func lutInvert(x, sigma float64) float64 {
	lo, hi := 0.0, 0.5
	for i := 0; i < 60; i++ {
		mid := 0.5 * (lo + hi)
		if lutAsymmetry(mid, sigma) < x {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// Position returns the offset of the cluster from the centre of the central
// pad, in pad widths.
func (l *PositionLUT) Position(plane int, ampL, ampC, ampR float64) float64 {
	if ampC <= 0 || ampL == ampR {
		return 0
	}
	var x, side float64
	if ampL > ampR {
		x = (ampL - ampR) / ampC
		side = -1
	} else {
		x = (ampR - ampL) / ampC
		side = 1
	}
	xmin := l.xMin[plane]
	xmax := l.xMax[plane]
	xwid := (xmax - xmin) / float64(lutSize-1)
	switch {
	case x < xmin:
		return 0
	case x > xmax:
		return side * 0.5
	}
	ix := int((x - xmin) / xwid)
	if ix >= lutSize {
		ix = lutSize - 1
	}
	return side * l.table[plane][ix]
}
