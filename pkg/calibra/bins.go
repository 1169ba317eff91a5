package calibra

import "math"

// Bin is the content of one histogram bin as the fit methods see it.
type Bin struct {
	X       float64
	Y       float64
	Err     float64
	Entries int64
	SumW    float64
}

// Bins returns the in-range bins of a group. For charge spectra Y is the
// bin content and Err its Poisson error; for profiles Y is the mean and
// Err the error on the mean.
func (h *Histograms) Bins(group int) []Bin {
	if h.Kind == KindCH {
		hist := h.charge[group]
		bins := make([]Bin, len(hist.Binning.Bins))
		for i, b := range hist.Binning.Bins {
			bins[i] = Bin{
				X:       b.XMid(),
				Y:       b.SumW(),
				Err:     sqrtOrOne(b.SumW2()),
				Entries: b.Entries(),
				SumW:    b.SumW(),
			}
		}
		return bins
	}
	return h.prof[group].bins()
}

func sqrtOrOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Sqrt(v)
}

// points returns the populated bins with lo <= x <= hi as fit input. Bins
// without a usable error get the largest error of the selection.
func points(bins []Bin, lo, hi float64) (xs, ys, errs []float64) {
	maxErr := 0.0
	for _, b := range bins {
		if b.Entries == 0 || b.X < lo || b.X > hi {
			continue
		}
		xs = append(xs, b.X)
		ys = append(ys, b.Y)
		errs = append(errs, b.Err)
		if b.Err > maxErr && !math.IsInf(b.Err, 0) {
			maxErr = b.Err
		}
	}
	if maxErr == 0 {
		maxErr = 1
	}
	for i, e := range errs {
		if !(e > 0) || math.IsInf(e, 0) {
			errs[i] = maxErr
		}
	}
	return xs, ys, errs
}
