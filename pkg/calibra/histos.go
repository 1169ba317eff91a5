package calibra

import (
	"fmt"
	"math"

	trd "github.com/alice-trd/trd_go/pkg"
	"go-hep.org/x/hep/hbook"
)

// Histograms holds one histogram per calibration group: charge spectra
// for CH, average pulse height profiles for PH and pad response profiles
// for PRF.
type Histograms struct {
	Kind   Kind
	Layout *Layout
	charge []*hbook.H1D
	prof   []*profile
}

// profile accumulates the mean of y in bins of x as three histograms
// sharing the binning: entries, sum of y and sum of y^2.
type profile struct {
	n   *hbook.H1D
	sy  *hbook.H1D
	sy2 *hbook.H1D
}

func newProfile(nbins int, lo, hi float64) *profile {
	return &profile{
		n:   hbook.NewH1D(nbins, lo, hi),
		sy:  hbook.NewH1D(nbins, lo, hi),
		sy2: hbook.NewH1D(nbins, lo, hi),
	}
}

func (p *profile) Fill(x, y float64) {
	p.n.Fill(x, 1)
	p.sy.Fill(x, y)
	p.sy2.Fill(x, y*y)
}

func (p *profile) Entries() int64 { return p.n.Entries() }

// bins returns the profile bins with the mean of y and its error.
func (p *profile) bins() []Bin {
	bins := make([]Bin, len(p.n.Binning.Bins))
	for i, b := range p.n.Binning.Bins {
		n := b.SumW()
		bins[i] = Bin{X: b.XMid(), Entries: b.Entries(), SumW: n}
		if n <= 0 {
			continue
		}
		mean := p.sy.Binning.Bins[i].SumW() / n
		variance := p.sy2.Binning.Bins[i].SumW()/n - mean*mean
		bins[i].Y = mean
		bins[i].Err = math.Sqrt(math.Max(variance, 0) / n)
	}
	return bins
}

// NewHistograms books the histograms of every group of layout.
func NewHistograms(kind Kind, layout *Layout, geo *trd.Geometry, params trd.CalibParameters) *Histograms {
	h := &Histograms{Kind: kind, Layout: layout}
	n := layout.Total()
	switch kind {
	case KindCH:
		h.charge = make([]*hbook.H1D, n)
		for i := range h.charge {
			h.charge[i] = hbook.NewH1D(params.NumberBinCharge, 0, params.ChargeMax)
		}
	case KindPH:
		nTime := geo.TimeMax()
		h.prof = make([]*profile, n)
		for i := range h.prof {
			h.prof[i] = newProfile(nTime, 0, float64(nTime))
		}
	case KindPRF:
		h.prof = make([]*profile, n)
		for i := range h.prof {
			h.prof[i] = newProfile(params.NumberBinPRF, -1.5, 1.5)
		}
	}
	return h
}

// Name is the name encoding the kind and the pad grouping.
func (h *Histograms) Name() string {
	return h.Layout.Mode().Name(h.Kind)
}

// Len returns the number of groups found in the histograms.
func (h *Histograms) Len() int {
	if h.Kind == KindCH {
		return len(h.charge)
	}
	return len(h.prof)
}

// Fill adds an entry to a group: the charge x for CH, the value y at x for
// the profiles.
func (h *Histograms) Fill(group int, x, y float64) error {
	if group < 0 || group >= h.Len() {
		return fmt.Errorf("%s histograms: group %d out of range [0, %d)", h.Kind, group, h.Len())
	}
	if h.Kind == KindCH {
		h.charge[group].Fill(x, 1)
		return nil
	}
	h.prof[group].Fill(x, y)
	return nil
}

// Entries returns the number of entries of a group, including the entries
// outside the histogram range.
func (h *Histograms) Entries(group int) int {
	if h.Kind == KindCH {
		return int(h.charge[group].Entries())
	}
	return int(h.prof[group].Entries())
}
