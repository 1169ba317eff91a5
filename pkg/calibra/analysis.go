package calibra

import (
	"fmt"

	trd "github.com/alice-trd/trd_go/pkg"
)

// groupFit fits the bins of one group that passed the statistics check.
// An error sends the group to the fallback path.
type groupFit func(g Group, bins []Bin) (GroupResult, error)

// analyse checks the histograms against the mode of the context and fits
// every group. Groups with too few entries take the reference values and
// are never passed to fit.
func (c *Context) analyse(h *Histograms, a *Analysis, minEntries int, fit groupFit) error {
	if h.Kind != a.Kind {
		return fmt.Errorf("%s analysis given %s histograms", a.Kind, h.Kind)
	}
	layout, err := c.InitFit(h.Len(), a.Kind)
	if err != nil {
		return err
	}
	a.Layout = layout
	a.Scale = 1
	a.hist = h

	a.Results = c.fitGroups(layout, func(g Group) GroupResult {
		entries := h.Entries(g.Index)
		if entries <= minEntries {
			return c.fallbackResult(a, g, entries)
		}
		r, err := fit(g, h.Bins(g.Index))
		if err != nil {
			if c.verbosity > 2 {
				c.logger.Info(fmt.Sprintf("%s group %d of detector %d: %v, using reference value", a.Name(), g.Index, g.Detector, err), "calibra")
			}
			fb := c.fallbackResult(a, g, entries)
			fb.Err = err
			return fb
		}
		r.Group = g
		r.Entries = entries
		return r
	})
	for i, r := range a.Results {
		// A recovered panic leaves an empty result.
		if r.Err != nil && r.Coef.Value == 0 && !r.Coef.Fitted() {
			fb := c.fallbackResult(a, r.Group, r.Entries)
			fb.Err = r.Err
			a.Results[i] = fb
		}
	}
	return nil
}

func (c *Context) fallbackResult(a *Analysis, g Group, entries int) GroupResult {
	r := GroupResult{Group: g, Entries: entries, Coef: c.fallback(a.Quantity, g)}
	if a.SecondQuantity != "" {
		r.Second = c.fallback(a.SecondQuantity, g)
	}
	return r
}

// finish closes an analysis pass.
func (c *Context) finish(a *Analysis) *Analysis {
	a.count()
	c.setStage(StageDone)
	if c.verbosity > 0 {
		c.logger.Info(a.String(), "calibra")
	}
	return a
}

// Normalize rescales the fitted gains so that their sum over the pads of
// the fitted groups equals the sum of the reference gains over the same
// pads. It must only run once every group has a result.
func (c *Context) Normalize(a *Analysis) float64 {
	c.setStage(StageNormalize)
	sumRef, sumFit := 0.0, 0.0
	for _, r := range a.Results {
		if !r.Coef.Fitted() {
			continue
		}
		n := float64(r.Group.NPads())
		sumRef += c.referenceValue(trd.QuantityGain, r.Group) * n
		sumFit += r.Coef.Value * n
	}
	scale := 1.0
	if sumFit > 0 {
		scale = sumRef / sumFit
	}
	a.Scale = scale
	if !c.params.Normalize {
		return scale
	}
	for i := range a.Results {
		if a.Results[i].Coef.Fitted() {
			a.Results[i].Coef.Value *= scale
			a.Results[i].Error *= scale
		}
	}
	if c.verbosity > 0 {
		c.logger.Info(fmt.Sprintf("%s: gains normalised by %.5g", a.Name(), scale), "calibra")
	}
	return scale
}
