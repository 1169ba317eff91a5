package calibra

import (
	"errors"
	"fmt"

	trd "github.com/alice-trd/trd_go/pkg"
)

// Objects turns analyses into calibration objects: one value per detector
// and, for detectors with more than one group, a pad map. Detectors
// outside the analysed range keep their reference values.
func (c *Context) Objects(analyses ...*Analysis) []*trd.CalibrationObject {
	var objects []*trd.CalibrationObject
	for _, a := range analyses {
		if a == nil {
			continue
		}
		objects = append(objects, c.object(a, a.Quantity, func(r GroupResult) Coefficient { return r.Coef }))
		if a.SecondQuantity != "" {
			objects = append(objects, c.object(a, a.SecondQuantity, func(r GroupResult) Coefficient { return r.Second }))
		}
	}
	return objects
}

func (c *Context) detectorGroup(det int) Group {
	plane, chamber, sector := c.geo.Plane(det), c.geo.Chamber(det), c.geo.Sector(det)
	return Group{Detector: det, RowMax: c.geo.RowMax(plane, chamber, sector), ColMax: c.geo.ColMax(plane)}
}

func (c *Context) object(a *Analysis, quantity string, pick func(GroupResult) Coefficient) *trd.CalibrationObject {
	obj := trd.NewCalibrationObject(quantity, 0)
	for det := range obj.Det {
		obj.Det[det] = c.referenceValue(quantity, c.detectorGroup(det))
	}

	detMin, detMax := a.Layout.Detectors()
	for det := detMin; det <= detMax; det++ {
		first, last := a.Layout.DetectorGroups(det)
		if first == last {
			continue
		}
		sumFitted, nFitted, sumAll := 0.0, 0, 0.0
		for _, r := range a.Results[first:last] {
			coef := pick(r)
			sumAll += coef.Value
			if coef.Fitted() {
				sumFitted += coef.Value
				nFitted++
			}
		}
		value := sumAll / float64(last-first)
		if nFitted > 0 {
			value = sumFitted / float64(nFitted)
		}
		obj.Det[det] = value
		obj.Fitted[det] = nFitted > 0
		if last-first == 1 {
			continue
		}

		pads := make([]float64, c.geo.NPads(det))
		for _, r := range a.Results[first:last] {
			v := padValue(quantity, pick(r).Value, value)
			for row := r.Group.RowMin; row < r.Group.RowMax; row++ {
				for col := r.Group.ColMin; col < r.Group.ColMax; col++ {
					pads[row*trd.NCol+col] = v
				}
			}
		}
		obj.Pad[det] = pads
	}
	return obj
}

// padValue is the pad map entry of a group value: relative to the detector
// for gain and drift velocity, an offset for t0, absolute otherwise.
func padValue(quantity string, value, det float64) float64 {
	switch quantity {
	case trd.QuantityGain, trd.QuantityVdrift:
		if det == 0 {
			return 1
		}
		return value / det
	case trd.QuantityT0:
		return value - det
	default:
		return value
	}
}

// ApplyTo replaces the objects of set.
func ApplyTo(set *trd.CalibrationSet, objects []*trd.CalibrationObject) error {
	var errs []error
	for _, obj := range objects {
		if err := set.SetObject(obj); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", obj.Name, err))
		}
	}
	return errors.Join(errs...)
}
