package trd

import (
	"fmt"
	"math"
)

// Names of the calibration objects. They are the keys of the calibration
// database and must not change.
const (
	QuantityGain       = "ChamberGainFactor"
	QuantityVdrift     = "ChamberVdrift"
	QuantityT0         = "ChamberT0"
	QuantityPRFWidth   = "PRFWidth"
	QuantityTanLorentz = "tan(lorentzangle)"
)

var Quantities = []string{QuantityGain, QuantityVdrift, QuantityT0, QuantityPRFWidth, QuantityTanLorentz}

// Offset added to a t0 that was not fitted in the stored form.
const t0FallbackOffset = 100.0

// Calibration supplies the constants the digitizer and the clusterizers
// read for a detector.
type Calibration interface {
	Vdrift(det int) float64
	T0(det, row, col int) float64
	GainFactor(det, row, col int) float64
	PRFWidth(det, row, col int) float64
	TanLorentz(det int) float64
}

// CalibrationObject holds one quantity: one value per detector, a fitted
// flag per detector and optionally one value per pad.
type CalibrationObject struct {
	Name   string
	Det    []float64
	Fitted []bool
	// Pad values, row major, keyed by detector. Gain and drift velocity are
	// relative to the detector value, t0 is added to it and the PRF width
	// is absolute.
	Pad map[int][]float64
}

func NewCalibrationObject(name string, value float64) *CalibrationObject {
	obj := &CalibrationObject{
		Name:   name,
		Det:    make([]float64, NDet),
		Fitted: make([]bool, NDet),
		Pad:    make(map[int][]float64),
	}
	for i := range obj.Det {
		obj.Det[i] = value
	}
	return obj
}

// PadValue combines the detector and the pad values of the object.
func (o *CalibrationObject) PadValue(det, index int) float64 {
	value := o.Det[det]
	pads, ok := o.Pad[det]
	if !ok || index < 0 || index >= len(pads) {
		return value
	}
	switch o.Name {
	case QuantityGain, QuantityVdrift:
		return value * pads[index]
	case QuantityT0:
		return value + pads[index]
	default:
		return pads[index]
	}
}

// CalibrationSet groups the calibration objects valid for a run.
type CalibrationSet struct {
	RunNumber int
	geo       *Geometry
	objects   map[string]*CalibrationObject
}

// NewCalibrationSet returns a set with the nominal constants of the
// detector model.
func NewCalibrationSet(geo *Geometry, params SimParameters) *CalibrationSet {
	c := &CalibrationSet{
		geo:     geo,
		objects: make(map[string]*CalibrationObject),
	}
	c.objects[QuantityGain] = NewCalibrationObject(QuantityGain, 1.0)
	c.objects[QuantityVdrift] = NewCalibrationObject(QuantityVdrift, params.DriftVelocity)
	c.objects[QuantityT0] = NewCalibrationObject(QuantityT0, 0.0)
	c.objects[QuantityTanLorentz] = NewCalibrationObject(QuantityTanLorentz, OmegaTau(params.DriftVelocity, params.Field))
	prf := NewCalibrationObject(QuantityPRFWidth, 0)
	for det := range prf.Det {
		prf.Det[det] = math.Sqrt(prfSigma[geo.Plane(det)]*prfSigma[geo.Plane(det)] + 1.0/12.0)
	}
	c.objects[QuantityPRFWidth] = prf
	return c
}

func (c *CalibrationSet) Object(name string) (*CalibrationObject, error) {
	obj, ok := c.objects[name]
	if !ok {
		return nil, &ErrUnknownQuantity{Name: name}
	}
	return obj, nil
}

// SetObject replaces a quantity of the set.
func (c *CalibrationSet) SetObject(obj *CalibrationObject) error {
	if _, ok := c.objects[obj.Name]; !ok {
		return &ErrUnknownQuantity{Name: obj.Name}
	}
	if len(obj.Det) != NDet {
		return fmt.Errorf("calibration object %s: %d detector values, expected %d", obj.Name, len(obj.Det), NDet)
	}
	c.objects[obj.Name] = obj
	return nil
}

func (c *CalibrationSet) padIndex(det, row, col int) int {
	return row*NCol + col
}

func (c *CalibrationSet) Vdrift(det int) float64 {
	return c.objects[QuantityVdrift].Det[det]
}

func (c *CalibrationSet) T0(det, row, col int) float64 {
	return c.objects[QuantityT0].PadValue(det, c.padIndex(det, row, col))
}

func (c *CalibrationSet) GainFactor(det, row, col int) float64 {
	return c.objects[QuantityGain].PadValue(det, c.padIndex(det, row, col))
}

func (c *CalibrationSet) PRFWidth(det, row, col int) float64 {
	return c.objects[QuantityPRFWidth].PadValue(det, c.padIndex(det, row, col))
}

func (c *CalibrationSet) TanLorentz(det int) float64 {
	return c.objects[QuantityTanLorentz].Det[det]
}

// EncodeValue returns the stored form of a calibration value. Values that
// were not fitted are stored negated, except t0: a fitted t0 can itself be
// negative, so a t0 fallback is stored as value + 100 instead. DecodeValue
// reads any stored t0 of 50 or more as a fallback.
func EncodeValue(quantity string, value float64, fitted bool) float64 {
	if fitted {
		return value
	}
	if quantity == QuantityT0 {
		return value + t0FallbackOffset
	}
	return -math.Abs(value)
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(quantity string, stored float64) (float64, bool) {
	if quantity == QuantityT0 {
		if stored >= t0FallbackOffset/2 {
			return stored - t0FallbackOffset, false
		}
		return stored, true
	}
	if stored < 0 {
		return -stored, false
	}
	return stored, true
}
