package calibra

import (
	"fmt"

	trd "github.com/alice-trd/trd_go/pkg"
)

// Status tells whether a coefficient comes from a fit or from the
// reference calibration.
type Status int

const (
	Fallback Status = iota
	Fitted
)

func (s Status) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "fallback"
}

// Coefficient is a calibration value with its status. Value is always the
// usable constant, whatever the status.
type Coefficient struct {
	Value  float64
	Status Status
}

func (c Coefficient) Fitted() bool { return c.Status == Fitted }

// Encode returns the stored form of the coefficient for quantity.
func (c Coefficient) Encode(quantity string) float64 {
	return trd.EncodeValue(quantity, c.Value, c.Fitted())
}

// Curve keeps the data and the fitted function of a group for the QA
// plots.
type Curve struct {
	X, Y   []float64
	F      func(float64) float64
	Lo, Hi float64
}

// GroupResult is the outcome of the fit of one calibration group. Second
// holds the t0 of the pulse height methods and the tangent of the Lorentz
// angle of the linear fitter.
type GroupResult struct {
	Group   Group
	Entries int
	Coef    Coefficient
	Second  Coefficient
	Error   float64
	Chi2    float64
	Err     error
	Curve   *Curve
}

// Analysis holds the results of all the groups of one analysis call.
type Analysis struct {
	Kind           Kind
	Method         string
	Quantity       string
	SecondQuantity string
	Layout         *Layout
	Results        []GroupResult
	// Scale is the normalisation factor of the fitted gains, 1 when no
	// normalisation was computed.
	Scale     float64
	Fitted    int
	Fallbacks int

	hist *Histograms
}

// Name is the name of the analysis, as in "CH2dNz0Nrphi0".
func (a *Analysis) Name() string {
	return a.Layout.Mode().Name(a.Kind)
}

// Encoded returns the stored form of the coefficient of every group.
func (a *Analysis) Encoded() []float64 {
	out := make([]float64, len(a.Results))
	for i, r := range a.Results {
		out[i] = r.Coef.Encode(a.Quantity)
	}
	return out
}

func (a *Analysis) count() {
	a.Fitted, a.Fallbacks = 0, 0
	for _, r := range a.Results {
		if r.Coef.Fitted() {
			a.Fitted++
		} else {
			a.Fallbacks++
		}
	}
}

func (a *Analysis) String() string {
	return fmt.Sprintf("%s (%s): %d groups, %d fitted, %d fallback, scale %.4g",
		a.Name(), a.Method, len(a.Results), a.Fitted, a.Fallbacks, a.Scale)
}
