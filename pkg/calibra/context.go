package calibra

import (
	"fmt"
	"sync"

	trd "github.com/alice-trd/trd_go/pkg"
)

// Stage is the step of an analysis pass a Context is in.
type Stage int

const (
	StageInitMode Stage = iota
	StageFit
	StageNormalize
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInitMode:
		return "INIT_MODE"
	case StageFit:
		return "FIT"
	case StageNormalize:
		return "NORMALIZE"
	case StageDone:
		return "DONE"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Context carries the configuration and the reference constants of one
// calibration analysis. It replaces any process wide state: every
// analysis runs against the context it is given.
type Context struct {
	geo       *trd.Geometry
	params    trd.CalibParameters
	sim       trd.SimParameters
	reference trd.Calibration
	logger    trd.Logger
	verbosity int
	fitter    CurveFitter
	workers   int

	mu    sync.Mutex
	modes [numKinds]Mode
	stage Stage
}

// NewContext returns a context for the calibration settings of config.
// Fallback values are read from reference; a nil reference means the
// nominal constants of the detector model.
func NewContext(geo *trd.Geometry, config trd.Configuration, reference trd.Calibration) *Context {
	if reference == nil {
		reference = trd.NewCalibrationSet(geo, config.Simulation)
	}
	c := &Context{
		geo:       geo,
		params:    config.Calibration,
		sim:       config.Simulation,
		reference: reference,
		logger:    trd.GetLogger(),
		verbosity: config.Verbosity,
		fitter:    &HepFitter{},
		workers:   config.NumWorkers,
	}
	if c.workers < 1 {
		c.workers = 1
	}
	c.SetModeCalibration(c.params.ModeCH, KindCH)
	c.SetModeCalibration(c.params.ModePH, KindPH)
	c.SetModeCalibration(c.params.ModePRF, KindPRF)
	return c
}

func (c *Context) SetLogger(l trd.Logger) {
	if l == nil {
		l = trd.GetLogger()
	}
	c.logger = l
}

// SetFitter replaces the minimiser used by the fit methods.
func (c *Context) SetFitter(f CurveFitter) {
	c.fitter = f
}

func (c *Context) Params() trd.CalibParameters { return c.params }

func (c *Context) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Context) setStage(s Stage) {
	c.mu.Lock()
	c.stage = s
	c.mu.Unlock()
	if c.verbosity > 1 {
		c.logger.Info(fmt.Sprintf("Calibration stage %s", s), "calibra")
	}
}

func (c *Context) Mode(kind Kind) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modes[kind]
}

// SetMode sets the pad grouping of a kind of histograms.
func (c *Context) SetMode(kind Kind, mode Mode) error {
	if kind < 0 || kind >= numKinds {
		return fmt.Errorf("unknown histogram kind %d", int(kind))
	}
	if !mode.Valid() {
		return fmt.Errorf("invalid calibration mode %s", mode)
	}
	c.mu.Lock()
	c.modes[kind] = mode
	c.mu.Unlock()
	return nil
}

// SetModeCalibration sets the pad grouping of kind from a histogram name
// such as "CH2dNz0Nrphi0". When the name does not carry a grouping the
// unrecognised part falls back to 0 and false is returned.
func (c *Context) SetModeCalibration(name string, kind Kind) bool {
	if kind < 0 || kind >= numKinds {
		return false
	}
	mode, ok := ParseMode(name)
	c.mu.Lock()
	c.modes[kind] = mode
	c.stage = StageInitMode
	c.mu.Unlock()
	if !ok {
		c.logger.Info(fmt.Sprintf("WARN: no pad grouping recognised in %q, using %s for %s", name, mode, kind), "calibra")
	}
	return ok
}

// Layout returns the calibration groups of kind over the configured
// detector range.
func (c *Context) Layout(kind Kind) *Layout {
	return NewLayout(c.geo, c.Mode(kind), c.params.DetMin, c.params.DetMax)
}

// InitFit checks that the number of groups found in the histograms of
// kind matches the pad grouping of the context.
func (c *Context) InitFit(nGroups int, kind Kind) (*Layout, error) {
	if kind < 0 || kind >= numKinds {
		return nil, fmt.Errorf("unknown histogram kind %d", int(kind))
	}
	c.setStage(StageInitMode)
	layout := c.Layout(kind)
	if layout.Total() != nGroups {
		err := &trd.ErrHistogramMismatch{Kind: kind.String(), Expected: layout.Total(), Found: nGroups}
		c.logger.Error(err.Error())
		return nil, err
	}
	if c.verbosity > 0 {
		detMin, detMax := layout.Detectors()
		message := fmt.Sprintf("%s: %d groups in detectors %d-%d with mode %s", kind, nGroups, detMin, detMax, layout.Mode())
		c.logger.Info(message, "calibra")
	}
	return layout, nil
}

// referenceValue returns the reference constant of quantity for a group:
// the mean over its pads for the pad level quantities.
func (c *Context) referenceValue(quantity string, g Group) float64 {
	switch quantity {
	case trd.QuantityVdrift:
		return c.reference.Vdrift(g.Detector)
	case trd.QuantityTanLorentz:
		return c.reference.TanLorentz(g.Detector)
	}
	sum := 0.0
	for row := g.RowMin; row < g.RowMax; row++ {
		for col := g.ColMin; col < g.ColMax; col++ {
			switch quantity {
			case trd.QuantityGain:
				sum += c.reference.GainFactor(g.Detector, row, col)
			case trd.QuantityT0:
				sum += c.reference.T0(g.Detector, row, col)
			case trd.QuantityPRFWidth:
				sum += c.reference.PRFWidth(g.Detector, row, col)
			}
		}
	}
	if g.NPads() == 0 {
		return 0
	}
	return sum / float64(g.NPads())
}

// fallback returns the reference value of quantity marked as not fitted.
func (c *Context) fallback(quantity string, g Group) Coefficient {
	return Coefficient{Value: c.referenceValue(quantity, g), Status: Fallback}
}

type groupJob struct {
	detector    int
	first, last int
}

// fitGroups runs fit on every group of layout. The groups of one detector
// are handled by the same worker; the call returns once every group has a
// result.
func (c *Context) fitGroups(layout *Layout, fit func(g Group) GroupResult) []GroupResult {
	c.setStage(StageFit)
	results := make([]GroupResult, layout.Total())
	detMin, detMax := layout.Detectors()

	jobs := make(chan groupJob, detMax-detMin+1)
	var wg sync.WaitGroup
	for id := 1; id <= c.workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range jobs {
				c.fitDetector(id, job, layout, fit, results)
			}
		}(id)
	}
	for det := detMin; det <= detMax; det++ {
		first, last := layout.DetectorGroups(det)
		if first == last {
			continue
		}
		jobs <- groupJob{detector: det, first: first, last: last}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (c *Context) fitDetector(id int, job groupJob, layout *Layout, fit func(g Group) GroupResult, results []GroupResult) {
	if c.verbosity > 2 {
		message := fmt.Sprintf("Worker %d fitting groups %d-%d of detector %d", id, job.first, job.last-1, job.detector)
		c.logger.Info(message, "calibra")
	}
	for index := job.first; index < job.last; index++ {
		results[index] = c.fitOne(layout.Group(index), fit)
	}
}

func (c *Context) fitOne(g Group, fit func(g Group) GroupResult) (result GroupResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Sprintf("Recovered from panic fitting group %d of detector %d: %v", g.Index, g.Detector, r))
			result = GroupResult{Group: g, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fit(g)
}
