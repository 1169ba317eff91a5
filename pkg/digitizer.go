package trd

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DetectorSignals are the summable (analog) digits of one detector, before
// the conversion to ADC counts. Signals of several events can be added
// before quantisation.
type DetectorSignals struct {
	Detector   int
	Signals    *DataArray[float64]
	Dictionary [3]*DataArray[int32]
}

func NewDetectorSignals(det, nRow, nCol, nTime int) *DetectorSignals {
	s := &DetectorSignals{
		Detector: det,
		Signals:  NewDataArray[float64](nRow, nCol, nTime),
	}
	for i := range s.Dictionary {
		s.Dictionary[i] = NewDataArray[int32](nRow, nCol, nTime)
	}
	return s
}

// AddTrack stores a track in the first free dictionary slot of a pad
// unless it is already there.
func (s *DetectorSignals) AddTrack(row, col, time, track int) {
	if track < 0 {
		return
	}
	stored := int32(track + 1)
	for _, dict := range s.Dictionary {
		v := dict.Get(row, col, time)
		if v == stored {
			return
		}
		if v == 0 {
			dict.Set(row, col, time, stored)
			return
		}
	}
}

func (s *DetectorSignals) Compress() {
	s.Signals.Compress()
	for _, dict := range s.Dictionary {
		dict.Compress()
	}
}

// Merge adds scale times the signals of other and its tracks.
func (s *DetectorSignals) Merge(other *DetectorSignals, scale float64) {
	other.Signals.Each(func(row, col, time int, value float64) {
		s.Signals.Add(row, col, time, scale*value)
	})
	for _, dict := range other.Dictionary {
		dict.Each(func(row, col, time int, stored int32) {
			s.AddTrack(row, col, time, int(stored-1))
		})
	}
}

// Digitizer converts the hits of one detector into digits. A Digitizer
// keeps per detector state and drift velocity caches and must not be shared
// between goroutines.
type Digitizer struct {
	geo      *Geometry
	params   SimParameters
	calib    Calibration
	response *ResponseModel
	prf      *PadResponse
	trf      []float64
	gasGain  distuv.Exponential
	noise    distuv.Normal

	detector int
	plane    int
	chamber  int
	sector   int
	padPlane *PadPlane
	nRow     int
	nCol     int
	nTime    int
	time0    float64
	vdrift   float64

	sdigits        map[int]*DetectorSignals
	sdigitsPending bool
}

func NewDigitizer(geo *Geometry, params SimParameters, calib Calibration, src rand.Source) *Digitizer {
	d := &Digitizer{
		geo:      geo,
		params:   params,
		calib:    calib,
		response: NewResponseModel(params, src),
		prf:      NewPadResponse(),
		trf:      TimeResponse(params),
		noise:    distuv.Normal{Mu: 0, Sigma: params.NoiseADC, Src: src},
		detector: -1,
		sdigits:  make(map[int]*DetectorSignals),
	}
	if params.GasGain > 0 {
		d.gasGain = distuv.Exponential{Rate: 1.0 / params.GasGain, Src: src}
	}
	return d
}

// Response gives access to the drift velocity caches of the digitizer.
func (d *Digitizer) Response() *ResponseModel {
	return d.response
}

// InitDetector loads the geometry and the constants of a detector. It fails
// for invalid detectors and for chambers that are not installed.
func (d *Digitizer) InitDetector(det int) error {
	if err := d.geo.CheckDetector(det); err != nil {
		return fmt.Errorf("init detector: %w", err)
	}
	d.detector = det
	d.plane = d.geo.Plane(det)
	d.chamber = d.geo.Chamber(det)
	d.sector = d.geo.Sector(det)
	d.padPlane = d.geo.PadPlane(d.plane, d.chamber)
	d.nRow = d.geo.RowMax(d.plane, d.chamber, d.sector)
	d.nCol = d.geo.ColMax(d.plane)
	d.nTime = d.geo.TimeMax()
	d.time0 = d.geo.Time0(d.plane)
	d.vdrift = d.params.DriftVelocity
	if d.calib != nil {
		d.vdrift = d.calib.Vdrift(det)
	}
	if d.vdrift <= 0 {
		return fmt.Errorf("init detector %d: invalid drift velocity %g", det, d.vdrift)
	}
	return nil
}

// MakeSignals produces the summable digits of the hits of one detector.
// Hits outside the gas volume or the pad plane are skipped.
func (d *Digitizer) MakeSignals(det int, hits []Hit) (*DetectorSignals, error) {
	if err := d.InitDetector(det); err != nil {
		return nil, err
	}
	signals := NewDetectorSignals(det, d.nRow, d.nCol, d.nTime)

	skipped := 0
	for _, hit := range hits {
		if hit.Detector != det {
			skipped++
			continue
		}
		if !d.addHit(signals, hit) {
			skipped++
		}
	}
	if skipped > 0 && configuration.Verbosity > 1 {
		message := fmt.Sprintf("Detector %d: %d of %d hits skipped", det, skipped, len(hits))
		logger.Info(message, "digitizer")
	}
	return signals, nil
}

func (d *Digitizer) addHit(signals *DetectorSignals, hit Hit) bool {
	local := d.geo.RotateBack(d.detector, [3]float64{hit.X, hit.Y, hit.Z})
	driftLength := d.time0 - local[0]
	if driftLength < -AmThick/2 || driftLength > DrThick+AmThick/2 {
		return false
	}
	nElectrons := int(math.Round(hit.Q))
	if nElectrons <= 0 {
		return false
	}

	for el := 0; el < nElectrons; el++ {
		xyz := local
		if d.params.DiffusionOn && driftLength > 0 {
			if err := d.response.Diffusion(d.vdrift, driftLength, &xyz); err != nil {
				continue
			}
		}
		if d.params.ExBOn && driftLength > 0 {
			if err := d.response.ExB(d.vdrift, driftLength, &xyz); err != nil {
				continue
			}
		}

		row := d.padPlane.PadRowNumber(xyz[2])
		col := d.padPlane.PadColNumber(xyz[1])
		if row < 0 || col < 0 {
			continue
		}

		timeBin, ok := d.timeBin(xyz, hit.Time, row, col)
		if !ok {
			continue
		}

		signal := d.params.GasGain
		if d.params.GasGainFluct && d.params.GasGain > 0 {
			signal = d.gasGain.Rand()
		}

		var pads [3]float64
		if d.params.PRFOn {
			centre := d.padPlane.ColPos(col) + d.padPlane.ColSize/2
			dist := (xyz[1] - centre) / d.padPlane.ColSize
			if pads, ok = d.prf.Response(signal, dist, d.plane); !ok {
				continue
			}
		} else {
			pads[1] = signal
		}

		for ip, amp := range pads {
			c := col - 1 + ip
			if amp == 0 || c < 0 || c >= d.nCol {
				continue
			}
			for it, w := range d.trf {
				tb := timeBin + it
				if tb >= d.nTime {
					break
				}
				signals.Signals.Add(row, c, tb, amp*w)
				signals.AddTrack(row, c, tb, hit.Track)
			}
		}
	}
	return true
}

// timeBin converts the arrival time of an electron at the anode wires into
// a time bin.
func (d *Digitizer) timeBin(xyz [3]float64, hitTime float64, row, col int) (int, bool) {
	driftLength := d.time0 - xyz[0]
	var driftTime float64
	if d.params.TimeStructOn {
		// Distance from the pad plane and from the closest anode wire
		dist := driftLength + AmThick/2
		zz := math.Mod(xyz[2]-d.padPlane.Row0, WirePitch)
		if zz < 0 {
			zz += WirePitch
		}
		zWire := math.Min(zz, WirePitch-zz)
		driftTime = d.response.TimeStruct(d.vdrift, dist, zWire)
	} else {
		driftTime = math.Abs(driftLength) / d.vdrift
	}
	t := (driftTime+hitTime)*d.params.SamplingFrequency + float64(d.params.PretriggerBins)
	if d.calib != nil {
		t += d.calib.T0(d.detector, row, col)
	}
	bin := int(math.Floor(t))
	if bin < 0 || bin >= d.nTime {
		return 0, false
	}
	return bin, true
}

// ConvertSignals quantises summable digits into ADC counts applying the
// pad gain, the electronics noise, the baseline, the output range and the
// zero suppression.
func (d *Digitizer) ConvertSignals(signals *DetectorSignals) (*DetectorDigits, error) {
	if d.detector != signals.Detector {
		if err := d.InitDetector(signals.Detector); err != nil {
			return nil, err
		}
	}
	digits := NewDetectorDigits(signals.Detector, d.nRow, d.nCol, d.nTime)
	for row := 0; row < d.nRow; row++ {
		for col := 0; col < d.nCol; col++ {
			gain := 1.0
			if d.calib != nil {
				gain = d.calib.GainFactor(signals.Detector, row, col)
			}
			for time := 0; time < d.nTime; time++ {
				value := signals.Signals.Get(row, col, time)
				if value == 0 && d.params.NoiseADC <= 0 {
					continue
				}
				adc, ok := d.toADC(value * gain)
				if !ok {
					continue
				}
				digits.Digits.Set(row, col, time, int16(adc))
				for i, dict := range signals.Dictionary {
					digits.Dictionary[i].Set(row, col, time, dict.Get(row, col, time))
				}
			}
		}
	}
	digits.Compress()
	return digits, nil
}

func (d *Digitizer) toADC(signal float64) (int, bool) {
	value := signal * d.params.ConversionFactor
	if d.params.NoiseADC > 0 {
		value += d.noise.Rand()
	}
	adc := int(math.Round(value)) + d.params.ADCBaseline
	if adc > d.params.ADCOutRange {
		adc = d.params.ADCOutRange
	}
	if adc-d.params.ADCBaseline < d.params.ADCThreshold || adc <= 0 {
		return 0, false
	}
	return adc, true
}

// MakeDigits runs the full chain for one detector.
func (d *Digitizer) MakeDigits(det int, hits []Hit) (*DetectorDigits, error) {
	signals, err := d.MakeSignals(det, hits)
	if err != nil {
		return nil, err
	}
	return d.ConvertSignals(signals)
}

// AddSDigits queues summable digits for the next SDigits2Digits call,
// scaled by the configured factor. Signals of the same detector are added.
func (d *Digitizer) AddSDigits(signals *DetectorSignals) {
	scale := d.params.SDigitsScale
	if scale == 0 {
		scale = 1
	}
	pending, ok := d.sdigits[signals.Detector]
	if !ok {
		nRow, nCol, nTime := signals.Signals.Dims()
		pending = NewDetectorSignals(signals.Detector, nRow, nCol, nTime)
		d.sdigits[signals.Detector] = pending
	}
	pending.Merge(signals, scale)
	d.sdigitsPending = true
}

// SDigits2Digits converts every queued summable digit into digits. Without
// new summable input since the last call it does nothing and returns nil.
func (d *Digitizer) SDigits2Digits() (map[int]*DetectorDigits, error) {
	if !d.sdigitsPending {
		return nil, nil
	}
	result := make(map[int]*DetectorDigits, len(d.sdigits))
	for det, signals := range d.sdigits {
		digits, err := d.ConvertSignals(signals)
		if err != nil {
			logger.Error(fmt.Sprintf("Detector %d: %v", det, err))
			continue
		}
		result[det] = digits
	}
	d.sdigits = make(map[int]*DetectorSignals)
	d.sdigitsPending = false
	return result, nil
}
