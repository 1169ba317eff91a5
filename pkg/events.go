package trd

// Hit is one energy deposit in the gas of a chamber, in global coordinates.
type Hit struct {
	Detector int
	Track    int
	X        float64
	Y        float64
	Z        float64
	// Number of primary ionisation electrons.
	Q    float64
	Time float64
}

// Digit is one zero-suppressed ADC value.
type Digit struct {
	Detector  int
	Row       int
	Col       int
	Time      int
	Amplitude int16
	Tracks    [3]int32
}

type ClusterType int

const (
	TwoPad ClusterType = iota + 2
	ThreePad
	FourPad
	FivePad
	LargeCluster
)

func (c ClusterType) String() string {
	switch c {
	case TwoPad:
		return "2-pad"
	case ThreePad:
		return "3-pad"
	case FourPad:
		return "4-pad"
	case FivePad:
		return "5-pad"
	case LargeCluster:
		return "large"
	default:
		return "unknown"
	}
}

func clusterTypeFromPads(nPads int) ClusterType {
	switch {
	case nPads <= 2:
		return TwoPad
	case nPads == 3:
		return ThreePad
	case nPads == 4:
		return FourPad
	case nPads == 5:
		return FivePad
	default:
		return LargeCluster
	}
}

// Cluster is a reconstructed space point of one time bin.
type Cluster struct {
	Detector int
	// Position in the sector frame: y (r-phi), z (beam) and the time bin
	// centre.
	Y    float64
	Z    float64
	Time float64
	Q    float64
	// Sigma2 holds the y and z position variances (cm^2).
	Sigma2 [2]float64
	// SigmaY2Pad is the charge weighted variance estimate in pad units.
	SigmaY2Pad float64
	Type       ClusterType
	Unfolded   bool
	Row        int
	Col        int
	TimeBin    int
	// Pad position of the cluster: column plus offset in pad widths.
	Center  float64
	Signals [7]int16
	Tracks  [3]int32
}

// DetectorDigits holds the digits of one detector and the dictionary of
// contributing tracks. Dictionary entries store track+1 so that zero means
// no track.
type DetectorDigits struct {
	Detector   int
	Digits     *DataArray[int16]
	Dictionary [3]*DataArray[int32]
}

func NewDetectorDigits(det, nRow, nCol, nTime int) *DetectorDigits {
	d := &DetectorDigits{
		Detector: det,
		Digits:   NewDataArray[int16](nRow, nCol, nTime),
	}
	for i := range d.Dictionary {
		d.Dictionary[i] = NewDataArray[int32](nRow, nCol, nTime)
	}
	return d
}

// Compress compresses the digits and the dictionary.
func (d *DetectorDigits) Compress() {
	d.Digits.Compress()
	for _, dict := range d.Dictionary {
		dict.Compress()
	}
}

// Expand expands the digits and the dictionary.
func (d *DetectorDigits) Expand() {
	d.Digits.Expand()
	for _, dict := range d.Dictionary {
		dict.Expand()
	}
}

// Tracks returns the tracks stored for a pad, -1 for empty slots.
func (d *DetectorDigits) Tracks(row, col, time int) [3]int32 {
	var tracks [3]int32
	for i, dict := range d.Dictionary {
		tracks[i] = dict.Get(row, col, time) - 1
	}
	return tracks
}

// List returns the non-zero digits in (row, col, time) order.
func (d *DetectorDigits) List() []Digit {
	digits := make([]Digit, 0, d.Digits.NonZero())
	d.Digits.Each(func(row, col, time int, amp int16) {
		digits = append(digits, Digit{
			Detector:  d.Detector,
			Row:       row,
			Col:       col,
			Time:      time,
			Amplitude: amp,
			Tracks:    d.Tracks(row, col, time),
		})
	})
	return digits
}

// EventType collects everything produced for one event.
type EventType struct {
	RunNumber int
	EventID   int
	Hits      []Hit
	Digits    map[int]*DetectorDigits
	Clusters  []Cluster
	Error     bool
}
