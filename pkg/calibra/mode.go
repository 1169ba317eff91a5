package calibra

import (
	"fmt"
	"regexp"
	"strconv"

	trd "github.com/alice-trd/trd_go/pkg"
)

// Kind is the quantity a set of calibration histograms measures.
type Kind int

const (
	KindCH Kind = iota
	KindPH
	KindPRF
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindCH:
		return "CH"
	case KindPH:
		return "PH"
	case KindPRF:
		return "PRF"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mode is the pad grouping of a calibration: Nz selects the number of pad
// rows and Nrphi the number of pad columns in one calibration group.
type Mode struct {
	Nz    int
	Nrphi int
}

const (
	maxNz    = 4
	maxNrphi = 6
)

var colsPerGroup = [maxNrphi + 1]int{144, 72, 36, 18, 9, 4, 1}

func (m Mode) Valid() bool {
	return m.Nz >= 0 && m.Nz <= maxNz && m.Nrphi >= 0 && m.Nrphi <= maxNrphi
}

// RowsPerGroup returns the pad rows of one group in a chamber.
func (m Mode) RowsPerGroup(geo *trd.Geometry, plane, chamber int) int {
	rows := geo.RowMax(plane, chamber, 0)
	switch m.Nz {
	case 0:
		return rows
	case 1:
		return rows / 2
	case 2:
		return rows / 4
	case 3:
		return 2
	default:
		return 1
	}
}

// ColsPerGroup returns the pad columns of one group.
func (m Mode) ColsPerGroup() int {
	if m.Nrphi < 0 || m.Nrphi > maxNrphi {
		return colsPerGroup[0]
	}
	return colsPerGroup[m.Nrphi]
}

// GroupsInDetector returns the number of calibration groups of a detector.
func (m Mode) GroupsInDetector(geo *trd.Geometry, det int) int {
	plane, chamber := geo.Plane(det), geo.Chamber(det)
	rows := geo.RowMax(plane, chamber, geo.Sector(det))
	return (rows / m.RowsPerGroup(geo, plane, chamber)) * (geo.ColMax(plane) / m.ColsPerGroup())
}

func (m Mode) String() string {
	return fmt.Sprintf("Nz%dNrphi%d", m.Nz, m.Nrphi)
}

// Name returns the histogram name encoding the kind and the mode, as in
// "CH2dNz0Nrphi0".
func (m Mode) Name(kind Kind) string {
	return fmt.Sprintf("%s2d%s", kind, m)
}

var (
	nzPattern    = regexp.MustCompile(`Nz([0-4])`)
	nrphiPattern = regexp.MustCompile(`Nrphi([0-6])`)
)

// ParseMode recovers the pad grouping encoded in a histogram name. A part
// that is not recognised gives 0 and ok false.
func ParseMode(name string) (Mode, bool) {
	var mode Mode
	ok := true
	if m := nzPattern.FindStringSubmatch(name); m != nil {
		mode.Nz, _ = strconv.Atoi(m[1])
	} else {
		ok = false
	}
	if m := nrphiPattern.FindStringSubmatch(name); m != nil {
		mode.Nrphi, _ = strconv.Atoi(m[1])
	} else {
		ok = false
	}
	return mode, ok
}

// Group is one calibration group: a block of pads of one detector.
type Group struct {
	Index    int
	Detector int
	Local    int
	RowMin   int
	RowMax   int
	ColMin   int
	ColMax   int
}

// NPads returns the number of pads of the group.
func (g Group) NPads() int {
	return (g.RowMax - g.RowMin) * (g.ColMax - g.ColMin)
}

// Layout numbers the calibration groups of a detector range. Groups are
// ordered by detector, then by row block and column block.
type Layout struct {
	geo     *trd.Geometry
	mode    Mode
	detMin  int
	detMax  int
	offsets []int
	total   int
}

func NewLayout(geo *trd.Geometry, mode Mode, detMin, detMax int) *Layout {
	if detMin < 0 {
		detMin = 0
	}
	if detMax >= trd.NDet {
		detMax = trd.NDet - 1
	}
	l := &Layout{geo: geo, mode: mode, detMin: detMin, detMax: detMax}
	for det := detMin; det <= detMax; det++ {
		l.offsets = append(l.offsets, l.total)
		l.total += mode.GroupsInDetector(geo, det)
	}
	return l
}

func (l *Layout) Mode() Mode { return l.mode }

func (l *Layout) Total() int { return l.total }

// Detectors returns the first and last detector of the layout.
func (l *Layout) Detectors() (int, int) { return l.detMin, l.detMax }

// DetectorGroups returns the range [first, last) of the groups of det.
func (l *Layout) DetectorGroups(det int) (int, int) {
	if det < l.detMin || det > l.detMax {
		return 0, 0
	}
	first := l.offsets[det-l.detMin]
	return first, first + l.mode.GroupsInDetector(l.geo, det)
}

// GroupOf returns the group containing a pad.
func (l *Layout) GroupOf(det, row, col int) (int, bool) {
	if det < l.detMin || det > l.detMax || row < 0 || col < 0 {
		return 0, false
	}
	plane, chamber := l.geo.Plane(det), l.geo.Chamber(det)
	if row >= l.geo.RowMax(plane, chamber, l.geo.Sector(det)) || col >= l.geo.ColMax(plane) {
		return 0, false
	}
	rows := l.mode.RowsPerGroup(l.geo, plane, chamber)
	cols := l.mode.ColsPerGroup()
	nColGroups := l.geo.ColMax(plane) / cols
	local := (row/rows)*nColGroups + col/cols
	return l.offsets[det-l.detMin] + local, true
}

// Group describes the group with a global index.
func (l *Layout) Group(index int) Group {
	det := l.detMin
	for i := len(l.offsets) - 1; i >= 0; i-- {
		if l.offsets[i] <= index {
			det = l.detMin + i
			break
		}
	}
	local := index - l.offsets[det-l.detMin]
	plane, chamber := l.geo.Plane(det), l.geo.Chamber(det)
	rows := l.mode.RowsPerGroup(l.geo, plane, chamber)
	cols := l.mode.ColsPerGroup()
	nColGroups := l.geo.ColMax(plane) / cols
	rb, cb := local/nColGroups, local%nColGroups
	return Group{
		Index:    index,
		Detector: det,
		Local:    local,
		RowMin:   rb * rows,
		RowMax:   (rb + 1) * rows,
		ColMin:   cb * cols,
		ColMax:   (cb + 1) * cols,
	}
}
