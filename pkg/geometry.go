package trd

import (
	"fmt"
	"math"
)

const (
	NPlan = 6
	NCham = 5
	NSect = 18
	NDet  = NPlan * NCham * NSect

	NCol = 144

	// Thickness of the radiator, drift and amplification regions (cm).
	RaThick = 4.8
	DrThick = 3.0
	AmThick = 0.7
	// Height of one layer including electronics (cm).
	ChamberHeight = 12.6
	Rmin          = 300.0

	// Anode wire pitch (cm).
	WirePitch = 0.25

	sectorWidthDeg = 360.0 / NSect
)

var colSizes = [NPlan]float64{0.664, 0.695, 0.726, 0.756, 0.788, 0.818}

// PadPlane describes the readout pads of one (plane, chamber).
type PadPlane struct {
	Plane   int
	Chamber int
	NRows   int
	NCols   int
	RowSize float64
	ColSize float64
	// Lower edges of row 0 (z) and column 0 (y) in the sector frame.
	Row0 float64
	Col0 float64
}

// RowPos returns the lower z edge of a pad row.
func (p *PadPlane) RowPos(row int) float64 {
	return p.Row0 + float64(row)*p.RowSize
}

// ColPos returns the lower y edge of a pad column.
func (p *PadPlane) ColPos(col int) float64 {
	return p.Col0 + float64(col)*p.ColSize
}

// PadRowNumber returns the row containing z, or -1 outside the chamber.
func (p *PadPlane) PadRowNumber(z float64) int {
	row := int(math.Floor((z - p.Row0) / p.RowSize))
	if row < 0 || row >= p.NRows {
		return -1
	}
	return row
}

// PadColNumber returns the column containing y, or -1 outside the chamber.
func (p *PadPlane) PadColNumber(y float64) int {
	col := int(math.Floor((y - p.Col0) / p.ColSize))
	if col < 0 || col >= p.NCols {
		return -1
	}
	return col
}

// Geometry answers the index and coordinate questions of the digitizer,
// the clusterizers and the calibration. It is immutable after creation and
// safe to share between workers.
type Geometry struct {
	nTimeBins int
	holes     map[int]bool
	padPlanes [NPlan][NCham]PadPlane
}

func NewGeometry(params GeometryParameters) *Geometry {
	g := &Geometry{
		nTimeBins: params.NTimeBins,
		holes:     make(map[int]bool),
	}
	if g.nTimeBins <= 0 {
		g.nTimeBins = 30
	}
	for _, hole := range params.Holes {
		g.holes[hole[0]*NCham+hole[1]] = true
	}

	var lengths [NCham]float64
	for c := 0; c < NCham; c++ {
		lengths[c] = float64(rowsInChamber(c)) * rowSizeInChamber(c)
	}
	// Chamber 2 is centred at z = 0, the others are stacked on both sides.
	zLow := [NCham]float64{
		lengths[2]/2 + lengths[1],
		lengths[2] / 2,
		-lengths[2] / 2,
		-lengths[2]/2 - lengths[3],
		-lengths[2]/2 - lengths[3] - lengths[4],
	}
	for p := 0; p < NPlan; p++ {
		for c := 0; c < NCham; c++ {
			g.padPlanes[p][c] = PadPlane{
				Plane:   p,
				Chamber: c,
				NRows:   rowsInChamber(c),
				NCols:   NCol,
				RowSize: rowSizeInChamber(c),
				ColSize: colSizes[p],
				Row0:    zLow[c],
				Col0:    -float64(NCol) * colSizes[p] / 2,
			}
		}
	}
	return g
}

func rowsInChamber(chamber int) int {
	if chamber == 2 {
		return 12
	}
	return 16
}

func rowSizeInChamber(chamber int) float64 {
	if chamber == 2 {
		return 7.5
	}
	return 9.0
}

func (g *Geometry) Plane(det int) int   { return det % NPlan }
func (g *Geometry) Chamber(det int) int { return (det % (NPlan * NCham)) / NPlan }
func (g *Geometry) Sector(det int) int  { return det / (NPlan * NCham) }

func (g *Geometry) Detector(plane, chamber, sector int) int {
	return plane + chamber*NPlan + sector*NPlan*NCham
}

func (g *Geometry) ValidDetector(det int) bool {
	return det >= 0 && det < NDet
}

// IsActive reports whether the chamber of det is installed.
func (g *Geometry) IsActive(det int) bool {
	if !g.ValidDetector(det) {
		return false
	}
	return !g.holes[g.Sector(det)*NCham+g.Chamber(det)]
}

// CheckDetector returns a typed error for invalid or absent detectors.
func (g *Geometry) CheckDetector(det int) error {
	if !g.ValidDetector(det) {
		return &ErrInvalidDetector{Detector: det}
	}
	if !g.IsActive(det) {
		return &ErrChamberAbsent{Detector: det, Sector: g.Sector(det), Chamber: g.Chamber(det)}
	}
	return nil
}

func (g *Geometry) PadPlane(plane, chamber int) *PadPlane {
	return &g.padPlanes[plane][chamber]
}

func (g *Geometry) RowMax(plane, chamber, sector int) int {
	return g.padPlanes[plane][chamber].NRows
}

func (g *Geometry) ColMax(plane int) int {
	return NCol
}

func (g *Geometry) TimeMax() int {
	return g.nTimeBins
}

func (g *Geometry) Row0(plane, chamber, sector int) float64 {
	return g.padPlanes[plane][chamber].Row0
}

func (g *Geometry) Col0(plane int) float64 {
	return g.padPlanes[plane][0].Col0
}

// Time0 is the radial position of the anode wire plane of a layer, where
// the drift length is zero.
func (g *Geometry) Time0(plane int) float64 {
	return Rmin + ChamberHeight*float64(plane) + RaThick + DrThick + AmThick/2
}

// NPads returns the number of pads of a detector.
func (g *Geometry) NPads(det int) int {
	return g.RowMax(g.Plane(det), g.Chamber(det), g.Sector(det)) * NCol
}

func sectorAngle(sector int) float64 {
	return (float64(sector) + 0.5) * sectorWidthDeg * math.Pi / 180
}

// Rotate converts a position in the sector frame of det (x radial, y along
// r-phi, z along the beam) to the global frame.
func (g *Geometry) Rotate(det int, local [3]float64) [3]float64 {
	phi := sectorAngle(g.Sector(det))
	cos, sin := math.Cos(phi), math.Sin(phi)
	return [3]float64{
		local[0]*cos - local[1]*sin,
		local[0]*sin + local[1]*cos,
		local[2],
	}
}

// RotateBack converts a global position to the sector frame of det.
func (g *Geometry) RotateBack(det int, global [3]float64) [3]float64 {
	phi := sectorAngle(g.Sector(det))
	cos, sin := math.Cos(phi), math.Sin(phi)
	return [3]float64{
		global[0]*cos + global[1]*sin,
		-global[0]*sin + global[1]*cos,
		global[2],
	}
}

// SectorOf returns the sector containing the global position.
func (g *Geometry) SectorOf(global [3]float64) int {
	phi := math.Atan2(global[1], global[0]) * 180 / math.Pi
	if phi < 0 {
		phi += 360
	}
	sector := int(phi / sectorWidthDeg)
	if sector >= NSect {
		sector = NSect - 1
	}
	return sector
}

// FindDetector returns the detector whose gas volume contains the global
// position, or -1.
func (g *Geometry) FindDetector(global [3]float64) int {
	sector := g.SectorOf(global)
	local := g.RotateBack(g.Detector(0, 0, sector), global)
	for plane := 0; plane < NPlan; plane++ {
		drift := g.Time0(plane) - local[0]
		if drift < -AmThick/2 || drift > DrThick+AmThick/2 {
			continue
		}
		for chamber := 0; chamber < NCham; chamber++ {
			pp := g.PadPlane(plane, chamber)
			if pp.PadRowNumber(local[2]) < 0 || pp.PadColNumber(local[1]) < 0 {
				continue
			}
			return g.Detector(plane, chamber, sector)
		}
	}
	return -1
}

func (g *Geometry) String() string {
	return fmt.Sprintf("TRD geometry: %d detectors, %d holes, %d time bins", NDet, len(g.holes)*NPlan, g.nTimeBins)
}
