package calibra

import (
	"testing"

	trd "github.com/alice-trd/trd_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightTracklet returns n three pad clusters of one track at a fixed
// pad position, one per time bin.
func straightTracklet(det int, track int32, n int) []trd.Cluster {
	clusters := make([]trd.Cluster, n)
	for i := range clusters {
		clusters[i] = trd.Cluster{
			Detector: det,
			Type:     trd.ThreePad,
			Row:      3,
			Col:      40,
			TimeBin:  6 + i,
			Time:     float64(1+i) / 10,
			Y:        -20 + 0.01*float64(i),
			Q:        100,
			Center:   40.5,
			Signals:  [7]int16{0, 0, 20, 60, 20, 0, 0},
			Tracks:   [3]int32{track, -1, -1},
		}
	}
	return clusters
}

func TestFillEvent(t *testing.T) {
	config := testConfig()
	config.Calibration.RelativeScale = 4
	ctx, _ := newTestContext(config)
	filler := ctx.NewFiller()
	require.Nil(t, filler.Linear)

	event := &trd.EventType{}
	event.Clusters = append(event.Clusters, straightTracklet(0, 3, 10)...)
	event.Clusters = append(event.Clusters, straightTracklet(1, 4, 5)...)
	event.Clusters = append(event.Clusters, straightTracklet(1, -1, 10)...)
	filler.FillEvent(event)

	assert.Equal(t, 1, filler.Tracklets())
	assert.Equal(t, 1, filler.CH.Entries(0))
	assert.Equal(t, 0, filler.CH.Entries(1))
	assert.Equal(t, 10, filler.PH.Entries(0))
	assert.Equal(t, 30, filler.PRF.Entries(0))

	var charge float64
	for _, b := range filler.CH.Bins(0) {
		if b.Entries > 0 {
			charge = b.X
		}
	}
	// 1000 / 4 = 250 falls in the bin [249, 252).
	assert.Equal(t, 250.5, charge)

	for _, b := range filler.PH.Bins(0) {
		if b.Entries > 0 {
			assert.Equal(t, 100.0, b.Y)
		}
	}
	for _, b := range filler.PRF.Bins(0) {
		if b.Entries == 0 {
			continue
		}
		switch {
		case b.X < -0.5:
			assert.InDelta(t, 0.2, b.Y, 1e-12)
		case b.X > 0.5:
			assert.InDelta(t, 0.2, b.Y, 1e-12)
		default:
			assert.InDelta(t, 0.6, b.Y, 1e-12)
		}
	}
}

func TestFillLinearFitter(t *testing.T) {
	config := testConfig()
	config.Calibration.LinearFitVdrift = true
	ctx, _ := newTestContext(config)
	geo := trd.NewGeometry(config.Geometry)
	filler := ctx.NewFiller()
	require.NotNil(t, filler.Linear)

	const det = 0
	event := &trd.EventType{Clusters: straightTracklet(det, 3, 10)}
	time0 := geo.Time0(geo.Plane(det))
	for i := 0; i < 5; i++ {
		x := time0 - 0.5*float64(i)
		local := [3]float64{x, -20 + 0.2*(x-time0), 10}
		global := geo.Rotate(det, local)
		event.Hits = append(event.Hits, trd.Hit{Detector: det, Track: 3, X: global[0], Y: global[1], Z: global[2]})
	}
	filler.FillEvent(event)
	require.Equal(t, 1, filler.Linear.Points(det))

	xs, ys := filler.Linear.points(det)
	assert.InDelta(t, 0.2, xs[0], 1e-9)
	assert.InDelta(t, 0.1, ys[0], 1e-9)
}
