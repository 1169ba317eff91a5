package calibra

import (
	"cmp"
	"math"
	"sync"

	trd "github.com/alice-trd/trd_go/pkg"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// Tracklets shorter than this are not used for calibration.
const minTrackletClusters = 8

// Filler accumulates the calibration histograms from reconstructed
// events. It is safe for concurrent use.
type Filler struct {
	geo           *trd.Geometry
	relativeScale float64

	CH     *Histograms
	PH     *Histograms
	PRF    *Histograms
	Linear *LinearFitter

	mu        sync.Mutex
	tracklets int
}

// NewFiller books the histograms of the three kinds with the pad grouping
// of the context, and the linear fitter when it is enabled.
func (c *Context) NewFiller() *Filler {
	f := &Filler{
		geo:           c.geo,
		relativeScale: c.params.RelativeScale,
		CH:            NewHistograms(KindCH, c.Layout(KindCH), c.geo, c.params),
		PH:            NewHistograms(KindPH, c.Layout(KindPH), c.geo, c.params),
		PRF:           NewHistograms(KindPRF, c.Layout(KindPRF), c.geo, c.params),
	}
	if f.relativeScale <= 0 {
		f.relativeScale = 1
	}
	if c.params.LinearFitVdrift {
		f.Linear = NewLinearFitter(c.params.DetMin, c.params.DetMax)
	}
	return f
}

// Tracklets returns the number of tracklets used so far.
func (f *Filler) Tracklets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracklets
}

type trackletKey struct {
	detector int
	track    int32
}

type tracklet struct {
	trackletKey
	clusters []trd.Cluster
}

// tracklets groups the clusters of an event by detector and leading track
// and orders them in time.
func tracklets(clusters []trd.Cluster) []tracklet {
	byKey := make(map[trackletKey][]trd.Cluster)
	for _, cl := range clusters {
		if cl.Tracks[0] < 0 {
			continue
		}
		key := trackletKey{cl.Detector, cl.Tracks[0]}
		byKey[key] = append(byKey[key], cl)
	}
	out := make([]tracklet, 0, len(byKey))
	for key, cls := range byKey {
		if len(cls) < minTrackletClusters {
			continue
		}
		slices.SortFunc(cls, func(a, b trd.Cluster) int { return cmp.Compare(a.TimeBin, b.TimeBin) })
		out = append(out, tracklet{trackletKey: key, clusters: cls})
	}
	slices.SortFunc(out, func(a, b tracklet) int {
		if c := cmp.Compare(a.detector, b.detector); c != 0 {
			return c
		}
		return cmp.Compare(a.track, b.track)
	})
	return out
}

// trackSlopes returns dy/dx in the sector frame of the Monte Carlo tracks
// crossing each detector.
func (f *Filler) trackSlopes(hits []trd.Hit) map[trackletKey]float64 {
	xs := make(map[trackletKey][]float64)
	ys := make(map[trackletKey][]float64)
	for _, hit := range hits {
		det := hit.Detector
		if det < 0 {
			det = f.geo.FindDetector([3]float64{hit.X, hit.Y, hit.Z})
		}
		if det < 0 {
			continue
		}
		local := f.geo.RotateBack(det, [3]float64{hit.X, hit.Y, hit.Z})
		key := trackletKey{det, int32(hit.Track)}
		xs[key] = append(xs[key], local[0])
		ys[key] = append(ys[key], local[1])
	}
	slopes := make(map[trackletKey]float64, len(xs))
	for key, x := range xs {
		if len(x) < 2 || stat.Variance(x, nil) == 0 {
			continue
		}
		_, slope := stat.LinearRegression(x, ys[key], nil, false)
		slopes[key] = slope
	}
	return slopes
}

// FillEvent adds the tracklets of an event to the histograms.
func (f *Filler) FillEvent(event *trd.EventType) {
	tls := tracklets(event.Clusters)
	var slopes map[trackletKey]float64
	if f.Linear != nil {
		slopes = f.trackSlopes(event.Hits)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tl := range tls {
		f.tracklets++
		f.fillCH(tl)
		f.fillPH(tl)
		f.fillPRF(tl)
		if slope, ok := slopes[tl.trackletKey]; ok {
			times := make([]float64, len(tl.clusters))
			ys := make([]float64, len(tl.clusters))
			for i, cl := range tl.clusters {
				times[i], ys[i] = cl.Time, cl.Y
			}
			if stat.Variance(times, nil) > 0 {
				_, speed := stat.LinearRegression(times, ys, nil, false)
				f.Linear.Add(tl.detector, slope, speed)
			}
		}
	}
}

// fillCH adds the charge of the tracklet to the group of its middle
// cluster.
func (f *Filler) fillCH(tl tracklet) {
	q := 0.0
	for _, cl := range tl.clusters {
		q += cl.Q
	}
	mid := tl.clusters[len(tl.clusters)/2]
	if g, ok := f.CH.Layout.GroupOf(tl.detector, mid.Row, mid.Col); ok {
		f.CH.Fill(g, q/f.relativeScale, 0)
	}
}

func (f *Filler) fillPH(tl tracklet) {
	for _, cl := range tl.clusters {
		if g, ok := f.PH.Layout.GroupOf(tl.detector, cl.Row, cl.Col); ok {
			f.PH.Fill(g, float64(cl.TimeBin)+0.5, cl.Q)
		}
	}
}

// fillPRF adds the pad fractions of the three pad clusters against their
// distance to the track position predicted by the tracklet.
func (f *Filler) fillPRF(tl tracklet) {
	times := make([]float64, len(tl.clusters))
	centers := make([]float64, len(tl.clusters))
	for i, cl := range tl.clusters {
		times[i], centers[i] = cl.Time, cl.Center
	}
	if stat.Variance(times, nil) == 0 {
		return
	}
	a, b := stat.LinearRegression(times, centers, nil, false)
	for _, cl := range tl.clusters {
		if cl.Type != trd.ThreePad || cl.Unfolded {
			continue
		}
		sum := float64(cl.Signals[2]) + float64(cl.Signals[3]) + float64(cl.Signals[4])
		if sum <= 0 {
			continue
		}
		g, ok := f.PRF.Layout.GroupOf(tl.detector, cl.Row, cl.Col)
		if !ok {
			continue
		}
		predicted := a + b*cl.Time
		for i := -1; i <= 1; i++ {
			x := float64(cl.Col+i) + 0.5 - predicted
			if math.Abs(x) < 1.5 {
				f.PRF.Fill(g, x, float64(cl.Signals[3+i])/sum)
			}
		}
	}
}
