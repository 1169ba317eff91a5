package trd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipelineConfig() Configuration {
	config := DefaultConfiguration()
	config.Simulation = idealSimParameters()
	config.Reconstruction.ExBCorrection = false
	config.NumWorkers = 3
	return config
}

func TestPipelinePileUp(t *testing.T) {
	config := testPipelineConfig()
	geo := NewGeometry(config.Geometry)
	calib := NewCalibrationSet(geo, config.Simulation)
	pipeline := NewPipeline(geo, config, calib)

	first := &EventType{EventID: 4, Hits: []Hit{
		hitAtPad(geo, 0, 5, 72, 1.52, 300, 1),
		hitAtPad(geo, 7, 3, 20, 2.02, 400, 2),
	}}
	located := hitAtPad(geo, 0, 5, 72, 1.52, 300, 3)
	located.Detector = -1
	second := &EventType{EventID: 5, Hits: []Hit{located}}

	require.NoError(t, pipeline.ProcessEvents(first, second))

	require.Len(t, first.Digits, 2)
	require.Contains(t, first.Digits, 0)
	require.Contains(t, first.Digits, 7)
	assert.Nil(t, second.Digits)

	require.Len(t, first.Clusters, 2)
	assert.Equal(t, 0, first.Clusters[0].Detector)
	assert.Equal(t, 7, first.Clusters[1].Detector)
	assert.InDelta(t, 600, first.Clusters[0].Q, 3)
	assert.InDelta(t, 400, first.Clusters[1].Q, 2)
	assert.ElementsMatch(t, []int32{1, 3, -1}, first.Clusters[0].Tracks[:])
}

func TestPipelineSkipsHoles(t *testing.T) {
	config := testPipelineConfig()
	geo := NewGeometry(config.Geometry)
	pipeline := NewPipeline(geo, config, NewCalibrationSet(geo, config.Simulation))

	hole := geo.Detector(0, 2, 13)
	event := &EventType{Hits: []Hit{{Detector: hole, Q: 100}, {Detector: NDet + 3, Q: 100}}}
	require.NoError(t, pipeline.ProcessEvents(event))
	assert.Empty(t, event.Digits)
	assert.Empty(t, event.Clusters)

	assert.Error(t, pipeline.ProcessEvents())
}

func TestPipelineReproducible(t *testing.T) {
	config := DefaultConfiguration()
	config.NumWorkers = 2
	geo := NewGeometry(config.Geometry)
	calib := NewCalibrationSet(geo, config.Simulation)

	run := func() []Cluster {
		event := &EventType{EventID: 9, Hits: []Hit{
			hitAtPad(geo, 0, 5, 72, 1.52, 800, 1),
			hitAtPad(geo, 1, 5, 72, 2.02, 800, 1),
		}}
		require.NoError(t, NewPipeline(geo, config, calib).ProcessEvents(event))
		return event.Clusters
	}
	assert.Equal(t, run(), run())
}

func TestPipelineFastMode(t *testing.T) {
	config := testPipelineConfig()
	config.Reconstruction.FastClusterizer = true
	config.Reconstruction.FastSigmaRphi = 0
	geo := NewGeometry(config.Geometry)
	pipeline := NewPipeline(geo, config, NewCalibrationSet(geo, config.Simulation))

	hit := hitAtPad(geo, 0, 5, 72, 1.52, 300, 1)
	event := &EventType{Hits: []Hit{hit, hit}}
	require.NoError(t, pipeline.ProcessEvents(event))
	require.Len(t, event.Clusters, 1)
	assert.Equal(t, 600.0, event.Clusters[0].Q)
	assert.Equal(t, 72, event.Clusters[0].Col)
	assert.Empty(t, event.Digits)
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	config := testPipelineConfig()
	geo := NewGeometry(config.Geometry)
	w := newDetectorWorker(1, geo, config, nil)
	w.digitizer = nil

	result := w.process(DetectorJob{Detector: 0, Hits: [][]Hit{{hitAtPad(geo, 0, 5, 72, 1.52, 300, 1)}}})
	assert.Error(t, result.Err)
}
