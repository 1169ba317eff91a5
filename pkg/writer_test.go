package trd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEventAndCalibration(t *testing.T) {
	SetConfiguration(DefaultConfiguration())
	geo := NewGeometry(DefaultConfiguration().Geometry)
	params := idealSimParameters()
	_, dig := newTestDigitizer(t, params)

	digits, err := dig.MakeDigits(0, []Hit{hitAtPad(geo, 0, 5, 72, 1.52, 1000, 2)})
	require.NoError(t, err)
	event := &EventType{
		RunNumber: 3,
		EventID:   11,
		Digits:    map[int]*DetectorDigits{0: digits},
		Clusters:  []Cluster{{Detector: 0, Q: 1000, Type: ThreePad, Tracks: [3]int32{2, -1, -1}}},
	}

	fname := filepath.Join(t.TempDir(), "out.h5")
	w, err := NewWriter(fname)
	require.NoError(t, err)
	require.NoError(t, w.WriteEvent(event))
	require.NoError(t, w.WriteEvent(&EventType{RunNumber: 3, EventID: 12}))
	require.NoError(t, w.WriteCalibration(NewCalibrationSet(geo, params), "pass"))

	nEvents, nDigits, nClusters, nDet, nPad := w.Rows()
	assert.Equal(t, 2, nEvents)
	assert.Equal(t, 3, nDigits)
	assert.Equal(t, 1, nClusters)
	assert.Equal(t, len(Quantities)*NDet, nDet)
	assert.Equal(t, 0, nPad)
	require.NoError(t, w.Close())

	info, err := os.Stat(fname)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDigitsToHDF5(t *testing.T) {
	digits := NewDetectorDigits(4, 2, 3, 4)
	digits.Digits.Set(1, 2, 3, 17)
	digits.Dictionary[0].Set(1, 2, 3, 6)
	rows := digitsToHDF5(8, digits)
	require.Len(t, rows, 1)
	assert.Equal(t, DigitHDF5{
		evt_number: 8, detector: 4, row: 1, col: 2, time: 3,
		amplitude: 17, track0: 5, track1: -1, track2: -1,
	}, rows[0])
}
