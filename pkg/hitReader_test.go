package trd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellID(t *testing.T) {
	for _, tt := range []struct{ det, track int }{{0, 0}, {539, 0}, {17, 12345}} {
		det, track := decodeCellID(encodeCellID(tt.det, tt.track))
		assert.Equal(t, tt.det, det)
		assert.Equal(t, tt.track, track)
	}
}

func TestHitFileRoundTrip(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "hits.slcio")
	const wion = 23.53

	events := []*EventType{
		{RunNumber: 7, EventID: 0, Hits: []Hit{
			{Detector: 0, Track: 1, X: 306.1, Y: 54.2, Z: 238.5, Q: 1000, Time: 0.5},
			{Detector: 12, Track: 2, X: 330.2, Y: -10.0, Z: 12.5, Q: 37, Time: 0},
		}},
		{RunNumber: 7, EventID: 1},
	}

	w, err := NewHitWriter(fname, "TRDHits", wion)
	require.NoError(t, err)
	for _, evt := range events {
		require.NoError(t, w.WriteEvent(evt))
	}
	require.NoError(t, w.Close())

	r, err := NewHitReader(fname, "TRDHits", wion)
	require.NoError(t, err)
	defer r.Close()

	var got []*EventType
	for {
		evt, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, evt)
	}
	require.NoError(t, r.Err())
	require.Len(t, got, 2)

	assert.Equal(t, 7, got[0].RunNumber)
	assert.Equal(t, 1, got[1].EventID)
	assert.Empty(t, got[1].Hits)
	require.Len(t, got[0].Hits, 2)
	for i, hit := range got[0].Hits {
		want := events[0].Hits[i]
		assert.Equal(t, want.Detector, hit.Detector)
		assert.Equal(t, want.Track, hit.Track)
		assert.Equal(t, want.X, hit.X)
		assert.Equal(t, want.Y, hit.Y)
		assert.Equal(t, want.Z, hit.Z)
		assert.InEpsilon(t, want.Q, hit.Q, 1e-6)
		assert.InDelta(t, want.Time, hit.Time, 1e-6)
	}
}

func TestHitReaderMissingFile(t *testing.T) {
	_, err := NewHitReader(filepath.Join(t.TempDir(), "missing.slcio"), "TRDHits", 23.53)
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}
