package trd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorIndices(t *testing.T) {
	geo := NewGeometry(GeometryParameters{})
	for _, det := range []int{0, 1, 29, 30, 301, NDet - 1} {
		p, c, s := geo.Plane(det), geo.Chamber(det), geo.Sector(det)
		assert.Equal(t, det, geo.Detector(p, c, s))
	}
	assert.Equal(t, 30, geo.TimeMax())
	assert.Equal(t, 12*NCol, geo.NPads(geo.Detector(3, 2, 0)))
	assert.Equal(t, 16*NCol, geo.NPads(geo.Detector(3, 4, 0)))
}

func TestHoles(t *testing.T) {
	geo := NewGeometry(DefaultConfiguration().Geometry)
	assert.False(t, geo.IsActive(geo.Detector(5, 2, 14)))
	assert.True(t, geo.IsActive(geo.Detector(5, 1, 14)))
	assert.False(t, geo.IsActive(-1))
	assert.NoError(t, geo.CheckDetector(0))
	assert.Error(t, geo.CheckDetector(geo.Detector(0, 2, 15)))
}

func TestRotateRoundTrip(t *testing.T) {
	geo := NewGeometry(GeometryParameters{})
	det := geo.Detector(2, 1, 7)
	local := [3]float64{320, 12.3, -45.6}
	back := geo.RotateBack(det, geo.Rotate(det, local))
	for i := range local {
		assert.InDelta(t, local[i], back[i], 1e-9)
	}
}

func TestFindDetector(t *testing.T) {
	geo := NewGeometry(DefaultConfiguration().Geometry)
	for _, det := range []int{0, geo.Detector(4, 3, 9), geo.Detector(5, 2, 17)} {
		hit := hitAtPad(geo, det, 2, 100, 1.0, 1, 0)
		assert.Equal(t, det, geo.FindDetector([3]float64{hit.X, hit.Y, hit.Z}))
	}
	assert.Equal(t, -1, geo.FindDetector([3]float64{0, 0, 0}))
}

func TestPadPlaneNumbers(t *testing.T) {
	geo := NewGeometry(GeometryParameters{})
	pp := geo.PadPlane(0, 2)
	assert.Equal(t, 0, pp.PadRowNumber(pp.Row0+0.01))
	assert.Equal(t, -1, pp.PadRowNumber(pp.Row0-0.01))
	assert.Equal(t, NCol-1, pp.PadColNumber(-pp.Col0-0.01))
	assert.Equal(t, -1, pp.PadColNumber(-pp.Col0+0.01))
}
