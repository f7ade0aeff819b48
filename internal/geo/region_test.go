package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/timelapse/internal/workspace"
)

var lagos = BoundingBox{North: 6.7, West: 3, South: 6.4, East: 3.7}

func TestRegionFromBox(t *testing.T) {
	r, err := RegionFromBox(lagos)
	require.NoError(t, err)
	assert.Equal(t, lagos, r.BoundingBox())

	ring := r.Polygon()[0]
	assert.True(t, ring.Closed())
	assert.Len(t, ring, 5)
}

func TestNewRegion_ClosesRing(t *testing.T) {
	r, err := NewRegion([][2]float64{{0, 0}, {1, 0}, {1, 1}})
	require.NoError(t, err)
	ring := r.Polygon()[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestNewRegion_Invalid(t *testing.T) {
	cases := map[string][][2]float64{
		"too few points": {{0, 0}, {1, 1}},
		"out of range":   {{0, 0}, {200, 0}, {1, 1}},
		"zero area":      {{0, 0}, {1, 0}, {2, 0}},
	}
	for name, coords := range cases {
		_, err := NewRegion(coords)
		assert.Error(t, err, name)
	}
}

func TestWriteCutline(t *testing.T) {
	dir, err := workspace.Open(t.TempDir())
	require.NoError(t, err)

	r, err := RegionFromBox(lagos)
	require.NoError(t, err)

	path, err := r.WriteCutline(dir)
	require.NoError(t, err)
	assert.True(t, dir.Exists(CutlineName))

	data, err := r.GeoJSON()
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, r.Polygon(), poly)
	assert.Contains(t, path, CutlineName)
}
