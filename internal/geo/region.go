// Package geo holds the study area: a region-of-interest polygon used both
// as the catalog bounding box and as the crop cutline for reprojection.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CutlineName is the file the region is written to in each year directory.
const CutlineName = "cutline.geojson"

// BoundingBox is a lon/lat box in the order the catalog expects.
type BoundingBox struct {
	North float64 `json:"north"`
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
}

// Region is a single-ring lon/lat polygon.
type Region struct {
	polygon orb.Polygon
}

// NewRegion builds a region from a ring of [lon, lat] pairs. An open ring is
// closed automatically.
func NewRegion(coords [][2]float64) (Region, error) {
	if len(coords) < 3 {
		return Region{}, fmt.Errorf("geo: region needs at least 3 points, got %d", len(coords))
	}
	ring := make(orb.Ring, 0, len(coords)+1)
	for i, c := range coords {
		lon, lat := c[0], c[1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return Region{}, fmt.Errorf("geo: point %d (%g, %g) out of range", i, lon, lat)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return Region{}, fmt.Errorf("geo: region needs at least 3 distinct points")
	}
	b := ring.Bound()
	if b.Left() == b.Right() || b.Bottom() == b.Top() {
		return Region{}, fmt.Errorf("geo: region has zero area")
	}
	return Region{polygon: orb.Polygon{ring}}, nil
}

// RegionFromBox returns the rectangle covered by b.
func RegionFromBox(b BoundingBox) (Region, error) {
	return NewRegion([][2]float64{
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
		{b.West, b.South},
	})
}

// Polygon returns the underlying polygon.
func (r Region) Polygon() orb.Polygon {
	return r.polygon
}

// BoundingBox returns the envelope of the region.
func (r Region) BoundingBox() BoundingBox {
	b := r.polygon.Bound()
	return BoundingBox{
		North: b.Top(),
		West:  b.Left(),
		South: b.Bottom(),
		East:  b.Right(),
	}
}

// GeoJSON encodes the region as a one-feature collection, the form the
// reprojection tool accepts as a cutline.
func (r Region) GeoJSON() ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(r.polygon)
	f.Properties["name"] = "region_of_interest"
	fc.Append(f)
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("geo: encode cutline: %w", err)
	}
	return data, nil
}

// Writer is the subset of workspace.FS needed to persist a cutline.
type Writer interface {
	Write(name string, content []byte) error
	Path(name string) (string, error)
}

// WriteCutline writes the region into dir and returns its absolute path.
func (r Region) WriteCutline(dir Writer) (string, error) {
	data, err := r.GeoJSON()
	if err != nil {
		return "", err
	}
	if err := dir.Write(CutlineName, data); err != nil {
		return "", err
	}
	return dir.Path(CutlineName)
}
