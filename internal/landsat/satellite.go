// Package landsat models Landsat satellite generations and catalog scene identifiers.
//
// Band numbering, bit depth and catalog naming changed across the Landsat
// missions; everything generation-specific is derived here from a
// (sensor code, version) pair so the rest of the pipeline never branches on it.
package landsat

import (
	"fmt"

	"github.com/starford/timelapse/internal/apperr"
)

// Catalog metadata sensor ids, as the EarthExplorer inventory names them.
const (
	SensorIDLandsat8 = "LANDSAT_8"
	SensorIDMSS      = "LANDSAT_MSS1"
	SensorIDCombined = "LANDSAT_COMBINED"
	// SensorIDETM is the catalog's Landsat 7 label. MetadataSensorID never
	// returns it; see the version 7 case there.
	SensorIDETM = "LANDSAT_ETM"
)

// Combination selects which three bands are stacked into a composite.
type Combination string

const (
	CombinationVegetation Combination = "vegetation"
	CombinationNatural    Combination = "natural"
	CombinationUrban      Combination = "urban"
)

// Satellite identifies one satellite generation.
type Satellite struct {
	Sensor  string `json:"sensor"`
	Version int    `json:"version"`
}

type yearRule struct {
	from, until int // inclusive lower bound, exclusive upper bound (0 = open)
	sat         Satellite
}

// Ordered by descending lower bound; the first rule that matches wins.
// Landsat 7 (1999-2002) is bounded above: its scan line corrector failed in
// 2003, so later years fall through to Landsat 5 until Landsat 8 launched.
var yearRules = []yearRule{
	{from: 2013, sat: Satellite{Sensor: "C", Version: 8}},
	{from: 1999, until: 2003, sat: Satellite{Sensor: "E", Version: 7}},
	{from: 1984, sat: Satellite{Sensor: "T", Version: 5}},
	{from: 1982, sat: Satellite{Sensor: "T", Version: 4}},
	{from: 1978, sat: Satellite{Sensor: "M", Version: 3}},
	{from: 1975, sat: Satellite{Sensor: "M", Version: 2}},
}

var fallbackSatellite = Satellite{Sensor: "M", Version: 1}

// ForYear returns the satellite generation preferred for imagery of the given year.
func ForYear(year int) Satellite {
	for _, r := range yearRules {
		if year >= r.from && (r.until == 0 || year < r.until) {
			return r.sat
		}
	}
	return fallbackSatellite
}

// VegetationBands returns the color-infrared band triple in R, G, B order.
func (s Satellite) VegetationBands() []string {
	switch {
	case s.Version < 4:
		return []string{"B6", "B5", "B4"}
	case s.Version <= 5 && s.Sensor == "T":
		return []string{"B40", "B30", "B20"}
	case s.Version <= 5:
		return []string{"B4", "B2", "B1"}
	case s.Version == 7:
		return []string{"B40", "B30", "B20"}
	default:
		return []string{"B5", "B4", "B3"}
	}
}

// NaturalColorBands returns the visible red, green and blue bands. MSS
// generations have no blue band and get their infrared triple instead.
func (s Satellite) NaturalColorBands() []string {
	switch {
	case s.Version < 4:
		return []string{"B6", "B5", "B4"}
	case s.Version <= 5 && s.Sensor == "T":
		return []string{"B30", "B20", "B10"}
	case s.Version <= 5:
		return []string{"B3", "B2", "B1"}
	case s.Version == 7:
		return []string{"B30", "B20", "B10"}
	default:
		return []string{"B4", "B3", "B2"}
	}
}

// UrbanFalseColorBands returns the short-wave infrared triple used to
// separate built-up areas. MSS generations carry no short-wave infrared
// band and report ErrBandsUnavailable.
func (s Satellite) UrbanFalseColorBands() ([]string, error) {
	switch {
	case s.Version < 4:
		return nil, fmt.Errorf("%w: urban false color on %s", apperr.ErrBandsUnavailable, s)
	case s.Version <= 5 && s.Sensor == "T":
		return []string{"B70", "B50", "B30"}, nil
	case s.Version <= 5, s.Version == 7:
		return []string{"B7", "B5", "B3"}, nil
	default:
		return []string{"B7", "B6", "B4"}, nil
	}
}

// Supports reports whether c can be composed from this generation's bands.
func (s Satellite) Supports(c Combination) error {
	if c == CombinationUrban {
		_, err := s.UrbanFalseColorBands()
		return err
	}
	return nil
}

// Bands returns the band triple for c, defaulting to the vegetation bands.
// It is nil when c is not supported; see Supports.
func (s Satellite) Bands(c Combination) []string {
	switch c {
	case CombinationNatural:
		return s.NaturalColorBands()
	case CombinationUrban:
		bands, _ := s.UrbanFalseColorBands()
		return bands
	default:
		return s.VegetationBands()
	}
}

// MetadataSensorID returns the catalog label used to query scenes of this
// generation. Version 7 has no label in the catalog mapping and reports
// ErrUnmappedSensorGeneration, as does anything newer than 8.
func (s Satellite) MetadataSensorID() (string, error) {
	switch {
	case s.Version == 8:
		return SensorIDLandsat8, nil
	case s.Version < 5:
		return SensorIDMSS, nil
	case s.Version < 7:
		return SensorIDCombined, nil
	default:
		return "", fmt.Errorf("%w: %s", apperr.ErrUnmappedSensorGeneration, s)
	}
}

// ProductCode is the directory name of this generation in the public archive bucket.
func (s Satellite) ProductCode() string {
	if s.Version > 4 {
		return fmt.Sprintf("L%d", s.Version)
	}
	return fmt.Sprintf("L%s%d", s.Sensor, s.Version)
}

// NeedsRescale reports whether bands are delivered above 8 bit depth.
func (s Satellite) NeedsRescale() bool {
	return s.Version > 7
}

func (s Satellite) String() string {
	return fmt.Sprintf("Landsat %d (%s)", s.Version, s.Sensor)
}
