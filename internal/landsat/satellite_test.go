package landsat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/timelapse/internal/apperr"
)

func TestForYear(t *testing.T) {
	cases := []struct {
		year    int
		sensor  string
		version int
	}{
		{2020, "C", 8},
		{2013, "C", 8},
		{2012, "T", 5},
		{2003, "T", 5},
		{2002, "E", 7},
		{1999, "E", 7},
		{1998, "T", 5},
		{1984, "T", 5},
		{1983, "T", 4},
		{1982, "T", 4},
		{1981, "M", 3},
		{1978, "M", 3},
		{1977, "M", 2},
		{1975, "M", 2},
		{1974, "M", 1},
		{1972, "M", 1},
		{1900, "M", 1},
	}
	for _, c := range cases {
		got := ForYear(c.year)
		assert.Equal(t, Satellite{Sensor: c.sensor, Version: c.version}, got, "year %d", c.year)
	}
}

func TestForYear_EveryYearHasOneGeneration(t *testing.T) {
	for year := 1960; year <= 2030; year++ {
		sat := ForYear(year)
		assert.Contains(t, []int{1, 2, 3, 4, 5, 7, 8}, sat.Version, "year %d", year)
		assert.Len(t, sat.VegetationBands(), 3, "year %d", year)
	}
}

func TestVegetationBands(t *testing.T) {
	cases := []struct {
		sat  Satellite
		want []string
	}{
		{Satellite{"M", 1}, []string{"B6", "B5", "B4"}},
		{Satellite{"M", 3}, []string{"B6", "B5", "B4"}},
		{Satellite{"T", 4}, []string{"B40", "B30", "B20"}},
		{Satellite{"T", 5}, []string{"B40", "B30", "B20"}},
		{Satellite{"M", 5}, []string{"B4", "B2", "B1"}},
		{Satellite{"M", 4}, []string{"B4", "B2", "B1"}},
		{Satellite{"E", 7}, []string{"B40", "B30", "B20"}},
		{Satellite{"X", 6}, []string{"B5", "B4", "B3"}},
		{Satellite{"C", 8}, []string{"B5", "B4", "B3"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.sat.VegetationBands(), "%s", c.sat)
	}
}

func TestNaturalColorBands(t *testing.T) {
	assert.Equal(t, []string{"B30", "B20", "B10"}, Satellite{"T", 5}.NaturalColorBands())
	assert.Equal(t, []string{"B3", "B2", "B1"}, Satellite{"M", 5}.NaturalColorBands())
	assert.Equal(t, []string{"B4", "B3", "B2"}, Satellite{"C", 8}.NaturalColorBands())
	assert.Equal(t, Satellite{"C", 8}.NaturalColorBands(), Satellite{"C", 8}.Bands(CombinationNatural))
	assert.Equal(t, Satellite{"C", 8}.VegetationBands(), Satellite{"C", 8}.Bands(""))
}

func TestUrbanFalseColorBands(t *testing.T) {
	cases := []struct {
		sat  Satellite
		want []string
	}{
		{Satellite{"T", 4}, []string{"B70", "B50", "B30"}},
		{Satellite{"T", 5}, []string{"B70", "B50", "B30"}},
		{Satellite{"M", 5}, []string{"B7", "B5", "B3"}},
		{Satellite{"E", 7}, []string{"B7", "B5", "B3"}},
		{Satellite{"C", 8}, []string{"B7", "B6", "B4"}},
	}
	for _, c := range cases {
		got, err := c.sat.UrbanFalseColorBands()
		require.NoError(t, err, "%s", c.sat)
		assert.Equal(t, c.want, got, "%s", c.sat)
		assert.Equal(t, c.want, c.sat.Bands(CombinationUrban), "%s", c.sat)
		assert.NoError(t, c.sat.Supports(CombinationUrban), "%s", c.sat)
	}
}

func TestUrbanFalseColorBands_MSS(t *testing.T) {
	for v := 1; v <= 3; v++ {
		sat := Satellite{Sensor: "M", Version: v}
		_, err := sat.UrbanFalseColorBands()
		assert.ErrorIs(t, err, apperr.ErrBandsUnavailable, "version %d", v)
		assert.ErrorIs(t, sat.Supports(CombinationUrban), apperr.ErrBandsUnavailable)
		assert.Nil(t, sat.Bands(CombinationUrban))
		assert.NoError(t, sat.Supports(CombinationVegetation))
	}
}

func TestBandsAreIndependentCopies(t *testing.T) {
	sat := Satellite{"C", 8}
	bands := sat.VegetationBands()
	bands[0] = "changed"
	assert.Equal(t, "B5", sat.VegetationBands()[0])
}

func TestMetadataSensorID(t *testing.T) {
	cases := []struct {
		version int
		want    string
	}{
		{1, SensorIDMSS},
		{3, SensorIDMSS},
		{4, SensorIDMSS},
		{5, SensorIDCombined},
		{6, SensorIDCombined},
		{8, SensorIDLandsat8},
	}
	for _, c := range cases {
		got, err := Satellite{Version: c.version}.MetadataSensorID()
		require.NoError(t, err, "version %d", c.version)
		assert.Equal(t, c.want, got, "version %d", c.version)
	}
}

func TestMetadataSensorID_Unmapped(t *testing.T) {
	for _, v := range []int{7, 9} {
		_, err := Satellite{Sensor: "E", Version: v}.MetadataSensorID()
		assert.ErrorIs(t, err, apperr.ErrUnmappedSensorGeneration, "version %d", v)
	}
}

func TestProductCode(t *testing.T) {
	assert.Equal(t, "L8", Satellite{"C", 8}.ProductCode())
	assert.Equal(t, "L7", Satellite{"E", 7}.ProductCode())
	assert.Equal(t, "L5", Satellite{"T", 5}.ProductCode())
	assert.Equal(t, "LT4", Satellite{"T", 4}.ProductCode())
	assert.Equal(t, "LM2", Satellite{"M", 2}.ProductCode())
}

func TestNeedsRescale(t *testing.T) {
	assert.True(t, Satellite{"C", 8}.NeedsRescale())
	assert.False(t, Satellite{"E", 7}.NeedsRescale())
	assert.False(t, Satellite{"T", 5}.NeedsRescale())
}
