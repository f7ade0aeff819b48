package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/timelapse/internal/geo"
)

const sampleInventory = `<?xml version="1.0" encoding="UTF-8"?>
<searchResponse xmlns="http://upe.ldcm.usgs.gov/schema/metadata">
  <metaData>
    <sceneID>LC81910552013150LGN00</sceneID>
    <cloudCoverFull>3.21</cloudCoverFull>
  </metaData>
  <metaData>
    <sceneID>LC81910552013166LGN00</sceneID>
    <cloudCoverFull>78.50</cloudCoverFull>
  </metaData>
  <metaData>
    <sceneID>LC81910552013182LGN00</sceneID>
    <cloudCoverFull>10</cloudCoverFull>
  </metaData>
  <metaData>
    <sceneID>LC81910552013198LGN00</sceneID>
    <cloudCoverFull>n/a</cloudCoverFull>
  </metaData>
</searchResponse>`

var lagos = geo.BoundingBox{North: 6.7, West: 3, South: 6.4, East: 3.7}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL + "/EE/InventoryStream/latlong", MaxCloudCover: 10},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScenes_FiltersCloudCover(t *testing.T) {
	var query map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(sampleInventory))
	})

	ids, err := c.Scenes(context.Background(), YearQuery(lagos, "LANDSAT_8", 2013))
	require.NoError(t, err)
	assert.Equal(t, []string{"LC81910552013150LGN00", "LC81910552013182LGN00"}, ids)

	assert.Equal(t, map[string]string{
		"north":      "6.7",
		"south":      "6.4",
		"east":       "3.7",
		"west":       "3",
		"sensor":     "LANDSAT_8",
		"start_date": "2013-01-01",
		"end_date":   "2013-12-31",
	}, query)
}

func TestScenes_EmptyInventory(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<searchResponse xmlns="http://upe.ldcm.usgs.gov/schema/metadata"/>`))
	})
	ids, err := c.Scenes(context.Background(), YearQuery(lagos, "LANDSAT_MSS1", 1980))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestScenes_HTTPError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	_, err := c.Scenes(context.Background(), YearQuery(lagos, "LANDSAT_8", 2014))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestScenes_BadXML(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<searchResponse><metaData>"))
	})
	_, err := c.Scenes(context.Background(), YearQuery(lagos, "LANDSAT_8", 2014))
	assert.Error(t, err)
}
