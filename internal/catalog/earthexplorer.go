// Package catalog queries the USGS EarthExplorer inventory for scenes.
package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/starford/timelapse/internal/geo"
)

// DefaultURL is the inventory stream endpoint for lat/long searches.
const DefaultURL = "https://earthexplorer.usgs.gov/EE/InventoryStream/latlong"

// Config holds catalog client configuration.
type Config struct {
	URL           string        `yaml:"url"`
	MaxCloudCover float64       `yaml:"max_cloud_cover"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Query selects scenes of one sensor over a bounding box within a date range.
type Query struct {
	Bounds   geo.BoundingBox
	SensorID string
	Start    time.Time
	End      time.Time
}

// YearQuery covers January 1st through December 31st of year.
func YearQuery(bounds geo.BoundingBox, sensorID string, year int) Query {
	return Query{
		Bounds:   bounds,
		SensorID: sensorID,
		Start:    time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Client is an EarthExplorer inventory client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}, logger: logger}
}

type inventory struct {
	Scenes []sceneMetadata `xml:"metaData"`
}

type sceneMetadata struct {
	SceneID        string `xml:"sceneID"`
	CloudCoverFull string `xml:"cloudCoverFull"`
}

// Scenes returns the ids of the scenes matching q whose cloud cover does not
// exceed the configured maximum, in catalog order.
func (c *Client) Scenes(ctx context.Context, q Query) ([]string, error) {
	u, err := c.queryURL(q)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("catalog: query", slog.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog: unexpected status %d: %s", resp.StatusCode, body)
	}

	var inv inventory
	if err := xml.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, fmt.Errorf("catalog: decode inventory: %w", err)
	}

	ids := make([]string, 0, len(inv.Scenes))
	for _, s := range inv.Scenes {
		cover, err := strconv.ParseFloat(s.CloudCoverFull, 64)
		if err != nil {
			c.logger.Warn("catalog: unreadable cloud cover",
				slog.String("scene_id", s.SceneID), slog.String("value", s.CloudCoverFull))
			continue
		}
		if cover > c.cfg.MaxCloudCover {
			c.logger.Debug("catalog: skipping cloudy scene",
				slog.String("scene_id", s.SceneID), slog.Float64("cloud_cover", cover))
			continue
		}
		ids = append(ids, s.SceneID)
	}
	return ids, nil
}

func (c *Client) queryURL(q Query) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("catalog: parse url: %w", err)
	}
	v := u.Query()
	v.Set("north", formatCoord(q.Bounds.North))
	v.Set("south", formatCoord(q.Bounds.South))
	v.Set("east", formatCoord(q.Bounds.East))
	v.Set("west", formatCoord(q.Bounds.West))
	v.Set("sensor", q.SensorID)
	v.Set("start_date", q.Start.Format(time.DateOnly))
	v.Set("end_date", q.End.Format(time.DateOnly))
	u.RawQuery = v.Encode()
	return u.String(), nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
