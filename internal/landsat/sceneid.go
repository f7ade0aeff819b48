package landsat

import (
	"fmt"
	"strings"

	"github.com/starford/timelapse/internal/apperr"
)

// SceneIDLength is the width of a pre-collection Landsat scene identifier,
// e.g. LT50390351985250XXX04.
const SceneIDLength = 21

// SceneID is a parsed catalog scene identifier. Every field is the literal
// substring of Token at its fixed offset.
type SceneID struct {
	Token          string `json:"id"`
	Mission        string `json:"mission"`
	Sensor         string `json:"sensor"`
	Version        string `json:"version"`
	Path           string `json:"path"`
	Row            string `json:"row"`
	Year           string `json:"year"`
	Day            string `json:"day"`
	GroundStation  string `json:"ground_station"`
	ArchiveVersion string `json:"archive_version"`
}

// ArchiveRef addresses one scene archive in the public bucket.
type ArchiveRef struct {
	ProductCode string
	Path        string
	Row         string
	SceneID     string
}

// ParseSceneID splits token into its fixed-width fields. Surrounding
// whitespace is ignored; anything that is not exactly SceneIDLength
// characters with a numeric version fails with ErrMalformedIdentifier.
func ParseSceneID(token string) (SceneID, error) {
	token = strings.TrimSpace(token)
	if len(token) != SceneIDLength {
		return SceneID{}, fmt.Errorf("%w: %q has %d characters, want %d",
			apperr.ErrMalformedIdentifier, token, len(token), SceneIDLength)
	}
	switch v := token[2]; {
	case v < '0' || v > '9':
		return SceneID{}, fmt.Errorf("%w: %q has non-numeric version %q",
			apperr.ErrMalformedIdentifier, token, string(v))
	case v == '6' || v > '8':
		// Landsat 6 never reached orbit and nothing newer than 8 is archived.
		return SceneID{}, fmt.Errorf("%w: %q: no Landsat %c imagery: %w",
			apperr.ErrMalformedIdentifier, token, v, apperr.ErrUnmappedSensorGeneration)
	}
	return SceneID{
		Token:          token,
		Mission:        token[0:1],
		Sensor:         token[1:2],
		Version:        token[2:3],
		Path:           token[3:6],
		Row:            token[6:9],
		Year:           token[9:13],
		Day:            token[13:16],
		GroundStation:  token[16:19],
		ArchiveVersion: token[19:21],
	}, nil
}

// Satellite returns the generation that captured the scene.
func (id SceneID) Satellite() Satellite {
	return Satellite{Sensor: id.Sensor, Version: int(id.Version[0] - '0')}
}

// ArchiveRef returns the archive address of the scene.
func (id SceneID) ArchiveRef() ArchiveRef {
	return ArchiveRef{
		ProductCode: id.Satellite().ProductCode(),
		Path:        id.Path,
		Row:         id.Row,
		SceneID:     id.Token,
	}
}

func (id SceneID) String() string {
	return id.Token
}
