// Package entities describes the MusicBrainz record kinds the exporter extracts:
// their output header, the SQL script producing them and how a raw JSON row is
// flattened into a tuple.
package entities

import (
	"errors"
	"fmt"
	"sort"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// ErrUnknownEntity is returned when an unsupported entity name is requested
var ErrUnknownEntity = errors.New("unknown entity")

// Entity names
const (
	Artists = "artists"
	Places  = "places"
)

// NormalizeFunc flattens one raw row into a tuple matching the entity header
type NormalizeFunc func(row records.Row) (records.Tuple, error)

// Entity is one independent extraction
type Entity struct {
	Name      string
	Header    []string
	SQLFile   string // file name under the SQL scripts directory
	FileStem  string // replaces {entity} in output paths
	Normalize NormalizeFunc
}

var registry = map[string]Entity{
	Artists: {
		Name:      Artists,
		Header:    ArtistHeader,
		SQLFile:   "extract_artists.sql",
		FileStem:  "artist",
		Normalize: NormalizeArtist,
	},
	Places: {
		Name:      Places,
		Header:    PlaceHeader,
		SQLFile:   "extract_places.sql",
		FileStem:  "places",
		Normalize: NormalizePlace,
	},
}

// Get returns the entity registered under name
func Get(name string) (Entity, error) {
	e, ok := registry[name]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// Names returns all registered entity names, in the default run order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
