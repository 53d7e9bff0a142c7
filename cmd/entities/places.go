package entities

import (
	"fmt"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// PlaceHeader is the output header of the places export
var PlaceHeader = []string{"name", "coordinates", "aliases", "urls", "tags"}

// NormalizePlace flattens a place row. name is required.
func NormalizePlace(row records.Row) (records.Tuple, error) {
	name, err := row.RequireScalar("name")
	if err != nil {
		return nil, err
	}
	coordinates, err := placeCoordinates(row)
	if err != nil {
		return nil, err
	}
	aliases, err := row.Pluck("aliases", "name")
	if err != nil {
		return nil, err
	}
	urls, err := row.Pluck("urls", "url")
	if err != nil {
		return nil, err
	}
	tags, err := row.Pluck("tags", "name")
	if err != nil {
		return nil, err
	}

	return records.Tuple{
		name,
		records.OrderedList(coordinates),
		records.List(aliases),
		records.List(urls),
		records.List(tags),
	}, nil
}

// placeCoordinates returns the latitude/longitude pair, or nothing when
// either half is unknown
func placeCoordinates(row records.Row) ([]string, error) {
	items, err := row.Collection("coordinates")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("%w: coordinates has %d elements, want 2", records.ErrShape, len(items))
	}
	if items[0] == nil || items[1] == nil {
		return nil, nil
	}

	out := make([]string, 2)
	for i, item := range items {
		s, err := records.Stringify(item)
		if err != nil {
			return nil, fmt.Errorf("coordinates[%d]: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
