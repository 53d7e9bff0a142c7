package entities

import (
	"fmt"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// ArtistHeader is the output header of the artists export
var ArtistHeader = []string{
	"name", "isni", "ipi", "musicbrainz_guid", "aliases", "tags", "artist_credits", "urls", "areas",
}

// NormalizeArtist flattens an artist row. name and guid are required.
func NormalizeArtist(row records.Row) (records.Tuple, error) {
	name, err := row.RequireScalar("name")
	if err != nil {
		return nil, err
	}
	guid, err := row.RequireScalar("guid")
	if err != nil {
		return nil, err
	}
	isni, err := row.Scalar("isni")
	if err != nil {
		return nil, err
	}
	ipi, err := row.Scalar("ipi")
	if err != nil {
		return nil, err
	}

	aliases, err := row.Pluck("aliases", "name")
	if err != nil {
		return nil, err
	}
	tags, err := row.Pluck("tags", "name")
	if err != nil {
		return nil, err
	}
	credits, err := row.Strings("artist_credits")
	if err != nil {
		return nil, err
	}
	urls, err := row.Pluck("urls", "url")
	if err != nil {
		return nil, err
	}
	areas, err := artistAreas(row)
	if err != nil {
		return nil, err
	}

	return records.Tuple{
		name,
		isni,
		ipi,
		guid,
		records.List(aliases),
		records.List(tags),
		records.List(credits),
		records.List(urls),
		records.List(areas),
	}, nil
}

// artistAreas flattens areas, begin_area and end_area into one list:
// each area's name followed by its alias names
func artistAreas(row records.Row) ([]string, error) {
	items, err := row.Collection("areas")
	if err != nil {
		return nil, err
	}

	var out []string
	for i, item := range items {
		if item == nil {
			continue
		}
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: areas[%d] is %T, not an object", records.ErrShape, i, item)
		}
		names, err := areaNames(fmt.Sprintf("areas[%d]", i), records.Row(obj))
		if err != nil {
			return nil, err
		}
		out = append(out, names...)
	}

	for _, key := range []string{"begin_area", "end_area"} {
		area, err := row.Object(key)
		if err != nil {
			return nil, err
		}
		if area == nil {
			continue
		}
		names, err := areaNames(key, area)
		if err != nil {
			return nil, err
		}
		out = append(out, names...)
	}

	return out, nil
}

func areaNames(path string, area records.Row) ([]string, error) {
	name, err := area.RequireScalar("name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	aliases, err := area.Pluck("aliases", "name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]string, 0, len(aliases)+1)
	if !name.Null {
		out = append(out, name.Values[0])
	}
	return append(out, aliases...), nil
}
