package export

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/foodmap-cli/internal/poi"
)

// FeatureCollection converts a record set into GeoJSON features carrying
// every record field as a property.
func FeatureCollection(s poi.RecordSet) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		BBox:     s.Bounds(),
		Features: make([]*geojson.Feature, 0, s.Len()),
	}
	for _, r := range s.Records {
		props := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			props[k] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Get(poi.FieldType) + "/" + r.Get(poi.FieldID),
			Geometry:   r.Geometry,
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the set as an indented GeoJSON FeatureCollection.
func WriteGeoJSON(path string, s poi.RecordSet) error {
	raw, err := json.Marshal(FeatureCollection(s))
	if err != nil {
		return eris.Wrapf(err, "export: encode %s geojson", s.Category)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return eris.Wrapf(err, "export: indent %s geojson", s.Category)
	}
	buf.WriteByte('\n')

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
