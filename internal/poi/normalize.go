package poi

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

// Base field keys set on every record before tags are merged.
const (
	FieldType = "type"
	FieldID   = "id"
)

// Record is one normalized feature. Fields holds the base fields and every
// tag, with tags taking precedence on a key collision. Geometry is a point at
// exactly (Lon, Lat).
type Record struct {
	Fields   map[string]string
	Lon      float64
	Lat      float64
	Geometry *geom.Point
}

// Get returns the field value, or "" when absent.
func (r Record) Get(key string) string {
	return r.Fields[key]
}

// Point returns the record position.
func (r Record) Point() geospatial.Point {
	return geospatial.Point{Lon: r.Lon, Lat: r.Lat}
}

// Feature turns the record back into a PointFeature that normalizes to an
// identical record.
func (r Record) Feature() PointFeature {
	id, _ := strconv.ParseInt(r.Fields[FieldID], 10, 64)
	tags := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		tags[k] = v
	}
	return PointFeature{ID: id, Kind: r.Fields[FieldType], Lon: r.Lon, Lat: r.Lat, Tags: tags}
}

// RecordSet is the normalized result of one category query.
type RecordSet struct {
	Category string
	Records  []Record
	// Skipped counts features dropped because their position could not be
	// resolved.
	Skipped int
	// Clipped counts records dropped by Clip.
	Clipped int
}

// Len returns the number of records.
func (s RecordSet) Len() int { return len(s.Records) }

// Bounds returns the extent of the records, or nil when the set is empty.
func (s RecordSet) Bounds() *geom.Bounds {
	if len(s.Records) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, r := range s.Records {
		b.Extend(r.Geometry)
	}
	return b
}

// Clip keeps only the records inside the region's disk.
func (s RecordSet) Clip(region *geospatial.Region) RecordSet {
	out := RecordSet{Category: s.Category, Skipped: s.Skipped, Clipped: s.Clipped, Records: make([]Record, 0, len(s.Records))}
	for _, r := range s.Records {
		if region.Contains(r.Point()) {
			out.Records = append(out.Records, r)
			continue
		}
		out.Clipped++
	}
	return out
}

// NormalizeFeature flattens one feature into a Record.
func NormalizeFeature(f RawFeature) (Record, error) {
	lon, lat := f.Position()
	osmType, id := f.Ref()
	if !finite(lon) || !finite(lat) {
		return Record{}, eris.Wrapf(ErrMalformedFeature, "poi: %s/%d has non-finite coordinates", osmType, id)
	}

	tags := f.TagMap()
	fields := make(map[string]string, len(tags)+2)
	fields[FieldType] = osmType
	fields[FieldID] = strconv.FormatInt(id, 10)
	for k, v := range tags {
		fields[k] = v
	}

	return Record{
		Fields:   fields,
		Lon:      lon,
		Lat:      lat,
		Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(geospatial.SRID),
	}, nil
}

// Normalize flattens features into a record set, preserving order. Features
// that cannot be normalized are logged and counted in Skipped.
func Normalize(features []RawFeature) RecordSet {
	set := RecordSet{Records: make([]Record, 0, len(features))}
	for _, f := range features {
		rec, err := NormalizeFeature(f)
		if err != nil {
			set.Skipped++
			zap.L().Warn("poi: skipping feature", zap.Error(err))
			continue
		}
		set.Records = append(set.Records, rec)
	}
	return set
}

// NormalizeElements classifies and normalizes raw Overpass elements.
func NormalizeElements(elems []overpass.Element) RecordSet {
	features := make([]RawFeature, 0, len(elems))
	skipped := 0
	for _, e := range elems {
		f, err := FromElement(e)
		if err != nil {
			skipped++
			zap.L().Warn("poi: skipping element", zap.String("type", e.Type), zap.Int64("id", e.ID), zap.Error(err))
			continue
		}
		features = append(features, f)
	}

	set := Normalize(features)
	set.Skipped += skipped
	return set
}

// CityRecord wraps the geocoded point in a Record so it renders like any
// other feature.
func CityRecord(p geospatial.Point, label string) Record {
	if label == "" {
		label = "Your Position"
	}
	return Record{
		Fields:   map[string]string{"name": label},
		Lon:      p.Lon,
		Lat:      p.Lat,
		Geometry: p.Geom(),
	}
}
