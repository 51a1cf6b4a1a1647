// Package poi turns Overpass elements into normalized point records.
//
// Elements are classified once, at parse time, into a PointFeature (direct
// coordinates) or an AreaFeature (a way carrying its computed center). The
// normalizer then flattens tags on top of the base fields and resolves a
// single point geometry per record.
package poi

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

// ErrMalformedFeature is returned for a feature whose position cannot be
// resolved.
var ErrMalformedFeature = eris.New("poi: malformed feature")

// RawFeature is a parsed Overpass element with a known way of resolving its
// position. Implemented by PointFeature and AreaFeature only.
type RawFeature interface {
	// Ref returns the OSM element type and id.
	Ref() (osmType string, id int64)
	// Position returns the resolved longitude and latitude.
	Position() (lon, lat float64)
	// TagMap returns the feature's free-form tags. May be nil.
	TagMap() map[string]string

	sealed()
}

// PointFeature is a feature positioned by its own coordinates, normally a node.
type PointFeature struct {
	ID   int64
	Kind string
	Lon  float64
	Lat  float64
	Tags map[string]string
}

// Ref implements RawFeature.
func (f PointFeature) Ref() (string, int64) { return f.Kind, f.ID }

// Position implements RawFeature.
func (f PointFeature) Position() (float64, float64) { return f.Lon, f.Lat }

// TagMap implements RawFeature.
func (f PointFeature) TagMap() map[string]string { return f.Tags }

func (PointFeature) sealed() {}

// AreaFeature is a way positioned by the center Overpass computed for it.
type AreaFeature struct {
	ID     int64
	Center overpass.Center
	Nodes  []int64
	Tags   map[string]string
}

// Ref implements RawFeature.
func (f AreaFeature) Ref() (string, int64) { return string(overpass.KindWay), f.ID }

// Position implements RawFeature.
func (f AreaFeature) Position() (float64, float64) { return f.Center.Lon, f.Center.Lat }

// TagMap implements RawFeature.
func (f AreaFeature) TagMap() map[string]string { return f.Tags }

func (AreaFeature) sealed() {}

// FromElement classifies an Overpass element. A way with a center becomes an
// AreaFeature and any direct coordinates on it are ignored; anything else
// needs direct coordinates to become a PointFeature.
func FromElement(e overpass.Element) (RawFeature, error) {
	if e.Type == string(overpass.KindWay) && e.Center != nil {
		if !finite(e.Center.Lon) || !finite(e.Center.Lat) {
			return nil, eris.Wrapf(ErrMalformedFeature, "poi: %s/%d has a non-finite center", e.Type, e.ID)
		}
		return AreaFeature{ID: e.ID, Center: *e.Center, Nodes: e.Nodes, Tags: e.Tags}, nil
	}

	if !e.HasCoordinates() {
		return nil, eris.Wrapf(ErrMalformedFeature, "poi: %s/%d has neither center nor coordinates", e.Type, e.ID)
	}
	if !finite(*e.Lon) || !finite(*e.Lat) {
		return nil, eris.Wrapf(ErrMalformedFeature, "poi: %s/%d has non-finite coordinates", e.Type, e.ID)
	}
	return PointFeature{ID: e.ID, Kind: e.Type, Lon: *e.Lon, Lat: *e.Lat, Tags: e.Tags}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
