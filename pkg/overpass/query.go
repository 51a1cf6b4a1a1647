package overpass

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/foodmap-cli/internal/geospatial"
)

// Kind is an OSM geometry kind a statement is issued for.
type Kind string

const (
	// KindNode selects point features.
	KindNode Kind = "node"
	// KindWay selects area/path features, returned with their center.
	KindWay Kind = "way"
)

// queryOrder fixes the statement order: every node filter, then every way filter.
var queryOrder = []Kind{KindNode, KindWay}

// ParseKind accepts "node"/"point" and "way"/"area".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "node", "point":
		return KindNode, nil
	case "way", "area":
		return KindWay, nil
	default:
		return "", eris.Errorf("overpass: unknown geometry kind %q", s)
	}
}

// Filter is a tag condition. An empty Value matches any feature carrying Key.
type Filter struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// String renders the filter as an Overpass tag selector.
func (f Filter) String() string {
	if f.Value == "" {
		return `["` + escape(f.Key) + `"]`
	}
	return `["` + escape(f.Key) + `"="` + escape(f.Value) + `"]`
}

// BuildQuery renders an Overpass QL union of one statement per (kind, filter)
// restricted to bbox, ending with "out center;" so ways carry a centroid.
func BuildQuery(bbox geospatial.BBox, filters []Filter, kinds []Kind, timeoutSecs int) string {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	// Overpass orders the bbox south, west, north, east.
	area := "(" + formatCoord(bbox.MinLat) + "," + formatCoord(bbox.MinLng) + "," +
		formatCoord(bbox.MaxLat) + "," + formatCoord(bbox.MaxLng) + ")"

	var b strings.Builder
	b.WriteString("[out:json]")
	if timeoutSecs > 0 {
		b.WriteString("[timeout:" + strconv.Itoa(timeoutSecs) + "]")
	}
	b.WriteString(";(")
	for _, k := range queryOrder {
		if !want[k] {
			continue
		}
		for _, f := range filters {
			b.WriteString(string(k))
			b.WriteString(f.String())
			b.WriteString(area)
			b.WriteString(";")
		}
	}
	b.WriteString(");out center;")
	return b.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var qlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

func escape(s string) string {
	return qlEscaper.Replace(s)
}
