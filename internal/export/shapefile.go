package export

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/foodmap-cli/internal/poi"
)

// wgs84PRJ is the ESRI WKT for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// dbfColumn maps a record field to a DBF string column.
type dbfColumn struct {
	name  string
	size  uint8
	value func(poi.Record) string
}

var dbfColumns = []dbfColumn{
	{"NAME", 254, func(r poi.Record) string { return r.Get("name") }},
	{"STREET", 254, func(r poi.Record) string { return r.Get("addr:street") }},
	{"HOUSENUM", 16, func(r poi.Record) string { return r.Get("addr:housenumber") }},
	{"CITY", 100, func(r poi.Record) string { return r.Get("addr:city") }},
	{"OSM_TYPE", 8, func(r poi.Record) string { return r.Get(poi.FieldType) }},
	{"OSM_ID", 20, func(r poi.Record) string { return r.Get(poi.FieldID) }},
}

// WriteShapefile writes the set as a POINT shapefile at path (which must end
// in .shp) plus its .shx, .dbf, .prj and .cpg sidecars. Attribute values
// longer than their column are truncated at a rune boundary.
func WriteShapefile(path string, s poi.RecordSet) error {
	if !strings.HasSuffix(path, ".shp") {
		return eris.Errorf("export: shapefile path %s must end in .shp", path)
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}

	fields := make([]shp.Field, len(dbfColumns))
	for i, c := range dbfColumns {
		fields[i] = shp.StringField(c.name, c.size)
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return eris.Wrapf(err, "export: set dbf fields for %s", path)
	}

	for _, r := range s.Records {
		row := int(w.Write(&shp.Point{X: r.Lon, Y: r.Lat}))
		for i, c := range dbfColumns {
			if err := w.WriteAttribute(row, i, truncate(c.value(r), int(c.size))); err != nil {
				w.Close()
				return eris.Wrapf(err, "export: write %s attribute %s", path, c.name)
			}
		}
	}
	w.Close()

	base := strings.TrimSuffix(path, ".shp")
	if err := os.WriteFile(base+".prj", []byte(wgs84PRJ), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s.prj", base)
	}
	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s.cpg", base)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
