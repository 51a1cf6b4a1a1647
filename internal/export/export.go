// Package export writes normalized record sets in GIS and spreadsheet
// formats: GeoJSON, ESRI Shapefile and XLSX.
package export

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodmap-cli/internal/poi"
)

// WorkbookName is the file name of the combined spreadsheet.
const WorkbookName = "pois.xlsx"

// WriteAll writes <category>.geojson, <category>.shp (with .shx, .dbf, .prj
// and .cpg) for every set and one workbook with a sheet per set. It returns
// the paths written.
func WriteAll(dir string, sets []poi.RecordSet) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create directory %s", dir)
	}

	var written []string
	for _, s := range sets {
		if s.Category == "" {
			return written, eris.New("export: record set has no category")
		}
		if filepath.Base(s.Category) != s.Category || s.Category == ".." {
			return written, eris.Errorf("export: category %q is not a plain file name", s.Category)
		}

		gj := filepath.Join(dir, s.Category+".geojson")
		if err := WriteGeoJSON(gj, s); err != nil {
			return written, err
		}
		written = append(written, gj)

		shpPath := filepath.Join(dir, s.Category+".shp")
		if err := WriteShapefile(shpPath, s); err != nil {
			return written, err
		}
		written = append(written, shpPath)
	}

	wb := filepath.Join(dir, WorkbookName)
	if err := WriteXLSX(wb, sets); err != nil {
		return written, err
	}
	written = append(written, wb)

	zap.L().Info("export: wrote layers",
		zap.String("dir", dir),
		zap.Int("layers", len(sets)),
		zap.Int("files", len(written)),
	)
	return written, nil
}

// fieldKeys returns the sorted union of field keys across records.
func fieldKeys(records []poi.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Fields {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
