package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/foodmap-cli/internal/poi"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// WriteXLSX writes one sheet per set. Columns are lon, lat, then the sorted
// union of the set's field keys.
func WriteXLSX(path string, sets []poi.RecordSet) error {
	f := xlsx.NewFile()

	for _, s := range sets {
		name := s.Category
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}

		keys := fieldKeys(s.Records)

		header := sheet.AddRow()
		header.AddCell().SetString("lon")
		header.AddCell().SetString("lat")
		for _, k := range keys {
			header.AddCell().SetString(k)
		}

		for _, r := range s.Records {
			row := sheet.AddRow()
			row.AddCell().SetFloat(r.Lon)
			row.AddCell().SetFloat(r.Lat)
			for _, k := range keys {
				row.AddCell().SetString(r.Get(k))
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
