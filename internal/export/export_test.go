package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/foodmap-cli/internal/poi"
	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

func testSets() []poi.RecordSet {
	stores := poi.Normalize([]poi.RawFeature{
		poi.PointFeature{ID: 101, Kind: "node", Lon: 2.351, Lat: 48.861, Tags: map[string]string{
			"name": "Carrefour City", "shop": "supermarket", "addr:street": "Rue de Rivoli", "addr:housenumber": "10", "addr:city": "Paris",
		}},
		poi.AreaFeature{ID: 202, Center: overpass.Center{Lon: 2.352, Lat: 48.862}, Tags: map[string]string{"name": "Monoprix", "shop": "supermarket"}},
	})
	stores.Category = poi.KeyStores

	fastFood := poi.Normalize(nil)
	fastFood.Category = poi.KeyFastFood

	restaurants := poi.Normalize([]poi.RawFeature{
		poi.PointFeature{ID: 303, Kind: "node", Lon: 2.355, Lat: 48.866, Tags: map[string]string{"name": "Café Étienne", "cuisine": "french"}},
	})
	restaurants.Category = poi.KeyRestaurants

	return []poi.RecordSet{stores, fastFood, restaurants}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	files, err := WriteAll(dir, testSets())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "stores.geojson"),
		filepath.Join(dir, "stores.shp"),
		filepath.Join(dir, "fast_food.geojson"),
		filepath.Join(dir, "fast_food.shp"),
		filepath.Join(dir, "restaurants.geojson"),
		filepath.Join(dir, "restaurants.shp"),
		filepath.Join(dir, WorkbookName),
	}, files)

	for _, ext := range []string{".shx", ".dbf", ".prj", ".cpg"} {
		_, err := os.Stat(filepath.Join(dir, "stores"+ext))
		assert.NoError(t, err, ext)
	}
}

func TestWriteAll_MissingCategory(t *testing.T) {
	_, err := WriteAll(t.TempDir(), []poi.RecordSet{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no category")
}

func TestWriteAll_CategoryOutsideDir(t *testing.T) {
	for _, key := range []string{"../escaped", "sub/escaped", ".."} {
		t.Run(key, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "layers")

			written, err := WriteAll(dir, []poi.RecordSet{{Category: key}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not a plain file name")
			assert.Empty(t, written)
			assert.NoFileExists(t, filepath.Join(root, "escaped.geojson"))
			assert.NoFileExists(t, filepath.Join(dir, "sub", "escaped.geojson"))
		})
	}
}

func TestWriteGeoJSON(t *testing.T) {
	sets := testSets()
	path := filepath.Join(t.TempDir(), "stores.geojson")
	require.NoError(t, WriteGeoJSON(path, sets[0]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "node/101", f.ID)
	assert.Equal(t, "Carrefour City", f.Properties["name"])
	assert.Equal(t, "Rue de Rivoli", f.Properties["addr:street"])
	pt, ok := f.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 2.351, pt.X())
	assert.Equal(t, 48.861, pt.Y())

	assert.Equal(t, "way/202", fc.Features[1].ID)
	require.NotNil(t, fc.BBox)
	assert.Equal(t, 2.351, fc.BBox.Min(0))
	assert.Equal(t, 48.862, fc.BBox.Max(1))
}

func TestWriteGeoJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast_food.geojson")
	require.NoError(t, WriteGeoJSON(path, testSets()[1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
	assert.Contains(t, string(data), `"features": []`)
}

func TestWriteShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.shp")
	require.NoError(t, WriteShapefile(path, testSets()[0]))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range r.Fields() {
		fieldIdx[strings.TrimRight(f.String(), "\x00")] = i
	}
	for _, name := range []string{"NAME", "STREET", "HOUSENUM", "CITY", "OSM_TYPE", "OSM_ID"} {
		assert.Contains(t, fieldIdx, name)
	}

	var names, types []string
	var xs []float64
	for r.Next() {
		_, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		xs = append(xs, p.X)
		names = append(names, strings.TrimSpace(r.Attribute(fieldIdx["NAME"])))
		types = append(types, strings.TrimSpace(r.Attribute(fieldIdx["OSM_TYPE"])))
	}
	assert.Equal(t, []float64{2.351, 2.352}, xs)
	assert.Equal(t, []string{"Carrefour City", "Monoprix"}, names)
	assert.Equal(t, []string{"node", "way"}, types)

	prj, err := os.ReadFile(strings.TrimSuffix(path, ".shp") + ".prj")
	require.NoError(t, err)
	assert.Contains(t, string(prj), "WGS_1984")
}

func TestWriteShapefile_BadExtension(t *testing.T) {
	err := WriteShapefile(filepath.Join(t.TempDir(), "stores.dbf"), testSets()[0])
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), WorkbookName)
	require.NoError(t, WriteXLSX(path, testSets()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)

	stores := f.Sheet[poi.KeyStores]
	require.NotNil(t, stores)
	require.Len(t, stores.Rows, 3)

	header := make([]string, len(stores.Rows[0].Cells))
	for i, c := range stores.Rows[0].Cells {
		header[i] = c.String()
	}
	assert.Equal(t, []string{"lon", "lat", "addr:city", "addr:housenumber", "addr:street", "id", "name", "shop", "type"}, header)

	lon, err := stores.Rows[1].Cells[0].Float()
	require.NoError(t, err)
	assert.Equal(t, 2.351, lon)
	assert.Equal(t, "Carrefour City", stores.Rows[1].Cells[6].String())
	assert.Equal(t, "", stores.Rows[2].Cells[2].String(), "missing fields are empty")

	ff := f.Sheet[poi.KeyFastFood]
	require.NotNil(t, ff)
	require.Len(t, ff.Rows, 1, "empty set still has a header")

	rest := f.Sheet[poi.KeyRestaurants]
	require.NotNil(t, rest)
	assert.Equal(t, "Café Étienne", rest.Rows[1].Cells[4].String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "é" is two bytes; cutting inside it drops the partial rune.
	assert.Equal(t, "Caf", truncate("Café", 4))
	assert.Equal(t, "Café", truncate("Café", 5))
}

func TestFieldKeys(t *testing.T) {
	keys := fieldKeys([]poi.Record{
		{Fields: map[string]string{"b": "1", "a": "2"}},
		{Fields: map[string]string{"c": "3", "a": "4"}},
	})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Empty(t, fieldKeys(nil))
}
