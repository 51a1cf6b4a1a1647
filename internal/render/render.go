// Package render writes the interactive Leaflet map for a run.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/foodmap-cli/internal/poi"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	pageTmpl  = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))
	popupTmpl = template.Must(template.New("popup").Parse(
		`<b>Name:</b> {{.Name}}<br><b>Address:</b> {{.Street}} {{.HouseNumber}}<br><b>City:</b> {{.City}}`))
)

// Defaults applied to a zero Map.
const (
	DefaultTitle       = "Food and Dining Around You"
	DefaultTileURL     = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = "&copy; OpenStreetMap contributors"
	DefaultZoom        = 14
	dateLayout         = "02/01/2006"
)

// Layer is one category and its records.
type Layer struct {
	Category poi.Category
	Set      poi.RecordSet
}

// Map is everything the page needs.
type Map struct {
	Title       string
	Author      string
	Date        time.Time
	TileURL     string
	Attribution string
	Zoom        int
	City        poi.Record
	Layers      []Layer
}

type cityData struct {
	Label  string
	LatLng template.JS
	Popup  string
}

type layerData struct {
	Key     string
	Label   string
	Color   string
	Icon    string
	Count   int
	GeoJSON template.JS
}

type pageData struct {
	Title       string
	Author      string
	Date        string
	TileURL     string
	Attribution string
	Zoom        int
	City        cityData
	Layers      []layerData
	// Viewport fits every category marker, or centres on the city when all
	// layers are empty.
	Viewport template.JS
}

type popupData struct {
	Name        string
	Street      string
	HouseNumber string
	City        string
}

// Render writes the map page to w.
func Render(w io.Writer, m Map) error {
	data, err := buildPage(m)
	if err != nil {
		return err
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return eris.Wrap(err, "render: execute template")
	}
	return nil
}

// WriteFile renders the map to path, creating parent directories. The file
// is written to a temporary sibling first so a failed render never leaves a
// truncated map behind.
func WriteFile(path string, m Map) error {
	var buf bytes.Buffer
	if err := Render(&buf, m); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "render: create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".map-*.html")
	if err != nil {
		return eris.Wrap(err, "render: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "render: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "render: close temp file")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrap(err, "render: chmod temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "render: rename to %s", path)
	}
	return nil
}

func buildPage(m Map) (*pageData, error) {
	if m.City.Geometry == nil {
		return nil, eris.New("render: city record has no geometry")
	}

	data := &pageData{
		Title:       orDefault(m.Title, DefaultTitle),
		Author:      m.Author,
		TileURL:     orDefault(m.TileURL, DefaultTileURL),
		Attribution: orDefault(m.Attribution, DefaultAttribution),
		Zoom:        m.Zoom,
		Layers:      make([]layerData, 0, len(m.Layers)),
	}
	if data.Zoom <= 0 {
		data.Zoom = DefaultZoom
	}
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	data.Date = date.Format(dateLayout)

	cityLabel := "Your Position"
	cityPopup, err := popupHTML(popupData{Name: orDefault(m.City.Get("name"), cityLabel)})
	if err != nil {
		return nil, err
	}
	cityLatLng := latLng(m.City.Lat, m.City.Lon)
	data.City = cityData{Label: cityLabel, LatLng: template.JS(cityLatLng), Popup: cityPopup}

	bounds := geom.NewBounds(geom.XY)
	anyMarker := false
	for _, l := range m.Layers {
		fc, err := layerFeatures(l)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(fc)
		if err != nil {
			return nil, eris.Wrapf(err, "render: encode layer %s", l.Category.Key)
		}
		data.Layers = append(data.Layers, layerData{
			Key:     l.Category.Key,
			Label:   l.Category.Label,
			Color:   l.Category.Color,
			Icon:    l.Category.Icon,
			Count:   l.Set.Len(),
			GeoJSON: template.JS(raw), //nolint:gosec // json.Marshal escapes <, > and &
		})
		if b := l.Set.Bounds(); b != nil {
			bounds.Extend(b.Polygon())
			anyMarker = true
		}
	}

	if anyMarker {
		data.Viewport = template.JS("map.fitBounds([" +
			latLng(bounds.Min(1), bounds.Min(0)) + ", " + latLng(bounds.Max(1), bounds.Max(0)) +
			"], {maxZoom: 18});")
	} else {
		data.Viewport = template.JS("map.setView(" + cityLatLng + ", " + strconv.Itoa(data.Zoom) + ");")
	}
	return data, nil
}

// layerFeatures encodes a layer as a GeoJSON FeatureCollection whose
// features carry a pre-escaped popup.
func layerFeatures(l Layer) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, l.Set.Len())}
	for _, r := range l.Set.Records {
		popup, err := popupHTML(popupData{
			Name:        l.Category.DisplayName(r),
			Street:      r.Get("addr:street"),
			HouseNumber: r.Get("addr:housenumber"),
			City:        r.Get("addr:city"),
		})
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.Get(poi.FieldType) + "/" + r.Get(poi.FieldID),
			Geometry: r.Geometry,
			Properties: map[string]any{
				"name":  l.Category.DisplayName(r),
				"popup": popup,
			},
		})
	}
	return fc, nil
}

func popupHTML(p popupData) (string, error) {
	var sb strings.Builder
	if err := popupTmpl.Execute(&sb, p); err != nil {
		return "", eris.Wrap(err, "render: execute popup template")
	}
	return sb.String(), nil
}

func latLng(lat, lon float64) string {
	return "[" + strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lon, 'f', -1, 64) + "]"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
