package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/foodmap-cli/internal/config"
	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/internal/poi"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"geocode", "categories"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "foodmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_Flags(t *testing.T) {
	for _, name := range []string{"address", "radius", "output", "export-dir"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "root should have --%s flag", name)
	}
	assert.Equal(t, "0", rootCmd.Flags().Lookup("radius").DefValue)
}

func TestRootCmd_PersistentPreRunE_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
search:
  radius_meters: 750
map:
  title: Lunch Map
log:
  level: info
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, 750.0, cfg.Search.RadiusMeters)
	assert.Equal(t, "Lunch Map", cfg.Map.Title)
	assert.Equal(t, []string{"ign"}, cfg.Geocode.Providers)
}

func TestRootCmd_PersistentPreRunE_LoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FOODMAP_MAP_AUTHOR=dotenv author\n"), 0o644))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("FOODMAP_MAP_AUTHOR") })

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "dotenv author", cfg.Map.Author)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FOODMAP_LOG_LEVEL", "loud")

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestPromptAddress(t *testing.T) {
	var out bytes.Buffer
	addr, err := promptAddress(strings.NewReader("  10 Rue de Rivoli, Paris \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "10 Rue de Rivoli, Paris", addr)
	assert.Equal(t, addressPrompt, out.String())
}

func TestPromptAddress_NoTrailingNewline(t *testing.T) {
	addr, err := promptAddress(strings.NewReader("Lyon"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Lyon", addr)
}

func TestPromptAddress_Empty(t *testing.T) {
	_, err := promptAddress(strings.NewReader("\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no address given")
}

// newUpstream serves both the IGN search API and the Overpass interpreter.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geocodage/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("q"), "Nowhere") {
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"geometry":{"type":"Point","coordinates":[2.3522,48.8566]},"properties":{"label":"Place de l'Hôtel de Ville 75004 Paris","score":0.96}}]}`))
	})
	mux.HandleFunc("/api/interpreter", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("data")
		var elems []map[string]any
		switch {
		case strings.Contains(q, `"shop"="supermarket"`):
			elems = []map[string]any{
				{"type": "node", "id": 1, "lat": 48.857, "lon": 2.353, "tags": map[string]string{"name": "Carrefour City", "shop": "supermarket"}},
			}
		case strings.Contains(q, `"amenity"="fast_food"`):
			elems = []map[string]any{
				{"type": "way", "id": 2, "center": map[string]float64{"lat": 48.856, "lon": 2.351}, "nodes": []int64{10, 11}, "tags": map[string]string{"amenity": "fast_food"}},
			}
		default:
			elems = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"version": 0.6, "elements": elems})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func upstreamConfig(t *testing.T, srv *httptest.Server) *config.Config {
	return &config.Config{
		Geocode: config.GeocodeConfig{
			Providers: []string{"ign"},
			IGNURL:    srv.URL + "/geocodage/search",
			RateLimit: 100,
		},
		Overpass: config.OverpassConfig{
			Endpoint:         srv.URL + "/api/interpreter",
			RateLimit:        100,
			QueryTimeoutSecs: 25,
		},
		Retry:  config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1, Multiplier: 1},
		Search: config.SearchConfig{RadiusMeters: 1000, MaxConcurrent: 2},
		Map: config.MapConfig{
			OutputPath: filepath.Join(t.TempDir(), "map.html"),
			Title:      "Food and Dining Around You",
			Zoom:       14,
		},
	}
}

func resetMapFlags(t *testing.T) {
	t.Cleanup(func() {
		mapAddress, mapRadius, mapOutput, mapExportDir = "", 0, "", ""
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
	})
}

func TestRunMap_EndToEnd(t *testing.T) {
	srv := newUpstream(t)
	oldCfg := cfg
	cfg = upstreamConfig(t, srv)
	defer func() { cfg = oldCfg }()
	resetMapFlags(t)

	mapAddress = "Place de l'Hôtel de Ville, Paris"
	mapExportDir = filepath.Join(t.TempDir(), "layers")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetContext(context.Background())

	require.NoError(t, runMap(rootCmd, nil))

	assert.Contains(t, out.String(), "Coordinates: 48.856600, 2.352200")
	assert.Contains(t, out.String(), "Map written to "+cfg.Map.OutputPath)

	html, err := os.ReadFile(cfg.Map.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Carrefour City")
	assert.Contains(t, string(html), "Unknown fast food")
	assert.Contains(t, string(html), "Restaurants")

	assert.FileExists(t, filepath.Join(mapExportDir, "stores.shp"))
	assert.FileExists(t, filepath.Join(mapExportDir, "pois.xlsx"))
}

func TestRunMap_PromptsForAddress(t *testing.T) {
	srv := newUpstream(t)
	oldCfg := cfg
	cfg = upstreamConfig(t, srv)
	defer func() { cfg = oldCfg }()
	resetMapFlags(t)

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader("Place de l'Hôtel de Ville, Paris\n"))
	rootCmd.SetOut(&out)
	rootCmd.SetContext(context.Background())

	require.NoError(t, runMap(rootCmd, nil))
	assert.True(t, strings.HasPrefix(out.String(), addressPrompt))
	assert.FileExists(t, cfg.Map.OutputPath)
}

func TestRunMap_AddressNotFound(t *testing.T) {
	srv := newUpstream(t)
	oldCfg := cfg
	cfg = upstreamConfig(t, srv)
	defer func() { cfg = oldCfg }()
	resetMapFlags(t)

	mapAddress = "Nowhere Land"
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetContext(context.Background())

	err := runMap(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoFileExists(t, cfg.Map.OutputPath)
}

func TestRunMap_InvalidConfig(t *testing.T) {
	oldCfg := cfg
	cfg = &config.Config{}
	defer func() { cfg = oldCfg }()
	resetMapFlags(t)

	err := runMap(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config:")
}

func TestGeocodeCmd(t *testing.T) {
	srv := newUpstream(t)
	oldCfg := cfg
	cfg = upstreamConfig(t, srv)
	defer func() { cfg = oldCfg }()

	var out bytes.Buffer
	geocodeCmd.SetOut(&out)
	geocodeCmd.SetContext(context.Background())
	defer geocodeCmd.SetOut(nil)

	require.NoError(t, geocodeCmd.RunE(geocodeCmd, []string{"Place", "de", "l'Hôtel", "de", "Ville"}))
	assert.Contains(t, out.String(), "48.856600, 2.352200")
	assert.Contains(t, out.String(), "source: ign")
}

func TestFormatCategories(t *testing.T) {
	region, err := geospatial.BuildRegion(examplePoint, 1000)
	require.NoError(t, err)

	var out bytes.Buffer
	formatCategories(&out, poi.DefaultCategories(), region.BBox(), 25)

	s := out.String()
	assert.Contains(t, s, "KEY")
	assert.Contains(t, s, "Food Stores")
	assert.Contains(t, s, "shopping-cart")
	assert.Contains(t, s, "# restaurants")
	assert.Contains(t, s, `node["amenity"="restaurant"]`)
	assert.Contains(t, s, "out center;")
}
