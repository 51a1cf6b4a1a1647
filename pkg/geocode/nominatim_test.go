package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocode_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "foodmap-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, `[{"lat": "47.2184", "lon": "-1.5536", "display_name": "Nantes, Loire-Atlantique, France", "importance": 0.8}]`)
	}))
	defer srv.Close()

	opts := append(testOptions(newRewriteClient(srv.URL, "https://nominatim.openstreetmap.org")), WithUserAgent("foodmap-test"))
	p := NewNominatimProvider("", opts...)

	result, err := p.Geocode(context.Background(), "Nantes")
	require.NoError(t, err)
	assert.InDelta(t, 47.2184, result.Latitude, 1e-9)
	assert.InDelta(t, -1.5536, result.Longitude, 1e-9)
	assert.Equal(t, "Nantes, Loire-Atlantique, France", result.Label)
	assert.Equal(t, "nominatim", result.Source)
}

func TestNominatimGeocode_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL+"/search", testOptions(http.DefaultClient)...)
	_, err := p.Geocode(context.Background(), "zzz")
	assert.True(t, errors.Is(err, ErrAddressNotFound))
}

func TestNominatimGeocode_BadCoordinate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat": "north", "lon": "2.0"}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL+"/search", testOptions(http.DefaultClient)...)
	_, err := p.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim parse lat")
}
