package geocode

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// NominatimProvider geocodes via a Nominatim instance. The public instance
// requires an identifying User-Agent and at most one request per second.
type NominatimProvider struct {
	baseURL string
	httpBackend
}

// NewNominatimProvider creates a NominatimProvider. An empty baseURL uses
// DefaultNominatimURL.
func NewNominatimProvider(baseURL string, opts ...Option) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &NominatimProvider{baseURL: baseURL, httpBackend: newHTTPBackend(opts)}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	var places []nominatimPlace
	if err := p.getJSON(ctx, "nominatim", p.baseURL+"?"+params.Encode(), &places); err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, eris.Wrapf(ErrAddressNotFound, "geocode: nominatim has no match for %q", address)
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", place.Lon)
	}

	return &Result{
		Longitude: lon,
		Latitude:  lat,
		Label:     place.DisplayName,
		Score:     place.Importance,
		Source:    "nominatim",
	}, nil
}
