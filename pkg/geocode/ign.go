package geocode

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

// DefaultIGNURL is the Géoplateforme address search endpoint.
const DefaultIGNURL = "https://data.geopf.fr/geocodage/search"

// ignResponse is the GeoJSON FeatureCollection returned by the IGN search API.
type ignResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Label    string  `json:"label"`
			Score    float64 `json:"score"`
			City     string  `json:"city"`
			Postcode string  `json:"postcode"`
		} `json:"properties"`
	} `json:"features"`
}

// IGNProvider geocodes French addresses via the IGN Géoplateforme.
type IGNProvider struct {
	baseURL string
	httpBackend
}

// NewIGNProvider creates an IGNProvider. An empty baseURL uses DefaultIGNURL.
func NewIGNProvider(baseURL string, opts ...Option) *IGNProvider {
	if baseURL == "" {
		baseURL = DefaultIGNURL
	}
	return &IGNProvider{baseURL: baseURL, httpBackend: newHTTPBackend(opts)}
}

// Name implements Provider.
func (p *IGNProvider) Name() string { return "ign" }

// Geocode implements Provider.
func (p *IGNProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"q":     {address},
		"limit": {"1"},
	}

	var resp ignResponse
	if err := p.getJSON(ctx, "ign", p.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Features) == 0 {
		return nil, eris.Wrapf(ErrAddressNotFound, "geocode: ign has no match for %q", address)
	}

	f := resp.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, eris.Errorf("geocode: ign feature for %q has no coordinates", address)
	}

	return &Result{
		Longitude: f.Geometry.Coordinates[0],
		Latitude:  f.Geometry.Coordinates[1],
		Label:     f.Properties.Label,
		Score:     f.Properties.Score,
		Source:    "ign",
	}, nil
}
