// Package geocode resolves free-text postal addresses to coordinates using the
// IGN Géoplateforme service (primary) and Nominatim (optional fallback).
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/foodmap-cli/internal/config"
	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/internal/resilience"
)

// ErrAddressNotFound is returned when no provider matched the address.
var ErrAddressNotFound = eris.New("geocode: address not found")

// DefaultMaxResponseBytes caps how much of a provider response is read. A
// single-result search answer is a few kilobytes.
const DefaultMaxResponseBytes int64 = 1 << 20

// Client geocodes a single free-text address.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Provider represents a single geocoding backend. A miss is reported as
// ErrAddressNotFound.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Longitude float64
	Latitude  float64
	Label     string  // provider's canonical form of the address
	Score     float64 // match confidence in [0,1], 0 when the provider has none
	Source    string  // "ign" or "nominatim"
}

// Point returns the result as a geospatial point.
func (r *Result) Point() geospatial.Point {
	return geospatial.Point{Lon: r.Longitude, Lat: r.Latitude}
}

// Option configures the HTTP providers.
type Option func(*httpBackend)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *httpBackend) {
		b.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(b *httpBackend) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(b *httpBackend) {
		b.userAgent = ua
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(b *httpBackend) {
		b.retry = cfg
	}
}

// WithMaxResponseBytes caps the response body size. Non-positive values keep
// the default.
func WithMaxResponseBytes(n int64) Option {
	return func(b *httpBackend) {
		if n > 0 {
			b.maxResponseBytes = n
		}
	}
}

// httpBackend is the transport shared by the HTTP providers.
type httpBackend struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	retry      resilience.RetryConfig

	maxResponseBytes int64
}

func newHTTPBackend(opts []Option) httpBackend {
	b := httpBackend{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		userAgent:  "foodmap-cli/1.0",
		retry:      resilience.DefaultRetryConfig(),

		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// getJSON issues a GET and decodes a 200 response into out, retrying
// transient failures on behalf of service.
func (b *httpBackend) getJSON(ctx context.Context, service, reqURL string, out any) error {
	_, err := resilience.Call(ctx, service, b.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.getOnce(ctx, service, reqURL, out)
	})
	return err
}

func (b *httpBackend) getOnce(ctx context.Context, service, reqURL string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "geocode: %s rate limit", service)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s build request", service)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(resilience.NewTransportError(ctx, err), "geocode: %s request", service)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: %s returned status %d", service, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.maxResponseBytes+1))
	if err != nil {
		return eris.Wrapf(resilience.NewTransportError(ctx, err), "geocode: %s read body", service)
	}
	if int64(len(body)) > b.maxResponseBytes {
		return eris.Errorf("geocode: %s response exceeds %d bytes", service, b.maxResponseBytes)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "geocode: %s parse response", service)
	}
	return nil
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers []Provider
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers ...Provider) *CascadeClient {
	return &CascadeClient{providers: providers}
}

// Geocode implements Client. A provider failure moves on to the next
// provider; when nothing matched, the first failure is returned in
// preference to ErrAddressNotFound since the miss may not be genuine.
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, eris.Wrap(ErrAddressNotFound, "geocode: empty address")
	}

	var firstErr error
	for _, p := range c.providers {
		result, err := p.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, ErrAddressNotFound) {
			zap.L().Debug("cascade: no match, trying next",
				zap.String("provider", p.Name()),
			)
			continue
		}
		zap.L().Warn("cascade: provider error, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, eris.Wrapf(ErrAddressNotFound, "geocode: address %q not found", address)
}

// NewFromConfig builds the provider cascade named by cfg.Providers.
func NewFromConfig(cfg config.GeocodeConfig, retry resilience.RetryConfig, opts ...Option) (*CascadeClient, error) {
	base := []Option{WithRetry(retry)}
	if cfg.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.UserAgent))
	}
	if cfg.RateLimit > 0 {
		base = append(base, WithRateLimit(cfg.RateLimit))
	}
	if cfg.TimeoutSecs > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}))
	}
	base = append(base, opts...)

	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "ign":
			providers = append(providers, NewIGNProvider(cfg.IGNURL, base...))
		case "nominatim":
			providers = append(providers, NewNominatimProvider(cfg.NominatimURL, base...))
		default:
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, eris.New("geocode: no providers configured")
	}
	return NewCascadeClient(providers...), nil
}
