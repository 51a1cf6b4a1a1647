// Package overpass queries OpenStreetMap features through the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/internal/resilience"
)

// DefaultEndpoint is the main public Overpass instance.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// ErrQuery is returned when Overpass answers with something that is not a
// usable result: a non-JSON body, no elements array, or a client error.
var ErrQuery = eris.New("overpass: query failed")

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// DefaultMaxResponseBytes caps how much of a response body is read. A dense
// city center at the largest radius stays well under this.
const DefaultMaxResponseBytes int64 = 64 << 20

// Client runs tag queries against Overpass.
type Client interface {
	// Query returns the features matching any of filters inside bbox, in
	// server order.
	Query(ctx context.Context, bbox geospatial.BBox, filters []Filter, kinds []Kind) ([]Element, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithEndpoint sets the interpreter URL.
func WithEndpoint(endpoint string) Option {
	return func(c *client) {
		c.endpoint = endpoint
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithQueryTimeout sets the [timeout:N] server-side budget in seconds.
func WithQueryTimeout(secs int) Option {
	return func(c *client) {
		c.queryTimeout = secs
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithMaxResponseBytes caps the response body size. Non-positive values keep
// the default.
func WithMaxResponseBytes(n int64) Option {
	return func(c *client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

type client struct {
	httpClient   *http.Client
	endpoint     string
	userAgent    string
	queryTimeout int
	limiter      *rate.Limiter
	retry        resilience.RetryConfig

	maxResponseBytes int64
}

// NewClient creates a new Overpass Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		endpoint:     DefaultEndpoint,
		userAgent:    "foodmap-cli/1.0",
		queryTimeout: 25,
		limiter:      rate.NewLimiter(1, 1),
		retry:        resilience.DefaultRetryConfig(),

		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query implements Client.
func (c *client) Query(ctx context.Context, bbox geospatial.BBox, filters []Filter, kinds []Kind) ([]Element, error) {
	if len(filters) == 0 || len(kinds) == 0 {
		return nil, eris.Wrap(ErrQuery, "overpass: at least one filter and one kind are required")
	}

	q := BuildQuery(bbox, filters, kinds, c.queryTimeout)
	zap.L().Debug("overpass: query", zap.String("ql", q))

	return resilience.Call(ctx, "overpass", c.retry, func(ctx context.Context) ([]Element, error) {
		return c.do(ctx, q)
	})
}

func (c *client) do(ctx context.Context, q string) ([]Element, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}

	reqURL := c.endpoint + "?" + url.Values{"data": {q}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.NewTransportError(ctx, err), "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, eris.Wrap(resilience.NewTransportError(ctx, err), "overpass: read body")
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, eris.Wrapf(ErrQuery, "overpass: response exceeds %d bytes", c.maxResponseBytes)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("overpass: returned status %d: %s", resp.StatusCode, truncate(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, eris.Wrapf(ErrQuery, "overpass: returned status %d: %s", resp.StatusCode, truncate(body))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(ErrQuery, "overpass: parse response: %v", err)
	}

	// Overpass reports server-side timeouts and memory exhaustion as a 200
	// with a runtime error remark; the element list is then incomplete.
	if isRuntimeError(out.Remark) {
		return nil, resilience.NewTransientError(eris.Errorf("overpass: %s", out.Remark), resp.StatusCode)
	}

	if out.Elements == nil {
		return nil, eris.Wrap(ErrQuery, "overpass: response has no elements array")
	}
	if out.Remark != "" {
		zap.L().Warn("overpass: remark", zap.String("remark", out.Remark))
	}
	return *out.Elements, nil
}

func isRuntimeError(remark string) bool {
	r := strings.ToLower(remark)
	return strings.Contains(r, "runtime error") || strings.Contains(r, "runtime remark: timeout")
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
