package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/foodmap-cli/internal/config"
	"github.com/sells-group/foodmap-cli/internal/pipeline"
	"github.com/sells-group/foodmap-cli/internal/poi"
	"github.com/sells-group/foodmap-cli/internal/resilience"
	"github.com/sells-group/foodmap-cli/pkg/geocode"
	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

func initGeocoder(c *config.Config) (geocode.Client, error) {
	gc, err := geocode.NewFromConfig(c.Geocode, resilience.NewRetryConfig(c.Retry))
	if err != nil {
		return nil, eris.Wrap(err, "init geocoder")
	}
	return gc, nil
}

func initOverpass(c *config.Config) overpass.Client {
	opts := []overpass.Option{
		overpass.WithEndpoint(c.Overpass.Endpoint),
		overpass.WithRetry(resilience.NewRetryConfig(c.Retry)),
	}
	if c.Overpass.UserAgent != "" {
		opts = append(opts, overpass.WithUserAgent(c.Overpass.UserAgent))
	}
	if c.Overpass.RateLimit > 0 {
		opts = append(opts, overpass.WithRateLimit(c.Overpass.RateLimit))
	}
	if c.Overpass.QueryTimeoutSecs > 0 {
		opts = append(opts, overpass.WithQueryTimeout(c.Overpass.QueryTimeoutSecs))
	}
	if c.Overpass.TimeoutSecs > 0 {
		opts = append(opts, overpass.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Overpass.TimeoutSecs) * time.Second}))
	}
	return overpass.NewClient(opts...)
}

func initPipeline(c *config.Config) (*pipeline.Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	gc, err := initGeocoder(c)
	if err != nil {
		return nil, err
	}

	cats, err := poi.LoadCategories(c.Search.CategoriesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load categories")
	}

	return pipeline.New(c, gc, initOverpass(c), cats, pipeline.NewMetrics()), nil
}
