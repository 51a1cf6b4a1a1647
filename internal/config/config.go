package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig configures address lookup. Providers are tried in order.
type GeocodeConfig struct {
	Providers    []string `yaml:"providers" mapstructure:"providers"`
	IGNURL       string   `yaml:"ign_url" mapstructure:"ign_url"`
	NominatimURL string   `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit    float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	Endpoint         string  `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueryTimeoutSecs int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RetryConfig configures backoff for the outbound HTTP calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// SearchConfig configures the region and category queries.
type SearchConfig struct {
	RadiusMeters   float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxConcurrent  int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ClipToRadius   bool    `yaml:"clip_to_radius" mapstructure:"clip_to_radius"`
	CategoriesFile string  `yaml:"categories_file" mapstructure:"categories_file"`
}

// MapConfig configures the rendered HTML map.
type MapConfig struct {
	OutputPath  string `yaml:"output_path" mapstructure:"output_path"`
	Title       string `yaml:"title" mapstructure:"title"`
	Author      string `yaml:"author" mapstructure:"author"`
	TileURL     string `yaml:"tile_url" mapstructure:"tile_url"`
	Attribution string `yaml:"attribution" mapstructure:"attribution"`
	Zoom        int    `yaml:"zoom" mapstructure:"zoom"`
}

// MetricsConfig configures the Prometheus textfile written after each run.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FOODMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.providers", []string{"ign"})
	v.SetDefault("geocode.ign_url", "https://data.geopf.fr/geocodage/search")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "foodmap-cli/1.0")
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.user_agent", "foodmap-cli/1.0")
	v.SetDefault("overpass.timeout_secs", 30)
	v.SetDefault("overpass.query_timeout_secs", 25)
	v.SetDefault("overpass.rate_limit", 1.0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("search.radius_meters", 1000.0)
	v.SetDefault("search.max_concurrent", 2)
	v.SetDefault("search.clip_to_radius", false)
	v.SetDefault("map.output_path", "map.html")
	v.SetDefault("map.title", "Food and Dining Around You")
	v.SetDefault("map.author", "foodmap")
	v.SetDefault("map.tile_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.attribution", "&copy; OpenStreetMap contributors")
	v.SetDefault("map.zoom", 14)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Geocode.Providers) == 0 {
		errs = append(errs, "geocode.providers must list at least one provider")
	}
	for _, p := range c.Geocode.Providers {
		switch p {
		case "ign", "nominatim":
		default:
			errs = append(errs, "geocode.providers: unknown provider "+p)
		}
	}
	if c.Overpass.Endpoint == "" {
		errs = append(errs, "overpass.endpoint is required")
	}
	if c.Search.RadiusMeters <= 0 {
		errs = append(errs, "search.radius_meters must be > 0")
	}
	if c.Search.MaxConcurrent < 1 {
		errs = append(errs, "search.max_concurrent must be >= 1")
	}
	if c.Map.OutputPath == "" {
		errs = append(errs, "map.output_path is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
