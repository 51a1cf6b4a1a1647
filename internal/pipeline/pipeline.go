// Package pipeline runs one address through geocoding, the category
// searches, normalization, rendering and export.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/foodmap-cli/internal/config"
	"github.com/sells-group/foodmap-cli/internal/export"
	"github.com/sells-group/foodmap-cli/internal/geospatial"
	"github.com/sells-group/foodmap-cli/internal/poi"
	"github.com/sells-group/foodmap-cli/internal/render"
	"github.com/sells-group/foodmap-cli/pkg/geocode"
	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

// Stage names used in logs and metrics.
const (
	StageGeocode = "geocode"
	StageSearch  = "search"
	StageRender  = "render"
	StageExport  = "export"
)

// distortionWarn is the 1/cos(lat) factor above which the circular region
// is noticeably squashed east-west on the ground.
const distortionWarn = 2.0

// Request describes one run. Zero values fall back to configuration.
type Request struct {
	Address      string
	RadiusMeters float64
	OutputPath   string
	ExportDir    string
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	Address    string
	Location   *geocode.Result
	Region     *geospatial.Region
	Sets       []poi.RecordSet
	OutputPath string
	Exported   []string
}

// Count returns the number of records kept for a category key.
func (r *Result) Count(key string) int {
	for _, s := range r.Sets {
		if s.Category == key {
			return s.Len()
		}
	}
	return 0
}

// Pipeline wires the geocoder and the Overpass client to the renderer.
type Pipeline struct {
	cfg        *config.Config
	geocoder   geocode.Client
	overpass   overpass.Client
	categories []poi.Category
	metrics    *Metrics
	now        func() time.Time
}

// New creates a Pipeline. A nil metrics value gets a private registry.
func New(cfg *config.Config, gc geocode.Client, oc overpass.Client, categories []poi.Category, m *Metrics) *Pipeline {
	if m == nil {
		m = NewMetrics()
	}
	return &Pipeline{
		cfg:        cfg,
		geocoder:   gc,
		overpass:   oc,
		categories: categories,
		metrics:    m,
		now:        time.Now,
	}
}

// Metrics returns the collectors the pipeline records into.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// NormalizeAddress composes the text to NFC and collapses runs of
// whitespace so equivalent inputs reach the geocoder identically.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Run executes the full pipeline. Any failure aborts the run before the map
// is written.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		} else {
			p.metrics.LastSuccess.SetToCurrentTime()
		}
		p.metrics.Runs.WithLabelValues(status).Inc()
		if werr := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); werr != nil {
			log.Warn("pipeline: metrics textfile not written", zap.Error(werr))
		}
	}()

	address := NormalizeAddress(req.Address)
	if address == "" {
		return nil, eris.Wrap(geocode.ErrAddressNotFound, "pipeline: empty address")
	}
	radius := req.RadiusMeters
	if radius == 0 {
		radius = p.cfg.Search.RadiusMeters
	}
	output := req.OutputPath
	if output == "" {
		output = p.cfg.Map.OutputPath
	}

	log = log.With(zap.String("address", address))
	log.Info("pipeline: starting run", zap.Float64("radius_m", radius))

	res = &Result{RunID: runID, Address: address, OutputPath: output}

	start := time.Now()
	loc, err := p.geocoder.Geocode(ctx, address)
	p.metrics.observeStage(StageGeocode, start)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: geocode %q", address)
	}
	res.Location = loc
	log.Info("pipeline: geocoded",
		zap.String("source", loc.Source),
		zap.String("label", loc.Label),
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lon", loc.Longitude),
	)

	region, err := geospatial.BuildRegion(loc.Point(), radius)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build region")
	}
	res.Region = region
	if f := region.DistortionFactor(); f > distortionWarn {
		log.Warn("pipeline: region is strongly distorted at this latitude",
			zap.Float64("factor", f),
			zap.Float64("lat", loc.Latitude),
		)
	}

	start = time.Now()
	sets, err := p.Search(ctx, region)
	p.metrics.observeStage(StageSearch, start)
	if err != nil {
		return nil, err
	}
	res.Sets = sets

	layers := make([]render.Layer, len(sets))
	for i, s := range sets {
		layers[i] = render.Layer{Category: p.categories[i], Set: s}
		p.metrics.Records.WithLabelValues(s.Category).Set(float64(s.Len()))
		p.metrics.Skipped.WithLabelValues(s.Category).Set(float64(s.Skipped))
		p.metrics.Clipped.WithLabelValues(s.Category).Set(float64(s.Clipped))
		log.Info("pipeline: category ready",
			zap.String("category", s.Category),
			zap.Int("records", s.Len()),
			zap.Int("skipped", s.Skipped),
			zap.Int("clipped", s.Clipped),
		)
	}

	start = time.Now()
	err = render.WriteFile(output, render.Map{
		Title:       p.cfg.Map.Title,
		Author:      p.cfg.Map.Author,
		Date:        p.now(),
		TileURL:     p.cfg.Map.TileURL,
		Attribution: p.cfg.Map.Attribution,
		Zoom:        p.cfg.Map.Zoom,
		City:        poi.CityRecord(loc.Point(), loc.Label),
		Layers:      layers,
	})
	p.metrics.observeStage(StageRender, start)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: render map")
	}
	log.Info("pipeline: map written", zap.String("path", output))

	if req.ExportDir != "" {
		start = time.Now()
		files, err := export.WriteAll(req.ExportDir, sets)
		p.metrics.observeStage(StageExport, start)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: export layers")
		}
		res.Exported = files
	}

	return res, nil
}

// Search runs one Overpass query per category inside the region's bounding
// box. Results are indexed by category position, so the returned slice lines
// up with the configured categories whatever order the queries finish in.
// The first failure cancels the remaining queries.
func (p *Pipeline) Search(ctx context.Context, region *geospatial.Region) ([]poi.RecordSet, error) {
	bbox := region.BBox()
	sets := make([]poi.RecordSet, len(p.categories))

	limit := p.cfg.Search.MaxConcurrent
	if limit < 1 {
		limit = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, cat := range p.categories {
		g.Go(func() error {
			elems, err := p.overpass.Query(gCtx, bbox, cat.Filters, cat.Kinds)
			if err != nil {
				return eris.Wrapf(err, "pipeline: query %s", cat.Key)
			}
			set := poi.NormalizeElements(elems)
			set.Category = cat.Key
			if p.cfg.Search.ClipToRadius {
				set = set.Clip(region)
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}
