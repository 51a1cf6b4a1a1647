package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Metrics holds the collectors recorded during a run.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	StageSeconds *prometheus.HistogramVec
	Records      *prometheus.GaugeVec
	Skipped      *prometheus.GaugeVec
	Clipped      *prometheus.GaugeVec
	LastSuccess  prometheus.Gauge
}

// NewMetrics registers the pipeline collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		Runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "foodmap_runs_total",
			Help: "Total number of map runs by outcome.",
		}, []string{"status"}),
		StageSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodmap_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		Records: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "foodmap_records",
			Help: "Records kept per category in the last run.",
		}, []string{"category"}),
		Skipped: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "foodmap_records_skipped",
			Help: "Features skipped for missing or invalid coordinates in the last run.",
		}, []string{"category"}),
		Clipped: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "foodmap_records_clipped",
			Help: "Records dropped outside the search radius in the last run.",
		}, []string{"category"}),
		LastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "foodmap_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeStage(stage string, start time.Time) {
	m.StageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "pipeline: write metrics textfile %s", path)
	}
	return nil
}
