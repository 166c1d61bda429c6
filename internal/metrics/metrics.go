// Package metrics records pipeline measurements with Prometheus.
//
// Every run gets its own [Registry]. When a textfile path is configured the registry is written there after
// the run in the node exporter textfile format, so a cron-driven CLI can still be scraped. All metrics are
// prefixed with "chartx_".
package metrics

import (
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the metrics of one run and implements tasks.Observer.
type Registry struct {
	reg *prometheus.Registry

	EntriesExtracted *prometheus.CounterVec
	TracksResolved   *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	TracksAdded      *prometheus.CounterVec
	BatchesFailed    *prometheus.CounterVec
	RunDuration      *prometheus.GaugeVec
	LastRunTimestamp *prometheus.GaugeVec
	RunStatus        *prometheus.GaugeVec
}

// NewRegistry creates a registry with every chartx metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		EntriesExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartx_entries_extracted_total",
				Help: "Chart entries extracted, by source and winning strategy",
			},
			[]string{"source", "strategy"},
		),
		TracksResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartx_tracks_resolved_total",
				Help: "Chart entries resolved, by source and match confidence",
			},
			[]string{"source", "confidence"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartx_retries_total",
				Help: "Retried Spotify requests, by operation",
			},
			[]string{"operation"},
		),
		TracksAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartx_tracks_added_total",
				Help: "Tracks confirmed added to playlists",
			},
			[]string{"source"},
		),
		BatchesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartx_batches_failed_total",
				Help: "Track batches skipped after retries were exhausted",
			},
			[]string{"source"},
		),
		RunDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartx_last_run_duration_seconds",
				Help: "Duration of the last run in seconds",
			},
			[]string{"source"},
		),
		LastRunTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartx_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
			[]string{"source"},
		),
		RunStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartx_last_run_status",
				Help: "1 for the status the last run finished with, 0 otherwise",
			},
			[]string{"source", "status"},
		),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) Extracted(source models.SourceTag, strategy string, entries int) {
	r.EntriesExtracted.WithLabelValues(string(source), strategy).Add(float64(entries))
}

func (r *Registry) Resolved(source models.SourceTag, c models.Confidence) {
	r.TracksResolved.WithLabelValues(string(source), c.String()).Inc()
}

func (r *Registry) Retried(op string) {
	r.RetriesTotal.WithLabelValues(op).Inc()
}

func (r *Registry) Added(source models.SourceTag, tracks int) {
	r.TracksAdded.WithLabelValues(string(source)).Add(float64(tracks))
}

func (r *Registry) BatchFailed(source models.SourceTag) {
	r.BatchesFailed.WithLabelValues(string(source)).Inc()
}

func (r *Registry) Finished(source models.SourceTag, status models.RunStatus, d time.Duration) {
	s := string(source)
	r.RunDuration.WithLabelValues(s).Set(d.Seconds())
	r.LastRunTimestamp.WithLabelValues(s).Set(float64(time.Now().Unix()))
	for _, st := range []models.RunStatus{models.RunCompleted, models.RunNoMatches, models.RunFailed} {
		v := 0.0
		if st == status {
			v = 1
		}
		r.RunStatus.WithLabelValues(s, string(st)).Set(v)
	}
}

// WriteTextfile writes the registry to path in the text exposition format. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
