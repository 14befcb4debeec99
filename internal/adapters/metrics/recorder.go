// Package metrics records run outcomes as Prometheus metrics. A CLI run is
// short lived, so instead of serving them the recorder writes the registry to
// a textfile a node_exporter collector can pick up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// Recorder implements usecase.MetricsRecorder on its own registry
type Recorder struct {
	registry *prometheus.Registry
	path     string

	deployments      *prometheus.CounterVec
	deployDuration   *prometheus.HistogramVec
	verifications    *prometheus.CounterVec
	verifyAttempts   *prometheus.HistogramVec
	lastRunTimestamp prometheus.Gauge
}

// NewRecorder creates a recorder flushing to cfg.MetricsFile. With no file
// configured observations are still counted but Flush writes nothing.
func NewRecorder(cfg *config.RuntimeConfig) *Recorder {
	network := "unknown"
	if cfg.Network != nil {
		network = cfg.Network.Name
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"network": network}, reg))

	return &Recorder{
		registry: reg,
		path:     cfg.MetricsFile,
		deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tulip",
				Name:      "deployments_total",
				Help:      "Deployment attempts by unit and outcome",
			},
			[]string{"unit", "outcome"},
		),
		deployDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tulip",
				Name:      "deployment_duration_seconds",
				Help:      "Time from submission to confirmation",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tulip",
				Name:      "verifications_total",
				Help:      "Verification results by unit and status",
			},
			[]string{"unit", "status"},
		),
		verifyAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tulip",
				Name:      "verification_attempts",
				Help:      "Explorer round trips needed per unit",
				Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
			},
			[]string{"status"},
		),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tulip",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the metrics were last flushed",
		}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveDeployment(unit, outcome string, elapsed time.Duration) {
	r.deployments.WithLabelValues(unit, outcome).Inc()
	r.deployDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveVerification(unit string, status domain.VerificationStatus, attempts int) {
	r.verifications.WithLabelValues(unit, string(status)).Inc()
	r.verifyAttempts.WithLabelValues(string(status)).Observe(float64(attempts))
}

// Flush writes the registry in the text exposition format. The write is
// atomic, a scraper never sees a partial file.
func (r *Recorder) Flush() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	r.lastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

var _ usecase.MetricsRecorder = (*Recorder)(nil)
