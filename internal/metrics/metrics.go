// Package metrics exposes verification progress as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/verify"
)

var _ verify.Observer = (*Collector)(nil)

// Collector implements verify.Observer on a private registry, so several collectors (one per
// test, say) never collide.
type Collector struct {
	registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	repairs       *prometheus.CounterVec
	repairLatency *prometheus.HistogramVec
	verifications *prometheus.CounterVec
	attemptsUsed  *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sampleverify_attempts_total",
			Help: "Type-check attempts by language and result",
		}, []string{"language", "result"}),
		checkDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sampleverify_type_check_duration_seconds",
			Help:    "Type-check duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		}, []string{"language"}),
		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sampleverify_repairs_total",
			Help: "Repair calls by language and result",
		}, []string{"language", "result"}),
		repairLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sampleverify_repair_duration_seconds",
			Help:    "Repair call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"language"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sampleverify_verifications_total",
			Help: "Finished verifications by language and outcome",
		}, []string{"language", "outcome"}),
		attemptsUsed: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sampleverify_attempts_per_verification",
			Help:    "Attempts made per verification",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		}, []string{"language"}),
	}
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) AttemptFinished(language string, attempt types.VerificationAttempt) {
	c.attempts.WithLabelValues(language, result(attempt.TypeCheckSucceeded)).Inc()
	c.checkDuration.WithLabelValues(language).Observe(attempt.Duration.Seconds())
}

func (c *Collector) RepairFinished(language string, elapsed time.Duration, err error) {
	c.repairs.WithLabelValues(language, result(err == nil)).Inc()
	c.repairLatency.WithLabelValues(language).Observe(elapsed.Seconds())
}

func (c *Collector) VerificationFinished(language string, res *types.VerificationResult) {
	if res == nil {
		return
	}
	c.verifications.WithLabelValues(language, outcome(res)).Inc()
	c.attemptsUsed.WithLabelValues(language).Observe(float64(res.AttemptsMade))
}

// WriteTextfile writes every metric in the Prometheus text format, for node_exporter's
// textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func outcome(res *types.VerificationResult) string {
	switch {
	case res.Succeeded:
		return "verified"
	case res.AttemptsMade == 0:
		return "preflight_failed"
	default:
		return "failed"
	}
}
