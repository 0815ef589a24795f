// internal/pipeline/metrics.go
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "cloudforge"
	metricsSubsystem = "pipeline"
)

var (
	stageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "stage_attempts_total",
		Help:      "Total stage attempts, including retries.",
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "stage_failures_total",
		Help:      "Total failed stage attempts.",
	}, []string{"stage"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "stage_duration_seconds",
		Help:      "Per-attempt stage execution time.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "runs_total",
		Help:      "Completed pipeline runs by result.",
	}, []string{"result"})
)
