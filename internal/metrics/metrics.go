package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-risk/internal/models"
)

const (
	// OutcomeSuccess labels completed runs.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that failed (data, fit, or persistence issues).
	OutcomeError = "error"
	// OutcomeRejected labels training runs whose model an acceptance policy refused.
	OutcomeRejected = "rejected"
)

var (
	trainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_risk",
			Name:      "training_runs_total",
			Help:      "Total number of model training runs, partitioned by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	trainingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_risk",
			Name:      "training_seconds",
			Help:      "Model training latency in seconds, including evaluation and persistence.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	modelROCAUC = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_risk",
			Name:      "model_roc_auc",
			Help:      "Held-out ROC-AUC of the most recent training run.",
		},
	)

	scoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_risk",
			Name:      "scoring_runs_total",
			Help:      "Total number of fleet scoring calls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	scoringDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_risk",
			Name:      "scoring_seconds",
			Help:      "Fleet scoring latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	fleetRiskAssets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_risk",
			Name:      "fleet_assets",
			Help:      "Assets per risk category in the most recent fleet score.",
		},
		[]string{"category"},
	)

	skippedAssets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_risk",
			Name:      "skipped_assets",
			Help:      "Assets left out of the most recent fleet score.",
		},
	)
)

// Register attaches mirador-risk collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		trainingRunsTotal,
		trainingDurationSeconds,
		modelROCAUC,
		scoringRunsTotal,
		scoringDurationSeconds,
		fleetRiskAssets,
		skippedAssets,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTraining records a training run. rocAUC is only exported for successful runs.
func ObserveTraining(backend string, duration time.Duration, outcome string, rocAUC float64) {
	switch outcome {
	case OutcomeError, OutcomeRejected:
	default:
		outcome = OutcomeSuccess
		modelROCAUC.Set(rocAUC)
	}
	if backend == "" {
		backend = "unknown"
	}
	trainingRunsTotal.WithLabelValues(backend, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	trainingDurationSeconds.Observe(duration.Seconds())
}

// ObserveScoring records a fleet scoring call and, on success, its category distribution.
func ObserveScoring(duration time.Duration, fleet *models.FleetRisk, err error) {
	if duration < 0 {
		duration = 0
	}
	scoringDurationSeconds.Observe(duration.Seconds())
	if err != nil || fleet == nil {
		scoringRunsTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	scoringRunsTotal.WithLabelValues(OutcomeSuccess).Inc()
	for category, count := range fleet.CategoryCounts() {
		fleetRiskAssets.WithLabelValues(string(category)).Set(float64(count))
	}
	skippedAssets.Set(float64(len(fleet.Skipped)))
}
