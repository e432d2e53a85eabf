package models

import "time"

// EvaluationReport summarises held-out performance of a training run.
type EvaluationReport struct {
	RunID         string    `json:"run_id"`
	Backend       string    `json:"backend"`
	TrainedAt     time.Time `json:"trained_at"`
	TrainSamples  int       `json:"train_samples"`
	TestSamples   int       `json:"test_samples"`
	TestPositives int       `json:"test_positives"`
	Precision     float64   `json:"precision"`
	Recall        float64   `json:"recall"`
	F1            float64   `json:"f1"`
	Accuracy      float64   `json:"accuracy"`
	// ROCAUC is NaN-free: it is 0.5 when the held-out set has a single class.
	ROCAUC float64 `json:"roc_auc"`
	// Persisted is false when an acceptance policy rejected the model.
	Persisted bool     `json:"persisted"`
	Notes     []string `json:"notes,omitempty"`
}
