package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-risk/internal/classifier"
	"github.com/miradorstack/mirador-risk/internal/metrics"
	"github.com/miradorstack/mirador-risk/internal/models"
)

var (
	// ErrArtifactRejected is returned when an AcceptPolicy refuses a freshly trained model.
	// The model is not persisted; the previous artifact, if any, stays in place.
	ErrArtifactRejected = errors.New("model rejected by acceptance policy")
	// ErrTooFewSamples is returned when the training set cannot be split.
	ErrTooFewSamples = errors.New("training set too small to split")
)

// AcceptPolicy decides whether a trained model may replace the stored artifact.
type AcceptPolicy func(report models.EvaluationReport) error

// AcceptAll persists every trained model.
func AcceptAll(models.EvaluationReport) error { return nil }

// MinROCAUC rejects models whose held-out ROC-AUC is below threshold.
func MinROCAUC(threshold float64) AcceptPolicy {
	return func(report models.EvaluationReport) error {
		if report.ROCAUC < threshold {
			return fmt.Errorf("roc auc %.3f below %.3f", report.ROCAUC, threshold)
		}
		return nil
	}
}

// TrainerOptions configures a Trainer.
type TrainerOptions struct {
	Params       classifier.Params
	TestFraction float64
	Accept       AcceptPolicy
	Now          func() time.Time
}

// Trainer fits, evaluates and persists risk models with one classifier backend.
type Trainer struct {
	logger  *slog.Logger
	backend classifier.Backend
	store   ModelStore
	opts    TrainerOptions
}

// TrainResult is the outcome of a training run.
type TrainResult struct {
	Artifact *Artifact
	Report   models.EvaluationReport
}

// NewTrainer constructs a Trainer. The backend is resolved by the caller through
// classifier.Select so the capability decision stays at composition time.
func NewTrainer(logger *slog.Logger, backend classifier.Backend, store ModelStore, opts TrainerOptions) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.Accept == nil {
		opts.Accept = AcceptAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Trainer{logger: logger, backend: backend, store: store, opts: opts}
}

// Backend returns the name of the classifier backend in use.
func (t *Trainer) Backend() string { return t.backend.Name }

// Train splits set, fits the backend, evaluates on the held-out part and saves the
// artifact unless the AcceptPolicy refuses it. A rejected run still returns its result
// together with an error wrapping ErrArtifactRejected.
func (t *Trainer) Train(ctx context.Context, set models.TrainingSet) (*TrainResult, error) {
	start := time.Now()
	result, outcome, err := t.train(ctx, set)
	rocAUC := 0.0
	if result != nil {
		rocAUC = result.Report.ROCAUC
	}
	metrics.ObserveTraining(t.backend.Name, time.Since(start), outcome, rocAUC)
	return result, err
}

func (t *Trainer) train(ctx context.Context, set models.TrainingSet) (*TrainResult, string, error) {
	runID := uuid.NewString()
	logger := t.logger.With(slog.String("run_id", runID), slog.String("backend", t.backend.Name))

	rows, labels := set.Matrix()
	if len(rows) < 2 {
		return nil, metrics.OutcomeError, fmt.Errorf("%w: %d labelled samples", ErrTooFewSamples, len(rows))
	}
	trainIdx, testIdx := SplitIndices(len(rows), t.opts.TestFraction, t.opts.Params.Seed)
	trainX, trainY := gather(rows, labels, trainIdx)

	model := t.backend.New(t.opts.Params)
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		logger.Error("model fit failed", slog.Any("error", err))
		return nil, metrics.OutcomeError, fmt.Errorf("fit %s model: %w", t.backend.Name, err)
	}

	artifact, err := newArtifact(runID, model, set, t.opts.Now().UTC())
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	held := make([]models.FeatureSnapshot, 0, len(testIdx))
	labelled := labelledSnapshots(set)
	for _, i := range testIdx {
		held = append(held, labelled[i])
	}
	report, err := t.Evaluate(artifact, held)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	report.RunID = runID
	report.TrainSamples = len(trainIdx)
	report.Notes = append(report.Notes, set.Notes...)

	logger.Info("model evaluated",
		slog.Int("train_samples", report.TrainSamples),
		slog.Int("test_samples", report.TestSamples),
		slog.Int("test_positives", report.TestPositives),
		slog.Float64("precision", report.Precision),
		slog.Float64("recall", report.Recall),
		slog.Float64("roc_auc", report.ROCAUC),
	)
	for _, note := range set.Notes {
		logger.Warn("training set caveat", slog.String("note", note))
	}

	if reason := t.opts.Accept(report); reason != nil {
		artifact.Report = report
		logger.Warn("model rejected, keeping previous artifact", slog.Any("reason", reason))
		return &TrainResult{Artifact: artifact, Report: report}, metrics.OutcomeRejected,
			fmt.Errorf("%w: %v", ErrArtifactRejected, reason)
	}

	report.Persisted = true
	artifact.Report = report
	if err := t.store.Save(ctx, artifact); err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("persist artifact: %w", err)
	}
	return &TrainResult{Artifact: artifact, Report: report}, metrics.OutcomeSuccess, nil
}

// Evaluate scores artifact on held-out labelled snapshots. Unlabelled snapshots are ignored.
func (t *Trainer) Evaluate(artifact *Artifact, held []models.FeatureSnapshot) (models.EvaluationReport, error) {
	vectors := make([]models.FeatureVector, 0, len(held))
	labels := make([]int, 0, len(held))
	for _, s := range held {
		if s.Label == nil {
			continue
		}
		vectors = append(vectors, s.Features)
		labels = append(labels, *s.Label)
	}
	proba, err := artifact.PredictProbability(vectors)
	if err != nil {
		return models.EvaluationReport{}, fmt.Errorf("predict held-out set: %w", err)
	}
	m, err := classifier.Evaluate(labels, proba, 0.5)
	if err != nil {
		return models.EvaluationReport{}, err
	}
	return models.EvaluationReport{
		RunID:         artifact.RunID,
		Backend:       artifact.Backend,
		TrainedAt:     artifact.TrainedAt,
		TestSamples:   m.Samples,
		TestPositives: m.Positives,
		Precision:     m.Precision,
		Recall:        m.Recall,
		F1:            m.F1,
		Accuracy:      m.Accuracy,
		ROCAUC:        m.ROCAUC,
	}, nil
}

// SplitIndices shuffles 0..n-1 with a PCG stream seeded by seed and returns the train and
// test partitions. The test part holds ceil(n*testFraction) samples, at least one, and
// never the whole set.
func SplitIndices(n int, testFraction float64, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testFraction))
	nTest = max(1, min(nTest, n-1))
	return perm[nTest:], perm[:nTest]
}

func gather(rows [][]float64, labels []int, idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for k, i := range idx {
		X[k] = rows[i]
		y[k] = labels[i]
	}
	return X, y
}

func labelledSnapshots(set models.TrainingSet) []models.FeatureSnapshot {
	out := make([]models.FeatureSnapshot, 0, len(set.Snapshots))
	for _, s := range set.Snapshots {
		if s.Label != nil {
			out = append(out, s)
		}
	}
	return out
}
