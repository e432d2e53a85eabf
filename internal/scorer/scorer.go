package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/miradorstack/mirador-risk/internal/cache"
	"github.com/miradorstack/mirador-risk/internal/features"
	"github.com/miradorstack/mirador-risk/internal/metrics"
	"github.com/miradorstack/mirador-risk/internal/models"
	"github.com/miradorstack/mirador-risk/internal/riskmodel"
	"github.com/miradorstack/mirador-risk/internal/utils"
)

// ErrTrainingInProgress is returned when another process holds the training lease.
var ErrTrainingInProgress = errors.New("model training in progress elsewhere")

// TrainingLeaseKey is the cache key guarding the train-and-persist section.
const TrainingLeaseKey = "mirador-risk:training"

// State is the model lifecycle as seen by a Scorer.
type State int32

const (
	StateNoModel State = iota
	StateTraining
	StateReady
	StateStale
)

func (s State) String() string {
	switch s {
	case StateNoModel:
		return "no_model"
	case StateTraining:
		return "training"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PipelineLoader returns a feature pipeline over the current event log.
type PipelineLoader func(ctx context.Context) (*features.Pipeline, error)

// Options tunes a Scorer.
type Options struct {
	// SkipFailedAssets reports assets whose features cannot be computed in
	// FleetRisk.Skipped instead of failing the whole call.
	SkipFailedAssets bool
	// Lease backs the cross-process training lock. Nil disables it.
	Lease    cache.Provider
	LeaseTTL time.Duration
	Now      func() time.Time
}

// Scorer serves ranked fleet risk. It loads the stored model, trains one on first use
// when none exists, and coalesces concurrent bootstraps into a single training run.
type Scorer struct {
	logger  *slog.Logger
	load    PipelineLoader
	trainer *riskmodel.Trainer
	store   riskmodel.ModelStore
	opts    Options
	owner   string

	mu       sync.RWMutex
	state    State
	artifact *riskmodel.Artifact

	flight singleflight.Group
}

// New constructs a Scorer.
func New(logger *slog.Logger, load PipelineLoader, trainer *riskmodel.Trainer, store riskmodel.ModelStore, opts Options) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Lease == nil {
		opts.Lease = cache.NoopProvider{}
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scorer{
		logger:  logger,
		load:    load,
		trainer: trainer,
		store:   store,
		opts:    opts,
		owner:   uuid.NewString(),
		state:   StateNoModel,
	}
}

// State reports the current lifecycle state.
func (s *Scorer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// MarkStale forces the next call to reload the artifact from the store.
func (s *Scorer) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		s.state = StateStale
		s.logger.Info("model marked stale")
	}
}

func (s *Scorer) setState(state State, artifact *riskmodel.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.artifact = artifact
}

// Model returns the artifact in use, loading or training it if needed.
func (s *Scorer) Model(ctx context.Context) (*riskmodel.Artifact, error) {
	s.mu.RLock()
	if s.state == StateReady && s.artifact != nil {
		artifact := s.artifact
		s.mu.RUnlock()
		return artifact, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.flight.Do("model", func() (any, error) {
		return s.ensureModel(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*riskmodel.Artifact), nil
}

func (s *Scorer) ensureModel(ctx context.Context) (*riskmodel.Artifact, error) {
	artifact, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.setState(StateReady, artifact)
		s.logger.Info("model loaded", slog.String("run_id", artifact.RunID), slog.String("backend", artifact.Backend))
		return artifact, nil
	case !errors.Is(err, riskmodel.ErrArtifactNotFound):
		return nil, utils.WrapOp("scorer.Model", "load artifact", err)
	}

	s.logger.Info("no model artifact, training one before scoring")
	result, err := s.trainOnce(ctx)
	if err != nil {
		if errors.Is(err, ErrTrainingInProgress) {
			return nil, err
		}
		return nil, &models.ModelUnavailableError{Err: err}
	}
	return result.Artifact, nil
}

// Retrain trains a fresh model and swaps it in. A rejected or failed run leaves the
// current model in place.
func (s *Scorer) Retrain(ctx context.Context) (*riskmodel.TrainResult, error) {
	return s.trainOnce(ctx)
}

// trainOnce joins a lazy bootstrap and an explicit retrain that overlap into one run.
func (s *Scorer) trainOnce(ctx context.Context) (*riskmodel.TrainResult, error) {
	v, err, _ := s.flight.Do("train", func() (any, error) {
		return s.train(ctx)
	})
	result, _ := v.(*riskmodel.TrainResult)
	return result, err
}

// train runs NoModel/Stale -> Training -> Ready under the training lease. On failure
// the previous state is restored.
func (s *Scorer) train(ctx context.Context) (*riskmodel.TrainResult, error) {
	s.mu.Lock()
	previous, previousArtifact := s.state, s.artifact
	s.state = StateTraining
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		s.state, s.artifact = previous, previousArtifact
		s.mu.Unlock()
	}

	lease, acquired, err := cache.AcquireLease(ctx, s.opts.Lease, TrainingLeaseKey, s.owner, s.opts.LeaseTTL)
	if err != nil {
		restore()
		return nil, err
	}
	if !acquired {
		restore()
		holder := cache.Holder(ctx, s.opts.Lease, TrainingLeaseKey)
		s.logger.Warn("training lease held elsewhere", slog.String("holder", holder))
		return nil, ErrTrainingInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release training lease", slog.Any("error", err))
		}
	}()

	pipeline, err := s.load(ctx)
	if err != nil {
		restore()
		return nil, utils.WrapOp("scorer.train", "load events", err)
	}
	set, err := pipeline.BuildTrainingSet(ctx, s.opts.Now())
	if err != nil {
		restore()
		return nil, utils.WrapOp("scorer.train", "build training set", err)
	}
	result, err := s.trainer.Train(ctx, set)
	if err != nil {
		restore()
		return result, err
	}
	s.setState(StateReady, result.Artifact)
	return result, nil
}

// ScoreFleet scores every equipment at the current instant and returns the records
// sorted by descending risk score.
func (s *Scorer) ScoreFleet(ctx context.Context) (*models.FleetRisk, error) {
	start := time.Now()
	fleet, err := s.scoreFleet(ctx)
	metrics.ObserveScoring(time.Since(start), fleet, err)
	if err != nil {
		s.logger.Error("fleet scoring failed", slog.Any("error", err))
		return nil, err
	}
	s.logger.Info("fleet scored",
		slog.Int("assets", len(fleet.Records)),
		slog.Int("skipped", len(fleet.Skipped)),
		slog.String("run_id", fleet.RunID),
		slog.Duration("duration", time.Since(start)),
	)
	return fleet, nil
}

func (s *Scorer) scoreFleet(ctx context.Context) (*models.FleetRisk, error) {
	artifact, err := s.Model(ctx)
	if err != nil {
		return nil, err
	}
	pipeline, err := s.load(ctx)
	if err != nil {
		return nil, utils.WrapOp("scorer.ScoreFleet", "load events", err)
	}
	if err := artifact.CheckColumns(pipeline.Columns()); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	fleet := &models.FleetRisk{RunID: artifact.RunID, ScoredAt: now}
	var (
		snapshots []models.FeatureSnapshot
		vectors   []models.FeatureVector
	)
	for _, eq := range pipeline.Events().Equipment() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := pipeline.Snapshot(eq.ID, now)
		if err != nil {
			if !s.opts.SkipFailedAssets {
				return nil, fmt.Errorf("equipment %s: %w", eq.ID, err)
			}
			fleet.Skipped = append(fleet.Skipped, models.SkippedAsset{EquipmentID: eq.ID, Reason: err.Error()})
			s.logger.Warn("asset skipped", slog.String("equipment_id", eq.ID), slog.Any("error", err))
			continue
		}
		snapshots = append(snapshots, snap)
		vectors = append(vectors, snap.Features)
	}

	proba, err := artifact.PredictProbability(vectors)
	if err != nil {
		return nil, err
	}
	fleet.Records = make([]models.RiskRecord, len(snapshots))
	for i, snap := range snapshots {
		score := RiskScore(proba[i])
		fleet.Records[i] = models.RiskRecord{
			EquipmentID:        snap.EquipmentID,
			EquipmentType:      snap.EquipmentType,
			Location:           snap.Location,
			FailureProbability: proba[i],
			RiskScore:          score,
			RiskCategory:       Categorize(score),
		}
	}
	slices.SortStableFunc(fleet.Records, func(a, b models.RiskRecord) int {
		switch {
		case a.RiskScore > b.RiskScore:
			return -1
		case a.RiskScore < b.RiskScore:
			return 1
		default:
			return 0
		}
	})
	return fleet, nil
}
