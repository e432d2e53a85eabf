package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-risk/internal/api"
	"github.com/miradorstack/mirador-risk/internal/classifier"
	"github.com/miradorstack/mirador-risk/internal/models"
	"github.com/miradorstack/mirador-risk/internal/riskmodel"
	"github.com/miradorstack/mirador-risk/internal/scorer"
	"github.com/miradorstack/mirador-risk/internal/utils"
)

// FleetScorer is the part of scorer.Scorer the service depends on.
type FleetScorer interface {
	ScoreFleet(ctx context.Context) (*models.FleetRisk, error)
	Retrain(ctx context.Context) (*riskmodel.TrainResult, error)
	State() scorer.State
}

// RiskService implements the gRPC RiskEngine service.
type RiskService struct {
	logger    *slog.Logger
	scorer    FleetScorer
	latencies *utils.LatencyTracker
}

// NewRiskService constructs the risk service facade.
func NewRiskService(logger *slog.Logger, fleetScorer FleetScorer) *RiskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskService{
		logger:    logger,
		scorer:    fleetScorer,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// ScoreFleet returns the ranked fleet risk table.
func (s *RiskService) ScoreFleet(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.scorer == nil {
		return nil, status.Error(codes.FailedPrecondition, "scorer not configured")
	}

	start := time.Now()
	fleet, err := s.scorer.ScoreFleet(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	s.latencies.Observe(time.Since(start))
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("scoring latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	out, err := api.ToProtoFleetRisk(fleet)
	if err != nil {
		s.logger.Error("encode fleet risk", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode fleet risk")
	}
	return out, nil
}

// Retrain trains a fresh model. A policy rejection is reported in the response body,
// not as an RPC error, so callers always get the evaluation report.
func (s *RiskService) Retrain(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.scorer == nil {
		return nil, status.Error(codes.FailedPrecondition, "scorer not configured")
	}

	result, err := s.scorer.Retrain(ctx)
	var rejection error
	switch {
	case err == nil:
	case errors.Is(err, riskmodel.ErrArtifactRejected) && result != nil:
		rejection = err
	default:
		return nil, toStatus(err)
	}
	if result == nil {
		return nil, status.Error(codes.Internal, "training returned no result")
	}

	out, err := api.ToProtoTrainReport(result.Report, rejection)
	if err != nil {
		s.logger.Error("encode training report", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode training report")
	}
	return out, nil
}

// ModelStatus reports the scorer lifecycle state.
func (s *RiskService) ModelStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	state := scorer.StateNoModel
	if s.scorer != nil {
		state = s.scorer.State()
	}
	out, err := api.ToProtoModelStatus(state.String(), classifier.Available())
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode status")
	}
	return out, nil
}

// LatencyP95 returns the current p95 scoring latency.
func (s *RiskService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, scorer.ErrTrainingInProgress):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, models.ErrModelUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, models.ErrSchemaMismatch), errors.Is(err, models.ErrData):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
