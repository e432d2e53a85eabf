package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/miradorstack/mirador-risk/internal/eventstore"
	"github.com/miradorstack/mirador-risk/internal/models"
	"github.com/miradorstack/mirador-risk/internal/utils"
)

// ErrUnknownEquipment is returned for an equipment id absent from the master table.
var ErrUnknownEquipment = errors.New("unknown equipment")

const day = 24 * time.Hour

// Options holds the temporal constants of the pipeline.
type Options struct {
	SentinelDays     int
	RecentWindowDays int
	HorizonDays      int
	MTBFMinIntervals int
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{SentinelDays: 730, RecentWindowDays: 90, HorizonDays: 30, MTBFMinIntervals: 2}
}

// Pipeline computes point-in-time feature vectors from an EventLog. Every value in a
// vector for instant t is derived only from events with FailureDate strictly before t.
type Pipeline struct {
	logger  *slog.Logger
	events  *eventstore.EventLog
	opts    Options
	sampler NegativeSampler
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithNegativeSampler replaces the default NowSampler.
func WithNegativeSampler(s NegativeSampler) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sampler = s
		}
	}
}

// NewPipeline constructs a Pipeline over events.
func NewPipeline(logger *slog.Logger, events *eventstore.EventLog, opts Options, options ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if opts.SentinelDays <= 0 {
		opts.SentinelDays = defaults.SentinelDays
	}
	if opts.RecentWindowDays <= 0 {
		opts.RecentWindowDays = defaults.RecentWindowDays
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaults.HorizonDays
	}
	if opts.MTBFMinIntervals <= 0 {
		opts.MTBFMinIntervals = defaults.MTBFMinIntervals
	}
	p := &Pipeline{logger: logger, events: events, opts: opts, sampler: NowSampler{}}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Columns returns the column order of every vector this pipeline produces.
func (p *Pipeline) Columns() []string { return Columns() }

// Events exposes the underlying log.
func (p *Pipeline) Events() *eventstore.EventLog { return p.events }

// ComputeFeatures returns the feature vector of equipmentID as of at.
func (p *Pipeline) ComputeFeatures(equipmentID string, at time.Time) (models.FeatureVector, error) {
	if _, ok := p.events.Lookup(equipmentID); !ok {
		return models.FeatureVector{}, fmt.Errorf("%w: %s", ErrUnknownEquipment, equipmentID)
	}
	prior := p.events.EventsBefore(equipmentID, at)

	var (
		total      = float64(len(prior))
		sinceLast  = p.opts.SentinelDays
		avgHours   float64
		repairCost float64
		recent     float64
	)
	if len(prior) > 0 {
		sinceLast = utils.WholeDays(prior[len(prior)-1].FailureDate, at)
		var hours float64
		for _, e := range prior {
			hours += e.DowntimeHours
			repairCost += e.RepairCost
		}
		avgHours = hours / total

		cutoff := at.Add(-time.Duration(p.opts.RecentWindowDays) * day)
		for _, e := range prior {
			if !e.FailureDate.Before(cutoff) {
				recent++
			}
		}
	}

	mtbf, err := meanTimeBetweenFailures(prior, p.opts.MTBFMinIntervals)
	if errors.Is(err, models.ErrInsufficientHistory) {
		mtbf = float64(p.opts.SentinelDays)
	}

	signals := synthesizeSignals(equipmentID, at, sinceLast)

	values := []float64{
		total,
		float64(sinceLast),
		avgHours,
		repairCost,
		recent,
		mtbf,
		signals.Vibration,
		signals.Temperature,
		signals.OilQuality,
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.FeatureVector{}, &models.DataError{Table: "features", Column: columns[i], Err: fmt.Errorf("non-finite value for %s", equipmentID)}
		}
	}
	return models.FeatureVector{Columns: Columns(), Values: values}, nil
}

// meanTimeBetweenFailures averages the gaps between consecutive events, in days.
func meanTimeBetweenFailures(events []models.FailureEvent, minIntervals int) (float64, error) {
	intervals := len(events) - 1
	if intervals < minIntervals || intervals < 1 {
		return 0, models.ErrInsufficientHistory
	}
	span := utils.Days(events[0].FailureDate, events[len(events)-1].FailureDate)
	return span / float64(intervals), nil
}

// Snapshot wraps ComputeFeatures with the asset's master data.
func (p *Pipeline) Snapshot(equipmentID string, at time.Time) (models.FeatureSnapshot, error) {
	eq, ok := p.events.Lookup(equipmentID)
	if !ok {
		return models.FeatureSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownEquipment, equipmentID)
	}
	vector, err := p.ComputeFeatures(equipmentID, at)
	if err != nil {
		return models.FeatureSnapshot{}, err
	}
	return models.FeatureSnapshot{
		EquipmentID:   eq.ID,
		EquipmentType: eq.Type,
		Location:      eq.Location,
		SnapshotAt:    at,
		Features:      vector,
	}, nil
}

// ComputeFleet snapshots every equipment at the same instant, in master order.
// The first failing asset aborts the call.
func (p *Pipeline) ComputeFleet(ctx context.Context, at time.Time) ([]models.FeatureSnapshot, error) {
	fleet := p.events.Equipment()
	out := make([]models.FeatureSnapshot, 0, len(fleet))
	for _, eq := range fleet {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := p.Snapshot(eq.ID, at)
		if err != nil {
			return nil, fmt.Errorf("equipment %s: %w", eq.ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// BuildTrainingSet labels one positive per historical failure, snapshotted one day
// before it, and the negatives chosen by the configured sampler.
func (p *Pipeline) BuildTrainingSet(ctx context.Context, now time.Time) (models.TrainingSet, error) {
	set := models.TrainingSet{
		Columns:     Columns(),
		LabelColumn: LabelColumn(p.opts.HorizonDays),
		Horizon:     time.Duration(p.opts.HorizonDays) * day,
		BuiltAt:     now,
	}

	for _, event := range p.events.All() {
		if err := ctx.Err(); err != nil {
			return models.TrainingSet{}, err
		}
		snap, err := p.Snapshot(event.EquipmentID, event.FailureDate.Add(-day))
		if err != nil {
			return models.TrainingSet{}, fmt.Errorf("positive example for %s: %w", event.ID, err)
		}
		snap.SourceEventID = event.ID
		set.Snapshots = append(set.Snapshots, snap.Labelled(1))
	}

	for _, eq := range p.events.Equipment() {
		if err := ctx.Err(); err != nil {
			return models.TrainingSet{}, err
		}
		for _, at := range p.sampler.Instants(eq, p.events.Events(eq.ID), now) {
			snap, err := p.Snapshot(eq.ID, at)
			if err != nil {
				return models.TrainingSet{}, fmt.Errorf("negative example for %s: %w", eq.ID, err)
			}
			set.Snapshots = append(set.Snapshots, snap.Labelled(0))
		}
	}

	if _, ok := p.sampler.(NowSampler); ok {
		set.Notes = append(set.Notes, fmt.Sprintf(
			"negative examples are all snapshotted at %s while positives span historical instants; the model may learn calendar-time artifacts",
			now.UTC().Format(time.RFC3339)))
	}

	positives, negatives := set.Counts()
	p.logger.Info("training set built",
		slog.Int("positives", positives),
		slog.Int("negatives", negatives),
		slog.String("sampler", p.sampler.Name()),
		slog.Int("horizon_days", p.opts.HorizonDays),
	)
	return set, nil
}
