package riskmodel

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-risk/internal/classifier"
	"github.com/miradorstack/mirador-risk/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func trainingSet(n int) models.TrainingSet {
	rng := rand.New(rand.NewPCG(5, 5))
	set := models.TrainingSet{
		Columns:     []string{"a", "b", "c"},
		LabelColumn: "is_failure_next_30_days",
		Notes:       []string{"synthetic"},
	}
	for i := 0; i < n; i++ {
		label := i % 2
		a := 2 + rng.NormFloat64()
		if label == 1 {
			a = 8 + rng.NormFloat64()
		}
		snap := models.FeatureSnapshot{
			EquipmentID: "EQ",
			Features: models.FeatureVector{
				Columns: []string{"a", "b", "c"},
				Values:  []float64{a, rng.Float64(), rng.Float64()},
			},
		}
		set.Snapshots = append(set.Snapshots, snap.Labelled(label))
	}
	return set
}

func forestTrainer(t *testing.T, store ModelStore, accept AcceptPolicy) *Trainer {
	t.Helper()
	backend, err := classifier.Select(classifier.BackendForest)
	if err != nil {
		t.Fatalf("select forest: %v", err)
	}
	params := classifier.DefaultParams()
	params.Forest.Trees = 10
	return NewTrainer(nil, backend, store, TrainerOptions{
		Params:       params,
		TestFraction: 0.2,
		Accept:       accept,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestTrainPersistsUnconditionally(t *testing.T) {
	store := NewMemoryStore()
	trainer := forestTrainer(t, store, nil)

	result, err := trainer.Train(context.Background(), trainingSet(50))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	report := result.Report
	if !report.Persisted || report.RunID == "" || report.Backend != classifier.BackendForest {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.TrainSamples != 40 || report.TestSamples != 10 {
		t.Fatalf("expected 40/10 split, got %d/%d", report.TrainSamples, report.TestSamples)
	}
	if report.ROCAUC < 0.9 {
		t.Fatalf("expected separable data to score well, got %v", report.ROCAUC)
	}
	if !slices.Contains(report.Notes, "synthetic") {
		t.Fatalf("expected training notes in report, got %v", report.Notes)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != report.RunID || !loaded.TrainedAt.Equal(fixedNow) {
		t.Fatalf("loaded artifact mismatch: %s %v", loaded.RunID, loaded.TrainedAt)
	}
	if loaded.Positives != 25 || loaded.Negatives != 25 {
		t.Fatalf("unexpected sample counts %d/%d", loaded.Positives, loaded.Negatives)
	}

	vectors := []models.FeatureVector{{Columns: []string{"a", "b", "c"}, Values: []float64{8, 0.5, 0.5}}}
	fresh, err := result.Artifact.PredictProbability(vectors)
	if err != nil {
		t.Fatalf("predict fresh: %v", err)
	}
	reloaded, err := loaded.PredictProbability(vectors)
	if err != nil {
		t.Fatalf("predict loaded: %v", err)
	}
	if fresh[0] != reloaded[0] {
		t.Fatalf("persisted model predicts differently: %v vs %v", fresh[0], reloaded[0])
	}

	// A second run overwrites the first.
	second, err := trainer.Train(context.Background(), trainingSet(50))
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	loaded, _ = store.Load(context.Background())
	if loaded.RunID != second.Report.RunID {
		t.Fatalf("expected retrain to replace artifact")
	}
}

func TestTrainRejectedByPolicy(t *testing.T) {
	store := NewMemoryStore()
	trainer := forestTrainer(t, store, MinROCAUC(1.01))

	result, err := trainer.Train(context.Background(), trainingSet(30))
	if !errors.Is(err, ErrArtifactRejected) {
		t.Fatalf("expected ErrArtifactRejected, got %v", err)
	}
	if result == nil || result.Report.Persisted {
		t.Fatalf("expected unpersisted report, got %+v", result)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("rejected model must not be stored, got %v", err)
	}
	if err := MinROCAUC(0.5)(models.EvaluationReport{ROCAUC: 0.5}); err != nil {
		t.Fatalf("threshold is inclusive: %v", err)
	}
}

func TestTrainTooFewSamples(t *testing.T) {
	trainer := forestTrainer(t, NewMemoryStore(), nil)
	if _, err := trainer.Train(context.Background(), trainingSet(1)); !errors.Is(err, ErrTooFewSamples) {
		t.Fatalf("expected ErrTooFewSamples, got %v", err)
	}
}

func TestSplitIndices(t *testing.T) {
	train, test := SplitIndices(20, 0.2, 42)
	if len(train) != 16 || len(test) != 4 {
		t.Fatalf("expected 16/4 split, got %d/%d", len(train), len(test))
	}
	all := append(slices.Clone(train), test...)
	slices.Sort(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("split is not a partition: %v", all)
		}
	}
	train2, test2 := SplitIndices(20, 0.2, 42)
	if !slices.Equal(train, train2) || !slices.Equal(test, test2) {
		t.Fatalf("split is not reproducible")
	}
	_, other := SplitIndices(20, 0.2, 7)
	if slices.Equal(test, other) {
		t.Fatalf("different seeds produced the same split")
	}
	if tr, te := SplitIndices(2, 0.2, 42); len(tr) != 1 || len(te) != 1 {
		t.Fatalf("expected 1/1 split for two samples, got %d/%d", len(tr), len(te))
	}
}

func TestPredictProbabilityRejectsReorderedColumns(t *testing.T) {
	trainer := forestTrainer(t, NewMemoryStore(), nil)
	result, err := trainer.Train(context.Background(), trainingSet(20))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	ok := []models.FeatureVector{{Columns: []string{"a", "b", "c"}, Values: []float64{1, 2, 3}}}
	if _, err := result.Artifact.PredictProbability(ok); err != nil {
		t.Fatalf("expected matching columns to score, got %v", err)
	}

	reordered := []models.FeatureVector{{Columns: []string{"a", "c", "b"}, Values: []float64{1, 3, 2}}}
	_, err = result.Artifact.PredictProbability(reordered)
	var mismatch *models.SchemaMismatchError
	if !errors.As(err, &mismatch) || !errors.Is(err, models.ErrSchemaMismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if !slices.Equal(mismatch.Expected, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected expected columns %v", mismatch.Expected)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models", "failure_prediction_model.json")
	store := NewFileStore(nil, path)
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}

	result, err := forestTrainer(t, store, nil).Train(ctx, trainingSet(20))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != result.Report.RunID || !slices.Equal(loaded.Columns, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected artifact %s %v", loaded.RunID, loaded.Columns)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "models", "*.tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}

	if err := os.WriteFile(path, []byte(`{"format_version":1,`), 0o644); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}
	if _, err := store.Load(ctx); err == nil || errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected decode error for corrupt artifact, got %v", err)
	}
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	store := NewFileStore(nil, path)
	result, err := forestTrainer(t, NewMemoryStore(), nil).Train(context.Background(), trainingSet(20))
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Save(context.Background(), result.Artifact)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("load after concurrent saves: %v", err)
	}
}

func TestUnmarshalArtifactRejectsUnknownBackend(t *testing.T) {
	data := []byte(`{"format_version":1,"backend":"quantum","feature_columns":["a"],"model":{}}`)
	if _, err := UnmarshalArtifact(data); !errors.Is(err, classifier.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if _, err := UnmarshalArtifact([]byte(`{"format_version":99}`)); err == nil {
		t.Fatalf("expected version error")
	}
}
