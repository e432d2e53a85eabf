package riskmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/miradorstack/mirador-risk/internal/classifier"
	"github.com/miradorstack/mirador-risk/internal/models"
)

// FormatVersion is bumped whenever the artifact layout changes incompatibly.
const FormatVersion = 1

// Artifact is a fitted classifier persisted together with the feature-column order it
// was trained on. It is read-only once built.
type Artifact struct {
	FormatVersion int                     `json:"format_version"`
	RunID         string                  `json:"run_id"`
	Backend       string                  `json:"backend"`
	Columns       []string                `json:"feature_columns"`
	LabelColumn   string                  `json:"label_column"`
	TrainedAt     time.Time               `json:"trained_at"`
	Positives     int                     `json:"positives"`
	Negatives     int                     `json:"negatives"`
	Report        models.EvaluationReport `json:"report"`
	Model         json.RawMessage         `json:"model"`

	model classifier.Classifier
}

// newArtifact snapshots a fitted classifier.
func newArtifact(runID string, model classifier.Classifier, set models.TrainingSet, trainedAt time.Time) (*Artifact, error) {
	encoded, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("encode %s model: %w", model.Name(), err)
	}
	positives, negatives := set.Counts()
	return &Artifact{
		FormatVersion: FormatVersion,
		RunID:         runID,
		Backend:       model.Name(),
		Columns:       slices.Clone(set.Columns),
		LabelColumn:   set.LabelColumn,
		TrainedAt:     trainedAt,
		Positives:     positives,
		Negatives:     negatives,
		Model:         encoded,
		model:         model,
	}, nil
}

// Marshal encodes the artifact.
func (a *Artifact) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalArtifact decodes and validates an artifact, rebuilding its classifier.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("artifact format version %d, expected %d", a.FormatVersion, FormatVersion)
	}
	if len(a.Columns) == 0 {
		return nil, errors.New("artifact has no feature columns")
	}
	model, err := classifier.Decode(a.Backend, a.Model)
	if err != nil {
		return nil, err
	}
	a.model = model
	return &a, nil
}

// CheckColumns fails with a *models.SchemaMismatchError unless columns match the
// training order exactly.
func (a *Artifact) CheckColumns(columns []string) error {
	if !slices.Equal(a.Columns, columns) {
		return &models.SchemaMismatchError{Expected: slices.Clone(a.Columns), Got: slices.Clone(columns)}
	}
	return nil
}

// PredictProbability returns the failure probability of each vector. Vectors are never
// realigned: any column difference is a schema mismatch.
func (a *Artifact) PredictProbability(vectors []models.FeatureVector) ([]float64, error) {
	if a.model == nil {
		return nil, classifier.ErrNotFitted
	}
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		if err := a.CheckColumns(v.Columns); err != nil {
			return nil, err
		}
		rows[i] = v.Values
	}
	if len(rows) == 0 {
		return []float64{}, nil
	}
	return a.model.PredictProba(rows)
}
