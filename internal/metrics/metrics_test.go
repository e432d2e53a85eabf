package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/miradorstack/mirador-risk/internal/models"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveTraining(t *testing.T) {
	before := testutil.ToFloat64(trainingRunsTotal.WithLabelValues("forest", OutcomeSuccess))
	ObserveTraining("forest", time.Second, "ok", 0.83)
	if got := testutil.ToFloat64(trainingRunsTotal.WithLabelValues("forest", OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected success counter to increase, got %v", got)
	}
	if got := testutil.ToFloat64(modelROCAUC); got != 0.83 {
		t.Fatalf("expected roc auc gauge 0.83, got %v", got)
	}

	ObserveTraining("forest", -time.Second, OutcomeRejected, 0.1)
	if got := testutil.ToFloat64(modelROCAUC); got != 0.83 {
		t.Fatalf("rejected runs must not move the roc auc gauge, got %v", got)
	}
}

func TestObserveScoring(t *testing.T) {
	fleet := &models.FleetRisk{
		Records: []models.RiskRecord{
			{EquipmentID: "EQ1", RiskCategory: models.RiskCritical},
			{EquipmentID: "EQ2", RiskCategory: models.RiskCritical},
			{EquipmentID: "EQ3", RiskCategory: models.RiskLow},
		},
		Skipped: []models.SkippedAsset{{EquipmentID: "EQ4", Reason: "bad"}},
	}
	ObserveScoring(10*time.Millisecond, fleet, nil)
	if got := testutil.ToFloat64(fleetRiskAssets.WithLabelValues("Critical")); got != 2 {
		t.Fatalf("expected 2 critical assets, got %v", got)
	}
	if got := testutil.ToFloat64(fleetRiskAssets.WithLabelValues("Medium")); got != 0 {
		t.Fatalf("expected 0 medium assets, got %v", got)
	}
	if got := testutil.ToFloat64(skippedAssets); got != 1 {
		t.Fatalf("expected 1 skipped asset, got %v", got)
	}

	before := testutil.ToFloat64(scoringRunsTotal.WithLabelValues(OutcomeError))
	ObserveScoring(time.Millisecond, nil, errors.New("boom"))
	if got := testutil.ToFloat64(scoringRunsTotal.WithLabelValues(OutcomeError)); got != before+1 {
		t.Fatalf("expected error counter to increase, got %v", got)
	}
}
