package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-risk/internal/models"
)

// ToProtoFleetRisk converts a fleet score into its wire representation. Field names
// follow the JSON tags of the domain types.
func ToProtoFleetRisk(fleet *models.FleetRisk) (*structpb.Struct, error) {
	if fleet == nil {
		return nil, fmt.Errorf("fleet risk is nil")
	}
	return toStruct(fleet)
}

// FromProtoFleetRisk converts the wire representation back into the domain type.
func FromProtoFleetRisk(s *structpb.Struct) (*models.FleetRisk, error) {
	if s == nil {
		return nil, fmt.Errorf("response is nil")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var fleet models.FleetRisk
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("decode fleet risk: %w", err)
	}
	return &fleet, nil
}

// ToProtoTrainReport converts an evaluation report and the policy decision.
func ToProtoTrainReport(report models.EvaluationReport, rejection error) (*structpb.Struct, error) {
	payload := struct {
		Report   models.EvaluationReport `json:"report"`
		Accepted bool                    `json:"accepted"`
		Reason   string                  `json:"reason,omitempty"`
	}{Report: report, Accepted: rejection == nil}
	if rejection != nil {
		payload.Reason = rejection.Error()
	}
	return toStruct(payload)
}

// ToProtoModelStatus reports the scorer state and the compiled-in backends.
func ToProtoModelStatus(state string, backends []string) (*structpb.Struct, error) {
	list := make([]any, len(backends))
	for i, b := range backends {
		list[i] = b
	}
	return structpb.NewStruct(map[string]any{
		"state":    state,
		"backends": list,
	})
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
