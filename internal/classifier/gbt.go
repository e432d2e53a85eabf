//go:build !noboost

package classifier

import (
	"context"
	"math"
)

// BackendGBT names the gradient-boosted tree backend. Build with -tags noboost to leave it out.
const BackendGBT = "gbt"

func init() {
	Register(Backend{
		Name:     BackendGBT,
		Priority: 20,
		New:      func(p Params) Classifier { return NewGradientBoosting(p.Boosting) },
	})
}

// GradientBoosting fits additive regression trees to the logistic loss using second
// order (Newton) leaf weights with L2 regularisation.
type GradientBoosting struct {
	Params    BoostingParams `json:"params"`
	BaseScore float64        `json:"base_score"`
	Trees     []Tree         `json:"trees"`
	Width     int            `json:"width"`
}

// NewGradientBoosting returns an unfitted model, filling unset parameters with defaults.
func NewGradientBoosting(p BoostingParams) *GradientBoosting {
	d := DefaultParams().Boosting
	if p.Rounds <= 0 {
		p.Rounds = d.Rounds
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Lambda < 0 {
		p.Lambda = d.Lambda
	}
	if p.MinChildWeight < 0 {
		p.MinChildWeight = d.MinChildWeight
	}
	return &GradientBoosting{Params: p}
}

func (m *GradientBoosting) Name() string { return BackendGBT }

// Fit trains Rounds trees. It checks ctx between rounds.
func (m *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []int) error {
	width, err := validateTraining(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	var positives float64
	for _, label := range y {
		positives += float64(label)
	}
	prior := math.Min(math.Max(positives/float64(n), 1e-6), 1-1e-6)
	base := math.Log(prior / (1 - prior))

	lambda, lr := m.Params.Lambda, m.Params.LearningRate
	grad := make([]float64, n)
	hess := make([]float64, n)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = base
	}
	g := &grower{
		X: X, a: grad, b: hess,
		maxDepth: m.Params.MaxDepth,
		features: allFeatures(width),
		crit: criterion{
			score: func(sg, sh float64) float64 { return 0.5 * sg * sg / (sh + lambda) },
			leaf:  func(sg, sh float64) float64 { return -lr * sg / (sh + lambda) },
			allowed: func(_, sh float64, _ int) bool {
				return sh >= m.Params.MinChildWeight
			},
		},
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	trees := make([]Tree, 0, m.Params.Rounds)
	for round := 0; round < m.Params.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range X {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
		tree := g.grow(all)
		for i, row := range X {
			margin[i] += tree.predict(row)
		}
		trees = append(trees, tree)
	}

	m.BaseScore = base
	m.Trees = trees
	m.Width = width
	return nil
}

// PredictProba returns P(y=1) for each row.
func (m *GradientBoosting) PredictProba(X [][]float64) ([]float64, error) {
	if err := validateInput(X, m.Width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		margin := m.BaseScore
		for _, t := range m.Trees {
			margin += t.predict(row)
		}
		out[i] = sigmoid(margin)
	}
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
