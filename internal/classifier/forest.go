package classifier

import (
	"context"
	"math"
	"math/rand/v2"
)

// BackendForest names the random-forest backend. It is always compiled in.
const BackendForest = "forest"

func init() {
	Register(Backend{
		Name:     BackendForest,
		Priority: 10,
		New: func(p Params) Classifier {
			return NewRandomForest(p.Forest, p.Seed)
		},
	})
}

// RandomForest averages Gini trees grown on bootstrap samples, each split drawing
// sqrt(width) candidate features.
type RandomForest struct {
	Params ForestParams `json:"params"`
	Seed   uint64       `json:"seed"`
	Trees  []Tree       `json:"trees"`
	Width  int          `json:"width"`
}

// NewRandomForest returns an unfitted forest, filling unset parameters with defaults.
func NewRandomForest(p ForestParams, seed uint64) *RandomForest {
	d := DefaultParams().Forest
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	return &RandomForest{Params: p, Seed: seed}
}

func (m *RandomForest) Name() string { return BackendForest }

// Fit grows Params.Trees trees. Tree t draws from its own PCG stream (Seed, t), so the
// forest is reproducible for a given seed.
func (m *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	width, err := validateTraining(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	labels := make([]float64, n)
	ones := make([]float64, n)
	for i, label := range y {
		labels[i] = float64(label)
		ones[i] = 1
	}
	perSplit := max(1, int(math.Sqrt(float64(width))))
	minLeaf := m.Params.MinSamplesLeaf

	trees := make([]Tree, 0, m.Params.Trees)
	for t := 0; t < m.Params.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(m.Seed, uint64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		g := &grower{
			X: X, a: labels, b: ones,
			maxDepth: m.Params.MaxDepth,
			features: func() []int { return rng.Perm(width)[:perSplit] },
			crit: criterion{
				score: func(pos, count float64) float64 {
					if count == 0 {
						return 0
					}
					return -2 * pos * (count - pos) / count
				},
				leaf: func(pos, count float64) float64 {
					if count == 0 {
						return 0
					}
					return pos / count
				},
				allowed: func(_, _ float64, size int) bool { return size >= minLeaf },
			},
		}
		trees = append(trees, g.grow(sample))
	}

	m.Trees = trees
	m.Width = width
	return nil
}

// PredictProba returns the mean positive fraction across trees.
func (m *RandomForest) PredictProba(X [][]float64) ([]float64, error) {
	if err := validateInput(X, m.Width); err != nil {
		return nil, err
	}
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		var sum float64
		for _, t := range m.Trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}
