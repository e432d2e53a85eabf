package classifier

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrBackendUnavailable is returned when a requested backend is not compiled in.
	ErrBackendUnavailable = errors.New("classifier backend unavailable")
	// ErrNotFitted is returned by PredictProba before Fit succeeded.
	ErrNotFitted = errors.New("classifier not fitted")
)

// Classifier is a binary probabilistic classifier. Implementations are JSON encodable so
// a fitted model can be persisted and decoded with Decode.
type Classifier interface {
	Name() string
	Fit(ctx context.Context, X [][]float64, y []int) error
	PredictProba(X [][]float64) ([]float64, error)
}

// BoostingParams configures the gradient-boosted tree backend.
type BoostingParams struct {
	Rounds         int     `json:"rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
}

// ForestParams configures the random-forest backend.
type ForestParams struct {
	Trees          int `json:"trees"`
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
}

// Params carries the hyperparameters of every backend; each uses its own section.
type Params struct {
	Seed     uint64
	Boosting BoostingParams
	Forest   ForestParams
}

// DefaultParams returns the hyperparameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Seed:     42,
		Boosting: BoostingParams{Rounds: 100, MaxDepth: 5, LearningRate: 0.1, Lambda: 1, MinChildWeight: 1},
		Forest:   ForestParams{Trees: 100, MaxDepth: 10, MinSamplesLeaf: 1},
	}
}

// Backend describes a registered classifier implementation. Higher Priority wins "auto".
type Backend struct {
	Name     string
	Priority int
	New      func(Params) Classifier
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

// Register makes a backend available to Select and Decode. Backends register from init
// functions, so availability is fixed when the binary is built.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Name] = b
}

// Available lists registered backends, most preferred first.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	backends := make([]Backend, 0, len(registry))
	for _, b := range registry {
		backends = append(backends, b)
	}
	slices.SortFunc(backends, func(a, b Backend) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name
	}
	return names
}

// Select resolves a backend name. "auto" or "" picks the most preferred registered backend.
func Select(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		available := Available()
		if len(available) == 0 {
			return Backend{}, fmt.Errorf("%w: none registered", ErrBackendUnavailable)
		}
		name = available[0]
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
	}
	return b, nil
}

// Decode rebuilds a fitted classifier persisted by backend name.
func Decode(name string, data []byte) (Classifier, error) {
	b, err := Select(name)
	if err != nil {
		return nil, err
	}
	c := b.New(Params{})
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", name, err)
	}
	return c, nil
}

func validateTraining(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("no training samples")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d samples but %d labels", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, errors.New("samples have no features")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("sample %d has %d features, expected %d", i, len(row), width)
		}
		if y[i] != 0 && y[i] != 1 {
			return 0, fmt.Errorf("label %d of sample %d is not binary", y[i], i)
		}
	}
	return width, nil
}

func validateInput(X [][]float64, width int) error {
	if width == 0 {
		return ErrNotFitted
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("sample %d has %d features, model expects %d", i, len(row), width)
		}
	}
	return nil
}
