//go:build !noboost

package classifier

import (
	"context"
	"testing"
)

func TestGBTIsPreferredWhenCompiledIn(t *testing.T) {
	auto, err := Select("")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if auto.Name != BackendGBT {
		t.Fatalf("expected gbt to win auto selection, got %s", auto.Name)
	}
}

func TestGBTTreeDepthBounded(t *testing.T) {
	X, y := separable(100, 11)
	model := NewGradientBoosting(BoostingParams{Rounds: 3, MaxDepth: 2, LearningRate: 0.3, Lambda: 1, MinChildWeight: 1})
	if err := model.Fit(context.Background(), X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(model.Trees) != 3 {
		t.Fatalf("expected 3 trees, got %d", len(model.Trees))
	}
	for _, tree := range model.Trees {
		// A depth-2 binary tree has at most 7 nodes.
		if len(tree.Nodes) > 7 {
			t.Fatalf("tree exceeds depth bound: %d nodes", len(tree.Nodes))
		}
	}
}
