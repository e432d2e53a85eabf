package classifier

import (
	"slices"
)

// Node is one node of a flattened binary tree. A node with Left == 0 is a leaf:
// index 0 is always the root, so no child can point at it.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a flattened decision tree. Samples with x[Feature] <= Threshold go left.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// criterion defines a split objective over two per-sample statistics a and b.
// Boosting uses (gradient, hessian), the forest uses (label, 1).
type criterion struct {
	score   func(a, b float64) float64
	leaf    func(a, b float64) float64
	allowed func(a, b float64, n int) bool
}

const minGain = 1e-12

type grower struct {
	X        [][]float64
	a, b     []float64
	crit     criterion
	maxDepth int
	features func() []int
	nodes    []Node
}

func (g *grower) grow(idx []int) Tree {
	g.nodes = g.nodes[:0]
	g.build(idx, 0)
	return Tree{Nodes: slices.Clone(g.nodes)}
}

func (g *grower) sums(idx []int) (float64, float64) {
	var a, b float64
	for _, i := range idx {
		a += g.a[i]
		b += g.b[i]
	}
	return a, b
}

func (g *grower) build(idx []int, depth int) int {
	a, b := g.sums(idx)
	self := len(g.nodes)
	g.nodes = append(g.nodes, Node{Value: g.crit.leaf(a, b)})
	if depth >= g.maxDepth || len(idx) < 2 {
		return self
	}

	feature, threshold, cut, ok := g.bestSplit(idx, a, b)
	if !ok {
		return self
	}
	ordered := slices.Clone(idx)
	sortByFeature(g.X, ordered, feature)
	left := g.build(ordered[:cut], depth+1)
	right := g.build(ordered[cut:], depth+1)
	g.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: left, Right: right}
	return self
}

func (g *grower) bestSplit(idx []int, totalA, totalB float64) (feature int, threshold float64, cut int, ok bool) {
	parent := g.crit.score(totalA, totalB)
	bestGain := minGain
	ordered := make([]int, len(idx))
	for _, f := range g.features() {
		copy(ordered, idx)
		sortByFeature(g.X, ordered, f)
		var leftA, leftB float64
		for k := 1; k < len(ordered); k++ {
			prev := ordered[k-1]
			leftA += g.a[prev]
			leftB += g.b[prev]
			lo, hi := g.X[prev][f], g.X[ordered[k]][f]
			if lo == hi {
				continue
			}
			rightA, rightB := totalA-leftA, totalB-leftB
			if !g.crit.allowed(leftA, leftB, k) || !g.crit.allowed(rightA, rightB, len(ordered)-k) {
				continue
			}
			gain := g.crit.score(leftA, leftB) + g.crit.score(rightA, rightB) - parent
			if gain > bestGain {
				bestGain = gain
				feature, threshold, cut, ok = f, lo+(hi-lo)/2, k, true
			}
		}
	}
	return feature, threshold, cut, ok
}

func sortByFeature(X [][]float64, idx []int, f int) {
	slices.SortStableFunc(idx, func(i, j int) int {
		switch {
		case X[i][f] < X[j][f]:
			return -1
		case X[i][f] > X[j][f]:
			return 1
		default:
			return 0
		}
	})
}

func allFeatures(width int) func() []int {
	all := make([]int, width)
	for i := range all {
		all[i] = i
	}
	return func() []int { return all }
}
