package forecast

import (
	"fmt"
	"math/rand"
)

// Model is a trainable price regressor. The interface is deliberately
// narrow so the underlying technique (bagged trees, linear model, an
// external library) can be swapped without touching the orchestrator.
type Model interface {
	Train(X [][]float64, y []float64) error
	Predict(features []float64) float64
}

// Forest is a bagged ensemble of regression trees. Given a fixed seed,
// training and prediction are fully deterministic.
type Forest struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64

	trees []*regressionTree
}

// NewForest creates a forest with the given ensemble size and seed.
func NewForest(trees int, seed int64) *Forest {
	return &Forest{
		Trees:    trees,
		MaxDepth: 10,
		MinLeaf:  3,
		Seed:     seed,
	}
}

// Train grows the ensemble, each tree on a bootstrap sample of the
// examples.
func (f *Forest) Train(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("no training examples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature/label length mismatch: %d vs %d", len(X), len(y))
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.trees = make([]*regressionTree, f.Trees)
	n := len(X)
	for t := 0; t < f.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		tree := &regressionTree{maxDepth: f.MaxDepth, minLeaf: f.MinLeaf}
		tree.fit(X, y, sample, rng)
		f.trees[t] = tree
	}
	return nil
}

// Predict returns the mean prediction over all trees.
func (f *Forest) Predict(features []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, tree := range f.trees {
		sum += tree.predict(features)
	}
	return sum / float64(len(f.trees))
}
