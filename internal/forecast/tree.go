package forecast

import (
	"math"
	"math/rand"
	"sort"
)

// regressionTree is a CART regression tree grown greedily on squared
// error. Split candidates are drawn from a random feature subset per
// node, which decorrelates the trees of the bagged ensemble.
type regressionTree struct {
	maxDepth int
	minLeaf  int
	root     *treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (t *regressionTree) fit(X [][]float64, y []float64, idx []int, rng *rand.Rand) {
	t.root = t.build(X, y, idx, 0, rng)
}

func (t *regressionTree) predict(x []float64) float64 {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func (t *regressionTree) build(X [][]float64, y []float64, idx []int, depth int, rng *rand.Rand) *treeNode {
	if depth >= t.maxDepth || len(idx) < 2*t.minLeaf {
		return &treeNode{leaf: true, value: meanAt(y, idx)}
	}

	feature, threshold, ok := t.bestSplit(X, y, idx, rng)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(y, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.minLeaf || len(right) < t.minLeaf {
		return &treeNode{leaf: true, value: meanAt(y, idx)}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.build(X, y, left, depth+1, rng),
		right:     t.build(X, y, right, depth+1, rng),
	}
}

// bestSplit scans a random subset of features (one third, at least one)
// for the threshold minimizing the summed squared error of the two sides.
func (t *regressionTree) bestSplit(X [][]float64, y []float64, idx []int, rng *rand.Rand) (feature int, threshold float64, ok bool) {
	nFeatures := len(X[idx[0]])
	tryFeatures := nFeatures / 3
	if tryFeatures < 1 {
		tryFeatures = 1
	}

	bestSSE := math.Inf(1)
	order := make([]int, len(idx))

	for _, f := range rng.Perm(nFeatures)[:tryFeatures] {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		// Incremental left/right sums over the sorted order.
		var sumL, sumSqL float64
		sumR, sumSqR := 0.0, 0.0
		for _, i := range order {
			sumR += y[i]
			sumSqR += y[i] * y[i]
		}

		for s := 1; s < len(order); s++ {
			v := y[order[s-1]]
			sumL += v
			sumSqL += v * v
			sumR -= v
			sumSqR -= v * v

			if s < t.minLeaf || len(order)-s < t.minLeaf {
				continue
			}
			a, b := X[order[s-1]][f], X[order[s]][f]
			if a == b {
				continue
			}
			nL, nR := float64(s), float64(len(order)-s)
			sse := (sumSqL - sumL*sumL/nL) + (sumSqR - sumR*sumR/nR)
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (a + b) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
