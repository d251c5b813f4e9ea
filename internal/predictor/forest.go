package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DefaultTrees is the forest size used when none is configured.
const DefaultTrees = 100

// node is one entry of a flattened regression tree. Leaves have Left == -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a node slice with the root at 0.
type Tree struct {
	Nodes []node `json:"nodes"`
}

// Predict walks the tree for one scaled feature row.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// RandomForest averages bootstrap-trained regression trees.
type RandomForest struct {
	NFeatures int     `json:"n_features"`
	Trees     []*Tree `json:"trees"`
}

// FitRandomForest trains nTrees trees, each on a bootstrap sample of (X, y).
// Splits minimise the summed squared error of the two children and trees
// grow until leaves are pure or cannot be split.
func FitRandomForest(X [][]float64, y []float64, nTrees int, rng *rand.Rand) (*RandomForest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, errors.New("FitRandomForest: need equal, non-zero numbers of rows and targets")
	}
	if nTrees <= 0 {
		nTrees = DefaultTrees
	}

	f := &RandomForest{NFeatures: len(X[0]), Trees: make([]*Tree, 0, nTrees)}
	n := len(X)
	for k := 0; k < nTrees; k++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		b := &treeBuilder{X: X, y: y}
		b.build(sample)
		f.Trees = append(f.Trees, &Tree{Nodes: b.nodes})
	}
	return f, nil
}

// Predict returns the mean of all tree predictions for one scaled row.
func (f *RandomForest) Predict(x []float64) (float64, error) {
	if len(x) != f.NFeatures {
		return 0, fmt.Errorf("forest fitted on %d features, got %d", f.NFeatures, len(x))
	}
	if len(f.Trees) == 0 {
		return 0, errors.New("forest has no trees")
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

type treeBuilder struct {
	X     [][]float64
	y     []float64
	nodes []node
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int) int {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	pos := len(b.nodes)
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Value: sum / float64(len(idx))})

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left)
	r := b.build(right)
	b.nodes[pos].Feature = feature
	b.nodes[pos].Threshold = threshold
	b.nodes[pos].Left = l
	b.nodes[pos].Right = r
	return pos
}

// bestSplit scans every feature for the threshold with the lowest child SSE.
// ok is false when the node is pure or every feature is constant over idx.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	if n < 2 {
		return 0, 0, false
	}

	pure := true
	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
		if b.y[i] != b.y[idx[0]] {
			pure = false
		}
	}
	if pure {
		return 0, 0, false
	}

	best := math.Inf(1)
	sorted := make([]int, n)
	for f := 0; f < len(b.X[idx[0]]); f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			yv := b.y[sorted[k-1]]
			leftSum += yv
			leftSq += yv * yv

			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(k)) +
				(rightSq - rightSum*rightSum/float64(n-k))
			if sse < best {
				best = sse
				feature = f
				threshold = (lo + hi) / 2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}
