package core

import (
	"math/rand"
	"sort"
)

const leafFeature = -1

// TreeNode is one node of a fitted tree. Leaves have Feature == -1 and carry
// the class distribution of the training samples that reached them.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// DecisionTree is a CART classification tree stored as a flat node slice,
// rooted at index 0. Classes are positions in the owning forest's class list.
type DecisionTree struct {
	Nodes []TreeNode
}

type treeParams struct {
	nClasses        int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

type treeBuilder struct {
	X      [][]float64
	y      []int
	params treeParams
	rng    *rand.Rand
	nodes  []TreeNode
}

func growTree(X [][]float64, y []int, samples []int, params treeParams, rng *rand.Rand) *DecisionTree {
	b := &treeBuilder{X: X, y: y, params: params, rng: rng}
	b.build(samples, 0)
	return &DecisionTree{Nodes: b.nodes}
}

func (b *treeBuilder) classCounts(samples []int) []float64 {
	counts := make([]float64, b.params.nClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func (b *treeBuilder) build(samples []int, depth int) int {
	counts := b.classCounts(samples)
	total := float64(len(samples))

	value := make([]float64, len(counts))
	for i, c := range counts {
		value[i] = c / total
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: leafFeature, Value: value})

	impurity := gini(counts, total)
	if len(samples) < b.params.minSamplesSplit ||
		len(samples) < 2*b.params.minSamplesLeaf ||
		impurity == 0 ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) {
		return id
	}

	feature, threshold, ok := b.bestSplit(samples, impurity)
	if !ok {
		return id
	}

	var left, right []int
	for _, s := range samples {
		if b.X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	node := &b.nodes[id]
	node.Feature = feature
	node.Threshold = threshold
	node.Left = l
	node.Right = r

	return id
}

// bestSplit draws features in random order and stops once maxFeatures
// non-constant features have been evaluated.
func (b *treeBuilder) bestSplit(samples []int, parentImpurity float64) (int, float64, bool) {
	nFeatures := len(b.X[samples[0]])
	order := b.rng.Perm(nFeatures)

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := parentImpurity

	sorted := make([]int, len(samples))
	visited := 0
	for _, f := range order {
		if visited >= b.params.maxFeatures {
			break
		}

		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		left := make([]float64, b.params.nClasses)
		right := b.classCounts(sorted)
		total := float64(len(sorted))

		for i := 0; i < len(sorted)-1; i++ {
			label := b.y[sorted[i]]
			left[label]++
			right[label]--

			nLeft := i + 1
			nRight := len(sorted) - nLeft
			if nLeft < b.params.minSamplesLeaf || nRight < b.params.minSamplesLeaf {
				continue
			}

			v, next := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if v == next {
				continue
			}

			weighted := (float64(nLeft)*gini(left, float64(nLeft)) + float64(nRight)*gini(right, float64(nRight))) / total
			if weighted < bestImpurity-1e-12 {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				bestFeature, bestThreshold, bestImpurity = f, threshold, weighted
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (t *DecisionTree) proba(x []float64) []float64 {
	node := &t.Nodes[0]
	for node.Feature != leafFeature {
		if x[node.Feature] <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node.Value
}

func (t *DecisionTree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := t.Nodes[id]
		if n.Feature == leafFeature {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}
