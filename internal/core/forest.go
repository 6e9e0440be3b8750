package core

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultNEstimators = 100
	DefaultRandomState = 42
)

// RandomForest is a bagged ensemble of gini CART trees. Trees are grown one
// after another from seeds drawn off a single generator so a fixed
// RandomState always yields the same forest.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64

	Classes   []int
	NFeatures int
	Trees     []*DecisionTree

	progress func(done, total int)
}

var _ Classifier = (*RandomForest)(nil)

type ModelOption func(*RandomForest)

func WithNEstimators(n int) ModelOption {
	return func(f *RandomForest) { f.NEstimators = n }
}

func WithRandomState(seed int64) ModelOption {
	return func(f *RandomForest) { f.RandomState = seed }
}

// WithMaxDepth limits tree depth. Zero means unlimited.
func WithMaxDepth(depth int) ModelOption {
	return func(f *RandomForest) { f.MaxDepth = depth }
}

func WithMinSamplesSplit(n int) ModelOption {
	return func(f *RandomForest) { f.MinSamplesSplit = n }
}

func WithMinSamplesLeaf(n int) ModelOption {
	return func(f *RandomForest) { f.MinSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split. Zero
// selects floor(sqrt(n_features)).
func WithMaxFeatures(n int) ModelOption {
	return func(f *RandomForest) { f.MaxFeatures = n }
}

func WithBootstrap(bootstrap bool) ModelOption {
	return func(f *RandomForest) { f.Bootstrap = bootstrap }
}

// WithProgress registers a callback invoked after each tree is grown.
func WithProgress(fn func(done, total int)) ModelOption {
	return func(f *RandomForest) { f.progress = fn }
}

func GetModel(opts ...ModelOption) *RandomForest {
	f := &RandomForest{
		NEstimators:     DefaultNEstimators,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     DefaultRandomState,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RandomForest) Fitted() bool {
	return len(f.Trees) > 0
}

func (f *RandomForest) Fit(X mat.Matrix, y []int) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return fmt.Errorf("cannot fit forest on empty input (%dx%d)", n, p)
	}
	if len(y) != n {
		return fmt.Errorf("forest got %d rows but %d labels", n, len(y))
	}
	if f.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", f.NEstimators)
	}
	if f.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", f.MinSamplesSplit)
	}
	if f.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", f.MinSamplesLeaf)
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
		if floats.HasNaN(rows[i]) {
			return fmt.Errorf("row %d contains NaN values", i)
		}
	}

	classes := slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	encoded := make([]int, n)
	for i, label := range y {
		encoded[i], _ = slices.BinarySearch(classes, label)
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}
	maxFeatures = min(maxFeatures, p)

	params := treeParams{
		nClasses:        len(classes),
		maxDepth:        f.MaxDepth,
		minSamplesSplit: f.MinSamplesSplit,
		minSamplesLeaf:  f.MinSamplesLeaf,
		maxFeatures:     maxFeatures,
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	rng := rand.New(rand.NewSource(f.RandomState))
	trees := make([]*DecisionTree, 0, f.NEstimators)
	for t := 0; t < f.NEstimators; t++ {
		treeRng := rand.New(rand.NewSource(rng.Int63()))

		samples := all
		if f.Bootstrap {
			samples = make([]int, n)
			for i := range samples {
				samples[i] = treeRng.Intn(n)
			}
		}

		trees = append(trees, growTree(rows, encoded, samples, params, treeRng))
		if f.progress != nil {
			f.progress(t+1, f.NEstimators)
		}
	}

	f.Classes = classes
	f.NFeatures = p
	f.Trees = trees
	return nil
}

// PredictProba averages the leaf class distributions of every tree. Columns
// follow f.Classes.
func (f *RandomForest) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !f.Fitted() {
		return nil, fmt.Errorf("forest: %w", ErrNotFitted)
	}

	n, p := X.Dims()
	if n == 0 {
		return nil, fmt.Errorf("cannot predict on empty input")
	}
	if p != f.NFeatures {
		return nil, fmt.Errorf("%w: forest expects %d features, got %d", ErrFeatureMismatch, f.NFeatures, p)
	}

	out := mat.NewDense(n, len(f.Classes), nil)
	row := make([]float64, p)
	sum := make([]float64, len(f.Classes))
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		for k := range sum {
			sum[k] = 0
		}
		for _, tree := range f.Trees {
			floats.Add(sum, tree.proba(row))
		}
		floats.Scale(1/float64(len(f.Trees)), sum)
		out.SetRow(i, sum)
	}
	return out, nil
}

func (f *RandomForest) Predict(X mat.Matrix) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}

	n, _ := proba.Dims()
	preds := make([]int, n)
	for i := 0; i < n; i++ {
		// MaxIdx returns the first index on ties, so lower classes win.
		preds[i] = f.Classes[floats.MaxIdx(proba.RawRowView(i))]
	}
	return preds, nil
}
