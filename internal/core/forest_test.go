package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRandomForestIsDeterministic(t *testing.T) {
	ds, err := LoadIris()
	require.NoError(t, err)

	a := GetModel(WithNEstimators(15))
	require.NoError(t, a.Fit(ds.Features, ds.Labels))
	b := GetModel(WithNEstimators(15))
	require.NoError(t, b.Fit(ds.Features, ds.Labels))
	assert.Equal(t, a.Trees, b.Trees)

	c := GetModel(WithNEstimators(15), WithRandomState(1))
	require.NoError(t, c.Fit(ds.Features, ds.Labels))
	assert.NotEqual(t, a.Trees, c.Trees)
}

func TestRandomForestSeparableData(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := []int{3, 3, 3, 7, 7, 7}

	forest := GetModel(WithNEstimators(5), WithBootstrap(false))
	require.NoError(t, forest.Fit(X, y))
	assert.Equal(t, []int{3, 7}, forest.Classes)

	preds, err := forest.Predict(mat.NewDense(2, 1, []float64{-5, 20}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, preds)

	for _, tree := range forest.Trees {
		assert.Equal(t, 1, tree.Depth())
		assert.Equal(t, 6.0, tree.Nodes[0].Threshold)
	}
}

func TestRandomForestMaxDepth(t *testing.T) {
	ds, err := LoadIris()
	require.NoError(t, err)

	forest := GetModel(WithNEstimators(5), WithMaxDepth(2))
	require.NoError(t, forest.Fit(ds.Features, ds.Labels))
	for _, tree := range forest.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
}

func TestRandomForestSingleClass(t *testing.T) {
	forest := GetModel(WithNEstimators(3))
	require.NoError(t, forest.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}), []int{2, 2, 2}))

	preds, err := forest.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, preds)
}

func TestRandomForestProgress(t *testing.T) {
	var calls []int
	forest := GetModel(WithNEstimators(4), WithProgress(func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	}))
	require.NoError(t, forest.Fit(mat.NewDense(2, 1, []float64{0, 1}), []int{0, 1}))
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestRandomForestErrors(t *testing.T) {
	forest := GetModel(WithNEstimators(2))

	_, err := forest.Predict(mat.NewDense(1, 1, []float64{0}))
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, forest.Fit(mat.NewDense(2, 1, []float64{0, 1}), []int{0}))
	assert.Error(t, GetModel(WithNEstimators(0)).Fit(mat.NewDense(2, 1, []float64{0, 1}), []int{0, 1}))
	assert.Error(t, GetModel(WithMinSamplesSplit(1)).Fit(mat.NewDense(2, 1, []float64{0, 1}), []int{0, 1}))

	require.NoError(t, forest.Fit(mat.NewDense(2, 1, []float64{0, 1}), []int{0, 1}))
	_, err = forest.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}
