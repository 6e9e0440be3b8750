package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIris(t *testing.T) {
	ds, err := LoadIris()
	require.NoError(t, err)

	assert.Equal(t, 150, ds.Len())
	assert.Equal(t, 4, ds.NumFeatures())
	assert.Equal(t, []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}, ds.FeatureNames)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, ds.ClassNames)

	counts := make([]int, ds.NumClasses())
	for _, l := range ds.Labels {
		counts[l]++
	}
	assert.Equal(t, []int{50, 50, 50}, counts)

	assert.Equal(t, []float64{5.1, 3.5, 1.4, 0.2}, ds.Features.RawRowView(0))
	assert.Equal(t, []float64{5.9, 3.0, 5.1, 1.8}, ds.Features.RawRowView(149))
}

func TestDatasetSubsetKeepsClasses(t *testing.T) {
	ds, err := LoadIris()
	require.NoError(t, err)

	sub, err := ds.Subset([]int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, []int{0, 0, 0}, sub.Labels)
	assert.Equal(t, 3, sub.NumClasses())
	assert.Equal(t, ds.Features.RawRowView(2), sub.Features.RawRowView(2))

	_, err = ds.Subset([]int{150})
	assert.Error(t, err)
	_, err = ds.Subset(nil)
	assert.Error(t, err)
}

func TestLoadCSVErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":       "",
		"header only": "a,b,label\n",
		"bad value":   "a,label\nx,foo\n",
		"one column":  "label\nfoo\n",
		"ragged":      "a,b,label\n1,2,foo\n1,foo\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}
