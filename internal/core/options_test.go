package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModelOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_estimators: 25\nrandom_state: 0\nmax_depth: 4\nbootstrap: false\n"), 0o644))

	opts, err := LoadModelOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 25, opts.NEstimators)
	require.NotNil(t, opts.RandomState)
	assert.Equal(t, int64(0), *opts.RandomState)

	model := GetModel(opts.Options()...)
	assert.Equal(t, 25, model.NEstimators)
	assert.Equal(t, int64(0), model.RandomState)
	assert.Equal(t, 4, model.MaxDepth)
	assert.False(t, model.Bootstrap)
	assert.Equal(t, 2, model.MinSamplesSplit)
}

func TestLoadModelOptionsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_trees: 25\n"), 0o644))

	_, err := LoadModelOptions(path)
	assert.Error(t, err)

	_, err = LoadModelOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolvedOptions(t *testing.T) {
	resolved := ModelOptions{NEstimators: 7}.Resolved()
	assert.Equal(t, 7, resolved.NEstimators)
	assert.Equal(t, int64(DefaultRandomState), *resolved.RandomState)
	assert.True(t, *resolved.Bootstrap)
	assert.Equal(t, 1, resolved.MinSamplesLeaf)
}
