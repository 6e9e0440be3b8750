package serving

import (
	"bytes"
	"context"
	"iris-backend/internal/core"
	"iris-backend/internal/storage"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitArtifact(t *testing.T) *core.Artifact {
	t.Helper()

	ds, err := core.LoadIris()
	require.NoError(t, err)
	pipe := core.GetPipe(core.WithNEstimators(5))
	require.NoError(t, pipe.Fit(ds.Features, ds.Labels))
	return core.NewArtifact(pipe, ds.FeatureNames, ds.ClassNames)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, core.EncodeArtifact(&buf, fitArtifact(t)))
	require.NoError(t, provider.PutObject(ctx, "models", "a/model_artifacts/model.bst", &buf))

	registry := NewRegistry(provider)
	endpoint := uuid.New()

	_, err = registry.Predict(endpoint, [][]float64{{5.1, 3.5, 1.4, 0.2}})
	assert.ErrorIs(t, err, ErrNotDeployed)

	require.NoError(t, registry.Load(ctx, endpoint, "models", "a/model_artifacts/model.bst"))
	assert.Equal(t, 1, registry.Len())

	pred, err := registry.Predict(endpoint, [][]float64{{5.1, 3.5, 1.4, 0.2}, {6.7, 3.0, 5.2, 2.3}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, pred.Classes)
	assert.Equal(t, []string{"setosa", "virginica"}, pred.Labels)

	registry.Remove(endpoint)
	assert.Equal(t, 0, registry.Len())

	err = registry.Load(ctx, endpoint, "models", "missing/model.bst")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestPredictValidatesInstances(t *testing.T) {
	artifact := fitArtifact(t)

	for _, instances := range [][][]float64{
		nil,
		{{}},
		{{1, 2, 3, 4}, {1, 2}},
		{{1, 2, 3}},
	} {
		_, err := Predict(artifact, instances)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestFileModelReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), core.ArtifactName)
	require.NoError(t, core.SaveArtifact(path, fitArtifact(t)))

	model, err := NewFileModel(path)
	require.NoError(t, err)
	first := model.Artifact()

	pred, err := model.Predict([][]float64{{5.1, 3.5, 1.4, 0.2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa"}, pred.Labels)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- model.Watch(ctx) }()

	replacement := fitArtifact(t)
	assert.Eventually(t, func() bool {
		require.NoError(t, core.SaveArtifact(path, replacement))
		select {
		case <-model.Reloaded():
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)

	assert.NotSame(t, first, model.Artifact())

	cancel()
	assert.NoError(t, <-done)
}

func TestNewFileModelMissing(t *testing.T) {
	_, err := NewFileModel(filepath.Join(t.TempDir(), core.ArtifactName))
	assert.Error(t, err)
}
