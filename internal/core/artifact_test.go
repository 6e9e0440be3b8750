package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitIrisArtifact(t *testing.T) (*Artifact, *Dataset) {
	t.Helper()

	ds, err := LoadIris()
	require.NoError(t, err)
	split, err := TrainTestSplit(ds.Len(), DefaultTestSize, DefaultSplitSeed)
	require.NoError(t, err)
	train, err := ds.Subset(split.Train)
	require.NoError(t, err)
	eval, err := ds.Subset(split.Test)
	require.NoError(t, err)

	pipe := GetPipe(WithNEstimators(10))
	require.NoError(t, pipe.Fit(train.Features, train.Labels))

	return NewArtifact(pipe, ds.FeatureNames, ds.ClassNames), eval
}

func TestArtifactRoundTrip(t *testing.T) {
	artifact, eval := fitIrisArtifact(t)

	path := filepath.Join(t.TempDir(), "nested", "dir", ArtifactName)
	require.NoError(t, SaveArtifact(path, artifact))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.ClassNames, loaded.ClassNames)
	assert.Equal(t, artifact.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, []string{PreprocessorStage, ModelStage}, loaded.Pipeline.StageNames())

	want, err := artifact.Predict(eval.Features)
	require.NoError(t, err)
	got, err := loaded.Predict(eval.Features)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	labels := loaded.Labels([]int{0, 2})
	assert.Equal(t, []string{"setosa", "virginica"}, labels)

	// only the final artifact is left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveArtifactOverwrites(t *testing.T) {
	artifact, _ := fitIrisArtifact(t)
	path := filepath.Join(t.TempDir(), ArtifactName)

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, SaveArtifact(path, artifact))

	_, err := LoadArtifact(path)
	require.NoError(t, err)
}

func TestSaveArtifactErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	artifact, _ := fitIrisArtifact(t)
	assert.Error(t, SaveArtifact(filepath.Join(blocker, ArtifactName), artifact))

	unfitted := NewArtifact(GetPipe(), nil, nil)
	path := filepath.Join(dir, ArtifactName)
	assert.ErrorIs(t, SaveArtifact(path, unfitted), ErrNotFitted)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDecodeArtifactRejectsGarbage(t *testing.T) {
	_, err := DecodeArtifact(bytes.NewReader([]byte("not an artifact")))
	assert.Error(t, err)
}
