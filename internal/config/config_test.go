package config

import (
	"os"
	"path/filepath"
	"testing"

	"iris-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainerConfigDefaults(t *testing.T) {
	cfg, err := Parse[TrainerConfig]()
	require.NoError(t, err)

	assert.False(t, cfg.RunLocally)
	assert.Equal(t, "/gcs", cfg.BucketMountRoot)
	assert.Equal(t, 0.2, cfg.TestSize)
	assert.Equal(t, int64(42), cfg.SplitSeed)
}

func TestArtifactPathSelection(t *testing.T) {
	t.Setenv("RUN_LOCALLY", "true")
	t.Setenv("LOCAL_ARTIFACT_PATH", "out/model.bst")

	cfg, err := Parse[TrainerConfig]()
	require.NoError(t, err)
	path, err := cfg.ArtifactPath()
	require.NoError(t, err)
	assert.Equal(t, "out/model.bst", path)

	cfg.RunLocally = false
	_, err = cfg.ArtifactPath()
	assert.Error(t, err)

	cfg.BucketName = "my-bucket"
	path, err = cfg.ArtifactPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/gcs", "my-bucket", "model_artifacts", "model.bst"), path)
}

func TestTrainingConfigLoadsModelOptions(t *testing.T) {
	optsPath := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(optsPath, []byte("n_estimators: 12\n"), 0o644))

	cfg := TrainerConfig{
		RunLocally:        true,
		LocalArtifactPath: "model.bst",
		ModelOptionsPath:  optsPath,
		ExperimentName:    "exp",
		TestSize:          0.25,
		SplitSeed:         3,
	}

	tc, err := cfg.TrainingConfig()
	require.NoError(t, err)
	assert.Equal(t, "model.bst", tc.OutputPath)
	assert.Equal(t, 12, tc.Model.NEstimators)
	assert.Equal(t, 0.25, tc.TestSize)
	assert.Equal(t, int64(3), tc.Seed)
	assert.Equal(t, "exp", tc.Experiment)
}

func TestServiceAccountEmail(t *testing.T) {
	assert.Equal(t, "trainer@proj.iam.gserviceaccount.com", ServiceAccountEmail("trainer", "proj"))
	assert.Equal(t, "a@b.com", ServiceAccountEmail("a@b.com", "proj"))
	assert.Equal(t, "", ServiceAccountEmail("", "proj"))
	assert.Equal(t, "trainer", CloudConfig{ServiceAccount: "trainer"}.ServiceAccountEmail())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MODEL_NAME=from-file\n"), 0o644))

	t.Setenv("MODEL_NAME", "")
	os.Unsetenv("MODEL_NAME")
	require.NoError(t, LoadEnvFile(path))

	cfg, err := Parse[CloudConfig]()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ModelName)

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}

func TestStorageProviderSelection(t *testing.T) {
	provider, err := StorageConfig{LocalStorageDir: t.TempDir()}.NewProvider()
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalProvider{}, provider)
}

func TestServiceConfigDefaults(t *testing.T) {
	cfg, err := Parse[ServiceConfig]()
	require.NoError(t, err)
	assert.Equal(t, "8001", cfg.APIPort)
	assert.Equal(t, 1, cfg.Concurrency)

	t.Setenv("CONCURRENCY", "not-a-number")
	_, err = Parse[ServiceConfig]()
	assert.Error(t, err)
}
