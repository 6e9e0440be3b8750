package config

import (
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/internal/storage"
	"log"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const managedArtifactDir = "model_artifacts"

// TrainerConfig selects where a training run writes its artifact and how the
// run is parameterised.
type TrainerConfig struct {
	RunLocally        bool    `env:"RUN_LOCALLY" envDefault:"false"`
	LocalArtifactPath string  `env:"LOCAL_ARTIFACT_PATH" envDefault:"model_artifacts/model.bst"`
	BucketMountRoot   string  `env:"BUCKET_MOUNT_ROOT" envDefault:"/gcs"`
	BucketName        string  `env:"BUCKET_NAME"`
	ModelOptionsPath  string  `env:"MODEL_OPTIONS_PATH"`
	ExperimentName    string  `env:"EXPERIMENT_NAME" envDefault:"iris-classifier"`
	TestSize          float64 `env:"TEST_SIZE" envDefault:"0.2"`
	SplitSeed         int64   `env:"SPLIT_SEED" envDefault:"42"`
}

// CloudConfig holds the identity and display names used when submitting jobs
// and deploying endpoints.
type CloudConfig struct {
	ProjectID      string `env:"PROJECT_ID"`
	Location       string `env:"LOCATION" envDefault:"us-central1"`
	ServiceAccount string `env:"VERTEX_SA"`
	ModelName      string `env:"MODEL_NAME" envDefault:"iris-classifier"`
	TrainingName   string `env:"TRAINING_NAME" envDefault:"iris-training"`
	EndpointName   string `env:"ENDPOINT_NAME" envDefault:"iris-endpoint"`
}

type StorageConfig struct {
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR"`
	ModelBucketName   string `env:"MODEL_BUCKET_NAME" envDefault:"models"`
}

// ServiceConfig is shared by the api and worker processes.
type ServiceConfig struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"iris.db"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	APIPort     string `env:"API_PORT" envDefault:"8001"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"1"`
	ScratchDir  string `env:"SCRATCH_DIR" envDefault:"scratch"`
}

type ClientConfig struct {
	APIURL string `env:"API_URL" envDefault:"http://localhost:8001"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Parse reads a config struct from the process environment.
func Parse[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads key/value pairs from a dotenv file into the process
// environment. Variables that are already set win.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file '%s': %w", path, err)
	}
	return nil
}

func ManagedArtifactPath(mountRoot, bucket string) string {
	return filepath.Join(mountRoot, bucket, managedArtifactDir, core.ArtifactName)
}

// ArtifactKey is the object key of a model's artifact inside the model bucket.
func ArtifactKey(prefix string) string {
	return prefix + "/" + managedArtifactDir + "/" + core.ArtifactName
}

func (c TrainerConfig) ArtifactPath() (string, error) {
	if c.RunLocally {
		if c.LocalArtifactPath == "" {
			return "", fmt.Errorf("RUN_LOCALLY is set but LOCAL_ARTIFACT_PATH is empty")
		}
		return c.LocalArtifactPath, nil
	}

	if c.BucketName == "" {
		return "", fmt.Errorf("BUCKET_NAME is required when not running locally")
	}
	return ManagedArtifactPath(c.BucketMountRoot, c.BucketName), nil
}

// TrainingConfig resolves the artifact path and model options into the
// explicit config consumed by core.Train.
func (c TrainerConfig) TrainingConfig() (core.TrainingConfig, error) {
	path, err := c.ArtifactPath()
	if err != nil {
		return core.TrainingConfig{}, err
	}

	cfg := core.DefaultTrainingConfig(path)
	cfg.TestSize = c.TestSize
	cfg.Seed = c.SplitSeed
	cfg.Experiment = c.ExperimentName

	if c.ModelOptionsPath != "" {
		opts, err := core.LoadModelOptions(c.ModelOptionsPath)
		if err != nil {
			return core.TrainingConfig{}, err
		}
		cfg.Model = opts
	}

	return cfg, nil
}

// ServiceAccountEmail expands a bare account name into a full service account
// address for the configured project.
func (c CloudConfig) ServiceAccountEmail() string {
	return ServiceAccountEmail(c.ServiceAccount, c.ProjectID)
}

func ServiceAccountEmail(account, project string) string {
	if account == "" || strings.Contains(account, "@") || project == "" {
		return account
	}
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", account, project)
}

// NewProvider returns an S3 provider when an endpoint or credentials are
// configured, and a local filesystem provider otherwise.
func (c StorageConfig) NewProvider() (storage.Provider, error) {
	if c.S3EndpointURL != "" || c.S3AccessKeyID != "" {
		slog.Info("using s3 storage", "endpoint", c.S3EndpointURL, "region", c.S3Region)
		return storage.NewS3Provider(&storage.S3ProviderConfig{
			S3EndpointURL:     c.S3EndpointURL,
			S3AccessKeyID:     c.S3AccessKeyID,
			S3SecretAccessKey: c.S3SecretAccessKey,
			S3Region:          c.S3Region,
		})
	}

	dir := c.LocalStorageDir
	if dir == "" {
		dir = "storage"
	}
	slog.Info("using local storage", "dir", dir)
	return storage.NewLocalProvider(dir)
}
