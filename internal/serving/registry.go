package serving

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/internal/storage"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotDeployed  = errors.New("endpoint has no model loaded")
	ErrInvalidInput = errors.New("invalid prediction input")
)

// Registry holds the artifacts served by each deployed endpoint.
type Registry struct {
	storage storage.Provider

	mu     sync.RWMutex
	models map[uuid.UUID]*core.Artifact
}

func NewRegistry(storage storage.Provider) *Registry {
	return &Registry{
		storage: storage,
		models:  make(map[uuid.UUID]*core.Artifact),
	}
}

// Load fetches and decodes the artifact at bucket/key and serves it from the
// given endpoint, replacing whatever the endpoint served before.
func (r *Registry) Load(ctx context.Context, endpointId uuid.UUID, bucket, key string) error {
	data, err := r.storage.GetObject(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("error fetching artifact %s/%s: %w", bucket, key, err)
	}

	artifact, err := core.DecodeArtifact(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("error decoding artifact %s/%s: %w", bucket, key, err)
	}

	r.Set(endpointId, artifact)
	slog.Info("loaded model for endpoint", "endpoint_id", endpointId, "bucket", bucket, "key", key)
	return nil
}

func (r *Registry) Set(endpointId uuid.UUID, artifact *core.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[endpointId] = artifact
}

func (r *Registry) Get(endpointId uuid.UUID) (*core.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	artifact, ok := r.models[endpointId]
	return artifact, ok
}

func (r *Registry) Remove(endpointId uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, endpointId)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

type Prediction struct {
	Classes []int
	Labels  []string
}

func (r *Registry) Predict(endpointId uuid.UUID, instances [][]float64) (Prediction, error) {
	artifact, ok := r.Get(endpointId)
	if !ok {
		return Prediction{}, fmt.Errorf("%w: %s", ErrNotDeployed, endpointId)
	}
	return Predict(artifact, instances)
}

// Predict classifies each instance with the artifact's pipeline.
func Predict(artifact *core.Artifact, instances [][]float64) (Prediction, error) {
	x, err := toMatrix(instances)
	if err != nil {
		return Prediction{}, err
	}

	preds, err := artifact.Predict(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return Prediction{Classes: preds, Labels: artifact.Labels(preds)}, nil
}

func toMatrix(instances [][]float64) (*mat.Dense, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no instances", ErrInvalidInput)
	}

	cols := len(instances[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: instances have no features", ErrInvalidInput)
	}

	data := make([]float64, 0, len(instances)*cols)
	for i, row := range instances {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: instance %d has %d features, expected %d", ErrInvalidInput, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(instances), cols, data), nil
}
