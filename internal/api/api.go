package api

import (
	"context"
	"errors"
	"fmt"
	"iris-backend/internal/config"
	"iris-backend/internal/core"
	"iris-backend/internal/database"
	"iris-backend/internal/messaging"
	"iris-backend/internal/serving"
	"iris-backend/internal/storage"
	"iris-backend/internal/tracking"
	"iris-backend/pkg/api"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultMachineType = "n1-standard-4"
	latestSuffix       = "@latest"
)

type BackendService struct {
	db          *gorm.DB
	storage     storage.Provider
	publisher   messaging.Publisher
	registry    *serving.Registry
	modelBucket string
	cloud       config.CloudConfig
}

func NewBackendService(db *gorm.DB, storage storage.Provider, pub messaging.Publisher, registry *serving.Registry, modelBucket string, cloud config.CloudConfig) *BackendService {
	if err := storage.CreateBucket(context.Background(), modelBucket); err != nil {
		slog.Error("error creating model bucket", "bucket", modelBucket, "error", err)
		panic(fmt.Sprintf("failed to create model bucket: %v", err))
	}

	return &BackendService{
		db:          db,
		storage:     storage,
		publisher:   pub,
		registry:    registry,
		modelBucket: modelBucket,
		cloud:       cloud,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/models", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitTrainingJob))
		r.Get("/", RestHandler(s.ListModels))
		r.Get("/{model_id}", RestHandler(s.GetModel))
		r.Delete("/{model_id}", RestHandler(s.DeleteModel))
	})

	r.Route("/endpoints", func(r chi.Router) {
		r.Post("/", RestHandler(s.DeployModel))
		r.Get("/", RestHandler(s.ListEndpoints))
		r.Get("/{endpoint_id}", RestHandler(s.GetEndpoint))
		r.Delete("/{endpoint_id}", RestHandler(s.UndeployModel))
		r.Post("/{endpoint_id}/predict", RestHandler(s.Predict))
	})

	r.Route("/experiments", func(r chi.Router) {
		r.Get("/{experiment}/runs", RestHandler(s.ListExperimentRuns))
	})
}

func (s *BackendService) scheme() string {
	return storage.Scheme(s.storage)
}

func validateOptions(opts core.ModelOptions) error {
	if opts.NEstimators < 0 || opts.MaxDepth < 0 || opts.MinSamplesSplit < 0 || opts.MinSamplesLeaf < 0 || opts.MaxFeatures < 0 {
		return CodedErrorf(http.StatusBadRequest, "model options must not be negative")
	}
	if opts.MinSamplesSplit == 1 {
		return CodedErrorf(http.StatusBadRequest, "min_samples_split must be at least 2")
	}
	return nil
}

func (s *BackendService) SubmitTrainingJob(r *http.Request) (any, error) {
	req, err := ParseRequest[api.TrainRequest](r)
	if err != nil {
		return nil, err
	}

	if req.ModelName == "" {
		req.ModelName = s.cloud.ModelName
	}
	if req.TrainingName == "" {
		req.TrainingName = s.cloud.TrainingName
	}
	if req.ExperimentName == "" {
		req.ExperimentName = req.ModelName
	}
	if req.ServiceAccount == "" {
		req.ServiceAccount = s.cloud.ServiceAccount
	}

	for kind, name := range map[string]string{"model": req.ModelName, "training": req.TrainingName, "experiment": req.ExperimentName} {
		if err := validateName(kind, name); err != nil {
			return nil, err
		}
	}

	if req.TestSize == 0 {
		req.TestSize = core.DefaultTestSize
	}
	if req.TestSize <= 0 || req.TestSize >= 1 {
		return nil, CodedErrorf(http.StatusBadRequest, "test size must be in (0, 1), got %v", req.TestSize)
	}

	seed := int64(core.DefaultSplitSeed)
	if req.Seed != nil {
		seed = *req.Seed
	}

	if err := validateOptions(req.ModelOptions); err != nil {
		return nil, err
	}

	options, err := database.ToJSON(req.ModelOptions)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	ctx := r.Context()

	modelId := uuid.New()
	model := database.Model{
		Id:             modelId,
		Name:           req.ModelName,
		TrainingName:   req.TrainingName,
		ServiceAccount: config.ServiceAccountEmail(req.ServiceAccount, s.cloud.ProjectID),
		Experiment:     req.ExperimentName,
		Status:         database.ModelQueued,
		Options:        options,
		TestSize:       req.TestSize,
		Seed:           seed,
		ArtifactBucket: s.modelBucket,
		ArtifactKey:    config.ArtifactKey(modelId.String()),
		CreationTime:   time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		slog.Error("error creating model", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create model entry")
	}

	payload := messaging.TrainTaskPayload{
		ModelId:    model.Id,
		Options:    req.ModelOptions,
		TestSize:   req.TestSize,
		Seed:       seed,
		Experiment: req.ExperimentName,
	}

	if err := s.publisher.PublishTrainTask(ctx, payload); err != nil {
		slog.Error("error publishing training task", "model_id", model.Id, "error", err)
		database.SaveModelError(ctx, s.db, model.Id, "failed to queue training task") //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue training task")
	}

	slog.Info("submitted training job", "model_id", model.Id, "name", model.Name)
	return api.TrainResponse{
		ModelId:     model.Id,
		ModelName:   model.Name,
		ArtifactUri: storage.URI(s.scheme(), model.ArtifactBucket, model.ArtifactKey),
	}, nil
}

func (s *BackendService) ListModels(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListModelsParams](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Order("creation_time DESC")
	if params.Name != "" {
		query = query.Where("name = ?", params.Name)
	}
	if params.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(params.Status))
	}

	var models []database.Model
	if err := query.Find(&models).Error; err != nil {
		slog.Error("error listing models", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving model records")
	}

	return convertModels(models, s.scheme()), nil
}

func (s *BackendService) getModel(ctx context.Context, modelId uuid.UUID) (database.Model, error) {
	var model database.Model
	if err := s.db.WithContext(ctx).First(&model, "id = ?", modelId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, CodedErrorf(http.StatusNotFound, "model not found")
		}
		slog.Error("error getting model", "model_id", modelId, "error", err)
		return model, CodedErrorf(http.StatusInternalServerError, "error retrieving model record")
	}
	return model, nil
}

func (s *BackendService) GetModel(r *http.Request) (any, error) {
	modelId, err := URLParamUUID(r, "model_id")
	if err != nil {
		return nil, err
	}

	model, err := s.getModel(r.Context(), modelId)
	if err != nil {
		return nil, err
	}

	return convertModel(model, s.scheme()), nil
}

func (s *BackendService) DeleteModel(r *http.Request) (any, error) {
	modelId, err := URLParamUUID(r, "model_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	model, err := s.getModel(ctx, modelId)
	if err != nil {
		return nil, err
	}

	if model.Status == database.ModelQueued || model.Status == database.ModelTraining {
		return nil, CodedErrorf(http.StatusConflict, "model is still %s", strings.ToLower(model.Status))
	}

	var endpoints int64
	if err := s.db.WithContext(ctx).Model(&database.Endpoint{}).Where("model_id = ?", modelId).Count(&endpoints).Error; err != nil {
		slog.Error("error counting endpoints for model", "model_id", modelId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error checking model endpoints")
	}
	if endpoints > 0 {
		return nil, CodedErrorf(http.StatusConflict, "model is used by %d endpoint(s)", endpoints)
	}

	if err := s.storage.DeleteObjects(ctx, model.ArtifactBucket, modelId.String()+"/"); err != nil {
		slog.Error("error deleting model artifacts", "model_id", modelId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting model artifacts")
	}

	if err := s.db.WithContext(ctx).Delete(&database.Model{Id: modelId}).Error; err != nil {
		slog.Error("error deleting model", "model_id", modelId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting model record")
	}

	slog.Info("deleted model", "model_id", modelId)
	return nil, nil
}

func (s *BackendService) DeployModel(r *http.Request) (any, error) {
	req, err := ParseRequest[api.DeployRequest](r)
	if err != nil {
		return nil, err
	}

	if req.EndpointName == "" {
		req.EndpointName = s.cloud.EndpointName
	}
	if req.ModelName == "" {
		req.ModelName = s.cloud.ModelName
	}
	if req.MachineType == "" {
		req.MachineType = DefaultMachineType
	}
	if req.MinReplicas == 0 {
		req.MinReplicas = 1
	}
	if req.MaxReplicas == 0 {
		req.MaxReplicas = req.MinReplicas
	}
	if req.ServiceAccount == "" {
		req.ServiceAccount = s.cloud.ServiceAccount
	}

	modelName := strings.TrimSuffix(req.ModelName, latestSuffix)
	if err := validateName("model", modelName); err != nil {
		return nil, err
	}
	if err := validateName("endpoint", req.EndpointName); err != nil {
		return nil, err
	}
	if req.MinReplicas < 1 || req.MaxReplicas < req.MinReplicas {
		return nil, CodedErrorf(http.StatusBadRequest, "replica counts must satisfy 1 <= min (%d) <= max (%d)", req.MinReplicas, req.MaxReplicas)
	}

	ctx := r.Context()

	model, err := database.LatestTrainedModel(ctx, s.db, modelName)
	if err != nil {
		if errors.Is(err, database.ErrNoTrainedModel) {
			return nil, CodedErrorf(http.StatusNotFound, "no trained model named '%s'", modelName)
		}
		slog.Error("error resolving model", "model_name", modelName, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error resolving model")
	}

	endpoint := database.Endpoint{
		Id:             uuid.New(),
		Name:           req.EndpointName,
		ModelId:        model.Id,
		MachineType:    req.MachineType,
		MinReplicas:    req.MinReplicas,
		MaxReplicas:    req.MaxReplicas,
		ServiceAccount: config.ServiceAccountEmail(req.ServiceAccount, s.cloud.ProjectID),
		Status:         database.EndpointDeploying,
		CreationTime:   time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&endpoint).Error; err != nil {
		slog.Error("error creating endpoint", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create endpoint entry")
	}

	if err := s.registry.Load(ctx, endpoint.Id, model.ArtifactBucket, model.ArtifactKey); err != nil {
		slog.Error("error loading model for endpoint", "endpoint_id", endpoint.Id, "model_id", model.Id, "error", err)
		database.UpdateEndpointStatus(ctx, s.db, endpoint.Id, database.EndpointFailed, err) //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to deploy model %s", model.Id)
	}

	if err := database.UpdateEndpointStatus(ctx, s.db, endpoint.Id, database.EndpointDeployed, nil); err != nil {
		s.registry.Remove(endpoint.Id)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to update endpoint status")
	}

	slog.Info("deployed model", "endpoint_id", endpoint.Id, "model_id", model.Id, "model_name", model.Name)

	return s.getEndpoint(ctx, endpoint.Id)
}

func (s *BackendService) ListEndpoints(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListEndpointsParams](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Preload("Model").Order("creation_time DESC")
	if params.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(params.Status))
	}

	var endpoints []database.Endpoint
	if err := query.Find(&endpoints).Error; err != nil {
		slog.Error("error listing endpoints", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving endpoint records")
	}

	return convertEndpoints(endpoints), nil
}

func (s *BackendService) findEndpoint(ctx context.Context, endpointId uuid.UUID) (database.Endpoint, error) {
	var endpoint database.Endpoint
	if err := s.db.WithContext(ctx).Preload("Model").First(&endpoint, "id = ?", endpointId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return endpoint, CodedErrorf(http.StatusNotFound, "endpoint not found")
		}
		slog.Error("error getting endpoint", "endpoint_id", endpointId, "error", err)
		return endpoint, CodedErrorf(http.StatusInternalServerError, "error retrieving endpoint record")
	}
	return endpoint, nil
}

func (s *BackendService) getEndpoint(ctx context.Context, endpointId uuid.UUID) (api.Endpoint, error) {
	endpoint, err := s.findEndpoint(ctx, endpointId)
	if err != nil {
		return api.Endpoint{}, err
	}
	return convertEndpoint(endpoint), nil
}

func (s *BackendService) GetEndpoint(r *http.Request) (any, error) {
	endpointId, err := URLParamUUID(r, "endpoint_id")
	if err != nil {
		return nil, err
	}

	return s.getEndpoint(r.Context(), endpointId)
}

func (s *BackendService) UndeployModel(r *http.Request) (any, error) {
	endpointId, err := URLParamUUID(r, "endpoint_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	if _, err := s.findEndpoint(ctx, endpointId); err != nil {
		return nil, err
	}

	s.registry.Remove(endpointId)

	if err := s.db.WithContext(ctx).Delete(&database.Endpoint{Id: endpointId}).Error; err != nil {
		slog.Error("error deleting endpoint", "endpoint_id", endpointId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting endpoint record")
	}

	slog.Info("undeployed endpoint", "endpoint_id", endpointId)
	return nil, nil
}

func (s *BackendService) Predict(r *http.Request) (any, error) {
	endpointId, err := URLParamUUID(r, "endpoint_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.PredictRequest](r)
	if err != nil {
		return nil, err
	}

	endpoint, err := s.findEndpoint(r.Context(), endpointId)
	if err != nil {
		return nil, err
	}
	if endpoint.Status != database.EndpointDeployed {
		return nil, CodedErrorf(http.StatusConflict, "endpoint is not deployed: endpoint has status: %s", endpoint.Status)
	}

	pred, err := s.registry.Predict(endpointId, req.Instances)
	if err != nil {
		switch {
		case errors.Is(err, serving.ErrInvalidInput):
			return nil, CodedError(http.StatusBadRequest, err)
		case errors.Is(err, serving.ErrNotDeployed):
			return nil, CodedError(http.StatusConflict, err)
		default:
			return nil, CodedError(http.StatusInternalServerError, err)
		}
	}

	return api.PredictResponse{
		Predictions: pred.Classes,
		Labels:      pred.Labels,
		ModelId:     endpoint.ModelId,
	}, nil
}

func (s *BackendService) ListExperimentRuns(r *http.Request) (any, error) {
	experiment := chi.URLParam(r, "experiment")
	if err := validateName("experiment", experiment); err != nil {
		return nil, err
	}

	runs, err := tracking.ListRuns(r.Context(), s.db, experiment)
	if err != nil {
		slog.Error("error listing experiment runs", "experiment", experiment, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving experiment runs")
	}

	return convertRuns(runs), nil
}

// ReloadEndpoints loads the model of every deployed endpoint into the serving
// registry. Endpoints whose model can no longer be loaded are marked failed.
func (s *BackendService) ReloadEndpoints(ctx context.Context) error {
	var endpoints []database.Endpoint
	if err := s.db.WithContext(ctx).Preload("Model").Where("status = ?", database.EndpointDeployed).Find(&endpoints).Error; err != nil {
		return fmt.Errorf("error listing deployed endpoints: %w", err)
	}

	for _, endpoint := range endpoints {
		if endpoint.Model == nil {
			database.UpdateEndpointStatus(ctx, s.db, endpoint.Id, database.EndpointFailed, fmt.Errorf("model %s not found", endpoint.ModelId)) //nolint:errcheck
			continue
		}
		if err := s.registry.Load(ctx, endpoint.Id, endpoint.Model.ArtifactBucket, endpoint.Model.ArtifactKey); err != nil {
			slog.Error("error reloading endpoint", "endpoint_id", endpoint.Id, "error", err)
			database.UpdateEndpointStatus(ctx, s.db, endpoint.Id, database.EndpointFailed, err) //nolint:errcheck
		}
	}

	slog.Info("reloaded deployed endpoints", "count", s.registry.Len())
	return nil
}
