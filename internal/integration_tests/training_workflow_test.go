//go:build integration

package integrationtests

import (
	"context"
	"iris-backend/internal/api"
	"iris-backend/internal/config"
	"iris-backend/internal/core"
	"iris-backend/internal/database"
	"iris-backend/internal/jobs"
	"iris-backend/internal/messaging"
	"iris-backend/internal/serving"
	pkgapi "iris-backend/pkg/api"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := createDB(t)
	provider := createS3Provider(t, ctx)
	rabbitURL := setupRabbitMQContainer(t, ctx)

	publisher, err := messaging.NewRabbitMQPublisher(rabbitURL)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(rabbitURL)
	require.NoError(t, err)

	cloud := config.CloudConfig{
		ProjectID:      "proj",
		ServiceAccount: "trainer",
		ModelName:      "iris-classifier",
		TrainingName:   "iris-training",
		EndpointName:   "iris-endpoint",
	}

	service := api.NewBackendService(db, provider, publisher, serving.NewRegistry(provider), modelBucket, cloud)
	router := chi.NewRouter()
	service.AddRoutes(router)

	worker := jobs.NewTaskProcessor(db, provider, receiver, t.TempDir(), 2)
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Start(ctx) }()
	defer func() {
		worker.Stop()
		<-workerDone
	}()

	var submitted pkgapi.TrainResponse
	require.NoError(t, httpRequest(router, http.MethodPost, "/models", pkgapi.TrainRequest{
		ExperimentName: "integration",
		ModelOptions:   core.ModelOptions{NEstimators: 10},
	}, &submitted))
	assert.Equal(t, "iris-classifier", submitted.ModelName)
	assert.Equal(t, "s3://"+modelBucket+"/"+submitted.ModelId.String()+"/model_artifacts/model.bst", submitted.ArtifactUri)

	var model pkgapi.Model
	require.Eventually(t, func() bool {
		err := httpRequest(router, http.MethodGet, "/models/"+submitted.ModelId.String(), nil, &model)
		return err == nil && model.Status == database.ModelTrained
	}, 2*time.Minute, 500*time.Millisecond)
	require.NotNil(t, model.Accuracy)
	assert.GreaterOrEqual(t, *model.Accuracy, 0.8)

	objs, err := provider.ListObjects(ctx, modelBucket, submitted.ModelId.String()+"/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, config.ArtifactKey(submitted.ModelId.String()), objs[0].Name)

	var endpoint pkgapi.Endpoint
	require.NoError(t, httpRequest(router, http.MethodPost, "/endpoints", pkgapi.DeployRequest{
		ModelName: "iris-classifier@latest",
	}, &endpoint))
	assert.Equal(t, database.EndpointDeployed, endpoint.Status)

	var pred pkgapi.PredictResponse
	require.NoError(t, httpRequest(router, http.MethodPost, "/endpoints/"+endpoint.Id.String()+"/predict", pkgapi.PredictRequest{
		Instances: [][]float64{{5.1, 3.5, 1.4, 0.2}, {6.9, 3.1, 5.4, 2.1}},
	}, &pred))
	assert.Equal(t, []string{"setosa", "virginica"}, pred.Labels)

	var runs []pkgapi.ExperimentRun
	require.NoError(t, httpRequest(router, http.MethodGet, "/experiments/integration/runs", nil, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, submitted.ArtifactUri, runs[0].ArtifactPath)

	// a restarted api reloads deployed endpoints from the model bucket
	restarted := api.NewBackendService(db, provider, publisher, serving.NewRegistry(provider), modelBucket, cloud)
	require.NoError(t, restarted.ReloadEndpoints(ctx))
	restartedRouter := chi.NewRouter()
	restarted.AddRoutes(restartedRouter)
	require.NoError(t, httpRequest(restartedRouter, http.MethodPost, "/endpoints/"+endpoint.Id.String()+"/predict", pkgapi.PredictRequest{
		Instances: [][]float64{{5.1, 3.5, 1.4, 0.2}},
	}, &pred))
	assert.Equal(t, []string{"setosa"}, pred.Labels)
}
