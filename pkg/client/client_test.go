package client_test

import (
	"context"
	"encoding/json"
	"iris-backend/pkg/api"
	"iris-backend/pkg/client"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient(t *testing.T) {
	modelId, endpointId := uuid.New(), uuid.New()
	var polls atomic.Int32

	r := chi.NewRouter()
	r.Post("/models", func(w http.ResponseWriter, r *http.Request) {
		var req api.TrainRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "iris", req.ModelName)
		writeJSON(t, w, api.TrainResponse{ModelId: modelId, ModelName: req.ModelName, ArtifactUri: "s3://models/x"})
	})
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TRAINED", r.URL.Query().Get("status"))
		if name := r.URL.Query().Get("name"); name != "" {
			writeJSON(t, w, []api.Model{{Id: modelId, Name: name, Status: "TRAINED"}})
			return
		}
		writeJSON(t, w, []api.Model{{Id: modelId, Status: "TRAINED"}})
	})
	r.Get("/models/{model_id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "model_id") != modelId.String() {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		status := "TRAINING"
		if polls.Add(1) >= 3 {
			status = "TRAINED"
		}
		writeJSON(t, w, api.Model{Id: modelId, Status: status})
	})
	r.Post("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.Endpoint{Id: endpointId, ModelId: modelId, Status: "DEPLOYED"})
	})
	r.Post("/endpoints/{endpoint_id}/predict", func(w http.ResponseWriter, r *http.Request) {
		var req api.PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Instances[0]) != 4 {
			http.Error(w, "wrong width", http.StatusBadRequest)
			return
		}
		writeJSON(t, w, api.PredictResponse{Predictions: []int{0}, Labels: []string{"setosa"}, ModelId: modelId})
	})

	server := httptest.NewServer(r)
	defer server.Close()

	c := client.New(server.URL + "/")
	ctx := context.Background()

	submitted, err := c.SubmitTrainingJob(ctx, api.TrainRequest{ModelName: "iris"})
	require.NoError(t, err)
	assert.Equal(t, modelId, submitted.ModelId)

	model, err := c.WaitForModel(ctx, modelId, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "TRAINED", model.Status)

	models, err := c.ListModels(ctx, api.ListModelsParams{Status: "TRAINED"})
	require.NoError(t, err)
	assert.Len(t, models, 1)

	// reserved characters in filter values survive the round trip
	models, err = c.ListModels(ctx, api.ListModelsParams{Name: "iris & co=1", Status: "TRAINED"})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "iris & co=1", models[0].Name)

	_, err = c.GetModel(ctx, uuid.New())
	assert.ErrorIs(t, err, client.ErrNotFound)

	endpoint, err := c.Deploy(ctx, api.DeployRequest{ModelName: "iris@latest"})
	require.NoError(t, err)
	assert.Equal(t, endpointId, endpoint.Id)

	pred, err := c.Predict(ctx, endpointId, [][]float64{{5.1, 3.5, 1.4, 0.2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa"}, pred.Labels)

	_, err = c.Predict(ctx, endpointId, [][]float64{{5.1}})
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, "wrong width", statusErr.Message)
}
