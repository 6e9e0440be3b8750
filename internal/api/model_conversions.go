package api

import (
	"encoding/json"
	"iris-backend/internal/database"
	"iris-backend/internal/storage"
	"iris-backend/pkg/api"
	"log/slog"

	"gorm.io/datatypes"
)

func decodeColumn(data datatypes.JSON, v any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Error("error decoding json column", "error", err)
	}
}

func convertModel(m database.Model, scheme string) api.Model {
	model := api.Model{
		Id:             m.Id,
		Name:           m.Name,
		TrainingName:   m.TrainingName,
		ServiceAccount: m.ServiceAccount,
		Experiment:     m.Experiment,
		Status:         m.Status,
		TestSize:       m.TestSize,
		Seed:           m.Seed,
		ArtifactUri:    storage.URI(scheme, m.ArtifactBucket, m.ArtifactKey),
		Error:          m.Error.String,
		CreationTime:   m.CreationTime,
	}

	decodeColumn(m.Options, &model.Options)
	decodeColumn(m.ConfusionMatrix, &model.ConfusionMatrix)
	decodeColumn(m.ClassNames, &model.ClassNames)

	if m.Accuracy.Valid {
		accuracy := m.Accuracy.Float64
		model.Accuracy = &accuracy
	}
	if m.CompletionTime.Valid {
		completed := m.CompletionTime.Time
		model.CompletionTime = &completed
	}

	return model
}

func convertModels(ms []database.Model, scheme string) []api.Model {
	models := make([]api.Model, 0, len(ms))
	for _, m := range ms {
		models = append(models, convertModel(m, scheme))
	}
	return models
}

func convertEndpoint(e database.Endpoint) api.Endpoint {
	endpoint := api.Endpoint{
		Id:             e.Id,
		Name:           e.Name,
		ModelId:        e.ModelId,
		MachineType:    e.MachineType,
		MinReplicas:    e.MinReplicas,
		MaxReplicas:    e.MaxReplicas,
		ServiceAccount: e.ServiceAccount,
		Status:         e.Status,
		Error:          e.Error.String,
		CreationTime:   e.CreationTime,
	}

	if e.Model != nil {
		endpoint.ModelName = e.Model.Name
	}
	if e.DeployTime.Valid {
		deployed := e.DeployTime.Time
		endpoint.DeployTime = &deployed
	}

	return endpoint
}

func convertEndpoints(es []database.Endpoint) []api.Endpoint {
	endpoints := make([]api.Endpoint, 0, len(es))
	for _, e := range es {
		endpoints = append(endpoints, convertEndpoint(e))
	}
	return endpoints
}

func convertRun(r database.ExperimentRun) api.ExperimentRun {
	run := api.ExperimentRun{
		Id:           r.Id,
		Experiment:   r.Experiment,
		RunName:      r.RunName,
		Accuracy:     r.Accuracy,
		TrainSize:    r.TrainSize,
		EvalSize:     r.EvalSize,
		ArtifactPath: r.ArtifactPath,
		DurationMs:   r.DurationMs,
		Timestamp:    r.Timestamp,
	}

	if r.ModelId.Valid {
		modelId := r.ModelId.UUID
		run.ModelId = &modelId
	}

	decodeColumn(r.Params, &run.Params)
	decodeColumn(r.ConfusionMatrix, &run.ConfusionMatrix)
	decodeColumn(r.ClassNames, &run.ClassNames)

	return run
}

func convertRuns(rs []database.ExperimentRun) []api.ExperimentRun {
	runs := make([]api.ExperimentRun, 0, len(rs))
	for _, r := range rs {
		runs = append(runs, convertRun(r))
	}
	return runs
}
