package api

import (
	"iris-backend/internal/core"
	"time"

	"github.com/google/uuid"
)

type TrainRequest struct {
	ModelName      string
	TrainingName   string
	ServiceAccount string
	ExperimentName string

	ModelOptions core.ModelOptions

	TestSize float64
	Seed     *int64
}

type TrainResponse struct {
	ModelId     uuid.UUID
	ModelName   string
	ArtifactUri string
}

type Model struct {
	Id             uuid.UUID
	Name           string
	TrainingName   string
	ServiceAccount string
	Experiment     string
	Status         string

	Options  core.ModelOptions
	TestSize float64
	Seed     int64

	ArtifactUri string

	Accuracy        *float64 `json:"Accuracy,omitempty"`
	ConfusionMatrix [][]int  `json:"ConfusionMatrix,omitempty"`
	ClassNames      []string `json:"ClassNames,omitempty"`
	Error           string   `json:"Error,omitempty"`

	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type ListModelsParams struct {
	Name   string `schema:"name"`
	Status string `schema:"status"`
}

type DeployRequest struct {
	EndpointName   string
	ModelName      string
	MachineType    string
	MinReplicas    int
	MaxReplicas    int
	ServiceAccount string
}

type Endpoint struct {
	Id        uuid.UUID
	Name      string
	ModelId   uuid.UUID
	ModelName string

	MachineType    string
	MinReplicas    int
	MaxReplicas    int
	ServiceAccount string

	Status string
	Error  string `json:"Error,omitempty"`

	CreationTime time.Time
	DeployTime   *time.Time `json:"DeployTime,omitempty"`
}

type ListEndpointsParams struct {
	Status string `schema:"status"`
}

type PredictRequest struct {
	Instances [][]float64
}

type PredictResponse struct {
	Predictions []int
	Labels      []string
	ModelId     uuid.UUID
}

type ExperimentRun struct {
	Id         uuid.UUID
	Experiment string
	RunName    string
	ModelId    *uuid.UUID `json:"ModelId,omitempty"`

	Params          core.ModelOptions
	Accuracy        float64
	ConfusionMatrix [][]int
	ClassNames      []string
	TrainSize       int
	EvalSize        int
	ArtifactPath    string
	DurationMs      int64

	Timestamp time.Time
}
