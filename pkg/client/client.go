package client

import (
	"context"
	"errors"
	"fmt"
	"iris-backend/pkg/api"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// Client talks to the backend's REST api.
type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(2 * time.Minute).
			SetHeader("Accept", "application/json"),
	}
}

// StatusError carries the status and message of a failed request.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == 404
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts ...func(*resty.Request)) error {
	req := c.client.R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %w", method, path, err)
	}

	if !res.IsSuccess() {
		return &StatusError{Code: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}
	return nil
}

func (c *Client) SubmitTrainingJob(ctx context.Context, req api.TrainRequest) (api.TrainResponse, error) {
	var res api.TrainResponse
	err := c.do(ctx, resty.MethodPost, "/models", req, &res)
	return res, err
}

func (c *Client) GetModel(ctx context.Context, modelId uuid.UUID) (api.Model, error) {
	var res api.Model
	err := c.do(ctx, resty.MethodGet, "/models/"+modelId.String(), nil, &res)
	return res, err
}

func (c *Client) ListModels(ctx context.Context, params api.ListModelsParams) ([]api.Model, error) {
	query := map[string]string{}
	if params.Name != "" {
		query["name"] = params.Name
	}
	if params.Status != "" {
		query["status"] = params.Status
	}

	var res []api.Model
	err := c.do(ctx, resty.MethodGet, "/models", nil, &res, func(r *resty.Request) {
		r.SetQueryParams(query)
	})
	return res, err
}

// WaitForModel polls until the model leaves the QUEUED and TRAINING states.
func (c *Client) WaitForModel(ctx context.Context, modelId uuid.UUID, interval time.Duration) (api.Model, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		model, err := c.GetModel(ctx, modelId)
		if err != nil {
			return model, err
		}
		if model.Status != "QUEUED" && model.Status != "TRAINING" {
			return model, nil
		}

		select {
		case <-ctx.Done():
			return model, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Deploy(ctx context.Context, req api.DeployRequest) (api.Endpoint, error) {
	var res api.Endpoint
	err := c.do(ctx, resty.MethodPost, "/endpoints", req, &res)
	return res, err
}

func (c *Client) GetEndpoint(ctx context.Context, endpointId uuid.UUID) (api.Endpoint, error) {
	var res api.Endpoint
	err := c.do(ctx, resty.MethodGet, "/endpoints/"+endpointId.String(), nil, &res)
	return res, err
}

func (c *Client) Predict(ctx context.Context, endpointId uuid.UUID, instances [][]float64) (api.PredictResponse, error) {
	var res api.PredictResponse
	err := c.do(ctx, resty.MethodPost, "/endpoints/"+endpointId.String()+"/predict", api.PredictRequest{Instances: instances}, &res)
	return res, err
}

func (c *Client) ListExperimentRuns(ctx context.Context, experiment string) ([]api.ExperimentRun, error) {
	var res []api.ExperimentRun
	err := c.do(ctx, resty.MethodGet, "/experiments/{experiment}/runs", nil, &res, func(r *resty.Request) {
		r.SetPathParam("experiment", experiment)
	})
	return res, err
}
