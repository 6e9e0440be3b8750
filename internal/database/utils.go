package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNoTrainedModel = errors.New("no trained model found")

func UpdateModelStatus(ctx context.Context, txn *gorm.DB, modelId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == ModelTrained || status == ModelFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Model{Id: modelId}).Updates(updates).Error; err != nil {
		slog.Error("error updating model status", "model_id", modelId, "status", status, "error", err)
		return err
	}
	return nil
}

func SaveModelError(ctx context.Context, txn *gorm.DB, modelId uuid.UUID, errorMessage string) error {
	updates := map[string]any{
		"status":          ModelFailed,
		"error":           sql.NullString{String: errorMessage, Valid: true},
		"completion_time": time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Model(&Model{Id: modelId}).Updates(updates).Error; err != nil {
		slog.Error("error saving model error", "model_id", modelId, "error", err)
		return err
	}
	return nil
}

// SaveModelMetrics records evaluation results and marks the model trained.
func SaveModelMetrics(ctx context.Context, txn *gorm.DB, modelId uuid.UUID, accuracy float64, confusion [][]int, classNames []string) error {
	cm, err := ToJSON(confusion)
	if err != nil {
		return err
	}
	classes, err := ToJSON(classNames)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":           ModelTrained,
		"accuracy":         sql.NullFloat64{Float64: accuracy, Valid: true},
		"confusion_matrix": cm,
		"class_names":      classes,
		"completion_time":  time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Model(&Model{Id: modelId}).Updates(updates).Error; err != nil {
		slog.Error("error saving model metrics", "model_id", modelId, "error", err)
		return err
	}
	return nil
}

// LatestTrainedModel resolves a display name to its newest trained model.
func LatestTrainedModel(ctx context.Context, txn *gorm.DB, name string) (*Model, error) {
	var model Model
	err := txn.WithContext(ctx).
		Where("name = ? AND status = ?", name, ModelTrained).
		Order("creation_time DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoTrainedModel, name)
		}
		return nil, fmt.Errorf("error querying latest model %s: %w", name, err)
	}
	return &model, nil
}

func UpdateEndpointStatus(ctx context.Context, txn *gorm.DB, endpointId uuid.UUID, status string, deployErr error) error {
	updates := map[string]any{"status": status}
	switch {
	case deployErr != nil:
		updates["error"] = sql.NullString{String: deployErr.Error(), Valid: true}
	case status == EndpointDeployed:
		updates["deploy_time"] = time.Now().UTC()
		updates["error"] = sql.NullString{}
	}

	if err := txn.WithContext(ctx).Model(&Endpoint{Id: endpointId}).Updates(updates).Error; err != nil {
		slog.Error("error updating endpoint status", "endpoint_id", endpointId, "status", status, "error", err)
		return err
	}
	return nil
}

func ToJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error serializing json column: %w", err)
	}
	return datatypes.JSON(data), nil
}
