package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"iris-backend/internal/database"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestNewDatabaseMigrates(t *testing.T) {
	db := createDB(t)

	for _, table := range []any{&database.Model{}, &database.ExperimentRun{}, &database.Endpoint{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasColumn(&database.Model{}, "Error"))

	// running again is a no-op
	require.NoError(t, database.GetMigrator(db).Migrate())
}

func TestLatestTrainedModel(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	older, newer := uuid.New(), uuid.New()
	for _, m := range []database.Model{
		{Id: older, Name: "iris", Status: database.ModelTrained, CreationTime: now.Add(-2 * time.Hour)},
		{Id: newer, Name: "iris", Status: database.ModelTrained, CreationTime: now.Add(-time.Hour)},
		{Id: uuid.New(), Name: "iris", Status: database.ModelTraining, CreationTime: now},
		{Id: uuid.New(), Name: "other", Status: database.ModelTrained, CreationTime: now},
	} {
		require.NoError(t, db.Create(&m).Error)
	}

	model, err := database.LatestTrainedModel(ctx, db, "iris")
	require.NoError(t, err)
	assert.Equal(t, newer, model.Id)

	_, err = database.LatestTrainedModel(ctx, db, "missing")
	assert.True(t, errors.Is(err, database.ErrNoTrainedModel))
}

func TestModelStatusUpdates(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, db.Create(&database.Model{Id: id, Name: "iris", Status: database.ModelQueued, CreationTime: time.Now()}).Error)

	require.NoError(t, database.UpdateModelStatus(ctx, db, id, database.ModelTraining))
	var model database.Model
	require.NoError(t, db.First(&model, "id = ?", id).Error)
	assert.Equal(t, database.ModelTraining, model.Status)
	assert.False(t, model.CompletionTime.Valid)

	require.NoError(t, database.SaveModelMetrics(ctx, db, id, 0.9, [][]int{{1, 0}, {1, 8}}, []string{"a", "b"}))
	require.NoError(t, db.First(&model, "id = ?", id).Error)
	assert.Equal(t, database.ModelTrained, model.Status)
	assert.True(t, model.CompletionTime.Valid)
	assert.InDelta(t, 0.9, model.Accuracy.Float64, 1e-12)

	var cm [][]int
	require.NoError(t, json.Unmarshal(model.ConfusionMatrix, &cm))
	assert.Equal(t, [][]int{{1, 0}, {1, 8}}, cm)

	require.NoError(t, database.SaveModelError(ctx, db, id, "boom"))
	require.NoError(t, db.First(&model, "id = ?", id).Error)
	assert.Equal(t, database.ModelFailed, model.Status)
	assert.Equal(t, "boom", model.Error.String)
}

func TestUpdateEndpointStatus(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	modelId, endpointId := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&database.Model{Id: modelId, Name: "iris", Status: database.ModelTrained, CreationTime: time.Now()}).Error)
	require.NoError(t, db.Create(&database.Endpoint{Id: endpointId, Name: "ep", ModelId: modelId, Status: database.EndpointDeploying, CreationTime: time.Now()}).Error)

	require.NoError(t, database.UpdateEndpointStatus(ctx, db, endpointId, database.EndpointDeployed, nil))

	var endpoint database.Endpoint
	require.NoError(t, db.Preload("Model").First(&endpoint, "id = ?", endpointId).Error)
	assert.Equal(t, database.EndpointDeployed, endpoint.Status)
	assert.True(t, endpoint.DeployTime.Valid)
	require.NotNil(t, endpoint.Model)
	assert.Equal(t, modelId, endpoint.Model.Id)

	require.NoError(t, database.UpdateEndpointStatus(ctx, db, endpointId, database.EndpointFailed, errors.New("load failed")))
	require.NoError(t, db.First(&endpoint, "id = ?", endpointId).Error)
	assert.Equal(t, database.EndpointFailed, endpoint.Status)
	assert.Equal(t, "load failed", endpoint.Error.String)
}
