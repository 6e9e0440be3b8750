package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"iris-backend/internal/core"
	"iris-backend/internal/database"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testRun(name string, ts time.Time) core.RunRecord {
	seed := int64(42)
	return core.RunRecord{
		Experiment: "iris",
		RunName:    name,
		Params:     core.ModelOptions{NEstimators: 10, RandomState: &seed},
		Metrics: core.Metrics{
			Accuracy:        0.9,
			ConfusionMatrix: [][]int{{10, 0}, {3, 17}},
			ClassNames:      []string{"a", "b"},
		},
		TrainSize:    120,
		EvalSize:     30,
		ArtifactPath: "model.bst",
		Duration:     1500 * time.Millisecond,
		Timestamp:    ts,
	}
}

func createDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	return db
}

func TestDatabaseTracker(t *testing.T) {
	db := createDB(t)

	modelId := uuid.New()
	require.NoError(t, db.Create(&database.Model{Id: modelId, Name: "iris", Status: database.ModelTraining, CreationTime: time.Now()}).Error)

	tracker := NewDatabaseTracker(db)
	now := time.Now()
	tracker.LogRun(testRun("first", now.Add(-time.Minute)))
	tracker.ForModel(modelId).LogRun(testRun("second", now))

	runs, err := ListRuns(context.Background(), db, "iris")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "second", runs[0].RunName)
	assert.True(t, runs[0].ModelId.Valid)
	assert.Equal(t, modelId, runs[0].ModelId.UUID)
	assert.False(t, runs[1].ModelId.Valid)

	assert.Equal(t, int64(1500), runs[0].DurationMs)
	assert.Equal(t, 120, runs[0].TrainSize)

	var params core.ModelOptions
	require.NoError(t, json.Unmarshal(runs[0].Params, &params))
	assert.Equal(t, 10, params.NEstimators)

	var cm [][]int
	require.NoError(t, json.Unmarshal(runs[0].ConfusionMatrix, &cm))
	assert.Equal(t, [][]int{{10, 0}, {3, 17}}, cm)

	other, err := ListRuns(context.Background(), db, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDatabaseTrackerSwallowsErrors(t *testing.T) {
	db := createDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		NewDatabaseTracker(db).LogRun(testRun("run", time.Now()))
	})
}

func TestLogTrackerAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	db := createDB(t)
	sinks := Multi{NewLogTracker(logger), NewDatabaseTracker(db), nil}
	sinks.LogRun(testRun("multi", time.Now()))

	assert.Contains(t, buf.String(), "experiment=iris")
	assert.Contains(t, buf.String(), "run=multi")

	runs, err := ListRuns(context.Background(), db, "iris")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
