package tracking

import (
	"context"
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/internal/database"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DatabaseTracker stores each finished run as an ExperimentRun row. Failures
// are logged and dropped.
type DatabaseTracker struct {
	db      *gorm.DB
	modelId uuid.NullUUID
}

func NewDatabaseTracker(db *gorm.DB) *DatabaseTracker {
	return &DatabaseTracker{db: db}
}

// ForModel returns a tracker whose runs are linked to the given model.
func (t *DatabaseTracker) ForModel(modelId uuid.UUID) *DatabaseTracker {
	return &DatabaseTracker{db: t.db, modelId: uuid.NullUUID{UUID: modelId, Valid: true}}
}

func (t *DatabaseTracker) LogRun(run core.RunRecord) {
	if err := t.saveRun(context.Background(), run); err != nil {
		slog.Error("error saving experiment run", "experiment", run.Experiment, "run", run.RunName, "error", err)
	}
}

func (t *DatabaseTracker) saveRun(ctx context.Context, run core.RunRecord) error {
	params, err := database.ToJSON(run.Params)
	if err != nil {
		return err
	}
	cm, err := database.ToJSON(run.Metrics.ConfusionMatrix)
	if err != nil {
		return err
	}
	classes, err := database.ToJSON(run.Metrics.ClassNames)
	if err != nil {
		return err
	}

	record := database.ExperimentRun{
		Id:              uuid.New(),
		Experiment:      run.Experiment,
		RunName:         run.RunName,
		ModelId:         t.modelId,
		Params:          params,
		Accuracy:        run.Metrics.Accuracy,
		ConfusionMatrix: cm,
		ClassNames:      classes,
		TrainSize:       run.TrainSize,
		EvalSize:        run.EvalSize,
		ArtifactPath:    run.ArtifactPath,
		DurationMs:      run.Duration.Milliseconds(),
		Timestamp:       run.Timestamp.UTC(),
	}

	if err := t.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("error inserting experiment run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of an experiment, newest first.
func ListRuns(ctx context.Context, db *gorm.DB, experiment string) ([]database.ExperimentRun, error) {
	var runs []database.ExperimentRun
	if err := db.WithContext(ctx).Where("experiment = ?", experiment).Order("timestamp DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing runs for experiment %s: %w", experiment, err)
	}
	return runs, nil
}

// LogTracker writes each run as a structured log line.
type LogTracker struct {
	logger *slog.Logger
}

func NewLogTracker(logger *slog.Logger) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{logger: logger}
}

func (t *LogTracker) LogRun(run core.RunRecord) {
	t.logger.Info("experiment run",
		"experiment", run.Experiment,
		"run", run.RunName,
		"accuracy", run.Metrics.Accuracy,
		"train_size", run.TrainSize,
		"eval_size", run.EvalSize,
		"artifact", run.ArtifactPath,
		"duration", run.Duration,
	)
}

// Multi fans a run out to several sinks.
type Multi []core.MetricsSink

func (m Multi) LogRun(run core.RunRecord) {
	for _, sink := range m {
		if sink != nil {
			sink.LogRun(run)
		}
	}
}
