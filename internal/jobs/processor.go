package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iris-backend/internal/config"
	"iris-backend/internal/core"
	"iris-backend/internal/database"
	"iris-backend/internal/messaging"
	"iris-backend/internal/storage"
	"iris-backend/internal/tracking"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// TaskProcessor consumes training tasks, runs them and publishes the resulting
// artifacts to the model bucket.
type TaskProcessor struct {
	db       *gorm.DB
	storage  storage.Provider
	reciever messaging.Reciever
	tracker  *tracking.DatabaseTracker

	scratchDir  string
	concurrency int
}

func NewTaskProcessor(db *gorm.DB, storage storage.Provider, reciever messaging.Reciever, scratchDir string, concurrency int) *TaskProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskProcessor{
		db:          db,
		storage:     storage,
		reciever:    reciever,
		tracker:     tracking.NewDatabaseTracker(db),
		scratchDir:  scratchDir,
		concurrency: concurrency,
	}
}

// Start processes tasks until the reciever is closed or ctx is cancelled, and
// then waits for in-flight tasks to finish.
func (proc *TaskProcessor) Start(ctx context.Context) error {
	slog.Info("starting task processor", "concurrency", proc.concurrency)

	g := new(errgroup.Group)
	g.SetLimit(proc.concurrency)

	tasks := proc.reciever.Tasks()
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case task, ok := <-tasks:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				proc.ProcessTask(ctx, task)
				return nil
			})
		}
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(ctx context.Context, task messaging.Task) {
	var err error
	switch task.Type() {
	case messaging.TrainingQueue:
		var payload messaging.TrainTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling training task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processTrainTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) getModel(ctx context.Context, modelId uuid.UUID) (database.Model, error) {
	var model database.Model
	if err := proc.db.WithContext(ctx).First(&model, "id = ?", modelId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model, fmt.Errorf("model %s not found", modelId)
		}
		return model, fmt.Errorf("error getting model %s: %w", modelId, err)
	}
	return model, nil
}

// PayloadForModel rebuilds the training task of a stored model, used to
// requeue work that was pending when a process stopped.
func PayloadForModel(model database.Model) (messaging.TrainTaskPayload, error) {
	payload := messaging.TrainTaskPayload{
		ModelId:    model.Id,
		TestSize:   model.TestSize,
		Seed:       model.Seed,
		Experiment: model.Experiment,
	}
	if len(model.Options) > 0 {
		if err := json.Unmarshal(model.Options, &payload.Options); err != nil {
			return payload, fmt.Errorf("error decoding options of model %s: %w", model.Id, err)
		}
	}
	return payload, nil
}

// RequeuePending publishes a training task for every model that is still
// queued or training. The publisher may block until a consumer makes room, so
// callers start their worker first.
func RequeuePending(ctx context.Context, db *gorm.DB, pub messaging.Publisher) (int, error) {
	var pending []database.Model
	if err := db.WithContext(ctx).Where("status IN ?", []string{database.ModelQueued, database.ModelTraining}).Order("creation_time").Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("error listing pending models: %w", err)
	}

	for i, model := range pending {
		payload, err := PayloadForModel(model)
		if err != nil {
			return i, err
		}
		if err := pub.PublishTrainTask(ctx, payload); err != nil {
			return i, fmt.Errorf("error requeueing model %s: %w", model.Id, err)
		}
	}

	if len(pending) > 0 {
		slog.Info("requeued pending models", "count", len(pending))
	}
	return len(pending), nil
}

// pendingRun holds the run record from training until the artifact has been
// published.
type pendingRun struct {
	run *core.RunRecord
}

func (p *pendingRun) LogRun(run core.RunRecord) {
	p.run = &run
}

func (proc *TaskProcessor) failModel(ctx context.Context, modelId uuid.UUID, err error) error {
	database.SaveModelError(ctx, proc.db, modelId, err.Error()) //nolint:errcheck
	return err
}

func (proc *TaskProcessor) processTrainTask(ctx context.Context, payload messaging.TrainTaskPayload) error {
	model, err := proc.getModel(ctx, payload.ModelId)
	if err != nil {
		return err
	}

	if model.Status == database.ModelTrained {
		slog.Info("model already trained, skipping", "model_id", model.Id)
		return nil
	}

	slog.Info("processing training task", "model_id", model.Id, "name", model.Name)
	database.UpdateModelStatus(ctx, proc.db, model.Id, database.ModelTraining) //nolint:errcheck

	workDir := filepath.Join(proc.scratchDir, model.Id.String())
	defer os.RemoveAll(workDir)

	cfg := core.DefaultTrainingConfig(config.ManagedArtifactPath(workDir, model.ArtifactBucket))
	cfg.TestSize = payload.TestSize
	cfg.Seed = payload.Seed
	cfg.Model = payload.Options
	cfg.Experiment = payload.Experiment
	cfg.RunName = model.TrainingName + "-" + model.Id.String()
	pending := &pendingRun{}
	cfg.Tracker = pending

	res, err := core.Train(cfg)
	if err != nil {
		slog.Error("training failed", "model_id", model.Id, "error", err)
		return proc.failModel(ctx, model.Id, fmt.Errorf("training failed: %w", err))
	}

	if err := storage.UploadFile(ctx, proc.storage, model.ArtifactBucket, model.ArtifactKey, res.ArtifactPath); err != nil {
		slog.Error("error uploading model artifact", "model_id", model.Id, "error", err)
		return proc.failModel(ctx, model.Id, fmt.Errorf("%w: %w", core.ErrPersistFailure, err))
	}

	if err := database.SaveModelMetrics(ctx, proc.db, model.Id, res.Metrics.Accuracy, res.Metrics.ConfusionMatrix, res.Metrics.ClassNames); err != nil {
		return proc.failModel(ctx, model.Id, fmt.Errorf("error saving model metrics: %w", err))
	}

	if pending.run != nil {
		run := *pending.run
		run.ArtifactPath = storage.URI(storage.Scheme(proc.storage), model.ArtifactBucket, model.ArtifactKey)
		tracking.Multi{proc.tracker.ForModel(model.Id), tracking.NewLogTracker(nil)}.LogRun(run)
	}

	slog.Info("model trained", "model_id", model.Id, "accuracy", res.Metrics.Accuracy, "artifact", model.ArtifactKey)
	return nil
}
