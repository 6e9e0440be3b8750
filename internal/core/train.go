package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrDataUnavailable = errors.New("dataset unavailable")
	ErrFitFailure      = errors.New("pipeline fit failed")
	ErrPersistFailure  = errors.New("artifact persist failed")
)

type Stage string

const (
	StageStart      Stage = "START"
	StageDataLoaded Stage = "DATA_LOADED"
	StageSplit      Stage = "SPLIT"
	StageFitted     Stage = "FITTED"
	StageEvaluated  Stage = "EVALUATED"
	StagePersisted  Stage = "PERSISTED"
	StageEnd        Stage = "END"
)

// RunRecord is what a training run reports to its MetricsSink.
type RunRecord struct {
	Experiment   string
	RunName      string
	Params       ModelOptions
	Metrics      Metrics
	TrainSize    int
	EvalSize     int
	ArtifactPath string
	Duration     time.Duration
	Timestamp    time.Time
}

// MetricsSink receives the metrics of finished runs. Implementations handle
// their own failures; a sink can never fail a run.
type MetricsSink interface {
	LogRun(run RunRecord)
}

// TrainingConfig is everything one call to Train needs. It is built by the
// caller; Train does not consult the environment.
type TrainingConfig struct {
	OutputPath string

	// TestSize defaults to DefaultTestSize when zero.
	TestSize float64
	Seed     int64

	Model ModelOptions

	// Dataset defaults to LoadIris when nil.
	Dataset DatasetSource

	Experiment string
	RunName    string
	Tracker    MetricsSink

	Progress func(done, total int)
}

func DefaultTrainingConfig(outputPath string) TrainingConfig {
	return TrainingConfig{
		OutputPath: outputPath,
		TestSize:   DefaultTestSize,
		Seed:       DefaultSplitSeed,
	}
}

type TrainingResult struct {
	Metrics      Metrics
	Predictions  []int
	EvalLabels   []int
	TrainSize    int
	EvalSize     int
	ArtifactPath string
	Artifact     *Artifact
}

func (cfg TrainingConfig) validate() error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("no artifact output path configured")
	}
	if cfg.TestSize < 0 || cfg.TestSize >= 1 {
		return fmt.Errorf("test size must be in (0, 1), got %v", cfg.TestSize)
	}
	return nil
}

// Train runs one load, split, fit, evaluate, persist cycle. Every stage must
// succeed for the next to run, and the first failure ends the run.
func Train(cfg TrainingConfig) (*TrainingResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}

	testSize := cfg.TestSize
	if testSize == 0 {
		testSize = DefaultTestSize
	}
	source := cfg.Dataset
	if source == nil {
		source = LoadIris
	}

	start := time.Now()
	logStage := func(stage Stage, args ...any) {
		slog.Info("training stage complete", append([]any{"stage", stage, "output", cfg.OutputPath}, args...)...)
	}
	logStage(StageStart)

	dataset, err := source()
	if err == nil {
		err = dataset.validate()
	}
	if err != nil {
		slog.Error("error loading dataset", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	logStage(StageDataLoaded, "rows", dataset.Len(), "features", dataset.NumFeatures(), "classes", dataset.NumClasses())

	split, err := TrainTestSplit(dataset.Len(), testSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("error splitting dataset: %w", err)
	}
	trainSet, err := dataset.Subset(split.Train)
	if err != nil {
		return nil, fmt.Errorf("error building training partition: %w", err)
	}
	evalSet, err := dataset.Subset(split.Test)
	if err != nil {
		return nil, fmt.Errorf("error building evaluation partition: %w", err)
	}
	logStage(StageSplit, "train_rows", trainSet.Len(), "eval_rows", evalSet.Len(), "seed", cfg.Seed)

	opts := cfg.Model.Options()
	if cfg.Progress != nil {
		opts = append(opts, WithProgress(cfg.Progress))
	}
	pipe := GetPipe(opts...)
	if err := pipe.Fit(trainSet.Features, trainSet.Labels); err != nil {
		slog.Error("error fitting pipeline", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFitFailure, err)
	}
	logStage(StageFitted)

	preds, err := pipe.Predict(evalSet.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: error predicting evaluation partition: %w", ErrFitFailure, err)
	}
	metrics, err := Evaluate(evalSet.Labels, preds, dataset.ClassNames)
	if err != nil {
		return nil, fmt.Errorf("error computing metrics: %w", err)
	}
	logStage(StageEvaluated, "accuracy", metrics.Accuracy)

	artifact := NewArtifact(pipe, dataset.FeatureNames, dataset.ClassNames)
	if err := SaveArtifact(cfg.OutputPath, artifact); err != nil {
		slog.Error("error persisting artifact", "path", cfg.OutputPath, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}
	logStage(StagePersisted)

	result := &TrainingResult{
		Metrics:      metrics,
		Predictions:  preds,
		EvalLabels:   evalSet.Labels,
		TrainSize:    trainSet.Len(),
		EvalSize:     evalSet.Len(),
		ArtifactPath: cfg.OutputPath,
		Artifact:     artifact,
	}

	if cfg.Tracker != nil {
		cfg.Tracker.LogRun(RunRecord{
			Experiment:   cfg.Experiment,
			RunName:      cfg.RunName,
			Params:       cfg.Model.Resolved(),
			Metrics:      metrics,
			TrainSize:    result.TrainSize,
			EvalSize:     result.EvalSize,
			ArtifactPath: cfg.OutputPath,
			Duration:     time.Since(start),
			Timestamp:    time.Now().UTC(),
		})
	}

	logStage(StageEnd, "duration", time.Since(start))
	return result, nil
}
