package main

import (
	"fmt"
	"iris-backend/internal/config"
	"iris-backend/internal/core"
	"iris-backend/internal/tracking"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type trainFlags struct {
	output     string
	options    string
	experiment string
	runName    string
	testSize   float64
	seed       int64
	quiet      bool
}

func newTrainCmd() *cobra.Command {
	var flags trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate the classifier locally and write its artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "Artifact path (overrides RUN_LOCALLY / BUCKET_NAME resolution)")
	f.StringVar(&flags.options, "options", "", "Model options YAML file (default $MODEL_OPTIONS_PATH)")
	f.StringVar(&flags.experiment, "experiment", "", "Experiment name (default $EXPERIMENT_NAME)")
	f.StringVar(&flags.runName, "run-name", "", "Run name recorded with the metrics")
	f.Float64Var(&flags.testSize, "test-size", core.DefaultTestSize, "Fraction of rows held out for evaluation")
	f.Int64Var(&flags.seed, "seed", core.DefaultSplitSeed, "Seed of the train/test split")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Do not show a progress bar")

	return cmd
}

func runTrain(cmd *cobra.Command, flags trainFlags) error {
	cfg, err := config.Parse[config.TrainerConfig]()
	if err != nil {
		return err
	}

	if flags.output != "" {
		cfg.RunLocally = true
		cfg.LocalArtifactPath = flags.output
	}
	if flags.options != "" {
		cfg.ModelOptionsPath = flags.options
	}
	if flags.experiment != "" {
		cfg.ExperimentName = flags.experiment
	}
	if cmd.Flags().Changed("test-size") {
		cfg.TestSize = flags.testSize
	}
	if cmd.Flags().Changed("seed") {
		cfg.SplitSeed = flags.seed
	}

	tc, err := cfg.TrainingConfig()
	if err != nil {
		return err
	}
	tc.RunName = flags.runName
	tc.Tracker = tracking.NewLogTracker(nil)

	if !flags.quiet {
		bar := progressbar.NewOptions(tc.Model.Resolved().NEstimators,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("fitting trees"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		tc.Progress = func(done, total int) {
			_ = bar.Set(done)
		}
		defer bar.Finish() //nolint:errcheck
	}

	res, err := core.Train(tc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, res.Metrics.String())
	fmt.Fprintf(out, "Train rows: %d\n", res.TrainSize)
	fmt.Fprintf(out, "Eval rows:  %d\n", res.EvalSize)
	fmt.Fprintf(out, "Artifact:   %s\n", res.ArtifactPath)
	return nil
}
