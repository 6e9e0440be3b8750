package main

import (
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/pkg/api"
	"time"

	"github.com/spf13/cobra"
)

type submitFlags struct {
	modelName      string
	trainingName   string
	serviceAccount string
	experiment     string
	options        string
	testSize       float64
	seed           int64
	wait           bool
}

func newSubmitCmd(globals *globalFlags) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a training job to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, globals, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.modelName, "model-name", "", "Model display name (default $MODEL_NAME on the server)")
	f.StringVar(&flags.trainingName, "training-name", "", "Training job display name")
	f.StringVar(&flags.serviceAccount, "service-account", "", "Service account the job runs as")
	f.StringVar(&flags.experiment, "experiment", "", "Experiment the run is recorded under")
	f.StringVar(&flags.options, "options", "", "Model options YAML file")
	f.Float64Var(&flags.testSize, "test-size", 0, "Fraction of rows held out for evaluation")
	f.Int64Var(&flags.seed, "seed", core.DefaultSplitSeed, "Seed of the train/test split")
	f.BoolVar(&flags.wait, "wait", false, "Wait for the job to finish")

	return cmd
}

func runSubmit(cmd *cobra.Command, globals *globalFlags, flags submitFlags) error {
	c, err := newClient(globals)
	if err != nil {
		return err
	}

	req := api.TrainRequest{
		ModelName:      flags.modelName,
		TrainingName:   flags.trainingName,
		ServiceAccount: flags.serviceAccount,
		ExperimentName: flags.experiment,
		TestSize:       flags.testSize,
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &flags.seed
	}
	if flags.options != "" {
		opts, err := core.LoadModelOptions(flags.options)
		if err != nil {
			return err
		}
		req.ModelOptions = opts
	}

	res, err := c.SubmitTrainingJob(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:    %s\n", res.ModelName)
	fmt.Fprintf(out, "Model ID: %s\n", res.ModelId)
	fmt.Fprintf(out, "Artifact: %s\n", res.ArtifactUri)

	if !flags.wait {
		return nil
	}

	model, err := c.WaitForModel(cmd.Context(), res.ModelId, 2*time.Second)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	printModel(cmd, model)
	return nil
}
