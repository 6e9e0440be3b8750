package main

import (
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/pkg/api"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStatusCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <model-id>",
		Short: "Show the state and metrics of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelId, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid model id %q: %w", args[0], err)
			}

			c, err := newClient(globals)
			if err != nil {
				return err
			}

			model, err := c.GetModel(cmd.Context(), modelId)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			printModel(cmd, model)
			return nil
		},
	}
}

func printModel(cmd *cobra.Command, model api.Model) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status:   %s\n", model.Status)
	if model.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", model.Error)
	}
	if model.Accuracy != nil {
		metrics := core.Metrics{
			Accuracy:        *model.Accuracy,
			ConfusionMatrix: model.ConfusionMatrix,
			ClassNames:      model.ClassNames,
		}
		fmt.Fprint(out, metrics.String())
	}
}
