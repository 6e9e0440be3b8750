package main

import (
	"errors"
	"fmt"
	"iris-backend/internal/core"
	"iris-backend/internal/serving"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type predictFlags struct {
	artifact  string
	instances []string
}

func newPredictCmd(globals *globalFlags) *cobra.Command {
	var flags predictFlags

	cmd := &cobra.Command{
		Use:   "predict [endpoint-id]",
		Short: "Classify instances with a deployed endpoint or a local artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := parseInstances(flags.instances)
			if err != nil {
				return err
			}

			var labels []string
			switch {
			case flags.artifact != "":
				artifact, err := core.LoadArtifact(flags.artifact)
				if err != nil {
					return err
				}
				pred, err := serving.Predict(artifact, instances)
				if err != nil {
					return err
				}
				labels = pred.Labels

			case len(args) == 1:
				endpointId, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid endpoint id %q: %w", args[0], err)
				}
				c, err := newClient(globals)
				if err != nil {
					return err
				}
				res, err := c.Predict(cmd.Context(), endpointId, instances)
				if err != nil {
					return fmt.Errorf("predict: %w", err)
				}
				labels = res.Labels

			default:
				return errors.New("either an endpoint id or --artifact is required")
			}

			out := cmd.OutOrStdout()
			for i, label := range labels {
				fmt.Fprintf(out, "%s\t%s\n", flags.instances[i], label)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.artifact, "artifact", "", "Predict with a local artifact instead of an endpoint")
	f.StringArrayVarP(&flags.instances, "instance", "i", nil, "Comma separated feature values, repeatable")
	_ = cmd.MarkFlagRequired("instance")

	return cmd
}

func parseInstances(raw []string) ([][]float64, error) {
	instances := make([][]float64, 0, len(raw))
	for _, r := range raw {
		fields := strings.Split(r, ",")
		row := make([]float64, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid instance %q: %w", r, err)
			}
			row = append(row, v)
		}
		instances = append(instances, row)
	}
	return instances, nil
}
