package main

import (
	"fmt"
	"iris-backend/internal/config"
	"iris-backend/pkg/api"

	"github.com/spf13/cobra"
)

type deployFlags struct {
	modelName      string
	endpointName   string
	machineType    string
	minReplicas    int
	maxReplicas    int
	serviceAccount string
}

func newDeployCmd(globals *globalFlags) *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the latest trained version of a model to an endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(globals)
			if err != nil {
				return err
			}

			if flags.modelName == "" {
				cloud, err := config.Parse[config.CloudConfig]()
				if err != nil {
					return err
				}
				flags.modelName = cloud.ModelName + "@latest"
			}

			endpoint, err := c.Deploy(cmd.Context(), api.DeployRequest{
				EndpointName:   flags.endpointName,
				ModelName:      flags.modelName,
				MachineType:    flags.machineType,
				MinReplicas:    flags.minReplicas,
				MaxReplicas:    flags.maxReplicas,
				ServiceAccount: flags.serviceAccount,
			})
			if err != nil {
				return fmt.Errorf("deploy: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Endpoint:    %s\n", endpoint.Name)
			fmt.Fprintf(out, "Endpoint ID: %s\n", endpoint.Id)
			fmt.Fprintf(out, "Model ID:    %s\n", endpoint.ModelId)
			fmt.Fprintf(out, "Status:      %s\n", endpoint.Status)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.modelName, "model-name", "", "Model to deploy, NAME or NAME@latest (default $MODEL_NAME@latest)")
	f.StringVar(&flags.endpointName, "endpoint-name", "", "Endpoint display name (default $ENDPOINT_NAME on the server)")
	f.StringVar(&flags.machineType, "machine-type", "", "Machine type (default n1-standard-4)")
	f.IntVar(&flags.minReplicas, "min-replicas", 0, "Minimum replica count (default 1)")
	f.IntVar(&flags.maxReplicas, "max-replicas", 0, "Maximum replica count (default min-replicas)")
	f.StringVar(&flags.serviceAccount, "service-account", "", "Service account the endpoint runs as")

	return cmd
}
