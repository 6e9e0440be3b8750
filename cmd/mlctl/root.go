package main

import (
	"fmt"
	"iris-backend/internal/config"
	"iris-backend/internal/logging"
	"iris-backend/pkg/client"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalFlags struct {
	envFile string
	apiURL  string
}

func newRootCmd() *cobra.Command {
	var globals globalFlags

	root := &cobra.Command{
		Use:   "mlctl",
		Short: "Train, submit and deploy iris classifiers",
		Long:  "mlctl trains the iris random forest locally, submits training jobs to the\nbackend, deploys trained models to endpoints and queries them.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(globals)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&globals.envFile, "env", "", "Path to a .env file to load before reading configuration")
	f.StringVar(&globals.apiURL, "api-url", "", "Backend URL (default $API_URL)")

	root.AddCommand(newTrainCmd())
	root.AddCommand(newSubmitCmd(&globals))
	root.AddCommand(newStatusCmd(&globals))
	root.AddCommand(newDeployCmd(&globals))
	root.AddCommand(newPredictCmd(&globals))
	root.AddCommand(newServeCmd())

	return root
}

func setup(globals globalFlags) error {
	if err := config.LoadEnvFile(globals.envFile); err != nil {
		return err
	}

	cfg, err := config.Parse[config.LoggingConfig]()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logging.Init(level, cfg.Format)
	return nil
}

func newClient(globals *globalFlags) (*client.Client, error) {
	url := globals.apiURL
	if url == "" {
		cfg, err := config.Parse[config.ClientConfig]()
		if err != nil {
			return nil, err
		}
		url = cfg.APIURL
	}
	return client.New(url), nil
}
