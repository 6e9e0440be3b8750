package main

import (
	"context"
	"errors"
	"fmt"
	"iris-backend/cmd"
	backend "iris-backend/internal/api"
	"iris-backend/internal/config"
	"iris-backend/internal/serving"
	"iris-backend/pkg/api"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	artifact string
	port     int
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions from a local artifact, reloading it when it changes",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if flags.artifact == "" {
				cfg, err := config.Parse[config.TrainerConfig]()
				if err != nil {
					return err
				}
				path, err := cfg.ArtifactPath()
				if err != nil {
					return err
				}
				flags.artifact = path
			}

			model, err := serving.NewFileModel(flags.artifact)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, model, flags.port)
		},
	}

	f := c.Flags()
	f.StringVar(&flags.artifact, "artifact", "", "Artifact to serve (default resolved like mlctl train)")
	f.IntVar(&flags.port, "port", 8080, "Port to listen on")

	return c
}

func predictRoutes(r chi.Router, model *serving.FileModel) {
	r.Get("/health", backend.RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Post("/predict", backend.RestHandler(func(r *http.Request) (any, error) {
		req, err := backend.ParseRequest[api.PredictRequest](r)
		if err != nil {
			return nil, err
		}

		pred, err := model.Predict(req.Instances)
		if err != nil {
			if errors.Is(err, serving.ErrInvalidInput) {
				return nil, backend.CodedError(http.StatusBadRequest, err)
			}
			return nil, err
		}
		return api.PredictResponse{Predictions: pred.Classes, Labels: pred.Labels}, nil
	}))
}

func serve(ctx context.Context, model *serving.FileModel, port int) error {
	r := cmd.NewRouter(true)
	predictRoutes(r, model)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		if err := model.Watch(ctx); err != nil {
			slog.Error("artifact watcher stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("serving model", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not listen on %d: %w", port, err)
	}
	return nil
}
