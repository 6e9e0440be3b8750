package main

import (
	"context"
	"fmt"
	"io"
	"iris-backend/cmd"
	"iris-backend/internal/api"
	"iris-backend/internal/config"
	"iris-backend/internal/database"
	"iris-backend/internal/jobs"
	"iris-backend/internal/messaging"
	"iris-backend/internal/serving"
	"iris-backend/internal/storage"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
)

type Config struct {
	Root string `env:"ROOT" envDefault:"./iris-backend"`
	Port int    `env:"PORT" envDefault:"3001"`

	Cloud config.CloudConfig
}

const modelBucket = "models"

func createServer(service *api.BackendService, port int) *http.Server {
	r := cmd.NewRouter(true)

	r.Route("/api/v1", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port)

	db, err := database.NewDatabase(filepath.Join(cfg.Root, "iris.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	provider, err := storage.NewLocalProvider(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create storage provider: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	service := api.NewBackendService(db, provider, queue, serving.NewRegistry(provider), modelBucket, cfg.Cloud)
	if err := service.ReloadEndpoints(context.Background()); err != nil {
		log.Fatalf("Failed to reload deployed endpoints: %v", err)
	}

	worker := jobs.NewTaskProcessor(db, provider, queue, filepath.Join(cfg.Root, "scratch"), 1)

	server := createServer(service, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting worker")
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Start(ctx); err != nil {
			slog.Error("worker stopped with error", "error", err)
		}
	}()

	go func() {
		if _, err := jobs.RequeuePending(ctx, db, queue); err != nil {
			slog.Error("failed to requeue pending models", "error", err)
		}
	}()

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	<-workerDone
	slog.Info("server stopped")
}
