package main

import (
	"context"
	"iris-backend/cmd"
	"iris-backend/internal/config"
	"iris-backend/internal/database"
	"iris-backend/internal/jobs"
	"iris-backend/internal/messaging"
	"log"
	"os"
	"os/signal"
	"syscall"
)

type WorkerConfig struct {
	config.ServiceConfig
	Storage config.StorageConfig
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()
	cmd.InitLogging()

	cfg, err := config.Parse[WorkerConfig]()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set")
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	storage, err := cfg.Storage.NewProvider()
	if err != nil {
		log.Fatalf("Failed to create storage provider: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	worker := jobs.NewTaskProcessor(db, storage, receiver, cfg.ScratchDir, cfg.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")
	if err := worker.Start(ctx); err != nil {
		log.Printf("worker exited with error: %v", err)
	}

	worker.Stop()
	log.Println("Worker process stopped.")
}
