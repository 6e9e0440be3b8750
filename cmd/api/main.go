package main

import (
	"context"
	"iris-backend/cmd"
	"iris-backend/internal/api"
	"iris-backend/internal/config"
	"iris-backend/internal/database"
	"iris-backend/internal/messaging"
	"iris-backend/internal/serving"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type APIConfig struct {
	config.ServiceConfig
	Storage config.StorageConfig
	Cloud   config.CloudConfig
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()
	cmd.InitLogging()

	cfg, err := config.Parse[APIConfig]()
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

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	r := cmd.NewRouter(false)

	apiHandler := api.NewBackendService(db, storage, publisher, serving.NewRegistry(storage), cfg.Storage.ModelBucketName, cfg.Cloud)
	if err := apiHandler.ReloadEndpoints(context.Background()); err != nil {
		log.Fatalf("Failed to reload deployed endpoints: %v", err)
	}

	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
