package cmd

import (
	"flag"
	"iris-backend/internal/config"
	"iris-backend/internal/logging"
	"log"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if err := config.LoadEnvFile(configPath); err != nil {
		log.Fatalf("%v", err)
	}
}

func InitLogging() {
	cfg, err := config.Parse[config.LoggingConfig]()
	if err != nil {
		log.Fatalf("error parsing logging config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		log.Fatalf("invalid LOG_LEVEL: %v", err)
	}

	logging.Init(level, cfg.Format)
}

func NewRouter(allowCors bool) *chi.Mux {
	r := chi.NewRouter()

	if allowCors {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300, // Cache preflight response for 5 minutes
		}))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout

	return r
}
