package main

import (
	"fmt"
	"os"
	"time"

	"github.com/docshield/docshield-backend/internal/config"
	"github.com/docshield/docshield-backend/internal/data/db"
	"github.com/docshield/docshield-backend/internal/data/repos"
	httpserver "github.com/docshield/docshield-backend/internal/http"
	httpH "github.com/docshield/docshield-backend/internal/http/handlers"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/services"
	"github.com/docshield/docshield-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	serverAddress := utils.GetEnv("SERVER_ADDRESS", ":5443", log)
	verifyBase := utils.GetEnv("VERIFY_BASE_URL", "http://localhost:5443", log)
	registryBackend := utils.GetEnv("REGISTRY_BACKEND", "file", log)
	registryFilePath := utils.GetEnv("REGISTRY_FILE_PATH", "document_registry.json", log)
	cooldownSecs := utils.GetEnvAsInt("REGISTRY_RETRY_COOLDOWN", 30, log)
	tuningPath := utils.GetEnv("TUNING_CONFIG", "tuning.yaml", log)

	tuning, err := config.LoadTuning(tuningPath, log)
	if err != nil {
		log.Error("Could not load tuning config", "error", err)
		os.Exit(1)
	}

	// Registry backend, picked once at startup.
	log.Info("Setting up document registry from main...", "backend", registryBackend)
	var docRepo repos.DocumentRepo
	switch registryBackend {
	case "postgres":
		pg, err := db.NewPostgresService(log)
		if err != nil {
			log.Error("Postgres init failed", "error", err)
			os.Exit(1)
		}
		if err := db.AutoMigrateAll(pg.DB()); err != nil {
			log.Error("Postgres auto migration failed", "error", err)
			os.Exit(1)
		}
		docRepo = repos.NewAvailabilityGuard(
			repos.NewGormDocumentRepo(pg.DB(), log, "postgres"),
			log,
			time.Duration(cooldownSecs)*time.Second,
		)
	case "sqlite":
		lite, err := db.NewSQLiteService(log)
		if err != nil {
			log.Error("SQLite init failed", "error", err)
			os.Exit(1)
		}
		if err := db.AutoMigrateAll(lite.DB()); err != nil {
			log.Error("SQLite auto migration failed", "error", err)
			os.Exit(1)
		}
		docRepo = repos.NewGormDocumentRepo(lite.DB(), log, "sqlite")
	case "file":
		docRepo = repos.NewFileDocumentRepo(registryFilePath, log)
	default:
		log.Error("Unknown REGISTRY_BACKEND", "backend", registryBackend)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	issuer, err := services.NewIssuerService(log, docRepo, verifyBase)
	if err != nil {
		log.Error("Could not init IssuerService", "error", err)
		os.Exit(1)
	}
	verifier := services.NewVerifierService(log, docRepo, tuning)

	// Handlers
	log.Info("Setting up Handlers from main...")
	issueHandler := httpH.NewIssueHandler(log, issuer)
	verifyHandler := httpH.NewVerifyHandler(log, verifier)
	registryHandler := httpH.NewRegistryHandler(log, docRepo)
	healthHandler := httpH.NewHealthHandler(docRepo)

	// Router
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:             log,
		IssueHandler:    issueHandler,
		VerifyHandler:   verifyHandler,
		RegistryHandler: registryHandler,
		HealthHandler:   healthHandler,
	})

	log.Info("Starting server...", "address", serverAddress, "storage", docRepo.Backend())
	if err := server.Run(serverAddress); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
