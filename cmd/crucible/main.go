// Crucible server — hosts the gateway, orchestrator, generator, analyzer and
// evaluator endpoints on one HTTP server and drives the wave loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/crucible/pkg/analyzer"
	"github.com/codeready-toolchain/crucible/pkg/api"
	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/database"
	"github.com/codeready-toolchain/crucible/pkg/events"
	"github.com/codeready-toolchain/crucible/pkg/evaluator"
	"github.com/codeready-toolchain/crucible/pkg/generator"
	"github.com/codeready-toolchain/crucible/pkg/llm"
	"github.com/codeready-toolchain/crucible/pkg/orchestrator"
	"github.com/codeready-toolchain/crucible/pkg/store"
	"github.com/codeready-toolchain/crucible/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting crucible",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Blob store and completion client
	blobs, err := blob.NewFSStore(cfg.Blob.Dir)
	if err != nil {
		slog.Error("Failed to initialize blob store", "dir", cfg.Blob.Dir, "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewHTTPClient(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.LLM.Timeout.Std())
	slog.Info("Completion client initialized", "endpoint", cfg.LLM.Endpoint)

	// 4. Stores and event publisher
	stores := store.NewPostgresStores(dbClient.DB()).Bundle()
	publisher := events.NewPublisher(dbClient.DB())

	// 5. Component services. Peers address each other through the configured
	// base URL, so the same wiring works single-binary or split out.
	apiBase := cfg.Server.BaseURL + "/api/v1"
	dispatcher := orchestrator.NewHTTPDispatcher(apiBase+"/generate", apiBase+"/analyze")
	manager := orchestrator.NewManager(cfg.Orchestrator, stores, blobs, dispatcher, publisher)
	gen := generator.New(blobs, llmClient, apiBase)
	ana := analyzer.New(apiBase+"/evaluate", apiBase, blobs, llmClient, cfg.Analyzer.MaxConcurrentEvaluations)
	eval := evaluator.New(blobs, llmClient)
	slog.Info("Services initialized")

	// 6. Rehydrate in-flight projects before accepting traffic
	if err := manager.Rehydrate(ctx); err != nil {
		slog.Error("Failed to rehydrate projects", "error", err)
		os.Exit(1)
	}
	defer manager.Stop()

	// 7. Start HTTP server (non-blocking)
	server := api.NewServer(manager, gen, ana, eval, dbClient)
	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Crucible started successfully",
		"generators_per_wave", cfg.Orchestrator.GeneratorCountPerWave)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: stop accepting requests, then stop actors. Their
	// durable state is rehydrated on the next start.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GracefulShutdownTimeout.Std())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Crucible stopped")
}
