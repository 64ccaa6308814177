package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dataveil/rgpd-gateway/internal/audit"
	"github.com/dataveil/rgpd-gateway/internal/config"
	"github.com/dataveil/rgpd-gateway/internal/consent"
	"github.com/dataveil/rgpd-gateway/internal/gateway"
	"github.com/dataveil/rgpd-gateway/internal/logger"
	"github.com/dataveil/rgpd-gateway/internal/pii"
	"github.com/dataveil/rgpd-gateway/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("RGPD-Gateway %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting RGPD-Gateway",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Consent repository: postgres in production, memory for local runs.
	var consents consent.Repo
	switch cfg.Consent.Backend {
	case "postgres":
		repo, err := consent.NewPostgresRepo(consent.PostgresConfig{
			DatabaseURL:     cfg.Consent.DatabaseURL,
			MaxOpenConns:    cfg.Consent.MaxOpenConns,
			MaxIdleConns:    cfg.Consent.MaxIdleConns,
			ConnMaxLifetime: cfg.Consent.ConnMaxLifetime,
		}, log.Logger)
		if err != nil {
			log.Fatal("Failed to connect consent repository", zap.Error(err))
		}
		defer repo.Close()
		consents = repo
	case "memory":
		log.Warn("Using in-memory consent repository, grants do not survive restarts")
		consents = consent.NewMemoryRepo()
	default:
		log.Fatal("Unknown consent backend", zap.String("backend", cfg.Consent.Backend))
	}

	// Audit sinks: structured log always, Redis Stream and the
	// dashboard hub when enabled.
	sinks := audit.MultiSink{audit.NewZapSink(log.Logger)}
	if cfg.Audit.Redis.Enabled {
		redisSink, err := audit.NewRedisSink(audit.RedisConfig{
			Enabled:  cfg.Audit.Redis.Enabled,
			RedisURL: cfg.Audit.Redis.RedisURL,
			Stream:   cfg.Audit.Redis.Stream,
			MaxLen:   cfg.Audit.Redis.MaxLen,
			PoolSize: cfg.Audit.Redis.PoolSize,
			MinIdle:  cfg.Audit.Redis.MinIdleConns,
		}, log.Logger)
		if err != nil {
			log.Fatal("Failed to connect audit redis stream", zap.Error(err))
		}
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
	}

	var hub *server.Hub
	if cfg.WebSocket.Enabled {
		hub = server.NewHub(cfg.WebSocket, log.Logger)
		sinks = append(sinks, hub)
	}

	detector, err := pii.NewDetector(cfg.Privacy.Detectors, log.Logger)
	if err != nil {
		log.Fatal("Failed to build PII detector", zap.Error(err))
	}

	redactor := gateway.NewRedactor(
		detector,
		log.Logger,
		sinks,
		cfg.Privacy.RedactionBudget,
		gateway.FailMode(cfg.Privacy.FailMode),
	)

	provider, err := gateway.NewProvider(gateway.ProviderConfig{
		Kind:    cfg.Provider.Kind,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to build LLM provider", zap.Error(err))
	}

	gw := gateway.New(provider, consents, log.Logger)
	srv := server.New(cfg, log, gw, redactor, hub)

	if err := config.Watch(cfg, func(updated *config.Config) {
		log.Info("Configuration file changed")
		srv.ApplyConfig(updated)
	}); err != nil {
		log.Warn("Config watcher unavailable", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
