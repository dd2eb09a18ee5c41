package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/agent"
	"github.com/agentforge/agentd/internal/chunker"
	"github.com/agentforge/agentd/internal/config"
	"github.com/agentforge/agentd/internal/embeddings"
	"github.com/agentforge/agentd/internal/events"
	"github.com/agentforge/agentd/internal/llm"
	"github.com/agentforge/agentd/internal/logging"
	"github.com/agentforge/agentd/internal/server"
	"github.com/agentforge/agentd/internal/store"
	"github.com/agentforge/agentd/internal/telemetry"
	"github.com/agentforge/agentd/internal/vectorstore"
)

const defaultShutdownTimeout = 10 * time.Second

// runServe wires the full pipeline and blocks until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadWithFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	repo, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Providers.OpenAIAPIKey.Value(),
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}
	defer func() {
		if err := embedder.Close(); err != nil {
			logger.Warn("embedder close failed", zap.Error(err))
		}
	}()

	vectors, err := vectorStore(cfg, embedder, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			logger.Warn("vector store close failed", zap.Error(err))
		}
	}()

	splitter, err := chunker.New(chunker.Config{
		ChunkSize: cfg.Ingest.ChunkSize,
		Overlap:   cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("initializing chunker: %w", err)
	}

	service, err := agent.NewService(
		agent.Config{
			TopK:             cfg.Chat.TopK,
			MaxContextTokens: cfg.Chat.MaxContextTokens,
			HistoryWindow:    cfg.Chat.HistoryWindow,
		},
		repo,
		vectors,
		llm.NewSelector(cfg.Providers, logger),
		splitter,
		events.NewLogSink(logger),
		logger,
	)
	if err != nil {
		return fmt.Errorf("initializing agent service: %w", err)
	}

	srv, err := server.NewServer(service, logger, &server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		MaxUploadBytes:    cfg.Ingest.MaxUploadBytes,
		AllowedExtensions: cfg.Ingest.AllowedExtensions,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func vectorStore(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (vectorstore.Store, error) {
	return vectorstore.NewStore(cfg.Vector, embedder, embedder.Dimension(), logger)
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if d, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err == nil && d > 0 {
		return d
	}
	return defaultShutdownTimeout
}
