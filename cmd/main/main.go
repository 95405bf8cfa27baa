package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/handler"
	logx "github.com/loomchat/attachment-backend/pkg/logger"
	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/sandbox"
	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/storage"

	database "github.com/loomchat/attachment-backend/pkg/db"
	attachmentworker "github.com/loomchat/attachment-backend/pkg/worker"
)

const gracefulShutdownTimeout = 15 * time.Second

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, _ := logx.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = logger.Sync()
	}()

	db := database.GetConnection(config.Config.Database)
	defer database.Close(db)

	redisClient := redis.NewClient(&config.Config.Cache.Redis.RedisOptions)
	defer redisClient.Close()

	registry, err := newStorageRegistry(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage backends", zap.Error(err))
	}

	tokens := rag.NewTokenIssuer(config.Config.RAG.JWTSecret, config.Config.RAG.TokenTTL, redisClient)
	ragClient := rag.NewClient(config.Config.RAG, config.Config.Server.PublicURL, tokens, logger)
	sandboxClient := sandbox.NewClient(config.Config.Sandbox, logger)

	temporalClient, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  config.Config.Temporal.HostPort,
		Namespace: config.Config.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	svc := service.NewService(
		repository.NewRepository(db),
		registry,
		ragClient,
		sandboxClient,
		redisClient,
		nil,
		attachmentworker.NewEmbedFileWorkflow(temporalClient),
		attachmentworker.NewCleanupFilesWorkflow(temporalClient),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Config.Server.Port),
		Handler: handler.NewMux(svc, logger),
	}

	errSig := make(chan error)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errSig <- err
		}
	}()
	logger.Info("HTTP server is running.", zap.Int("port", config.Config.Server.Port))

	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errSig:
		logger.Error(fmt.Sprintf("Fatal error: %v", err))
	case <-quitSig:
		logger.Info("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, gracefulShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}
}

// newStorageRegistry builds every configured backend and wires the
// per-strategy routing table.
func newStorageRegistry(ctx context.Context, logger *zap.Logger) (*storage.Registry, error) {
	var backends []storage.Backend

	if config.Config.Minio.Host != "" {
		minioBackend, err := storage.NewMinIOBackend(ctx, config.Config.Minio, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing minio backend: %w", err)
		}
		backends = append(backends, minioBackend)
	}
	if config.Config.GCS.Bucket != "" {
		gcsBackend, err := storage.NewGCSBackend(ctx, config.Config.GCS, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing gcs backend: %w", err)
		}
		backends = append(backends, gcsBackend)
	}
	if config.Config.Storage.Local.Path != "" {
		localBackend, err := storage.NewLocalBackend(config.Config.Storage.Local.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing local backend: %w", err)
		}
		backends = append(backends, localBackend)
	}
	if config.Config.Provider.APIURL != "" {
		backends = append(backends, storage.NewProviderBackend(config.Config.Provider, logger))
	}

	return storage.NewRegistry(backends, config.Config.Storage.Strategies, config.Config.Storage.Default)
}
