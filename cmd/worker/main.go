package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/loomchat/attachment-backend/config"
	logx "github.com/loomchat/attachment-backend/pkg/logger"
	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/sandbox"
	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/storage"

	database "github.com/loomchat/attachment-backend/pkg/db"
	attachmentworker "github.com/loomchat/attachment-backend/pkg/worker"
)

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

	// The worker only executes activities; it never starts workflows itself,
	// so the service gets no workflow wrappers.
	svc := service.NewService(
		repository.NewRepository(db),
		registry,
		ragClient,
		sandboxClient,
		redisClient,
		nil,
		nil,
		nil,
	)

	cw, err := attachmentworker.New(attachmentworker.Config{Service: svc}, logger)
	if err != nil {
		logger.Fatal("Unable to create worker", zap.Error(err))
	}

	w := worker.New(temporalClient, attachmentworker.TaskQueue, worker.Options{
		WorkflowPanicPolicy: worker.BlockWorkflow,
	})

	w.RegisterWorkflow(cw.EmbedFileWorkflow)
	w.RegisterWorkflow(cw.CleanupFilesWorkflow)

	w.RegisterActivity(cw.SetStrategyStatusActivity)
	w.RegisterActivity(cw.ExtractTextActivity)
	w.RegisterActivity(cw.TriggerEmbeddingActivity)
	w.RegisterActivity(cw.GetFilesForCleanupActivity)
	w.RegisterActivity(cw.DeleteVectorsActivity)
	w.RegisterActivity(cw.DeleteStorageActivity)
	w.RegisterActivity(cw.DeleteToolResourceLinksActivity)
	w.RegisterActivity(cw.DeleteFileRecordsActivity)

	logger.Info("Temporal worker is running.", zap.String("taskQueue", attachmentworker.TaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Unable to start worker", zap.Error(err))
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
