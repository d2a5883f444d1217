package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/docstore-labs/deptdocs-api/internal/repository"
	"github.com/docstore-labs/deptdocs-api/internal/worker"
	"github.com/docstore-labs/deptdocs-api/pkg/blobstore"
	"github.com/docstore-labs/deptdocs-api/pkg/config"
	"github.com/docstore-labs/deptdocs-api/pkg/database"
	"github.com/docstore-labs/deptdocs-api/pkg/logger"
	"github.com/docstore-labs/deptdocs-api/pkg/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	blobs, err := blobstore.New(setupCtx, cfg.MinIO)
	if err != nil {
		logr.Sugar().Fatalw("blob store connection failed", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka)
	defer consumer.Close() //nolint:errcheck

	fileRepo := repository.NewFileRepository(db)
	extractor := worker.NewExtractor(consumer, fileRepo, blobs, logr)

	logr.Sugar().Infow("metadata worker starting",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.GroupID)

	if err := extractor.Run(ctx); err != nil {
		logr.Sugar().Fatalw("worker stopped", "error", err)
	}
	logr.Sugar().Infow("metadata worker shut down")
}
