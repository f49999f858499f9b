package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"imageseo/internal/models"
	"imageseo/internal/pipeline"
	"imageseo/internal/queue"
	"imageseo/internal/server"
	"imageseo/internal/storage"
	"imageseo/internal/vision"
)

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := storage.NewStorage(cfg.DatabaseURL, cfg.StoragePath)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}
	defer db.Close()

	producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)

	client := vision.NewClient(cfg.OpenAI, logger)
	single := pipeline.NewSingle(db, client, client.Model(), logger)
	bulk := pipeline.NewBulk(db, client, client.BulkModel(), logger)

	// Start the task consumer in background
	ctx, cancel := context.WithCancel(context.Background())
	consumer := queue.NewConsumer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID, single, bulk, logger)
	go func() {
		defer consumer.Close()
		consumer.Run(ctx)
	}()

	srv := server.NewServer(cfg, db, producer, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	producer.Close()
}
