/**
 * Receipt OCR worker - queue entry point.
 *
 * Consumes OCR jobs from Redis via Asynq and runs them through the
 * same preprocess/recognize/extract pipeline as the HTTP server. Job
 * status tracking lives in Redis; outcomes are mirrored to the audit
 * log when PostgreSQL is configured.
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/expensekit/ocr-service/internal/config"
	"github.com/expensekit/ocr-service/internal/engine"
	"github.com/expensekit/ocr-service/internal/pipeline"
	"github.com/expensekit/ocr-service/internal/preprocess"
	"github.com/expensekit/ocr-service/internal/queue"
	"github.com/expensekit/ocr-service/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RedisURL == "" {
		log.Fatalf("REDIS_URL is required for worker mode")
	}

	log.Printf("Receipt OCR worker starting...")
	log.Printf("Configuration loaded: queue=%s, workers=%d, language=%s",
		cfg.QueueName, cfg.WorkerConcurrency, cfg.OCRLanguage)

	// OCR engine must be warm before the first job arrives
	eng := engine.New(engine.Config{
		Language:    cfg.OCRLanguage,
		Concurrency: cfg.OCRConcurrency,
	})
	initCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := eng.Initialize(initCtx); err != nil {
		cancel()
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}
	cancel()
	log.Printf("OCR engine initialized")

	pipe := pipeline.New(preprocess.New(cfg.MaxImageWidth, cfg.DeskewThreshold), eng)

	var audit *storage.AuditStore
	if cfg.DatabaseURL != "" {
		log.Printf("Connecting to audit database...")
		audit, err = storage.NewAuditStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to audit database: %v", err)
		}
		defer audit.Close()

		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
		if err := audit.EnsureSchema(schemaCtx); err != nil {
			cancelSchema()
			log.Fatalf("Failed to ensure audit schema: %v", err)
		}
		cancelSchema()
		log.Printf("Audit store initialized")
	}

	log.Printf("Connecting to Redis...")
	status, err := queue.NewStatusStore(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize status store: %v", err)
	}
	defer status.Close()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:      cfg.RedisURL,
		QueueName:     cfg.QueueName,
		Concurrency:   cfg.WorkerConcurrency,
		TimeoutMs:     cfg.OCRTimeoutMs,
		MinConfidence: cfg.MinConfidence,
		Pipeline:      pipe,
		Status:        status,
		Audit:         audit,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Receipt OCR Worker is READY")
	log.Printf("Queue: %s, Workers: %d", cfg.QueueName, cfg.WorkerConcurrency)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	log.Printf("Shutdown complete")
}
