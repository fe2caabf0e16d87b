/**
 * Receipt OCR service - HTTP entry point.
 *
 * Serves synchronous OCR, document comparison, and batch endpoints.
 * Redis (async jobs) and PostgreSQL (audit log) are optional; the
 * server degrades to a stateless OCR API without them.
 */

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/expensekit/ocr-service/internal/config"
	"github.com/expensekit/ocr-service/internal/diff"
	"github.com/expensekit/ocr-service/internal/engine"
	"github.com/expensekit/ocr-service/internal/pipeline"
	"github.com/expensekit/ocr-service/internal/preprocess"
	"github.com/expensekit/ocr-service/internal/queue"
	"github.com/expensekit/ocr-service/internal/server"
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

	log.Printf("Receipt OCR service starting...")
	log.Printf("Configuration loaded: addr=%s, language=%s, ocrConcurrency=%d",
		cfg.ListenAddr, cfg.OCRLanguage, cfg.OCRConcurrency)

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
	differ := diff.NewEngine(cfg.VisualDiffThreshold)

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

	var producer *queue.Producer
	if cfg.RedisURL != "" {
		producer, err = queue.NewProducer(cfg.RedisURL, cfg.QueueName)
		if err != nil {
			log.Fatalf("Failed to initialize queue producer: %v", err)
		}
		defer producer.Close()
		log.Printf("Queue producer initialized (queue=%s)", cfg.QueueName)
	}

	srv := server.New(cfg, pipe, differ, audit, producer)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}

	log.Printf("Shutdown complete")
}
