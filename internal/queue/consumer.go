/**
 * Queue consumer for asynchronous receipt OCR.
 *
 * Consumes OCR jobs from Redis via Asynq, runs them through the same
 * pipeline as the HTTP handlers, and records outcomes in the status
 * store and audit log.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/expensekit/ocr-service/internal/errors"
	"github.com/expensekit/ocr-service/internal/logging"
	"github.com/expensekit/ocr-service/internal/pipeline"
	"github.com/expensekit/ocr-service/internal/storage"
)

// TaskTypeOCR is the asynq task type for receipt OCR jobs
const TaskTypeOCR = "ocr:process"

// OCRJob is the payload of an OCR task. FileData is carried as base64
// through JSON marshaling of the byte slice.
type OCRJob struct {
	JobID      string `json:"jobId"`
	ExpenseID  *int64 `json:"expenseId,omitempty"`
	EmployeeID *int64 `json:"employeeId,omitempty"`
	CompanyID  *int64 `json:"companyId,omitempty"`
	Filename   string `json:"filename"`
	FileData   []byte `json:"fileData"`
}

// JobResult is what gets stored for a completed job
type JobResult struct {
	JobID       string      `json:"jobId"`
	Filename    string      `json:"filename"`
	Confidence  float64     `json:"confidence"`
	NeedsReview bool        `json:"needsReview"`
	Fields      interface{} `json:"extractedFields"`
	ProcessedAt string      `json:"processedAt"`
	DurationMs  int64       `json:"durationMs"`
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL      string
	QueueName     string
	Concurrency   int
	TimeoutMs     int
	MinConfidence float64
	Pipeline      *pipeline.Pipeline
	Status        *StatusStore
	Audit         *storage.AuditStore // optional
}

// Consumer processes OCR jobs from the queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cfg    *ConsumerConfig
	log    *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("Pipeline is required")
	}
	if cfg.Status == nil {
		return nil, fmt.Errorf("Status store is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	log := logging.NewLogger("Consumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("Task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server: server,
		mux:    mux,
		cfg:    cfg,
		log:    log,
	}

	mux.HandleFunc(TaskTypeOCR, consumer.handleOCRJob)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("Starting queue consumer",
		"concurrency", c.cfg.Concurrency, "queue", c.cfg.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.log.Error("Queue consumer stopped", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.log.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.log.Info("Queue consumer stopped")
	return nil
}

// handleOCRJob runs one queued receipt through the pipeline. Invalid
// payloads and undecodable images are not retried; transient failures
// are left to asynq's retry schedule.
func (c *Consumer) handleOCRJob(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var job OCRJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %v: %w", err, asynq.SkipRetry)
	}

	log := c.log.With("jobId", job.JobID)
	log.Info("Processing queued receipt", "filename", job.Filename, "size", len(job.FileData))

	c.cfg.Status.MarkProcessing(ctx, job.JobID)

	timeout := time.Duration(c.cfg.TimeoutMs) * time.Millisecond
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doc, err := c.cfg.Pipeline.Process(processCtx, job.FileData)
	duration := time.Since(start)

	if err != nil {
		return c.failJob(ctx, &job, err, duration)
	}

	result := &JobResult{
		JobID:       job.JobID,
		Filename:    job.Filename,
		Confidence:  doc.OCR.AverageConfidence,
		NeedsReview: doc.OCR.AverageConfidence < c.cfg.MinConfidence,
		Fields:      doc.Fields,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		DurationMs:  duration.Milliseconds(),
	}

	c.cfg.Status.MarkCompleted(ctx, job.JobID, result)
	c.recordAudit(ctx, &job, storage.ActionOCRProcessed, doc.OCR.AverageConfidence, map[string]interface{}{
		"filename":    job.Filename,
		"regions":     len(doc.OCR.TextRegions),
		"needsReview": result.NeedsReview,
		"durationMs":  duration.Milliseconds(),
	})

	log.Info("Queued receipt processed",
		"confidence", doc.OCR.AverageConfidence,
		"regions", len(doc.OCR.TextRegions),
		"durationMs", duration.Milliseconds())

	return nil
}

func (c *Consumer) failJob(ctx context.Context, job *OCRJob, err error, duration time.Duration) error {
	log := c.log.With("jobId", job.JobID)

	var details interface{} = map[string]interface{}{"error": err.Error()}
	if perr, ok := apperrors.AsProcessingError(err); ok {
		details = perr.ToMap()
	}

	c.cfg.Status.MarkFailed(ctx, job.JobID, details)
	c.recordAudit(ctx, job, storage.ActionOCRFailed, 0, map[string]interface{}{
		"filename":   job.Filename,
		"error":      err.Error(),
		"durationMs": duration.Milliseconds(),
	})

	if perr, ok := apperrors.AsProcessingError(err); ok {
		switch perr.Code {
		case apperrors.ErrorInvalidImage, apperrors.ErrorUnsupportedFormat:
			// Retrying cannot fix a bad image
			log.Warn("Dropping job with undecodable image", "error", err)
			return fmt.Errorf("invalid image: %v: %w", err, asynq.SkipRetry)
		}
	}

	log.Error("Queued receipt failed", "error", err, "durationMs", duration.Milliseconds())
	return fmt.Errorf("receipt processing failed: %w", err)
}

func (c *Consumer) recordAudit(ctx context.Context, job *OCRJob, action string, confidence float64, data map[string]interface{}) {
	if c.cfg.Audit == nil {
		return
	}
	entry := &storage.AuditEntry{
		ExpenseID:  job.ExpenseID,
		EmployeeID: job.EmployeeID,
		CompanyID:  job.CompanyID,
		Action:     action,
		Confidence: confidence,
		ResultData: data,
	}
	if err := c.cfg.Audit.Record(ctx, entry); err != nil {
		c.log.Warn("Failed to record audit entry", "jobId", job.JobID, "error", err)
	}
}
