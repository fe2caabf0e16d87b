package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Producer enqueues OCR jobs for the worker
type Producer struct {
	client *asynq.Client
	queue  string
}

// NewProducer creates a producer for the given Redis queue
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}, nil
}

// Enqueue submits one OCR job and returns its job ID. A zero JobID is
// assigned a fresh UUID.
func (p *Producer) Enqueue(ctx context.Context, job *OCRJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	task := asynq.NewTask(TaskTypeOCR, payload)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.Queue(p.queue)); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job.JobID, nil
}

// Close closes the underlying client
func (p *Producer) Close() error {
	return p.client.Close()
}
