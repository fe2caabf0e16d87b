/**
 * Redis job status store.
 *
 * Tracks queued OCR jobs through processing/completed/failed sets,
 * keeps results in a hash, and publishes lifecycle events so ERP
 * clients can subscribe instead of polling.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/expensekit/ocr-service/internal/logging"
)

// StatusStore records job lifecycle state in Redis
type StatusStore struct {
	client *redis.Client
	queue  string
	log    *logging.Logger
}

// NewStatusStore connects to Redis and verifies connectivity
func NewStatusStore(redisURL, queueName string) (*StatusStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &StatusStore{
		client: client,
		queue:  queueName,
		log:    logging.NewLogger("StatusStore"),
	}, nil
}

// MarkProcessing adds the job to the processing set
func (s *StatusStore) MarkProcessing(ctx context.Context, jobID string) {
	if err := s.client.SAdd(ctx, s.key("processing"), jobID).Err(); err != nil {
		s.log.Warn("Failed to mark job processing", "jobId", jobID, "error", err)
	}
	s.publish(ctx, "processing", jobID)
}

// MarkCompleted moves the job to the completed set and stores its result
func (s *StatusStore) MarkCompleted(ctx context.Context, jobID string, result interface{}) {
	s.client.SRem(ctx, s.key("processing"), jobID)
	if err := s.client.SAdd(ctx, s.key("completed"), jobID).Err(); err != nil {
		s.log.Warn("Failed to mark job completed", "jobId", jobID, "error", err)
	}

	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			s.log.Warn("Failed to marshal job result", "jobId", jobID, "error", err)
		} else if err := s.client.HSet(ctx, s.key("results"), jobID, data).Err(); err != nil {
			s.log.Warn("Failed to store job result", "jobId", jobID, "error", err)
		}
	}

	s.publish(ctx, "completed", jobID)
}

// MarkFailed moves the job to the failed set and stores the error
func (s *StatusStore) MarkFailed(ctx context.Context, jobID string, errDetails interface{}) {
	s.client.SRem(ctx, s.key("processing"), jobID)
	if err := s.client.SAdd(ctx, s.key("failed"), jobID).Err(); err != nil {
		s.log.Warn("Failed to mark job failed", "jobId", jobID, "error", err)
	}

	if errDetails != nil {
		data, err := json.Marshal(errDetails)
		if err != nil {
			s.log.Warn("Failed to marshal job error", "jobId", jobID, "error", err)
		} else if err := s.client.HSet(ctx, s.key("errors"), jobID, data).Err(); err != nil {
			s.log.Warn("Failed to store job error", "jobId", jobID, "error", err)
		}
	}

	s.publish(ctx, "failed", jobID)
}

// Result returns the stored result JSON for a completed job
func (s *StatusStore) Result(ctx context.Context, jobID string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.key("results"), jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// Stats returns set cardinalities for monitoring
func (s *StatusStore) Stats(ctx context.Context) (map[string]int64, error) {
	processing, _ := s.client.SCard(ctx, s.key("processing")).Result()
	completed, _ := s.client.SCard(ctx, s.key("completed")).Result()
	failed, err := s.client.SCard(ctx, s.key("failed")).Result()
	if err != nil {
		return nil, err
	}

	return map[string]int64{
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

// Close closes the Redis connection
func (s *StatusStore) Close() error {
	return s.client.Close()
}

func (s *StatusStore) key(suffix string) string {
	return fmt.Sprintf("%s:%s", s.queue, suffix)
}

func (s *StatusStore) publish(ctx context.Context, event, jobID string) {
	payload, _ := json.Marshal(map[string]string{"event": event, "jobId": jobID})
	if err := s.client.Publish(ctx, s.key("events"), payload).Err(); err != nil {
		s.log.Debug("Failed to publish job event", "jobId", jobID, "event", event, "error", err)
	}
}
