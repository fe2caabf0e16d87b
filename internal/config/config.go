/**
 * Configuration for the receipt OCR service.
 *
 * Loads configuration from environment variables. Redis and PostgreSQL
 * are optional integrations; the HTTP server runs without them.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds service configuration
type Config struct {
	// HTTP server configuration
	ListenAddr string
	APIKey     string

	// Redis configuration (job queue and status store)
	RedisURL  string
	QueueName string

	// PostgreSQL configuration (audit log)
	DatabaseURL string

	// OCR engine configuration
	OCRLanguage     string
	OCRConcurrency  int
	OCRTimeoutMs    int
	MaxFileSize     int64
	MaxImageWidth   int
	DeskewThreshold float64

	// Extraction and comparison thresholds
	MinConfidence       float64
	VisualDiffThreshold float64

	// Worker configuration
	WorkerConcurrency int

	// Node environment
	Env string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr:          getEnvOrDefault("LISTEN_ADDR", ":8080"),
		APIKey:              getEnvOrDefault("OCR_API_KEY", ""),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "ocr"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		OCRLanguage:         getEnvOrDefault("OCR_LANGUAGE", "eng"),
		OCRConcurrency:      getEnvAsIntOrDefault("OCR_CONCURRENCY", 4),
		OCRTimeoutMs:        getEnvAsIntOrDefault("OCR_TIMEOUT_MS", 30000),
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 10485760), // 10MB
		MaxImageWidth:       getEnvAsIntOrDefault("MAX_IMAGE_WIDTH", 2000),
		DeskewThreshold:     getEnvAsFloatOrDefault("DESKEW_MAX_ANGLE", 10.0),
		MinConfidence:       getEnvAsFloatOrDefault("MIN_CONFIDENCE", 0.85),
		VisualDiffThreshold: getEnvAsFloatOrDefault("VISUAL_DIFF_THRESHOLD", 0.95),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		Env:                 getEnvOrDefault("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}

	if c.OCRConcurrency < 1 || c.OCRConcurrency > 100 {
		return fmt.Errorf("OCR_CONCURRENCY must be between 1 and 100, got %d", c.OCRConcurrency)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.OCRTimeoutMs < 1000 || c.OCRTimeoutMs > 600000 { // 1s to 10min
		return fmt.Errorf("OCR_TIMEOUT_MS must be between 1000 and 600000, got %d", c.OCRTimeoutMs)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 104857600 { // 1KB to 100MB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 100MB, got %d", c.MaxFileSize)
	}

	if c.MaxImageWidth < 100 {
		return fmt.Errorf("MAX_IMAGE_WIDTH must be at least 100, got %d", c.MaxImageWidth)
	}

	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in (0, 1], got %f", c.MinConfidence)
	}

	if c.VisualDiffThreshold <= 0 || c.VisualDiffThreshold > 1 {
		return fmt.Errorf("VISUAL_DIFF_THRESHOLD must be in (0, 1], got %f", c.VisualDiffThreshold)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
