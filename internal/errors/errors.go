package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

/**
 * Structured error types for the receipt OCR service.
 *
 * Every failure that crosses a package boundary is wrapped in a
 * ProcessingError so that HTTP handlers and queue consumers can map
 * it to a status code without string matching.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Request errors
	ErrorInvalidImage      ErrorCode = "INVALID_IMAGE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorInvalidRequest    ErrorCode = "INVALID_REQUEST"

	// Processing errors
	ErrorEngineNotReady    ErrorCode = "ENGINE_NOT_READY"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps an error code to the response status used by the API.
func (e *ProcessingError) HTTPStatus() int {
	switch e.Code {
	case ErrorInvalidImage, ErrorUnsupportedFormat, ErrorInvalidRequest:
		return http.StatusBadRequest
	case ErrorEngineNotReady:
		return http.StatusServiceUnavailable
	case ErrorProcessingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AsProcessingError unwraps err to a *ProcessingError if one is in the chain.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// Factory functions for common errors

func NewInvalidImageError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidImage,
		Message:   "File could not be decoded as an image",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnsupportedFormatError(mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewInvalidRequestError(message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidRequest,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEngineNotReadyError() *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineNotReady,
		Message:   "OCR engine has not finished initializing",
		Timestamp: time.Now(),
	}
}

func NewProcessingTimeoutError(requestID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(requestID string, stage string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed at stage: %s", stage),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(requestID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store processing results",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for audit storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
