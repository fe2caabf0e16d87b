package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrorInvalidImage, http.StatusBadRequest},
		{ErrorUnsupportedFormat, http.StatusBadRequest},
		{ErrorInvalidRequest, http.StatusBadRequest},
		{ErrorEngineNotReady, http.StatusServiceUnavailable},
		{ErrorProcessingTimeout, http.StatusGatewayTimeout},
		{ErrorOCRFailed, http.StatusInternalServerError},
		{ErrorStorageFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		perr := &ProcessingError{Code: tt.code}
		if got := perr.HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestAsProcessingError(t *testing.T) {
	inner := NewInvalidImageError(nil)
	wrapped := fmt.Errorf("request failed: %w", inner)

	perr, ok := AsProcessingError(wrapped)
	if !ok || perr.Code != ErrorInvalidImage {
		t.Errorf("AsProcessingError = (%v, %v), want unwrapped INVALID_IMAGE", perr, ok)
	}

	if _, ok := AsProcessingError(errors.New("plain")); ok {
		t.Error("plain error should not unwrap to ProcessingError")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("decode failed")
	perr := NewOCRFailedError("req-1", "set-image", cause)

	if !errors.Is(perr, cause) {
		t.Error("Unwrap chain lost the cause")
	}
	msg := perr.Error()
	if !strings.Contains(msg, "OCR_FAILED") || !strings.Contains(msg, "decode failed") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestToMap(t *testing.T) {
	perr := NewProcessingTimeoutError("req-9", 30*time.Second, nil)
	m := perr.ToMap()

	if m["error_code"] != "PROCESSING_TIMEOUT" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["timeout_duration"] != "30s" {
		t.Errorf("timeout_duration = %v", m["timeout_duration"])
	}
}
