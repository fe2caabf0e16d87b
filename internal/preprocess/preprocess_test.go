package preprocess

import (
	"math"
	"testing"
)

func TestCapWidth(t *testing.T) {
	tests := []struct {
		name       string
		w, h, max  int
		wantW      int
		wantH      int
		wantResize bool
	}{
		{"under cap", 1200, 1600, 2000, 1200, 1600, false},
		{"at cap", 2000, 3000, 2000, 2000, 3000, false},
		{"over cap", 4000, 3000, 2000, 2000, 1500, true},
		{"over cap rounding", 3000, 1001, 2000, 2000, 667, true},
		{"cap disabled", 4000, 3000, 0, 4000, 3000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, resize := capWidth(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH || resize != tt.wantResize {
				t.Errorf("capWidth(%d, %d, %d) = (%d, %d, %v), want (%d, %d, %v)",
					tt.w, tt.h, tt.max, w, h, resize, tt.wantW, tt.wantH, tt.wantResize)
			}
		})
	}
}

func TestMedianAngle(t *testing.T) {
	tests := []struct {
		name   string
		angles []float64
		want   float64
	}{
		{"single", []float64{2.5}, 2.5},
		{"odd count", []float64{-1, 5, 2}, 2},
		{"even count", []float64{1, 3}, 2},
		{"outlier resistant", []float64{0.5, 0.4, 0.6, 9.9}, 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := medianAngle(tt.angles)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("medianAngle(%v) = %v, want %v", tt.angles, got, tt.want)
			}
		})
	}
}

func TestMedianAngleDoesNotMutateInput(t *testing.T) {
	angles := []float64{3, 1, 2}
	medianAngle(angles)
	if angles[0] != 3 || angles[1] != 1 || angles[2] != 2 {
		t.Errorf("input slice was reordered: %v", angles)
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"tiff le", []byte{0x49, 0x49, 0x2A, 0x00, 0x08}, "image/tiff"},
		{"bmp", []byte("BM\x36\x00\x00"), "image/bmp"},
		{"pdf", []byte("%PDF-1.7\n"), "application/pdf"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x00), "image/webp"},
		{"plain text", []byte("hello world, not an image"), ""},
		{"too short", []byte{0x01}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMimeType(tt.data); got != tt.want {
				t.Errorf("DetectMimeType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSupportedImage(t *testing.T) {
	if !IsSupportedImage("image/png") {
		t.Error("png should be supported")
	}
	if IsSupportedImage("application/pdf") {
		t.Error("pdf should not be supported")
	}
	if IsSupportedImage("") {
		t.Error("unknown type should not be supported")
	}
}
