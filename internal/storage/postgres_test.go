package storage

import "testing"

func TestSanitizeScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.9632000000000001, 0.9632},
		{0.5, 0.5},
		{0.12345, 0.1235}, // rounds half up
		{-0.1, 0},
		{1.5, 1},
		{0, 0},
		{1, 1},
	}

	for _, tt := range tests {
		if got := sanitizeScore(tt.in); got != tt.want {
			t.Errorf("sanitizeScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
