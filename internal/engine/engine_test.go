package engine

import (
	"bytes"
	"context"
	"image"
	"math"
	"testing"
)

func region(top, height float64, text string, conf float64) TextRegion {
	return TextRegion{
		BBox:       [4][2]float64{{0, top}, {100, top}, {100, top + height}, {0, top + height}},
		Text:       text,
		Confidence: conf,
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{92.5, 0.925},
		{0, 0},
		{100, 1},
		{150, 1},  // clamp above
		{-1, 0},   // tesseract reports -1 for unscored lines
		{50, 0.5},
	}

	for _, tt := range tests {
		if got := normalizeConfidence(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("normalizeConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAverageConfidence(t *testing.T) {
	regions := []TextRegion{
		region(0, 10, "a", 0.9),
		region(20, 10, "b", 0.7),
	}
	if got := averageConfidence(regions); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("averageConfidence = %v, want 0.8", got)
	}

	if got := averageConfidence(nil); got != 0 {
		t.Errorf("averageConfidence(nil) = %v, want 0", got)
	}
}

func TestAnalyzeLayout(t *testing.T) {
	regions := []TextRegion{
		region(0, 10, "header", 0.9),
		region(90, 10, "footer", 0.9),
	}
	layout := analyzeLayout(regions)

	if layout.NumTextRegions != 2 {
		t.Errorf("NumTextRegions = %d, want 2", layout.NumTextRegions)
	}
	// corner y values: 0,0,10,10 and 90,90,100,100 -> mean 50
	if math.Abs(layout.AvgYPosition-50) > 1e-9 {
		t.Errorf("AvgYPosition = %v, want 50", layout.AvgYPosition)
	}
	if layout.DocumentType != "receipt" {
		t.Errorf("DocumentType = %q, want receipt", layout.DocumentType)
	}
}

func TestAnalyzeLayoutEmpty(t *testing.T) {
	layout := analyzeLayout(nil)
	if layout.NumTextRegions != 0 || layout.AvgYPosition != 0 {
		t.Errorf("unexpected layout for empty input: %+v", layout)
	}
}

func TestRectCorners(t *testing.T) {
	got := rectCorners(image.Rect(10, 20, 110, 45))
	want := [4][2]float64{{10, 20}, {110, 20}, {110, 45}, {10, 45}}
	if got != want {
		t.Errorf("rectCorners = %v, want %v", got, want)
	}
}

func TestRegionTop(t *testing.T) {
	r := region(35, 12, "x", 0.9)
	if got := r.Top(); got != 35 {
		t.Errorf("Top() = %v, want 35", got)
	}
}

func TestBlankPNG(t *testing.T) {
	data, err := blankPNG(32, 32)
	if err != nil {
		t.Fatalf("blankPNG: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}) {
		t.Error("output is not a PNG")
	}
}

func TestExtractRejectsWhenNotReady(t *testing.T) {
	e := New(Config{Concurrency: 1})
	_, err := e.Extract(context.Background(), []byte{0x89})
	if err == nil {
		t.Fatal("expected error from uninitialized engine")
	}
}
