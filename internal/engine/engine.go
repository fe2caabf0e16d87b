/**
 * OCR engine backed by Tesseract.
 *
 * gosseract clients are not safe for concurrent use, so a fresh client
 * is created per request and a semaphore bounds how many run at once.
 * Initialize must succeed before Extract will accept work.
 */

package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync/atomic"
	"time"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/expensekit/ocr-service/internal/errors"
	"github.com/expensekit/ocr-service/internal/logging"
)

// Config holds OCR engine configuration
type Config struct {
	Language    string
	Concurrency int
}

// Engine wraps Tesseract text-line recognition
type Engine struct {
	language string
	sem      chan struct{}
	ready    atomic.Bool
	log      *logging.Logger
}

// New creates an uninitialized Engine
func New(cfg Config) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Engine{
		language: cfg.Language,
		sem:      make(chan struct{}, cfg.Concurrency),
		log:      logging.NewLogger("Engine"),
	}
}

// Initialize warms up Tesseract by running recognition on a small blank
// image, which forces the language model to load. Requests arriving
// before this completes are rejected with an engine-not-ready error.
func (e *Engine) Initialize(ctx context.Context) error {
	start := time.Now()

	probe, err := blankPNG(32, 32)
	if err != nil {
		return apperrors.NewOCRFailedError("", "initialize", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return apperrors.NewOCRFailedError("", "initialize", err)
	}
	if err := client.SetImageFromBytes(probe); err != nil {
		return apperrors.NewOCRFailedError("", "initialize", err)
	}
	if _, err := client.Text(); err != nil {
		return apperrors.NewOCRFailedError("", "initialize", err)
	}

	e.ready.Store(true)
	e.log.Info("OCR engine initialized",
		"language", e.language,
		"version", client.Version(),
		"durationMs", time.Since(start).Milliseconds())
	return nil
}

// Ready reports whether Initialize has completed successfully
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Extract runs text-line recognition on a preprocessed image. It blocks
// until a concurrency slot is free or ctx is done. A ctx deadline that
// fires mid-recognition abandons the in-flight client; it is closed by
// its own goroutine once Tesseract returns.
func (e *Engine) Extract(ctx context.Context, img []byte) (*OCRResult, error) {
	if !e.ready.Load() {
		return nil, apperrors.NewEngineNotReadyError()
	}

	start := time.Now()
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, apperrors.NewProcessingTimeoutError("", time.Since(start), ctx.Err())
	}

	type outcome struct {
		res *OCRResult
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() { <-e.sem }()
		res, err := e.recognize(img)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, apperrors.NewProcessingTimeoutError("", time.Since(start), ctx.Err())
	}
}

func (e *Engine) recognize(img []byte) (*OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, apperrors.NewOCRFailedError("", "configure", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, apperrors.NewOCRFailedError("", "configure", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, apperrors.NewOCRFailedError("", "set-image", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, apperrors.NewOCRFailedError("", "recognize", err)
	}

	regions := make([]TextRegion, 0, len(boxes))
	lines := make([]string, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		regions = append(regions, TextRegion{
			BBox:       rectCorners(box.Box),
			Text:       text,
			Confidence: normalizeConfidence(box.Confidence),
		})
		lines = append(lines, text)
	}

	return &OCRResult{
		TextRegions:       regions,
		RawText:           strings.Join(lines, "\n"),
		AverageConfidence: averageConfidence(regions),
		Layout:            analyzeLayout(regions),
	}, nil
}

// rectCorners converts an axis-aligned rectangle into the four-corner
// form used on the wire, clockwise from top-left.
func rectCorners(r image.Rectangle) [4][2]float64 {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	return [4][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// normalizeConfidence maps Tesseract's 0-100 score into [0, 1] and
// clamps values outside the range.
func normalizeConfidence(c float64) float64 {
	c = c / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func averageConfidence(regions []TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions))
}

func blankPNG(w, h int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
