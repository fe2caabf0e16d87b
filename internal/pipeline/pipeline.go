/**
 * Processing pipeline: preprocess -> OCR -> field extraction.
 *
 * Shared by the HTTP handlers and the queue worker so both entry points
 * produce identical documents for the same image.
 */

package pipeline

import (
	"context"
	"time"

	"github.com/expensekit/ocr-service/internal/engine"
	"github.com/expensekit/ocr-service/internal/extract"
	"github.com/expensekit/ocr-service/internal/logging"
	"github.com/expensekit/ocr-service/internal/preprocess"
)

// Document is the full result of processing one image
type Document struct {
	OCR    *engine.OCRResult
	Fields extract.Fields
}

// Pipeline runs the preprocessing and recognition stages in order
type Pipeline struct {
	pre *preprocess.Preprocessor
	eng *engine.Engine
	log *logging.Logger
}

// New assembles a pipeline from its stages
func New(pre *preprocess.Preprocessor, eng *engine.Engine) *Pipeline {
	return &Pipeline{
		pre: pre,
		eng: eng,
		log: logging.NewLogger("Pipeline"),
	}
}

// Ready reports whether the OCR engine can accept work
func (p *Pipeline) Ready() bool {
	return p.eng.Ready()
}

// Process runs the full pipeline on raw image bytes
func (p *Pipeline) Process(ctx context.Context, image []byte) (*Document, error) {
	start := time.Now()

	cleaned, err := p.pre.Run(image)
	if err != nil {
		return nil, err
	}

	ocr, err := p.eng.Extract(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		OCR:    ocr,
		Fields: extract.FromOCR(ocr),
	}

	p.log.Debug("Processed document",
		"regions", len(ocr.TextRegions),
		"confidence", ocr.AverageConfidence,
		"durationMs", time.Since(start).Milliseconds())

	return doc, nil
}
