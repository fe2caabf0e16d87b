package server

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/expensekit/ocr-service/internal/engine"
	apperrors "github.com/expensekit/ocr-service/internal/errors"
	"github.com/expensekit/ocr-service/internal/extract"
	"github.com/expensekit/ocr-service/internal/preprocess"
	"github.com/expensekit/ocr-service/internal/queue"
	"github.com/expensekit/ocr-service/internal/storage"
)

// OCRResponse is the body returned by POST /ocr
type OCRResponse struct {
	Confidence      float64               `json:"confidence"`
	ExtractedFields extract.Fields        `json:"extracted_fields"`
	TextRegions     []engine.TextRegion   `json:"text_regions"`
	LayoutAnalysis  engine.LayoutAnalysis `json:"layout_analysis"`
	RawText         string                `json:"raw_text"`
	NeedsReview     bool                  `json:"needs_review"`
	ProcessedAt     string                `json:"processed_at"`
	Filename        string                `json:"filename"`
}

// BatchItem is one file's outcome within POST /batch_ocr
type BatchItem struct {
	FileIndex       int             `json:"file_index"`
	Filename        string          `json:"filename"`
	Success         bool            `json:"success"`
	Confidence      *float64        `json:"confidence,omitempty"`
	ExtractedFields *extract.Fields `json:"extracted_fields,omitempty"`
	Error           *errorBody      `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      "ocr-service",
		"model_loaded": s.pipe.Ready(),
	})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine":           "tesseract",
		"languages":        []string{s.cfg.OCRLanguage},
		"default_language": s.cfg.OCRLanguage,
		"loaded":           s.pipe.Ready(),
	})
}

func (s *Server) handleOCR(c *gin.Context) {
	data, filename, err := s.readUpload(c, "file")
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	doc, err := s.pipe.Process(ctx, data)
	if err != nil {
		s.auditFailure(c, err)
		s.writeError(c, err)
		return
	}

	needsReview := doc.OCR.AverageConfidence < s.cfg.MinConfidence

	s.recordAudit(c, storage.ActionOCRProcessed, doc.OCR.AverageConfidence, nil, map[string]interface{}{
		"filename":     filename,
		"regions":      len(doc.OCR.TextRegions),
		"needs_review": needsReview,
	})

	c.JSON(http.StatusOK, OCRResponse{
		Confidence:      doc.OCR.AverageConfidence,
		ExtractedFields: doc.Fields,
		TextRegions:     doc.OCR.TextRegions,
		LayoutAnalysis:  doc.OCR.Layout,
		RawText:         doc.OCR.RawText,
		NeedsReview:     needsReview,
		ProcessedAt:     time.Now().UTC().Format(time.RFC3339),
		Filename:        filename,
	})
}

func (s *Server) handleCompare(c *gin.Context) {
	original, err := parseOriginalFields(c.PostForm("original_ocr_data"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	data, _, err := s.readUpload(c, "current_file")
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	doc, err := s.pipe.Process(ctx, data)
	if err != nil {
		s.auditFailure(c, err)
		s.writeError(c, err)
		return
	}

	result := s.differ.Compare(original, doc.Fields)

	action := storage.ActionDocumentCompared
	if result.ChangesDetected {
		action = storage.ActionAnomalyDetected
	}
	s.recordAudit(c, action, doc.OCR.AverageConfidence, &result.VisualSimilarity, map[string]interface{}{
		"changes_detected": result.ChangesDetected,
		"changed_fields":   len(result.JSONDiff),
	})

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBatchOCR(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.writeError(c, apperrors.NewInvalidRequestError("Invalid multipart form", err))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		s.writeError(c, apperrors.NewInvalidRequestError("No files provided", nil))
		return
	}

	if c.PostForm("async") == "true" {
		s.enqueueBatch(c, files)
		return
	}

	results := make([]BatchItem, 0, len(files))
	for i, fh := range files {
		results = append(results, s.processBatchFile(c, i, fh))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(files),
		"results": results,
	})
}

// processBatchFile runs one batch entry; a failure is reported inline
// and never aborts the rest of the batch.
func (s *Server) processBatchFile(c *gin.Context, index int, fh *multipart.FileHeader) BatchItem {
	item := BatchItem{FileIndex: index, Filename: fh.Filename}

	data, err := s.openUpload(fh)
	if err != nil {
		item.Error = toErrorBody(err)
		return item
	}

	if err := s.checkFormat(data); err != nil {
		item.Error = toErrorBody(err)
		return item
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	doc, err := s.pipe.Process(ctx, data)
	if err != nil {
		item.Error = toErrorBody(err)
		return item
	}

	conf := doc.OCR.AverageConfidence
	item.Success = true
	item.Confidence = &conf
	item.ExtractedFields = &doc.Fields
	return item
}

// enqueueBatch hands the batch to the queue worker and returns job ids
func (s *Server) enqueueBatch(c *gin.Context, files []*multipart.FileHeader) {
	if s.producer == nil {
		s.writeError(c, apperrors.NewInvalidRequestError("Async processing is not configured", nil))
		return
	}

	expenseID := formInt64(c, "expense_id")
	employeeID := formInt64(c, "employee_id")
	companyID := formInt64(c, "company_id")

	type queuedJob struct {
		FileIndex int    `json:"file_index"`
		Filename  string `json:"filename"`
		JobID     string `json:"job_id"`
	}

	jobs := make([]queuedJob, 0, len(files))
	for i, fh := range files {
		data, err := s.openUpload(fh)
		if err != nil {
			s.writeError(c, err)
			return
		}

		jobID, err := s.producer.Enqueue(c.Request.Context(), &queue.OCRJob{
			ExpenseID:  expenseID,
			EmployeeID: employeeID,
			CompanyID:  companyID,
			Filename:   fh.Filename,
			FileData:   data,
		})
		if err != nil {
			s.writeError(c, apperrors.NewStorageFailedError("", err))
			return
		}

		jobs = append(jobs, queuedJob{FileIndex: i, Filename: fh.Filename, JobID: jobID})
	}

	c.JSON(http.StatusAccepted, gin.H{
		"total": len(files),
		"jobs":  jobs,
	})
}

// readUpload reads a single upload field, enforcing the size limit and
// rejecting files that are not decodable images.
func (s *Server) readUpload(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", apperrors.NewInvalidRequestError("Missing file field: "+field, err)
	}

	data, err := s.openUpload(fh)
	if err != nil {
		return nil, "", err
	}

	if err := s.checkFormat(data); err != nil {
		return nil, "", err
	}

	return data, fh.Filename, nil
}

func (s *Server) openUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.cfg.MaxFileSize {
		return nil, apperrors.NewInvalidRequestError("File exceeds maximum size", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("Failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("Failed to read upload", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, apperrors.NewInvalidRequestError("File exceeds maximum size", nil)
	}

	return data, nil
}

// checkFormat fast-fails uploads the pipeline cannot decode. PDFs are
// a recognized but unsupported format; anything unrecognized is
// treated as a corrupt image.
func (s *Server) checkFormat(data []byte) error {
	mime := preprocess.DetectMimeType(data)
	if preprocess.IsSupportedImage(mime) {
		return nil
	}
	if mime != "" {
		return apperrors.NewUnsupportedFormatError(mime)
	}
	return apperrors.NewInvalidImageError(nil)
}

// parseOriginalFields accepts the original OCR payload in any of the
// shapes ERP clients send: the full /ocr response, a bare field
// object, or either of those double-encoded as a JSON string.
func parseOriginalFields(raw string) (extract.Fields, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return extract.Fields{}, apperrors.NewInvalidRequestError("Missing original_ocr_data", nil)
	}

	data := []byte(raw)
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = []byte(inner)
	}

	var envelope struct {
		ExtractedFields *extract.Fields `json:"extracted_fields"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return extract.Fields{}, apperrors.NewInvalidRequestError("original_ocr_data is not valid JSON", err)
	}
	if envelope.ExtractedFields != nil {
		return *envelope.ExtractedFields, nil
	}

	var fields extract.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return extract.Fields{}, apperrors.NewInvalidRequestError("original_ocr_data is not valid JSON", err)
	}
	return fields, nil
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.OCRTimeoutMs) * time.Millisecond
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (s *Server) writeError(c *gin.Context, err error) {
	if perr, ok := apperrors.AsProcessingError(err); ok {
		c.JSON(perr.HTTPStatus(), gin.H{
			"success": false,
			"error": gin.H{
				"code":    string(perr.Code),
				"message": perr.Message,
			},
		})
		return
	}

	s.log.Error("Unhandled error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "Internal server error",
		},
	})
}

func toErrorBody(err error) *errorBody {
	if perr, ok := apperrors.AsProcessingError(err); ok {
		return &errorBody{Code: string(perr.Code), Message: perr.Message}
	}
	return &errorBody{Code: "INTERNAL_ERROR", Message: err.Error()}
}

// recordAudit writes an audit entry when the audit store is configured.
// Failures are logged and never fail the request.
func (s *Server) recordAudit(c *gin.Context, action string, confidence float64, similarity *float64, data map[string]interface{}) {
	if s.audit == nil {
		return
	}

	entry := &storage.AuditEntry{
		ExpenseID:        formInt64(c, "expense_id"),
		EmployeeID:       formInt64(c, "employee_id"),
		CompanyID:        formInt64(c, "company_id"),
		Action:           action,
		Confidence:       confidence,
		VisualSimilarity: similarity,
		ResultData:       data,
	}

	if err := s.audit.Record(c.Request.Context(), entry); err != nil {
		s.log.Warn("Failed to record audit entry", "action", action, "error", err)
	}
}

func (s *Server) auditFailure(c *gin.Context, err error) {
	details := map[string]interface{}{"error": err.Error()}
	if perr, ok := apperrors.AsProcessingError(err); ok {
		details = perr.ToMap()
	}
	s.recordAudit(c, storage.ActionOCRFailed, 0, nil, details)
}

func formInt64(c *gin.Context, field string) *int64 {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
