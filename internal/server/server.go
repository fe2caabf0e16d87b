/**
 * HTTP API for the receipt OCR service.
 *
 * Endpoints: /health, /models, /ocr, /compare, /batch_ocr. When
 * OCR_API_KEY is set the processing endpoints require a bearer token;
 * health and model info stay open for probes.
 */

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/expensekit/ocr-service/internal/config"
	"github.com/expensekit/ocr-service/internal/diff"
	"github.com/expensekit/ocr-service/internal/logging"
	"github.com/expensekit/ocr-service/internal/pipeline"
	"github.com/expensekit/ocr-service/internal/queue"
	"github.com/expensekit/ocr-service/internal/storage"
)

// DocumentProcessor is the processing pipeline the handlers run
// uploads through.
type DocumentProcessor interface {
	Ready() bool
	Process(ctx context.Context, image []byte) (*pipeline.Document, error)
}

// Server wires the HTTP API to the processing pipeline
type Server struct {
	cfg      *config.Config
	pipe     DocumentProcessor
	differ   *diff.Engine
	audit    *storage.AuditStore // optional
	producer *queue.Producer     // optional
	log      *logging.Logger
	router   *gin.Engine
}

// New builds the server and registers all routes. audit and producer
// may be nil; the corresponding features are then disabled.
func New(cfg *config.Config, pipe DocumentProcessor, differ *diff.Engine, audit *storage.AuditStore, producer *queue.Producer) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		pipe:     pipe,
		differ:   differ,
		audit:    audit,
		producer: producer,
		log:      logging.NewLogger("Server"),
		router:   gin.New(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/models", s.handleModels)

	api := s.router.Group("/", s.authRequired())
	api.POST("/ocr", s.handleOCR)
	api.POST("/compare", s.handleCompare)
	api.POST("/batch_ocr", s.handleBatchOCR)

	return s
}

// Router exposes the handler for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the listener fails
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// authRequired enforces the bearer token when an API key is configured
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing or invalid bearer token",
				},
			})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}
