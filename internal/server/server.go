package server

import (
	"context"
	"docdigest/internal/domain"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Runner runs one batch.
type Runner interface {
	Run(ctx context.Context, refs []domain.DocumentRef, deadline time.Duration) (*domain.AggregateResult, error)
}

// Latest exposes the most recently completed batch.
type Latest interface {
	Latest() (*domain.AggregateResult, bool)
}

// Server is the HTTP surface of the pipeline.
type Server struct {
	runner Runner
	latest Latest
	router *gin.Engine
	log    *slog.Logger
}

func New(runner Runner, latest Latest, log *slog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), allowAllOrigins())

	s := &Server{
		runner: runner,
		latest: latest,
		router: r,
		log:    log,
	}
	s.setupRoutes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.POST("/summarize", s.handleSummarize)
	s.router.GET("/summary", s.handleSummary)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
