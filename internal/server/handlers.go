package server

import (
	"docdigest/internal/domain"
	"docdigest/internal/redact"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	errorInvalidRequest = "InvalidRequest"
	errorNoSummary      = "NoSummary"
	errorInternal       = "InternalError"
)

type summarizeRequest struct {
	PDFURLs []string `json:"pdf_urls"`
	// URLs is accepted as an alias of PDFURLs.
	URLs     []string `json:"urls"`
	Deadline string   `json:"deadline"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// handleSummarize runs a batch and responds with its aggregate. A batch in
// which every document failed is still a 200.
func (s *Server) handleSummarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  errorInvalidRequest,
			Detail: fmt.Sprintf("invalid request body: %s", redact.Detail(err.Error())),
		})
		return
	}

	var deadline time.Duration
	if d := strings.TrimSpace(req.Deadline); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error:  errorInvalidRequest,
				Detail: fmt.Sprintf("deadline must be a positive duration (deadline = %q)", d),
			})
			return
		}
		deadline = parsed
	}

	refs := make([]domain.DocumentRef, 0, len(req.PDFURLs)+len(req.URLs))
	for _, u := range append(req.PDFURLs, req.URLs...) {
		refs = append(refs, domain.DocumentRef(u))
	}

	result, err := s.runner.Run(c.Request.Context(), refs, deadline)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSummary(c *gin.Context) {
	result, ok := s.latest.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:  errorNoSummary,
			Detail: "No summary available",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleError maps validation errors to 400 and everything else to 500.
func (s *Server) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if domain.IsValidation(err) {
		status = http.StatusBadRequest
	}

	resp := errorResponse{Error: errorInternal, Detail: redact.Detail(err.Error())}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		resp.Error = string(domainErr.Kind)
		if domainErr.Err != nil {
			resp.Detail = redact.Detail(domainErr.Err.Error())
		}
	}

	if status == http.StatusInternalServerError {
		s.log.ErrorContext(c.Request.Context(), "Failed to run batch",
			"error", resp.Detail,
			"reason", resp.Error)
	}

	c.JSON(status, resp)
}
