package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/server/dto"
	"github.com/soundprediction/careergraph/pkg/types"
)

// Ingester writes validated records to the graph.
type Ingester interface {
	IngestResume(ctx context.Context, resume *types.Resume, resumeID string) error
	IngestJob(ctx context.Context, job *types.JobPosting, jobID string) error
}

// IngestHandler handles data ingestion requests. Bodies are JSON or YAML
// records as produced by the extraction service.
type IngestHandler struct {
	graph  Ingester
	logger *slog.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(graph Ingester, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{graph: graph, logger: logger}
}

// readBody reads at most dto.MaxBodyBytes of the request body.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, dto.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "invalid_request", "request body exceeds 1MB")
			return nil, false
		}
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}
	return body, true
}

// PutResume handles PUT /api/v1/resumes/:id
func (h *IngestHandler) PutResume(c *gin.Context) {
	id := c.Param("id")
	if err := dto.ValidateRecordID(id); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	resume, err := schema.DecodeResume(body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.graph.IngestResume(c.Request.Context(), resume, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{
		Success: true,
		Kind:    "resume",
		ID:      id,
		Message: fmt.Sprintf("ingested resume with %d skills", len(resume.Skills)),
		Flags:   resume.Flags,
	})
}

// PutJob handles PUT /api/v1/jobs/:id
func (h *IngestHandler) PutJob(c *gin.Context) {
	id := c.Param("id")
	if err := dto.ValidateRecordID(id); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	job, err := schema.DecodeJob(body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.graph.IngestJob(c.Request.Context(), job, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{
		Success: true,
		Kind:    "job",
		ID:      id,
		Message: fmt.Sprintf("ingested job with %d skills", len(job.Skills)),
	})
}
