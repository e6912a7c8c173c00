package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/careergraph/pkg/server/dto"
	"github.com/soundprediction/careergraph/pkg/types"
)

// Retriever answers the read-side queries.
type Retriever interface {
	GetResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error)
	ListResumes(ctx context.Context) ([]types.ResumeListing, error)
	GetSkillDemand(ctx context.Context) ([]types.SkillDemand, error)
	GetJobMatches(ctx context.Context, resumeSkills []string, limit int) ([]types.JobMatch, error)
	GetResumeSkills(ctx context.Context, resumeID string) ([]string, error)
	MatchJobsForResume(ctx context.Context, resumeID string, limit int) ([]types.JobMatch, error)
	GetStats(ctx context.Context) (*types.GraphStats, error)
}

// RetrieveHandler handles data retrieval requests
type RetrieveHandler struct {
	graph  Retriever
	logger *slog.Logger
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(graph Retriever, logger *slog.Logger) *RetrieveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveHandler{graph: graph, logger: logger}
}

// ListResumes handles GET /api/v1/resumes
func (h *RetrieveHandler) ListResumes(c *gin.Context) {
	resumes, err := h.graph.ListResumes(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(resumes))
}

// GetResume handles GET /api/v1/resumes/:id
func (h *RetrieveHandler) GetResume(c *gin.Context) {
	id := c.Param("id")
	summary, err := h.graph.GetResumeSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if summary == nil {
		writeError(c, http.StatusNotFound, "not_found", "resume "+id+" not found")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetResumeSkills handles GET /api/v1/resumes/:id/skills
func (h *RetrieveHandler) GetResumeSkills(c *gin.Context) {
	skills, err := h.graph.GetResumeSkills(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(skills))
}

// GetResumeMatches handles GET /api/v1/resumes/:id/matches?limit=
func (h *RetrieveHandler) GetResumeMatches(c *gin.Context) {
	limit, err := dto.ParseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	matches, err := h.graph.MatchJobsForResume(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(matches))
}

// ListSkills handles GET /api/v1/skills
func (h *RetrieveHandler) ListSkills(c *gin.Context) {
	skills, err := h.graph.GetResumeSkills(c.Request.Context(), "")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(skills))
}

// GetSkillDemand handles GET /api/v1/skills/demand
func (h *RetrieveHandler) GetSkillDemand(c *gin.Context) {
	demand, err := h.graph.GetSkillDemand(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(demand))
}

// MatchJobs handles POST /api/v1/matches
func (h *RetrieveHandler) MatchJobs(c *gin.Context) {
	var req dto.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	matches, err := h.graph.GetJobMatches(c.Request.Context(), req.Skills, req.EffectiveLimit())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(matches))
}

// GetStats handles GET /api/v1/stats
func (h *RetrieveHandler) GetStats(c *gin.Context) {
	stats, err := h.graph.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
