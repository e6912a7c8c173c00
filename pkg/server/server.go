package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/careergraph"
	"github.com/soundprediction/careergraph/pkg/config"
	"github.com/soundprediction/careergraph/pkg/server/handlers"
	"github.com/soundprediction/careergraph/pkg/telemetry"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	graph  careergraph.CareerGraph
	server *http.Server
	logger *slog.Logger
}

// New creates a new server instance
func New(cfg *config.Config, graph careergraph.CareerGraph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		graph:  graph,
		logger: logger.With("component", "server"),
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()
	s.router.Use(requestLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the configured router. Setup must be called first.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	health := handlers.NewHealthHandler(s.graph)
	ingest := handlers.NewIngestHandler(s.graph, s.logger)
	retrieve := handlers.NewRetrieveHandler(s.graph, s.logger)

	s.router.GET("/health", health.HealthCheck)
	s.router.GET("/ready", health.ReadinessCheck)
	s.router.GET("/live", health.LivenessCheck)
	s.router.GET("/health/detailed", health.DetailedHealthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.PUT("/resumes/:id", ingest.PutResume)
		v1.PUT("/jobs/:id", ingest.PutJob)

		v1.GET("/resumes", retrieve.ListResumes)
		v1.GET("/resumes/:id", retrieve.GetResume)
		v1.GET("/resumes/:id/skills", retrieve.GetResumeSkills)
		v1.GET("/resumes/:id/matches", retrieve.GetResumeMatches)
		v1.GET("/skills", retrieve.ListSkills)
		v1.GET("/skills/demand", retrieve.GetSkillDemand)
		v1.POST("/matches", retrieve.MatchJobs)
		v1.GET("/stats", retrieve.GetStats)
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request at a level matching the status.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextMiddleware tags the request context so that errors logged during
// the request can be traced back to the API.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := telemetry.WithRequestSource(c.Request.Context(), "server")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
