package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "careergraph"

// Pinger checks that the datastore is reachable.
type Pinger interface {
	VerifyConnectivity(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	graph   Pinger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(graph Pinger) *HealthHandler {
	return &HealthHandler{graph: graph, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. It reports 503 until the datastore
// answers a connectivity check.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	database := h.checkDatabase(ctx)
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"database": database,
			"system": gin.H{
				"status": "healthy",
				"uptime": time.Since(h.started).Round(time.Second).String(),
			},
		},
	}

	if database["status"] != "healthy" {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	startTime := time.Now()
	database := h.checkDatabase(ctx)
	metrics := h.getSystemMetrics()

	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{
			"database": database,
			"system": gin.H{
				"status":       "healthy",
				"memory_usage": metrics.MemoryUsage,
				"goroutines":   metrics.Goroutines,
				"gc_cycles":    metrics.GCCycles,
				"heap_objects": metrics.HeapObjects,
				"stack_usage":  metrics.StackUsage,
			},
		},
		"metrics": gin.H{
			"response_time_ms": time.Since(startTime).Milliseconds(),
		},
	}

	if database["status"] != "healthy" {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) gin.H {
	if h.graph == nil {
		return gin.H{
			"status": "unhealthy",
			"error":  "graph client not initialized",
		}
	}

	start := time.Now()
	err := h.graph.VerifyConnectivity(ctx)
	status := gin.H{
		"status":      "healthy",
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		status["status"] = "unhealthy"
		status["error"] = err.Error()
	}
	return status
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

func (h *HealthHandler) getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
