package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/response"
)

// HealthPath is polled by orchestration and logged at debug level.
const HealthPath = "/health"

// CacheStatter reports cache counters.
type CacheStatter interface {
	CacheStats() cache.Stats
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	version  string
	sessions *session.Manager
	caches   []CacheStatter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, sessions *session.Manager, caches ...CacheStatter) *HealthHandler {
	return &HealthHandler{
		version:  version,
		sessions: sessions,
		caches:   caches,
	}
}

// RegisterRoutes registers the health check routes.
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET(HealthPath, h.Health)
	r.GET("/healthz", h.Health)
}

// Health returns the service health status.
func (h *HealthHandler) Health(c *gin.Context) {
	stats := make([]cache.Stats, 0, len(h.caches))
	for _, cs := range h.caches {
		stats = append(stats, cs.CacheStats())
	}

	response.Success(c, gin.H{
		"status":   "ok",
		"service":  "discovery-web",
		"version":  h.version,
		"sessions": h.sessions.Count(),
		"caches":   stats,
	})
}
