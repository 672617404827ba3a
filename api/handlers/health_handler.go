package handlers

import (
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	coordinator *app.Coordinator
	ytdlpBinary string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(coordinator *app.Coordinator, ytdlpBinary string) *HealthHandler {
	return &HealthHandler{
		coordinator: coordinator,
		ytdlpBinary: ytdlpBinary,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status          string    `json:"status"`
	Version         string    `json:"version"`
	Phase           app.Phase `json:"phase"`
	ActiveDownloads int       `json:"active_downloads"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
		Phase:   h.coordinator.Snapshot().Phase,
	}
	for _, task := range h.coordinator.Downloads() {
		if task.Status == domain.StatusDownloading {
			response.ActiveDownloads++
		}
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := exec.LookPath(h.ytdlpBinary); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "yt-dlp binary not found: " + h.ytdlpBinary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
