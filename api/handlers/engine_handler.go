package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/app"
)

// EngineHandler exposes the yt-dlp self-update
type EngineHandler struct {
	coordinator *app.Coordinator
	logger      *zap.Logger
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(coordinator *app.Coordinator, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// StartUpdate handles POST /api/v1/engine/update
func (h *EngineHandler) StartUpdate(c *gin.Context) {
	update, err := h.coordinator.UpdateEngine()
	if err != nil {
		h.logger.Warn("Engine update refused", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, update)
}

// GetUpdate handles GET /api/v1/engine/update
func (h *EngineHandler) GetUpdate(c *gin.Context) {
	update, ok := h.coordinator.EngineUpdate()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no engine update has been started"})
		return
	}
	c.JSON(http.StatusOK, update)
}
