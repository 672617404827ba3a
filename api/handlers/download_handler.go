package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	coordinator *app.Coordinator
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(coordinator *app.Coordinator, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// DownloadRequest picks an option of the current media. SourceURL, when set,
// must still be the current media's URL. Filename and Directory override the
// proposed values when set.
type DownloadRequest struct {
	Mode      domain.DownloadMode `json:"mode" binding:"required"`
	Option    int                 `json:"option"`
	SourceURL string              `json:"source_url,omitempty"`
	Filename  string              `json:"filename,omitempty"`
	Directory string              `json:"directory,omitempty"`
}

// PrepareDownload handles POST /api/v1/downloads/prepare
func (h *DownloadHandler) PrepareDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := h.coordinator.PrepareDownloadFor(req.SourceURL, req.Mode, req.Option)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, spec)
}

// StartDownload handles POST /api/v1/downloads
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := h.coordinator.PrepareDownloadFor(req.SourceURL, req.Mode, req.Option)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Filename != "" {
		spec.Filename = req.Filename
	}
	if req.Directory != "" {
		spec.Directory = req.Directory
	}

	task, err := h.coordinator.StartDownload(spec)
	if err != nil {
		h.logger.Error("Failed to start download", zap.String("url", spec.SourceURL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	status := domain.TaskStatus(c.Query("status"))

	tasks := make([]*domain.DownloadTask, 0)
	for _, task := range h.coordinator.Downloads() {
		if status == "" || task.Status == status {
			tasks = append(tasks, task)
		}
	}

	c.JSON(http.StatusOK, tasks)
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	task, ok := h.coordinator.Download(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// DismissDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DismissDownload(c *gin.Context) {
	if !h.coordinator.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download dismissed"})
}
