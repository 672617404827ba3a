package api

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/api/middleware"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/pkg/logger"
	"github.com/yourusername/mediagrab-go/web"
)

// RouterConfig holds everything the HTTP surface needs. History and MultiLogger are optional.
type RouterConfig struct {
	Coordinator *app.Coordinator
	History     domain.HistoryRepository
	MultiLogger *logger.MultiLogger
	LogsDir     string
	YTDLPBinary string
	Logger      *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.Logger(log, cfg.MultiLogger))
	router.Use(middleware.Recovery(log, cfg.MultiLogger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(cfg.Coordinator, cfg.YTDLPBinary)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		queryHandler := handlers.NewQueryHandler(cfg.Coordinator)
		v1.POST("/query", queryHandler.SubmitQuery)
		v1.POST("/results/:index/select", queryHandler.SelectResult)
		v1.GET("/state", queryHandler.GetState)

		eventHandler := handlers.NewEventWebSocketHandler(cfg.Coordinator, log)
		v1.GET("/events", eventHandler.StreamEvents)

		downloadHandler := handlers.NewDownloadHandler(cfg.Coordinator, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("/prepare", downloadHandler.PrepareDownload)
			downloads.POST("", downloadHandler.StartDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.DELETE("/:id", downloadHandler.DismissDownload)
			downloads.GET("/:id/events", eventHandler.StreamDownload)
		}

		engineHandler := handlers.NewEngineHandler(cfg.Coordinator, log)
		engine := v1.Group("/engine")
		{
			engine.POST("/update", engineHandler.StartUpdate)
			engine.GET("/update", engineHandler.GetUpdate)
			engine.GET("/update/events", eventHandler.StreamUpdate)
		}

		if cfg.History != nil {
			historyHandler := handlers.NewHistoryHandler(cfg.History, log)
			history := v1.Group("/history")
			{
				history.GET("", historyHandler.ListHistory)
				history.GET("/stats", historyHandler.GetStats)
				history.GET("/:id", historyHandler.GetRecord)
				history.DELETE("/:id", historyHandler.DeleteRecord)
			}
		}

		logHandler := handlers.NewLogHandler(cfg.LogsDir)
		logStream := handlers.NewLogWebSocketHandler(cfg.LogsDir, log)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
			logs.GET("/:category/stream", logStream.StreamLogs)
		}
	}

	staticFS := web.GetStaticFS()

	router.GET("/", func(c *gin.Context) {
		serveFile(c, staticFS, "index.html")
	})
	router.GET("/static/*filepath", func(c *gin.Context) {
		serveFile(c, staticFS, strings.TrimPrefix(c.Param("filepath"), "/"))
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".png":  "image/png",
	".svg":  "image/svg+xml",
}

// serveFile serves a file from the embedded filesystem with proper content type
func serveFile(c *gin.Context, staticFS fs.FS, filePath string) {
	file, err := staticFS.Open(filePath)
	if err != nil {
		c.String(http.StatusNotFound, "File not found: %v", err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file: %v", err)
		return
	}

	contentType, ok := contentTypes[path.Ext(filePath)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, content)
}
