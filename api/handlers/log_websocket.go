package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/pkg/logger"
)

// defaultLogBacklog is how many existing entries precede the live tail
const defaultLogBacklog = 50

// LogWebSocketHandler streams a log category over a WebSocket as it grows
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// StreamLogs handles GET /api/v1/logs/:category/stream[?tail=N]
func (h *LogWebSocketHandler) StreamLogs(c *gin.Context) {
	category, ok := categoryParam(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	backlog := defaultLogBacklog
	if n, err := strconv.Atoi(c.Query("tail")); err == nil && n >= 0 && n <= maxLogLimit {
		backlog = n
	}

	h.logger.Info("Log stream client connected",
		zap.String("category", string(category)),
		zap.Int("backlog", backlog),
		zap.String("remote_addr", c.Request.RemoteAddr))

	if backlog > 0 {
		entries, err := h.logReader.ReadLogs(category, time.Now(), backlog)
		if err != nil {
			h.logger.Warn("Failed to read log backlog", zap.Error(err))
		}
		for _, entry := range entries {
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
	}

	entryChan := make(chan logger.LogEntry, 100)
	stopChan := make(chan struct{})
	defer close(stopChan)

	go func() {
		if err := h.logReader.TailLogs(category, entryChan, stopChan); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
		}
	}()

	done := readLoop(conn)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entryChan:
			if err := conn.WriteJSON(entry); err != nil {
				h.logger.Debug("Failed to send log entry", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
