package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// NoticeSnapshot is the first message of a download stream
const NoticeSnapshot app.NoticeKind = "snapshot"

// noticeQueue sits between the coordinator, which publishes from task
// goroutines, and a single WebSocket writer. push never blocks.
type noticeQueue struct {
	mu      sync.Mutex
	pending []app.Notice
	wake    chan struct{}
}

func newNoticeQueue() *noticeQueue {
	return &noticeQueue{wake: make(chan struct{}, 1)}
}

func (q *noticeQueue) push(n app.Notice) {
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *noticeQueue) drain() []app.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// reflectedIn reports whether snapshot already contains everything n carries.
// Per-task notices only ever grow the log or raise the progress.
func reflectedIn(n app.Notice, snapshot *domain.DownloadTask) bool {
	return n.Task != nil && len(n.Task.LogLines) <= len(snapshot.LogLines) && n.Task.Progress <= snapshot.Progress
}

// updateReflectedIn is reflectedIn for engine update notices, whose log only grows
func updateReflectedIn(n app.Notice, snapshot *app.EngineUpdate) bool {
	return n.Update != nil && n.Update.StartedAt.Equal(snapshot.StartedAt) && len(n.Update.LogLines) <= len(snapshot.LogLines)
}

// EventWebSocketHandler streams coordinator notices over WebSockets
type EventWebSocketHandler struct {
	coordinator *app.Coordinator
	logger      *zap.Logger
}

// NewEventWebSocketHandler creates a new event stream handler
func NewEventWebSocketHandler(coordinator *app.Coordinator, log *zap.Logger) *EventWebSocketHandler {
	return &EventWebSocketHandler{
		coordinator: coordinator,
		logger:      log,
	}
}

// StreamEvents handles GET /api/v1/events: every notice, starting with the current state
func (h *EventWebSocketHandler) StreamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	queue := newNoticeQueue()
	unsubscribe := h.coordinator.Subscribe(queue.push)
	defer unsubscribe()

	snap := h.coordinator.Snapshot()
	if err := conn.WriteJSON(app.Notice{Kind: app.NoticeState, Snapshot: &snap}); err != nil {
		return
	}

	never := func(app.Notice) bool { return false }
	h.pump(conn, queue, never, never)
}

// StreamDownload handles GET /api/v1/downloads/:id/events. The stream opens
// with a snapshot of the task and closes after its terminal notice.
func (h *EventWebSocketHandler) StreamDownload(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.coordinator.Download(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	queue := newNoticeQueue()
	unsubscribe := h.coordinator.Subscribe(func(n app.Notice) {
		if n.Task != nil && n.Task.ID == id {
			queue.push(n)
		}
	})
	defer unsubscribe()

	// taken after subscribing so nothing falls between the two
	task, ok := h.coordinator.Download(id)
	if !ok {
		closeNormally(conn)
		return
	}
	if err := conn.WriteJSON(app.Notice{Kind: NoticeSnapshot, Task: task}); err != nil {
		return
	}
	if task.Status.IsTerminal() {
		closeNormally(conn)
		return
	}

	h.pump(conn, queue, func(n app.Notice) bool {
		return n.Kind == app.NoticeTaskFinished
	}, func(n app.Notice) bool {
		return reflectedIn(n, task)
	})
}

// StreamUpdate handles GET /api/v1/engine/update/events. The stream opens
// with a snapshot of the latest engine update and closes once it finishes.
func (h *EventWebSocketHandler) StreamUpdate(c *gin.Context) {
	if _, ok := h.coordinator.EngineUpdate(); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no engine update has been started"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	queue := newNoticeQueue()
	unsubscribe := h.coordinator.Subscribe(func(n app.Notice) {
		if n.Update != nil {
			queue.push(n)
		}
	})
	defer unsubscribe()

	update, _ := h.coordinator.EngineUpdate()
	if err := conn.WriteJSON(app.Notice{Kind: NoticeSnapshot, Update: update}); err != nil {
		return
	}
	if !update.Running {
		closeNormally(conn)
		return
	}

	h.pump(conn, queue, func(n app.Notice) bool {
		return n.Kind == app.NoticeUpdateFinished
	}, func(n app.Notice) bool {
		return updateReflectedIn(n, update)
	})
}

// pump writes queued notices until last reports true, the peer leaves or a
// write fails. Notices for which skip reports true are dropped.
func (h *EventWebSocketHandler) pump(conn *websocket.Conn, queue *noticeQueue, last, skip func(app.Notice) bool) {
	done := readLoop(conn)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-queue.wake:
			for _, n := range queue.drain() {
				if skip(n) {
					continue
				}
				if err := conn.WriteJSON(n); err != nil {
					h.logger.Debug("Failed to send notice", zap.Error(err))
					return
				}
				if last(n) {
					closeNormally(conn)
					return
				}
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
