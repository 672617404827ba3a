package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

const (
	// UpdateCompleteLine closes every engine update log
	UpdateCompleteLine = "Update Check Complete."

	updateTaskID = "update-engine"
)

// EngineUpdate is the state of the most recent engine self-update
type EngineUpdate struct {
	Running    bool       `json:"running"`
	LogLines   []string   `json:"log_lines"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a copy safe to hand outside the coordinator lock
func (u *EngineUpdate) Clone() *EngineUpdate {
	if u == nil {
		return nil
	}
	cp := *u
	cp.LogLines = append([]string(nil), u.LogLines...)
	if u.FinishedAt != nil {
		t := *u.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// UpdateEngine starts the engine self-update. Only one update runs at a time;
// searches, resolves and downloads are not blocked by it.
func (c *Coordinator) UpdateEngine() (*EngineUpdate, error) {
	if c.updater == nil {
		return nil, domain.NewError(domain.KindInvalidInput, "Engine updates are not available")
	}

	c.mu.Lock()
	if c.update != nil && c.update.Running {
		c.mu.Unlock()
		return nil, domain.NewError(domain.KindInvalidInput, "An engine update is already running")
	}
	update := &EngineUpdate{Running: true, LogLines: []string{}, StartedAt: time.Now()}
	c.update = update
	view := update.Clone()
	c.mu.Unlock()

	c.logger.Info("Engine update started")
	if c.multiLogger != nil {
		c.multiLogger.LogTaskEvent("engine_update_started", updateTaskID)
	}

	h := c.updates.Start(updateTaskID, func(ctx context.Context, emit Emitter) (string, error) {
		return c.updater.Update(ctx, emit.Log)
	})

	c.consumers.Add(1)
	go c.consumeUpdate(update, h)

	return view, nil
}

func (c *Coordinator) consumeUpdate(update *EngineUpdate, h *Handle[string]) {
	defer c.consumers.Done()

	for ev := range h.Events() {
		notice := Notice{Kind: NoticeUpdateLog}

		c.mu.Lock()
		switch ev.Kind {
		case EventLog:
			update.LogLines = append(update.LogLines, ev.Line)
			notice.Line = ev.Line
		case EventDone, EventFailed:
			now := time.Now()
			update.Running = false
			update.FinishedAt = &now
			if ev.Err != nil {
				update.Error = ev.Err.Error()
			} else {
				update.Result = ev.Result
			}
			update.LogLines = append(update.LogLines, UpdateCompleteLine)
			notice = Notice{Kind: NoticeUpdateFinished, Line: UpdateCompleteLine}
		default:
			c.mu.Unlock()
			continue
		}
		notice.Update = update.Clone()
		c.mu.Unlock()

		c.publish(notice)
		if ev.IsTerminal() {
			c.finishUpdate(notice.Update)
		}
	}
}

func (c *Coordinator) finishUpdate(update *EngineUpdate) {
	if update.Error != "" {
		c.logger.Error("Engine update failed", zap.String("error", update.Error))
		if c.multiLogger != nil {
			c.multiLogger.LogTaskEvent("engine_update_failed", updateTaskID, zap.String("error", update.Error))
		}
		return
	}
	c.logger.Info("Engine update finished", zap.String("result", update.Result))
	if c.multiLogger != nil {
		c.multiLogger.LogTaskEvent("engine_update_finished", updateTaskID, zap.String("result", update.Result))
	}
}

// EngineUpdate returns a copy of the most recent engine update, if any
func (c *Coordinator) EngineUpdate() (*EngineUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.update == nil {
		return nil, false
	}
	return c.update.Clone(), true
}
