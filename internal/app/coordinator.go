package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/pkg/logger"
)

// Phase is the coordinator's search/resolve state
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSearching  Phase = "searching"
	PhaseResolving  Phase = "resolving"
	PhaseDisplaying Phase = "displaying"
)

// Snapshot is a copy of the coordinator's search/resolve state
type Snapshot struct {
	Phase      Phase                   `json:"phase"`
	Generation uint64                  `json:"generation"`
	Query      string                  `json:"query,omitempty"`
	Results    []domain.VideoSummary   `json:"results"`
	Descriptor *domain.MediaDescriptor `json:"descriptor,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// Settled reports whether no search or resolve is in flight
func (s Snapshot) Settled() bool {
	return s.Phase == PhaseIdle || s.Phase == PhaseDisplaying
}

// NoticeKind identifies what changed
type NoticeKind string

const (
	NoticeState        NoticeKind = "state"
	NoticeTaskStarted  NoticeKind = "task_started"
	NoticeTaskProgress NoticeKind = "task_progress"
	NoticeTaskLog      NoticeKind = "task_log"
	NoticeTaskFinished NoticeKind = "task_finished"

	NoticeUpdateLog      NoticeKind = "update_log"
	NoticeUpdateFinished NoticeKind = "update_finished"
)

// Notice is delivered to subscribers. Snapshot is set for state notices, Task
// (a copy) for task notices, Update (a copy) for engine update notices, Line
// for log notices.
type Notice struct {
	Kind     NoticeKind           `json:"kind"`
	Snapshot *Snapshot            `json:"snapshot,omitempty"`
	Task     *domain.DownloadTask `json:"task,omitempty"`
	Update   *EngineUpdate        `json:"update,omitempty"`
	Line     string               `json:"line,omitempty"`
}

// Notifier announces terminal download outcomes to the user
type Notifier interface {
	NotifyDownloadCompleted(title, finalPath string)
	NotifyDownloadFailed(title, message string)
}

// CoordinatorOptions wires a Coordinator. Updater, Thumbnails, Settings,
// History, Notifier and MultiLogger are optional.
type CoordinatorOptions struct {
	Provider             domain.MediaProvider
	Updater              domain.EngineUpdater
	Orchestrator         *DownloadOrchestrator
	Thumbnails           domain.ThumbnailFetcher
	Settings             domain.SettingsProvider
	History              domain.HistoryRepository
	Notifier             Notifier
	MultiLogger          *logger.MultiLogger
	SearchLimit          int
	SupportedURLPatterns []string
	DefaultDir           string
	Logger               *zap.Logger
}

// Coordinator owns the current search results, the current media descriptor
// and the set of download tasks. Every engine call runs on a TaskRunner.
type Coordinator struct {
	provider     domain.MediaProvider
	updater      domain.EngineUpdater
	orchestrator *DownloadOrchestrator
	thumbnails   domain.ThumbnailFetcher
	settings     domain.SettingsProvider
	history      domain.HistoryRepository
	notifier     Notifier
	multiLogger  *logger.MultiLogger
	searchLimit  int
	patterns     []string
	defaultDir   string
	logger       *zap.Logger

	searches  *TaskRunner[[]domain.VideoSummary]
	resolves  *TaskRunner[*domain.MediaDescriptor]
	updates   *TaskRunner[string]
	consumers sync.WaitGroup

	mu          sync.Mutex
	state       Snapshot
	settled     chan struct{}
	tasks       map[string]*domain.DownloadTask
	taskOrder   []string
	subscribers map[int]func(Notice)
	nextSubID   int
	update      *EngineUpdate
}

// NewCoordinator creates a coordinator in the idle phase
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = 5
	}
	orchestrator := opts.Orchestrator
	if orchestrator == nil {
		orchestrator = NewDownloadOrchestrator(opts.Provider, "", log)
	}

	settled := make(chan struct{})
	close(settled)

	return &Coordinator{
		provider:     opts.Provider,
		updater:      opts.Updater,
		orchestrator: orchestrator,
		thumbnails:   opts.Thumbnails,
		settings:     opts.Settings,
		history:      opts.History,
		notifier:     opts.Notifier,
		multiLogger:  opts.MultiLogger,
		searchLimit:  limit,
		patterns:     opts.SupportedURLPatterns,
		defaultDir:   opts.DefaultDir,
		logger:       log,
		searches:     NewTaskRunner[[]domain.VideoSummary](log),
		resolves:     NewTaskRunner[*domain.MediaDescriptor](log),
		updates:      NewTaskRunner[string](log),
		state:        Snapshot{Phase: PhaseIdle},
		settled:      settled,
		tasks:        make(map[string]*domain.DownloadTask),
		subscribers:  make(map[int]func(Notice)),
	}
}

// SubmitQuery starts a resolve for a supported media URL or a keyword search
// for anything else. It supersedes any search or resolve in flight.
func (c *Coordinator) SubmitQuery(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NewError(domain.KindInvalidInput, "Please enter a search term or URL")
	}

	if domain.IsValidURL(text) {
		if !domain.IsSupportedMediaURL(text, c.patterns) {
			err := domain.NewError(domain.KindInvalidInput, "Unsupported URL: %s", text)
			c.mu.Lock()
			c.state.Generation++
			c.state = Snapshot{Phase: PhaseIdle, Generation: c.state.Generation, Query: text, Message: err.Error()}
			c.markSettledLocked()
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.publish(Notice{Kind: NoticeState, Snapshot: &snap})
			return err
		}
		c.startResolve(text, text, nil)
		return nil
	}

	c.startSearch(text)
	return nil
}

// SelectResult resolves the search result at index
func (c *Coordinator) SelectResult(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.Results) {
		n := len(c.state.Results)
		c.mu.Unlock()
		return domain.NewError(domain.KindSelectionMismatch, "Result %d is not in the current list of %d results", index, n)
	}
	results := c.state.Results
	query := c.state.Query
	url := results[index].SourceURL
	c.mu.Unlock()

	c.startResolve(query, url, results)
	return nil
}

func (c *Coordinator) startSearch(query string) {
	c.mu.Lock()
	c.state.Generation++
	gen := c.state.Generation
	c.state = Snapshot{Phase: PhaseSearching, Generation: gen, Query: query}
	c.markBusyLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(Notice{Kind: NoticeState, Snapshot: &snap})

	limit := c.searchLimit
	h := c.searches.Start("search:"+query, func(ctx context.Context, _ Emitter) ([]domain.VideoSummary, error) {
		return c.provider.Search(ctx, query, limit)
	})

	c.consumers.Add(1)
	go func() {
		defer c.consumers.Done()
		for ev := range h.Events() {
			switch ev.Kind {
			case EventDone:
				c.finishLookup(gen, func(s *Snapshot) {
					s.Phase = PhaseDisplaying
					s.Results = ev.Result
					if s.Results == nil {
						s.Results = []domain.VideoSummary{}
					}
				})
			case EventFailed:
				c.failLookup(gen, ev.Err)
			}
		}
	}()
}

// startResolve resolves url; results is the list to keep displaying alongside
// the descriptor (nil for a direct URL).
func (c *Coordinator) startResolve(query, url string, results []domain.VideoSummary) {
	c.mu.Lock()
	c.state.Generation++
	gen := c.state.Generation
	c.state = Snapshot{Phase: PhaseResolving, Generation: gen, Query: query, Results: results}
	c.markBusyLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(Notice{Kind: NoticeState, Snapshot: &snap})

	h := c.resolves.Start("resolve:"+url, func(ctx context.Context, emit Emitter) (*domain.MediaDescriptor, error) {
		return c.resolve(ctx, url, emit)
	})

	c.consumers.Add(1)
	go func() {
		defer c.consumers.Done()
		for ev := range h.Events() {
			switch ev.Kind {
			case EventDone:
				c.finishLookup(gen, func(s *Snapshot) {
					s.Phase = PhaseDisplaying
					s.Descriptor = ev.Result
				})
			case EventFailed:
				c.failLookup(gen, ev.Err)
			}
		}
	}()
}

// resolve runs on a worker goroutine
func (c *Coordinator) resolve(ctx context.Context, url string, emit Emitter) (*domain.MediaDescriptor, error) {
	raw, err := c.provider.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	descriptor := domain.BuildDescriptor(raw, url)
	if c.thumbnails != nil && raw.ThumbnailURL != "" {
		path, err := c.thumbnails.FetchAndStore(ctx, raw.ThumbnailURL, url)
		if err != nil {
			c.logger.Warn("Thumbnail unavailable", zap.String("url", url), zap.Error(err))
			emit.Log(fmt.Sprintf("WARNING: thumbnail unavailable: %v", err))
		} else {
			descriptor.ThumbnailPath = path
		}
	}
	return descriptor, nil
}

func (c *Coordinator) finishLookup(gen uint64, apply func(*Snapshot)) {
	c.mu.Lock()
	if gen != c.state.Generation {
		c.mu.Unlock()
		c.logger.Debug("Discarding superseded result", zap.Uint64("generation", gen))
		return
	}
	apply(&c.state)
	c.state.Message = ""
	c.markSettledLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(Notice{Kind: NoticeState, Snapshot: &snap})
}

// failLookup keeps the result list on screen when a selected result fails to resolve
func (c *Coordinator) failLookup(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.state.Generation {
		c.mu.Unlock()
		return
	}
	c.state.Descriptor = nil
	c.state.Message = err.Error()
	if len(c.state.Results) > 0 {
		c.state.Phase = PhaseDisplaying
	} else {
		c.state.Phase = PhaseIdle
	}
	c.markSettledLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Warn("Lookup failed", zap.String("query", snap.Query), zap.Error(err))
	c.publish(Notice{Kind: NoticeState, Snapshot: &snap})
}

func (c *Coordinator) markBusyLocked() {
	select {
	case <-c.settled:
		c.settled = make(chan struct{})
	default:
	}
}

func (c *Coordinator) markSettledLocked() {
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}

// AwaitSettled blocks until no search or resolve is in flight
func (c *Coordinator) AwaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		ch := c.settled
		snap := c.snapshotLocked()
		c.mu.Unlock()

		if snap.Settled() {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Snapshot returns a copy of the current search/resolve state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := c.state
	if s.Results != nil {
		s.Results = append(make([]domain.VideoSummary, 0, len(s.Results)), s.Results...)
	}
	return s
}

// PrepareDownload validates a choice against the current descriptor and returns
// a spec seeded with the sanitized title and the default directory.
// In audio mode the only option is index 0.
func (c *Coordinator) PrepareDownload(mode domain.DownloadMode, optionIndex int) (domain.DownloadSpec, error) {
	return c.PrepareDownloadFor("", mode, optionIndex)
}

// PrepareDownloadFor is PrepareDownload pinned to the media the caller was
// looking at: when sourceURL is set and the current descriptor is for another
// URL the choice is a SelectionMismatch.
func (c *Coordinator) PrepareDownloadFor(sourceURL string, mode domain.DownloadMode, optionIndex int) (domain.DownloadSpec, error) {
	if !domain.ValidateMode(mode) {
		return domain.DownloadSpec{}, domain.NewError(domain.KindInvalidInput, "Invalid mode: %s", mode)
	}

	c.mu.Lock()
	descriptor := c.state.Descriptor
	c.mu.Unlock()

	if descriptor == nil {
		return domain.DownloadSpec{}, domain.NewError(domain.KindSelectionMismatch, "No media is selected")
	}
	if sourceURL != "" && sourceURL != descriptor.SourceURL {
		return domain.DownloadSpec{}, domain.NewError(domain.KindSelectionMismatch,
			"The selected media changed to %s", descriptor.SourceURL)
	}

	spec := domain.DownloadSpec{
		SourceURL: descriptor.SourceURL,
		Title:     descriptor.Title,
		Mode:      mode,
		Filename:  domain.SanitizeFilename(descriptor.Title),
		Directory: c.defaultDirectory(),
	}

	switch mode {
	case domain.ModeVideo:
		if optionIndex < 0 || optionIndex >= len(descriptor.VideoQualityOptions) {
			return domain.DownloadSpec{}, domain.NewError(domain.KindSelectionMismatch,
				"Quality %d is not available (%d options)", optionIndex, len(descriptor.VideoQualityOptions))
		}
		option := descriptor.VideoQualityOptions[optionIndex]
		spec.Video = &option
	case domain.ModeAudio:
		if optionIndex != 0 {
			return domain.DownloadSpec{}, domain.NewError(domain.KindSelectionMismatch,
				"Audio option %d is not available", optionIndex)
		}
		if descriptor.BestAudio != nil {
			option := *descriptor.BestAudio
			spec.Audio = &option
		}
	}

	return spec, nil
}

func (c *Coordinator) defaultDirectory() string {
	if c.settings != nil {
		if dir := c.settings.DefaultDownloadPath(); dir != "" {
			return dir
		}
	}
	return c.defaultDir
}

// StartDownload creates a task for spec and runs it. The task runs to
// completion even if it is dismissed.
func (c *Coordinator) StartDownload(spec domain.DownloadSpec) (*domain.DownloadTask, error) {
	if spec.SourceURL == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "Download has no source URL")
	}
	if !domain.ValidateMode(spec.Mode) {
		return nil, domain.NewError(domain.KindInvalidInput, "Invalid mode: %s", spec.Mode)
	}
	spec.Filename = domain.SanitizeFilename(spec.Filename)

	task := domain.NewDownloadTask(spec)

	c.mu.Lock()
	c.tasks[task.ID] = task
	c.taskOrder = append(c.taskOrder, task.ID)
	c.mu.Unlock()

	c.logTaskEvent("task_created", task,
		zap.String("mode", string(spec.Mode)),
		zap.String("format_id", spec.FormatID()))

	h := c.orchestrator.Start(spec)

	c.mu.Lock()
	task.MarkDownloading()
	view := task.Clone()
	c.mu.Unlock()

	c.logTaskEvent("task_started", task)
	c.publish(Notice{Kind: NoticeTaskStarted, Task: view})

	c.consumers.Add(1)
	go c.consumeDownload(task, h)

	return view.Clone(), nil
}

// consumeDownload applies one task's events in order
func (c *Coordinator) consumeDownload(task *domain.DownloadTask, h *Handle[string]) {
	defer c.consumers.Done()

	for ev := range h.Events() {
		var notice Notice

		c.mu.Lock()
		switch ev.Kind {
		case EventProgress:
			if !task.UpdateProgress(ev.Progress) {
				c.mu.Unlock()
				continue
			}
			notice = Notice{Kind: NoticeTaskProgress}
		case EventLog:
			task.AppendLog(ev.Line)
			notice = Notice{Kind: NoticeTaskLog, Line: ev.Line}
		case EventDone:
			line := "SUCCESS: Saved to " + ev.Result
			task.AppendLog(line)
			task.MarkSucceeded(ev.Result)
			notice = Notice{Kind: NoticeTaskFinished, Line: line}
		case EventFailed:
			line := "FAILED: " + ev.Err.Error()
			task.AppendLog(line)
			task.MarkFailed(ev.Err.Error())
			notice = Notice{Kind: NoticeTaskFinished, Line: line}
		}
		notice.Task = task.Clone()
		c.mu.Unlock()

		c.publish(notice)
		if ev.IsTerminal() {
			c.finishDownload(notice.Task)
		}
	}
}

func (c *Coordinator) finishDownload(task *domain.DownloadTask) {
	if task.Status == domain.StatusSucceeded {
		c.logger.Info("Download completed", zap.String("id", task.ID), zap.String("path", task.FinalPath))
		c.logTaskEvent("task_succeeded", task, zap.String("final_path", task.FinalPath))
		if c.notifier != nil {
			c.notifier.NotifyDownloadCompleted(task.Spec.Title, task.FinalPath)
		}
	} else {
		c.logger.Error("Download failed", zap.String("id", task.ID), zap.String("error", task.ErrorMessage))
		c.logTaskEvent("task_failed", task, zap.String("error", task.ErrorMessage))
		if c.notifier != nil {
			c.notifier.NotifyDownloadFailed(task.Spec.Title, task.ErrorMessage)
		}
	}

	if c.history == nil {
		return
	}
	if err := c.history.Save(task.Record()); err != nil {
		c.logger.Error("Failed to save download history", zap.String("id", task.ID), zap.Error(err))
		if c.multiLogger != nil {
			c.multiLogger.LogAppError("history_save_failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
}

func (c *Coordinator) logTaskEvent(event string, task *domain.DownloadTask, fields ...zap.Field) {
	if c.multiLogger == nil {
		return
	}
	fields = append([]zap.Field{zap.String("url", task.Spec.SourceURL)}, fields...)
	c.multiLogger.LogTaskEvent(event, task.ID, fields...)
}

// Downloads returns copies of all retained tasks in creation order
func (c *Coordinator) Downloads() []*domain.DownloadTask {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks := make([]*domain.DownloadTask, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		tasks = append(tasks, c.tasks[id].Clone())
	}
	return tasks
}

// Download returns a copy of one retained task
func (c *Coordinator) Download(id string) (*domain.DownloadTask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// Dismiss releases a task view. A running task keeps going and is still recorded.
func (c *Coordinator) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tasks[id]; !ok {
		return false
	}
	delete(c.tasks, id)
	for i, tid := range c.taskOrder {
		if tid == id {
			c.taskOrder = append(c.taskOrder[:i], c.taskOrder[i+1:]...)
			break
		}
	}
	return true
}

// Subscribe registers fn for every notice and returns a function that removes it.
// fn is called from task goroutines and must be safe for concurrent use.
func (c *Coordinator) Subscribe(fn func(Notice)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) publish(n Notice) {
	c.mu.Lock()
	subs := make([]func(Notice), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

// Wait blocks until every search, resolve, engine update and download has
// finished and been recorded
func (c *Coordinator) Wait() {
	c.searches.Wait()
	c.resolves.Wait()
	c.updates.Wait()
	c.orchestrator.Wait()
	c.consumers.Wait()
}
