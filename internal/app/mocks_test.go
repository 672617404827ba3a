package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// mockProvider implements domain.MediaProvider with overridable behaviour
type mockProvider struct {
	searchFn   func(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error)
	resolveFn  func(ctx context.Context, url string) (*domain.RawMediaInfo, error)
	downloadFn func(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error)

	mu         sync.Mutex
	directives []domain.DownloadDirectives
}

func (m *mockProvider) Search(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error) {
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(ctx, query, limit)
}

func (m *mockProvider) Resolve(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if m.resolveFn == nil {
		return nil, domain.NewError(domain.KindProvider, "ERROR: not configured")
	}
	return m.resolveFn(ctx, url)
}

func (m *mockProvider) Download(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
	m.mu.Lock()
	m.directives = append(m.directives, d)
	m.mu.Unlock()
	if m.downloadFn == nil {
		return "/tmp/out.mp4", nil
	}
	return m.downloadFn(ctx, url, d, onProgress, onLog)
}

// mockHistory implements domain.HistoryRepository in memory
type mockHistory struct {
	mu      sync.Mutex
	records map[string]*domain.DownloadRecord
	saveErr error
}

func newMockHistory() *mockHistory {
	return &mockHistory{records: make(map[string]*domain.DownloadRecord)}
}

func (m *mockHistory) Save(record *domain.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockHistory) FindByID(id string) (*domain.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record not found: %s", id)
	}
	return r, nil
}

func (m *mockHistory) FindRecent(limit int) ([]*domain.DownloadRecord, error) { return nil, nil }
func (m *mockHistory) FindByStatus(status domain.TaskStatus) ([]*domain.DownloadRecord, error) {
	return nil, nil
}
func (m *mockHistory) Delete(id string) error                  { return nil }
func (m *mockHistory) GetStats() (*domain.HistoryStats, error) { return &domain.HistoryStats{}, nil }

func (m *mockHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockNotifier records notifications
type mockNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (m *mockNotifier) NotifyDownloadCompleted(title, finalPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, finalPath)
}

func (m *mockNotifier) NotifyDownloadFailed(title, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, message)
}

// mockThumbnails implements domain.ThumbnailFetcher
type mockThumbnails struct {
	path string
	err  error
}

func (m *mockThumbnails) FetchAndStore(ctx context.Context, url, filename string) (string, error) {
	return m.path, m.err
}

// mockSettings implements domain.SettingsProvider
type mockSettings struct {
	path string
}

func (m mockSettings) DefaultDownloadPath() string { return m.path }

// mockUpdater implements domain.EngineUpdater. release, when set, holds the
// update until it is closed.
type mockUpdater struct {
	lines   []string
	result  string
	err     error
	release chan struct{}
}

func (m *mockUpdater) Update(ctx context.Context, onLog domain.LogFunc) (string, error) {
	for _, line := range m.lines {
		onLog(line)
	}
	if m.release != nil {
		<-m.release
	}
	return m.result, m.err
}
