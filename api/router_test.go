package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/internal/infrastructure"
)

const songURL = "https://www.youtube.com/watch?v=abc"

type fakeProvider struct {
	results       []domain.VideoSummary
	release       chan struct{}
	updateRelease chan struct{}
}

func (f *fakeProvider) Search(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error) {
	return f.results, nil
}

func (f *fakeProvider) Resolve(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	height := 1080
	videoSize := int64(50 * 1024 * 1024)
	audioSize := int64(2 * 1024 * 1024)
	abr := 128.0
	return &domain.RawMediaInfo{
		Title:   "Song: Live?",
		Channel: "Band",
		Formats: []domain.RawFormat{
			{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", FormatNote: "1080p", Height: &height, Filesize: &videoSize},
			{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: &abr, Filesize: &audioSize},
		},
	}, nil
}

func (f *fakeProvider) Download(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
	onLog("[download] Destination: /music/Song Live.m4a")
	onProgress(40)
	if f.release != nil {
		<-f.release
	}
	onProgress(100)
	return "/music/Song Live.m4a", nil
}

func (f *fakeProvider) Update(ctx context.Context, onLog domain.LogFunc) (string, error) {
	onLog("Starting update process...")
	if f.updateRelease != nil {
		<-f.updateRelease
	}
	onLog("yt-dlp is up to date (stable@2024.08.06)")
	onLog("Process finished with exit code 0")
	return "yt-dlp is up to date (stable@2024.08.06)", nil
}

type testServer struct {
	router      http.Handler
	coordinator *app.Coordinator
	provider    *fakeProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	provider := &fakeProvider{results: []domain.VideoSummary{
		{Title: "First", SourceURL: songURL},
		{Title: "Second", SourceURL: "https://youtu.be/def"},
	}}

	history, err := infrastructure.NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	coordinator := app.NewCoordinator(app.CoordinatorOptions{
		Provider:   provider,
		Updater:    provider,
		History:    history,
		DefaultDir: "/music",
		Logger:     zap.NewNop(),
	})
	t.Cleanup(func() {
		coordinator.Wait()
		history.Close()
	})

	router := SetupRouter(RouterConfig{
		Coordinator: coordinator,
		History:     history,
		LogsDir:     t.TempDir(),
		YTDLPBinary: "yt-dlp",
	})
	return &testServer{router: router, coordinator: coordinator, provider: provider}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// resolveSong puts the coordinator in the displaying phase with the song's descriptor
func (s *testServer) resolveSong(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/query", handlers.QueryRequest{Query: songURL})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/state?wait=5s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[handlers.StateResponse](t, w)
	require.True(t, state.Settled)
	require.NotNil(t, state.Descriptor)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[handlers.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, app.PhaseIdle, resp.Phase)
	assert.Equal(t, 0, resp.ActiveDownloads)
}

func TestQuery_EmptyIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/query", handlers.QueryRequest{Query: "  "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, string(domain.KindInvalidInput), body["kind"])
}

func TestQuery_SearchThenSelect(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/query", handlers.QueryRequest{Query: "lofi"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/state?wait=5s", nil)
	state := decode[handlers.StateResponse](t, w)
	require.True(t, state.Settled)
	assert.Equal(t, app.PhaseDisplaying, state.Phase)
	require.Len(t, state.Results, 2)

	w = s.do(t, http.MethodPost, "/api/v1/results/0/select", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/state?wait=5s", nil)
	state = decode[handlers.StateResponse](t, w)
	require.NotNil(t, state.Descriptor)
	assert.Equal(t, "Song: Live?", state.Descriptor.Title)
	assert.Len(t, state.Results, 2)

	w = s.do(t, http.MethodPost, "/api/v1/results/9/select", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/results/x/select", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestState_InvalidWait(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/state?wait=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_PrepareStartAndHistory(t *testing.T) {
	s := newTestServer(t)
	s.resolveSong(t)

	w := s.do(t, http.MethodPost, "/api/v1/downloads/prepare", handlers.DownloadRequest{Mode: domain.ModeAudio})
	require.Equal(t, http.StatusOK, w.Code)
	spec := decode[domain.DownloadSpec](t, w)
	assert.Equal(t, "Song Live", spec.Filename)
	assert.Equal(t, "/music", spec.Directory)
	require.NotNil(t, spec.Audio)
	assert.Equal(t, "140", spec.Audio.FormatID)

	w = s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: domain.ModeAudio, Filename: "custom"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[domain.DownloadTask](t, w)
	assert.Equal(t, "custom", task.Spec.Filename)

	s.coordinator.Wait()

	w = s.do(t, http.MethodGet, "/api/v1/downloads/"+task.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[domain.DownloadTask](t, w)
	assert.Equal(t, domain.StatusSucceeded, done.Status)
	assert.Equal(t, "/music/Song Live.mp3", done.FinalPath)
	assert.Equal(t, "SUCCESS: Saved to /music/Song Live.mp3", done.LogLines[len(done.LogLines)-1])

	w = s.do(t, http.MethodGet, "/api/v1/downloads?status=succeeded", nil)
	assert.Len(t, decode[[]domain.DownloadTask](t, w), 1)
	w = s.do(t, http.MethodGet, "/api/v1/downloads?status=failed", nil)
	assert.Len(t, decode[[]domain.DownloadTask](t, w), 0)

	w = s.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]domain.DownloadRecord](t, w)
	require.Len(t, records, 1)
	assert.Equal(t, task.ID, records[0].ID)

	w = s.do(t, http.MethodGet, "/api/v1/history/stats", nil)
	assert.Equal(t, domain.HistoryStats{Total: 1, Succeeded: 1}, decode[domain.HistoryStats](t, w))

	w = s.do(t, http.MethodDelete, "/api/v1/downloads/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/downloads/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/history/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/history/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/history/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownload_SelectionErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: domain.ModeVideo})
	assert.Equal(t, http.StatusConflict, w.Code, "no media resolved yet")

	s.resolveSong(t)

	w = s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: domain.ModeVideo, Option: 5})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: domain.ModeVideo, SourceURL: "https://youtu.be/elsewhere"})
	assert.Equal(t, http.StatusConflict, w.Code, "media replaced by another client")
	w = s.do(t, http.MethodPost, "/api/v1/downloads/prepare", handlers.DownloadRequest{Mode: domain.ModeAudio, SourceURL: songURL})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: "hologram"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/downloads", map[string]int{"option": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_EventStream(t *testing.T) {
	s := newTestServer(t)
	s.provider.release = make(chan struct{})
	s.resolveSong(t)

	server := httptest.NewServer(s.router)
	defer server.Close()

	w := s.do(t, http.MethodPost, "/api/v1/downloads", handlers.DownloadRequest{Mode: domain.ModeVideo, Option: 0})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[domain.DownloadTask](t, w)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/downloads/" + task.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first app.Notice
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, handlers.NoticeSnapshot, first.Kind)
	require.NotNil(t, first.Task)
	assert.Equal(t, task.ID, first.Task.ID)

	close(s.provider.release)

	var last app.Notice
	for {
		var n app.Notice
		require.NoError(t, conn.ReadJSON(&n))
		last = n
		if n.Kind == app.NoticeTaskFinished {
			break
		}
	}
	require.NotNil(t, last.Task)
	assert.Equal(t, domain.StatusSucceeded, last.Task.Status)
	assert.Equal(t, 100, last.Task.Progress)
	assert.Equal(t, "/music/Song Live.m4a", last.Task.FinalPath)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestDownload_EventStreamUnknownTask(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/downloads/nope/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEngineUpdate(t *testing.T) {
	s := newTestServer(t)
	s.provider.updateRelease = make(chan struct{})

	w := s.do(t, http.MethodGet, "/api/v1/engine/update", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/engine/update/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	server := httptest.NewServer(s.router)
	defer server.Close()

	w = s.do(t, http.MethodPost, "/api/v1/engine/update", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.True(t, decode[app.EngineUpdate](t, w).Running)

	w = s.do(t, http.MethodPost, "/api/v1/engine/update", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/engine/update/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first app.Notice
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, handlers.NoticeSnapshot, first.Kind)
	require.NotNil(t, first.Update)

	close(s.provider.updateRelease)

	var last app.Notice
	for {
		var n app.Notice
		require.NoError(t, conn.ReadJSON(&n))
		last = n
		if n.Kind == app.NoticeUpdateFinished {
			break
		}
	}
	require.NotNil(t, last.Update)
	assert.False(t, last.Update.Running)
	assert.Equal(t, "yt-dlp is up to date (stable@2024.08.06)", last.Update.Result)
	assert.Equal(t, app.UpdateCompleteLine, last.Update.LogLines[len(last.Update.LogLines)-1])

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	s.coordinator.Wait()
	w = s.do(t, http.MethodGet, "/api/v1/engine/update", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Starting update process...", decode[app.EngineUpdate](t, w).LogLines[0])
}

func TestLogs(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/logs/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"task", "error", "download"}, decode[map[string][]string](t, w)["categories"])

	w = s.do(t, http.MethodGet, "/api/v1/logs/queue", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/logs/task?date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/logs/task", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/logs/task/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/logs/error/export?date=2020-01-01", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticUI(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = s.do(t, http.MethodGet, "/static/app.js", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")

	w = s.do(t, http.MethodGet, "/static/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
