package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", Format: "console", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()

	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogTaskEvent("task_started", "task-1", zap.String("url", "https://youtu.be/abc"))
	ml.LogTaskEvent("task_succeeded", "task-1", zap.String("final_path", "/tmp/a.mp4"))
	ml.LogAppError("history save failed", zap.String("task_id", "task-1"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	tasks, err := reader.ReadLogs(CategoryTask, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task_started", tasks[0].Message)
	assert.Equal(t, "info", tasks[0].Level)
	assert.Equal(t, "task", tasks[0].Category)
	assert.Equal(t, "task-1", tasks[0].Fields["task_id"])
	assert.Equal(t, "https://youtu.be/abc", tasks[0].Fields["url"])

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	dir := t.TempDir()
	content := `{"timestamp":"t1","level":"info","message":"task_started","task_id":"a"}
{"timestamp":"t2","level":"info","message":"task_failed","task_id":"b"}
not json at all
{"timestamp":"t3","level":"info","message":"task_succeeded","task_id":"c"}
`
	require.NoError(t, os.WriteFile(CategoryLogPath(dir, CategoryTask, time.Now()), []byte(content), 0644))

	reader := NewLogReader(dir)

	last, err := reader.ReadLogs(CategoryTask, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "not json at all", last[0].Message)
	assert.Equal(t, "task_succeeded", last[1].Message)

	found, err := reader.SearchLogs(CategoryTask, time.Now(), "FAILED", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].Fields["task_id"])

	byField, err := reader.SearchLogs(CategoryTask, time.Now(), "c", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, byField)
}

func TestLogReader_MissingFile(t *testing.T) {
	entries, err := NewLogReader(t.TempDir()).ReadLogs(CategoryError, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogReader_TailLogs(t *testing.T) {
	dir := t.TempDir()
	path := CategoryLogPath(dir, CategoryTask, time.Now())
	require.NoError(t, os.WriteFile(path, []byte(`{"message":"old"}`+"\n"), 0644))

	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	entries := make(chan LogEntry, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(CategoryTask, entries, stop) }()

	// give the tailer time to seek to the end
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"message":"new","level":"info"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case entry := <-entries:
		assert.Equal(t, "new", entry.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no tailed entry")
	}

	close(stop)
	assert.NoError(t, <-done)
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory(CategoryTask))
	assert.True(t, IsValidCategory(CategoryError))
	assert.True(t, IsValidCategory(CategoryDownload))
	assert.False(t, IsValidCategory("queue"))
}
