package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

func TestCoordinator_UpdateEngine(t *testing.T) {
	updater := &mockUpdater{
		lines:  []string{"Starting update process...", "Updated yt-dlp to stable@2024.08.06", "Process finished with exit code 0"},
		result: "Updated yt-dlp to stable@2024.08.06",
	}
	c := newTestCoordinator(t, &mockProvider{}, CoordinatorOptions{Updater: updater})

	var mu sync.Mutex
	var notices []Notice
	unsubscribe := c.Subscribe(func(n Notice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	})
	defer unsubscribe()

	started, err := c.UpdateEngine()
	require.NoError(t, err)
	assert.True(t, started.Running)
	c.Wait()

	got, ok := c.EngineUpdate()
	require.True(t, ok)
	assert.False(t, got.Running)
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, "Updated yt-dlp to stable@2024.08.06", got.Result)
	assert.Empty(t, got.Error)
	assert.Equal(t, append(updater.lines, UpdateCompleteLine), got.LogLines)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notices, 4)
	for _, n := range notices[:3] {
		assert.Equal(t, NoticeUpdateLog, n.Kind)
	}
	last := notices[3]
	assert.Equal(t, NoticeUpdateFinished, last.Kind)
	require.NotNil(t, last.Update)
	assert.False(t, last.Update.Running)
}

func TestCoordinator_UpdateEngineFailure(t *testing.T) {
	updater := &mockUpdater{err: domain.NewError(domain.KindProvider, "Update failed with exit code 100")}
	c := newTestCoordinator(t, &mockProvider{}, CoordinatorOptions{Updater: updater})

	_, err := c.UpdateEngine()
	require.NoError(t, err)
	c.Wait()

	got, ok := c.EngineUpdate()
	require.True(t, ok)
	assert.Equal(t, "Update failed with exit code 100", got.Error)
	assert.Equal(t, []string{UpdateCompleteLine}, got.LogLines)
}

func TestCoordinator_UpdateEngineRejectsConcurrentRun(t *testing.T) {
	updater := &mockUpdater{release: make(chan struct{})}
	c := newTestCoordinator(t, &mockProvider{}, CoordinatorOptions{Updater: updater})

	_, err := c.UpdateEngine()
	require.NoError(t, err)

	_, err = c.UpdateEngine()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	close(updater.release)
	c.Wait()

	_, err = c.UpdateEngine()
	assert.NoError(t, err)
}

func TestCoordinator_UpdateEngineWithoutUpdater(t *testing.T) {
	c := newTestCoordinator(t, &mockProvider{}, CoordinatorOptions{})

	_, err := c.UpdateEngine()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, ok := c.EngineUpdate()
	assert.False(t, ok)
}
