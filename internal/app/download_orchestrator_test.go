package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

func TestBuildDirectives(t *testing.T) {
	video := &domain.VideoQualityOption{FormatID: "137", ResolutionLabel: "1080p"}
	audio := &domain.AudioOption{FormatID: "251", BitrateKbps: 160}
	dir := filepath.Join("downloads", "music")

	tests := []struct {
		name        string
		spec        domain.DownloadSpec
		template    string
		format      string
		merge       string
		postProcess int
		writeThumb  bool
	}{
		{
			name:     "video with chosen format",
			spec:     domain.DownloadSpec{Mode: domain.ModeVideo, Video: video, Filename: "clip", Directory: dir},
			template: filepath.Join(dir, "clip.%(ext)s"),
			format:   "137+bestaudio",
			merge:    "mp4",
		},
		{
			name:     "video without format uses engine default name",
			spec:     domain.DownloadSpec{Mode: domain.ModeVideo},
			template: "%(title)s.%(ext)s",
			format:   "bestvideo+bestaudio",
			merge:    "mp4",
		},
		{
			name:        "audio with best audio format",
			spec:        domain.DownloadSpec{Mode: domain.ModeAudio, Audio: audio, Filename: "song", Directory: dir},
			template:    filepath.Join(dir, "song.%(ext)s"),
			format:      "251",
			postProcess: 2,
			writeThumb:  true,
		},
		{
			name:        "audio fallback when no audio-only format exists",
			spec:        domain.DownloadSpec{Mode: domain.ModeAudio, Filename: "song"},
			template:    "%(title)s.%(ext)s",
			format:      "bestaudio/best",
			postProcess: 2,
			writeThumb:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := BuildDirectives(tt.spec, "")

			assert.Equal(t, tt.template, d.OutputTemplate)
			assert.Equal(t, tt.format, d.Format)
			assert.Equal(t, tt.merge, d.MergeOutputFormat)
			assert.Len(t, d.PostProcessors, tt.postProcess)
			assert.Equal(t, tt.writeThumb, d.WriteThumbnail)
			assert.True(t, d.NoPlaylist)
		})
	}
}

func TestBuildDirectives_AudioPostProcessors(t *testing.T) {
	d := BuildDirectives(domain.DownloadSpec{Mode: domain.ModeAudio}, "")

	require.Len(t, d.PostProcessors, 2)
	assert.Equal(t, domain.PostProcessor{Key: domain.PostProcessorExtractAudio, PreferredCodec: "mp3", PreferredQuality: "192"}, d.PostProcessors[0])
	assert.Equal(t, domain.PostProcessorEmbedThumbnail, d.PostProcessors[1].Key)
}

func TestBuildDirectives_ConfiguredDefaultTemplate(t *testing.T) {
	d := BuildDirectives(domain.DownloadSpec{Mode: domain.ModeVideo, Filename: "only-name"}, "/srv/%(id)s.%(ext)s")
	assert.Equal(t, "/srv/%(id)s.%(ext)s", d.OutputTemplate)
}

func TestResolveArtifactPath(t *testing.T) {
	assert.Equal(t, "/music/song.mp3", ResolveArtifactPath(domain.ModeAudio, "/music/song.webm"))
	assert.Equal(t, "/music/song.mp3", ResolveArtifactPath(domain.ModeAudio, "/music/song.m4a"))
	assert.Equal(t, "/video/clip.mp4", ResolveArtifactPath(domain.ModeVideo, "/video/clip.mp4"))
	assert.Equal(t, "", ResolveArtifactPath(domain.ModeAudio, ""))
}

func TestDownloadOrchestrator_RelaysMonotonicProgress(t *testing.T) {
	provider := &mockProvider{
		downloadFn: func(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
			onLog("[youtube] abc: Downloading webpage")
			onProgress(10)
			onProgress(50)
			onProgress(100)
			onLog("Download Complete. Processing...")
			onProgress(3) // second stream starts over
			onProgress(100)
			return "/music/song.webm", nil
		},
	}
	orch := NewDownloadOrchestrator(provider, "", zap.NewNop())

	h := orch.Start(domain.DownloadSpec{SourceURL: "https://youtu.be/abc", Mode: domain.ModeAudio})
	events := collect(t, h)

	var progress []int
	var logs []string
	for _, ev := range events {
		switch ev.Kind {
		case EventProgress:
			progress = append(progress, ev.Progress)
		case EventLog:
			logs = append(logs, ev.Line)
		}
	}
	assert.Equal(t, []int{10, 50, 100}, progress)
	assert.Equal(t, []string{"[youtube] abc: Downloading webpage", "Download Complete. Processing..."}, logs)

	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Kind)
	assert.Equal(t, "/music/song.mp3", last.Result)

	require.Len(t, provider.directives, 1)
	assert.Equal(t, "bestaudio/best", provider.directives[0].Format)
}

func TestDownloadOrchestrator_FailureCarriesEngineText(t *testing.T) {
	provider := &mockProvider{
		downloadFn: func(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
			return "", domain.NewError(domain.KindProvider, "ERROR: [youtube] abc: Private video")
		},
	}
	orch := NewDownloadOrchestrator(provider, "", zap.NewNop())

	h := orch.Start(domain.DownloadSpec{SourceURL: "https://youtu.be/abc", Mode: domain.ModeVideo})
	events := collect(t, h)

	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Kind)
	assert.Equal(t, "ERROR: [youtube] abc: Private video", events[0].Err.Error())
	assert.True(t, errors.Is(events[0].Err, domain.ErrProvider))

	orch.Wait()
}

func TestDownloadOrchestrator_MissingPathFails(t *testing.T) {
	provider := &mockProvider{
		downloadFn: func(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
			onProgress(100)
			return "", nil
		},
	}
	orch := NewDownloadOrchestrator(provider, "", zap.NewNop())

	h := orch.Start(domain.DownloadSpec{SourceURL: "https://youtu.be/abc", Mode: domain.ModeAudio})
	events := collect(t, h)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventFailed, last.Kind)
	assert.True(t, errors.Is(last.Err, domain.ErrProvider))
	assert.Empty(t, last.Result)

	orch.Wait()
}
