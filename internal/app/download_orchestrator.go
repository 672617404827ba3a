package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// DefaultOutputTemplate is the engine naming scheme used when no filename/directory is given
const DefaultOutputTemplate = "%(title)s.%(ext)s"

// DownloadOrchestrator turns a confirmed DownloadSpec into an engine download
// running on its own TaskRunner.
type DownloadOrchestrator struct {
	provider        domain.MediaProvider
	runner          *TaskRunner[string]
	defaultTemplate string
	logger          *zap.Logger
}

// NewDownloadOrchestrator creates a new download orchestrator
func NewDownloadOrchestrator(provider domain.MediaProvider, defaultTemplate string, logger *zap.Logger) *DownloadOrchestrator {
	if defaultTemplate == "" {
		defaultTemplate = DefaultOutputTemplate
	}
	return &DownloadOrchestrator{
		provider:        provider,
		runner:          NewTaskRunner[string](logger),
		defaultTemplate: defaultTemplate,
		logger:          logger,
	}
}

// BuildDirectives derives the engine directives for a spec
func BuildDirectives(spec domain.DownloadSpec, defaultTemplate string) domain.DownloadDirectives {
	directives := domain.DownloadDirectives{NoPlaylist: true}

	switch {
	case spec.Filename != "" && spec.Directory != "":
		directives.OutputTemplate = filepath.Join(spec.Directory, spec.Filename+".%(ext)s")
	case defaultTemplate != "":
		directives.OutputTemplate = defaultTemplate
	default:
		directives.OutputTemplate = DefaultOutputTemplate
	}

	formatID := spec.FormatID()

	if spec.Mode == domain.ModeAudio {
		directives.Format = "bestaudio/best"
		if formatID != "" {
			directives.Format = formatID
		}
		directives.PostProcessors = []domain.PostProcessor{
			{Key: domain.PostProcessorExtractAudio, PreferredCodec: "mp3", PreferredQuality: "192"},
			{Key: domain.PostProcessorEmbedThumbnail},
		}
		directives.WriteThumbnail = true
		return directives
	}

	directives.Format = "bestvideo+bestaudio"
	if formatID != "" {
		directives.Format = formatID + "+bestaudio"
	}
	directives.MergeOutputFormat = "mp4"
	return directives
}

// ResolveArtifactPath maps the engine's prepared filename to the file left on disk.
// Audio extraction always produces an mp3.
func ResolveArtifactPath(mode domain.DownloadMode, reported string) string {
	if mode != domain.ModeAudio || reported == "" {
		return reported
	}
	return strings.TrimSuffix(reported, filepath.Ext(reported)) + ".mp3"
}

// Start launches the download. Progress is relayed only when it increases; the
// terminal result is the final artifact path.
func (o *DownloadOrchestrator) Start(spec domain.DownloadSpec) *Handle[string] {
	directives := BuildDirectives(spec, o.defaultTemplate)

	o.logger.Info("Starting download",
		zap.String("url", spec.SourceURL),
		zap.String("mode", string(spec.Mode)),
		zap.String("format", directives.Format),
		zap.String("output", directives.OutputTemplate))

	return o.runner.Start("download:"+spec.SourceURL, func(ctx context.Context, emit Emitter) (string, error) {
		var mu sync.Mutex
		last := -1
		onProgress := func(percent int) {
			mu.Lock()
			defer mu.Unlock()
			if percent <= last {
				return
			}
			last = percent
			emit.Progress(percent)
		}

		reported, err := o.provider.Download(ctx, spec.SourceURL, directives, onProgress, emit.Log)
		if err != nil {
			return "", err
		}
		if reported == "" {
			return "", domain.NewError(domain.KindProvider, "Download finished but no output file was reported")
		}
		return ResolveArtifactPath(spec.Mode, reported), nil
	})
}

// Wait blocks until every started download has returned
func (o *DownloadOrchestrator) Wait() {
	o.runner.Wait()
}
