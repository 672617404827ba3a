package domain

import "context"

// ProgressFunc receives a transfer percentage in the 0-100 range
type ProgressFunc func(percent int)

// LogFunc receives one line of engine diagnostics
type LogFunc func(line string)

// MediaProvider is the capability surface of the external extraction engine
type MediaProvider interface {
	// Search returns up to limit summaries for a keyword query without downloading media.
	// Entries the engine cannot parse are dropped.
	Search(ctx context.Context, query string, limit int) ([]VideoSummary, error)

	// Resolve fetches metadata and the raw format list for a single URL
	Resolve(ctx context.Context, url string) (*RawMediaInfo, error)

	// Download runs a format-directed download and returns the engine-reported artifact path.
	// It blocks until the engine exits.
	Download(ctx context.Context, url string, directives DownloadDirectives, onProgress ProgressFunc, onLog LogFunc) (string, error)
}

// Post-processor keys understood by the engine
const (
	PostProcessorExtractAudio   = "FFmpegExtractAudio"
	PostProcessorEmbedThumbnail = "EmbedThumbnail"
)

// PostProcessor is one step applied after the transfer
type PostProcessor struct {
	Key              string `json:"key"`
	PreferredCodec   string `json:"preferred_codec,omitempty"`
	PreferredQuality string `json:"preferred_quality,omitempty"`
}

// DownloadDirectives are the concrete instructions passed to the engine for one download
type DownloadDirectives struct {
	OutputTemplate    string          `json:"output_template"`
	Format            string          `json:"format"`
	MergeOutputFormat string          `json:"merge_output_format,omitempty"`
	PostProcessors    []PostProcessor `json:"post_processors,omitempty"`
	WriteThumbnail    bool            `json:"write_thumbnail"`
	NoPlaylist        bool            `json:"no_playlist"`
}

// EngineUpdater upgrades the extraction engine in place
type EngineUpdater interface {
	// Update runs the self-update, streaming every output line, and returns the
	// last line the updater printed. A non-zero exit is an error.
	Update(ctx context.Context, onLog LogFunc) (string, error)
}

// ThumbnailFetcher stores remote thumbnails in a local cache
type ThumbnailFetcher interface {
	// FetchAndStore downloads url into the cache under filename and returns the local path
	FetchAndStore(ctx context.Context, url, filename string) (string, error)
}

// SettingsProvider exposes persisted user preferences. It is read-only for the engine.
type SettingsProvider interface {
	DefaultDownloadPath() string
}
