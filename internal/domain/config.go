package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Provider     ProviderConfig     `mapstructure:"provider"`
	Thumbnail    ThumbnailConfig    `mapstructure:"thumbnail"`
	History      HistoryConfig      `mapstructure:"history"`
	Settings     SettingsConfig     `mapstructure:"settings"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir         string `mapstructure:"base_dir"`         // application data (logs, cache, history)
	DefaultDir      string `mapstructure:"default_dir"`      // used when the settings store has no default path
	DefaultTemplate string `mapstructure:"default_template"` // engine naming scheme without filename/directory
}

// LogsDir returns the directory for category log files
func (c DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ProviderConfig contains yt-dlp configuration
type ProviderConfig struct {
	YTDLPBinary          string   `mapstructure:"ytdlp_binary"`
	SearchLimit          int      `mapstructure:"search_limit"`
	SupportedURLPatterns []string `mapstructure:"supported_url_patterns"`
	ExtraArgs            []string `mapstructure:"extra_args"`     // appended to every invocation, e.g. --cookies
	UpdateCommand        []string `mapstructure:"update_command"` // self-update command line; empty runs "<ytdlp_binary> -U"
}

// ThumbnailConfig contains thumbnail cache configuration
type ThumbnailConfig struct {
	CacheDir string        `mapstructure:"cache_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HistoryConfig contains download history configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// SettingsConfig points at the user preferences file
type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:         "$HOME/.mediagrab",
			DefaultDir:      "$HOME/Downloads",
			DefaultTemplate: "%(title)s.%(ext)s",
		},
		Provider: ProviderConfig{
			YTDLPBinary:          "yt-dlp",
			SearchLimit:          5,
			SupportedURLPatterns: append([]string(nil), DefaultSupportedURLPatterns...),
		},
		Thumbnail: ThumbnailConfig{
			CacheDir: "$HOME/.mediagrab/tmp/thumbnails",
			Timeout:  10 * time.Second,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.mediagrab/history.db",
		},
		Settings: SettingsConfig{
			Path: "$HOME/.mediagrab/settings.json",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
