package infrastructure

import (
	"errors"
	"io/fs"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const settingsKeyDefaultPath = "default_path"

// JSONSettingsStore reads user preferences from a small JSON file.
// The file is re-read on every lookup so edits made elsewhere show up immediately.
type JSONSettingsStore struct {
	path   string
	logger *zap.Logger
}

// NewJSONSettingsStore creates a settings store backed by path
func NewJSONSettingsStore(path string, logger *zap.Logger) *JSONSettingsStore {
	return &JSONSettingsStore{path: path, logger: logger}
}

// Path returns the settings file location
func (s *JSONSettingsStore) Path() string {
	return s.path
}

func (s *JSONSettingsStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return v, err
	}
	return v, nil
}

// DefaultDownloadPath returns the saved download directory, or "" when none is set
func (s *JSONSettingsStore) DefaultDownloadPath() string {
	v, err := s.load()
	if err != nil {
		s.logger.Warn("Failed to read settings", zap.String("path", s.path), zap.Error(err))
		return ""
	}
	return v.GetString(settingsKeyDefaultPath)
}
