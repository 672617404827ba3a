package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

const maxSlugLength = 80

// ThumbnailCache downloads thumbnails into a local directory
type ThumbnailCache struct {
	dir    string
	client *http.Client
	logger *zap.Logger
}

// NewThumbnailCache creates a thumbnail cache rooted at config.CacheDir
func NewThumbnailCache(config *domain.ThumbnailConfig, logger *zap.Logger) *ThumbnailCache {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ThumbnailCache{
		dir:    config.CacheDir,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// CachePath maps a key (usually the media URL) to its file in the cache.
// The slug is readable; the suffix keeps keys that differ only in case apart.
func (c *ThumbnailCache) CachePath(key string) string {
	name := slug.Make(key)
	if len(name) > maxSlugLength {
		name = name[:maxSlugLength]
	}
	suffix := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()[:8]
	return filepath.Join(c.dir, name+"-"+suffix+".jpg")
}

// FetchAndStore downloads url into the cache under key and returns the local path.
// A file already cached for key is reused.
func (c *ThumbnailCache) FetchAndStore(ctx context.Context, url, key string) (string, error) {
	if url == "" {
		return "", domain.NewError(domain.KindIO, "no thumbnail URL")
	}

	path := c.CachePath(key)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", domain.WrapError(domain.KindIO, fmt.Errorf("failed to create thumbnail cache: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domain.WrapError(domain.KindIO, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.KindIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewError(domain.KindIO, "thumbnail fetch returned %s", resp.Status)
	}

	tmp, err := os.CreateTemp(c.dir, ".thumb-*")
	if err != nil {
		return "", domain.WrapError(domain.KindIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", domain.WrapError(domain.KindIO, fmt.Errorf("failed to write thumbnail: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", domain.WrapError(domain.KindIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", domain.WrapError(domain.KindIO, err)
	}

	c.logger.Debug("Thumbnail cached", zap.String("url", url), zap.String("path", path))
	return path, nil
}
