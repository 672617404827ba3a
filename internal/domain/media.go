package domain

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// VideoSummary is a lightweight search result
type VideoSummary struct {
	Title           string `json:"title"`
	Channel         string `json:"channel,omitempty"`
	ViewCount       *int64 `json:"view_count,omitempty"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
	SourceURL       string `json:"source_url"`
}

// RawFormat is one encoded variant as reported by the engine.
// Absent values are nil rather than zero.
type RawFormat struct {
	FormatID       string
	Ext            string
	VCodec         string
	ACodec         string
	FormatNote     string
	Height         *int
	Filesize       *int64
	FilesizeApprox *int64
	ABR            *float64
}

// HasVideo reports whether the format carries a video stream
func (f RawFormat) HasVideo() bool {
	return f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream
func (f RawFormat) HasAudio() bool {
	return f.ACodec != "none"
}

// Size returns the exact size, else the approximate one. Zero counts as unknown.
func (f RawFormat) Size() *int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return f.Filesize
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return f.FilesizeApprox
	}
	return nil
}

// Bitrate returns the audio bitrate in kbps, 0 when unknown
func (f RawFormat) Bitrate() float64 {
	if f.ABR == nil {
		return 0
	}
	return *f.ABR
}

// ResolutionLabel prefers the human label, else the raw height
func (f RawFormat) ResolutionLabel() string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	if f.Height != nil {
		return strconv.Itoa(*f.Height)
	}
	return "None"
}

// RawMediaInfo is the engine's answer for a single URL
type RawMediaInfo struct {
	Title           string
	Channel         string
	ThumbnailURL    string
	ViewCount       *int64
	DurationSeconds *int64
	Formats         []RawFormat
}

// AudioOption is a selectable audio-only format
type AudioOption struct {
	FormatID    string  `json:"format_id"`
	Ext         string  `json:"ext"`
	BitrateKbps float64 `json:"bitrate_kbps"`
	SizeBytes   *int64  `json:"size_bytes,omitempty"`
}

// Label renders the option the way the quality list shows it
func (a AudioOption) Label() string {
	return strconv.FormatFloat(math.Round(a.BitrateKbps), 'f', 0, 64) + " kbps - " + FormatSize(a.SizeBytes)
}

// VideoQualityOption is a selectable video format, one per resolution label
type VideoQualityOption struct {
	FormatID        string `json:"format_id"`
	Ext             string `json:"ext"`
	ResolutionLabel string `json:"resolution"`
	SizeBytes       *int64 `json:"size_bytes,omitempty"`
}

// Label renders the option the way the quality list shows it
func (v VideoQualityOption) Label() string {
	res := v.ResolutionLabel
	if res == "" {
		res = "N/A"
	}
	return res + " - " + FormatSize(v.SizeBytes)
}

// MediaDescriptor is the fully resolved record for one media item.
// It is never mutated once published; a new resolve supersedes it.
type MediaDescriptor struct {
	Title               string               `json:"title"`
	Channel             string               `json:"channel"`
	ThumbnailURL        string               `json:"thumbnail_url,omitempty"`
	ThumbnailPath       string               `json:"thumbnail_path,omitempty"`
	ViewCount           *int64               `json:"view_count,omitempty"`
	DurationSeconds     *int64               `json:"duration_seconds,omitempty"`
	SourceURL           string               `json:"source_url"`
	VideoQualityOptions []VideoQualityOption `json:"video_quality_options"`
	BestAudio           *AudioOption         `json:"best_audio,omitempty"`
}

// IsValidURL checks for an absolute http(s) URL with a host
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DefaultSupportedURLPatterns are substrings identifying supported media URLs
var DefaultSupportedURLPatterns = []string{"youtube.com/watch", "youtu.be/"}

// IsSupportedMediaURL checks a URL against the supported patterns
func IsSupportedMediaURL(raw string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultSupportedURLPatterns
	}
	for _, p := range patterns {
		if strings.Contains(raw, p) {
			return true
		}
	}
	return false
}
