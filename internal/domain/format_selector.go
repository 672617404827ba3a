package domain

import (
	"fmt"
	"sort"
	"strconv"
)

const bytesPerMB = 1024 * 1024

// DedupeAndSortVideoFormats turns raw formats into the offered video qualities.
//
// Only mp4 formats with a video stream and a known size are considered. For each
// resolution label the largest format wins (the first one on a tie). The result is
// ordered by the label's numeric resolution, highest first; labels without digits
// come last in first-seen order.
func DedupeAndSortVideoFormats(formats []RawFormat) []VideoQualityOption {
	var order []string
	best := make(map[string]VideoQualityOption)

	for _, f := range formats {
		if !f.HasVideo() || f.Ext != "mp4" {
			continue
		}
		size := f.Size()
		if size == nil {
			continue
		}

		label := f.ResolutionLabel()
		current, seen := best[label]
		if !seen {
			order = append(order, label)
		} else if *size <= *current.SizeBytes {
			continue
		}

		s := *size
		best[label] = VideoQualityOption{
			FormatID:        f.FormatID,
			Ext:             f.Ext,
			ResolutionLabel: label,
			SizeBytes:       &s,
		}
	}

	options := make([]VideoQualityOption, 0, len(order))
	for _, label := range order {
		options = append(options, best[label])
	}

	sort.SliceStable(options, func(i, j int) bool {
		ri, okI := resolutionValue(options[i].ResolutionLabel)
		rj, okJ := resolutionValue(options[j].ResolutionLabel)
		if okI != okJ {
			return okI
		}
		return ri > rj
	})

	return options
}

// resolutionValue extracts the first run of digits in a label ("1080p60" -> 1080)
func resolutionValue(label string) (int, bool) {
	start := -1
	for i, c := range label {
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return atoiOrZero(label[start:i]), true
		}
	}
	if start < 0 {
		return 0, false
	}
	return atoiOrZero(label[start:]), true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// PickBestAudio returns the audio-only format with the highest bitrate, or nil
func PickBestAudio(formats []RawFormat) *AudioOption {
	var best *RawFormat
	for i := range formats {
		f := &formats[i]
		if !f.HasAudio() || f.HasVideo() {
			continue
		}
		if best == nil || f.Bitrate() > best.Bitrate() {
			best = f
		}
	}
	if best == nil {
		return nil
	}

	option := &AudioOption{
		FormatID:    best.FormatID,
		Ext:         best.Ext,
		BitrateKbps: best.Bitrate(),
	}
	if size := best.Size(); size != nil {
		s := *size
		option.SizeBytes = &s
	}
	return option
}

// BuildDescriptor applies format selection to a resolved media record
func BuildDescriptor(raw *RawMediaInfo, sourceURL string) *MediaDescriptor {
	return &MediaDescriptor{
		Title:               raw.Title,
		Channel:             raw.Channel,
		ThumbnailURL:        raw.ThumbnailURL,
		ViewCount:           raw.ViewCount,
		DurationSeconds:     raw.DurationSeconds,
		SourceURL:           sourceURL,
		VideoQualityOptions: DedupeAndSortVideoFormats(raw.Formats),
		BestAudio:           PickBestAudio(raw.Formats),
	}
}

// FormatSize renders a byte count as megabytes with two decimals
func FormatSize(bytes *int64) string {
	if bytes == nil || *bytes <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f MB", float64(*bytes)/bytesPerMB)
}

// FormatViewCount renders a view count with a k/M/B suffix
func FormatViewCount(views *int64) string {
	if views == nil {
		return "N/A Views"
	}
	v := *views
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB Views", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM Views", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk Views", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d Views", v)
	}
}

// FormatDuration renders seconds as minutes:seconds
func FormatDuration(seconds *int64) string {
	if seconds == nil {
		return "Length: N/A"
	}
	s := *seconds
	return fmt.Sprintf("Length: %d:%02d", s/60, s%60)
}
