package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadMode selects what is fetched for a media item
type DownloadMode string

const (
	ModeVideo DownloadMode = "video"
	ModeAudio DownloadMode = "audio"
)

// ValidateMode checks if a download mode is valid
func ValidateMode(mode DownloadMode) bool {
	return mode == ModeVideo || mode == ModeAudio
}

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	StatusCreated     TaskStatus = "created"
	StatusDownloading TaskStatus = "downloading"
	StatusSucceeded   TaskStatus = "succeeded"
	StatusFailed      TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen
func (s TaskStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// DownloadSpec holds the inputs for one download
type DownloadSpec struct {
	SourceURL string              `json:"source_url"`
	Title     string              `json:"title"`
	Mode      DownloadMode        `json:"mode"`
	Video     *VideoQualityOption `json:"video,omitempty"`
	Audio     *AudioOption        `json:"audio,omitempty"`
	Filename  string              `json:"filename"`
	Directory string              `json:"directory"`
}

// FormatID returns the id of the chosen format, empty when none was chosen
func (s DownloadSpec) FormatID() string {
	switch s.Mode {
	case ModeVideo:
		if s.Video != nil {
			return s.Video.FormatID
		}
	case ModeAudio:
		if s.Audio != nil {
			return s.Audio.FormatID
		}
	}
	return ""
}

var filenameReplacer = strings.NewReplacer(
	`\`, "", "/", "", "*", "", "?", "", ":", "", `"`, "", "<", "", ">", "", "|", "",
)

// SanitizeFilename strips every \ / * ? : " < > | from a proposed filename
func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// DownloadTask is one in-flight or completed download
type DownloadTask struct {
	ID           string       `json:"id"`
	Spec         DownloadSpec `json:"spec"`
	Status       TaskStatus   `json:"status"`
	Progress     int          `json:"progress"`
	LogLines     []string     `json:"log_lines"`
	FinalPath    string       `json:"final_path,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewDownloadTask creates a download task for a confirmed spec
func NewDownloadTask(spec DownloadSpec) *DownloadTask {
	return &DownloadTask{
		ID:        uuid.New().String(),
		Spec:      spec,
		Status:    StatusCreated,
		LogLines:  []string{},
		CreatedAt: time.Now(),
	}
}

// MarkDownloading marks the task as started
func (t *DownloadTask) MarkDownloading() {
	if t.Status != StatusCreated {
		return
	}
	t.Status = StatusDownloading
	now := time.Now()
	t.StartedAt = &now
}

// UpdateProgress records a new percentage. Values are clamped to 0-100 and never
// move backwards. It reports whether the stored value changed.
func (t *DownloadTask) UpdateProgress(percent int) bool {
	if t.Status.IsTerminal() {
		return false
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= t.Progress {
		return false
	}
	t.Progress = percent
	return true
}

// AppendLog appends a diagnostic line
func (t *DownloadTask) AppendLog(line string) {
	t.LogLines = append(t.LogLines, line)
}

// MarkSucceeded marks the task as completed with its final artifact path
func (t *DownloadTask) MarkSucceeded(finalPath string) {
	if t.Status.IsTerminal() {
		return
	}
	t.Status = StatusSucceeded
	t.Progress = 100
	t.FinalPath = finalPath
	now := time.Now()
	t.CompletedAt = &now
}

// MarkFailed marks the task as failed with a human-readable message
func (t *DownloadTask) MarkFailed(message string) {
	if t.Status.IsTerminal() {
		return
	}
	t.Status = StatusFailed
	t.ErrorMessage = message
	now := time.Now()
	t.CompletedAt = &now
}

// Clone returns a copy that shares no mutable state with t
func (t *DownloadTask) Clone() *DownloadTask {
	c := *t
	c.LogLines = append([]string(nil), t.LogLines...)
	return &c
}

// Record converts the task into its persisted history form
func (t *DownloadTask) Record() *DownloadRecord {
	return &DownloadRecord{
		ID:           t.ID,
		URL:          t.Spec.SourceURL,
		Title:        t.Spec.Title,
		Mode:         t.Spec.Mode,
		FormatID:     t.Spec.FormatID(),
		Filename:     t.Spec.Filename,
		Directory:    t.Spec.Directory,
		Status:       t.Status,
		Progress:     t.Progress,
		FinalPath:    t.FinalPath,
		ErrorMessage: t.ErrorMessage,
		ProcessLog:   strings.Join(t.LogLines, "\n"),
		CreatedAt:    t.CreatedAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
	}
}

// DownloadRecord is the persisted outcome of a download task
type DownloadRecord struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	URL          string       `json:"url" gorm:"not null"`
	Title        string       `json:"title"`
	Mode         DownloadMode `json:"mode" gorm:"not null"`
	FormatID     string       `json:"format_id,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	Directory    string       `json:"directory,omitempty"`
	Status       TaskStatus   `json:"status" gorm:"not null;index"`
	Progress     int          `json:"progress"`
	FinalPath    string       `json:"final_path,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ProcessLog   string       `json:"process_log,omitempty" gorm:"type:text"` // engine output
	CreatedAt    time.Time    `json:"created_at" gorm:"index"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (DownloadRecord) TableName() string {
	return "download_history"
}
