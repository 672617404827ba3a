package domain

// HistoryRepository defines the interface for download history persistence
type HistoryRepository interface {
	// Save inserts or updates a record
	Save(record *DownloadRecord) error

	// FindByID finds a record by task ID
	FindByID(id string) (*DownloadRecord, error)

	// FindRecent returns the newest records first, at most limit (0 means all)
	FindRecent(limit int) ([]*DownloadRecord, error)

	// FindByStatus finds records by status
	FindByStatus(status TaskStatus) ([]*DownloadRecord, error)

	// Delete deletes a record by ID
	Delete(id string) error

	// GetStats returns history statistics
	GetStats() (*HistoryStats, error)
}

// HistoryStats represents download history statistics
type HistoryStats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}
