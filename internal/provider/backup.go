package provider

import (
	"time"

	"github.com/starford/lightnote/internal/models"
)

// BackupVersion is the current snapshot format version.
const BackupVersion = "1.0.0"

// BackupData holds the exported records.
type BackupData struct {
	Notes       []models.Note       `json:"notes"`
	Folders     []models.Folder     `json:"folders"`
	RecentNotes []models.RecentNote `json:"recent_notes"`
}

// BackupMeta summarizes a snapshot.
type BackupMeta struct {
	TotalNotes   int    `json:"total_notes"`
	TotalFolders int    `json:"total_folders"`
	SizeBytes    int    `json:"size_bytes"`
	Checksum     string `json:"checksum"` // SHA-256 of the serialized data section
}

// Backup is a versioned snapshot of the store, optionally scoped to a
// single user.
type Backup struct {
	Version   string     `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    string     `json:"user_id,omitempty"`
	Data      BackupData `json:"data"`
	Meta      BackupMeta `json:"meta"`
}

// ImportCounts tallies records per entity type.
type ImportCounts struct {
	Notes       int `json:"notes"`
	Folders     int `json:"folders"`
	RecentNotes int `json:"recent_notes"`
}

// ImportResult reports a replay: per-record failures are counted and
// collected, never aborting the whole import.
type ImportResult struct {
	Success    bool         `json:"success"`
	ImportedAt time.Time    `json:"imported_at"`
	Imported   ImportCounts `json:"imported"`
	Skipped    ImportCounts `json:"skipped"`
	Errors     []string     `json:"errors,omitempty"`
}
