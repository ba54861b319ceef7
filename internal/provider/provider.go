// Package provider defines the uniform data-access contract implemented
// by every storage engine, plus the configuration and capability types
// the factory works with.
package provider

import (
	"context"
	"time"

	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/query"
)

// Status is the lifecycle state of a provider instance.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Capabilities describes what a provider supports. Callers check this
// descriptor before using optional operations instead of probing for
// methods.
type Capabilities struct {
	Realtime       bool  `json:"realtime"`
	BulkOperations bool  `json:"bulk_operations"`
	Transactions   bool  `json:"transactions"`
	FullTextSearch bool  `json:"full_text_search"`
	Relations      bool  `json:"relations"`
	Indexes        bool  `json:"indexes"`
	Backup         bool  `json:"backup"`
	Encryption     bool  `json:"encryption"`
	MaxConnections int   `json:"max_connections"`
	MaxRecordSize  int64 `json:"max_record_size"`
}

// Info is a point-in-time description of a provider instance.
type Info struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Status       Status       `json:"status"`
	Capabilities Capabilities `json:"capabilities"`
	Config       Config       `json:"config"`
	ConnectedAt  *time.Time   `json:"connected_at,omitempty"`
	LastSync     *time.Time   `json:"last_sync,omitempty"`
}

// ChangeCounts tallies mutations per entity during a sync pass.
type ChangeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// SyncResult reports the outcome of a sync pass. The embedded provider
// has no remote counterpart, so its sync is a no-op success with zero
// counts; the shape exists for a future networked provider.
type SyncResult struct {
	Success  bool         `json:"success"`
	SyncedAt time.Time    `json:"synced_at"`
	Notes    ChangeCounts `json:"notes"`
	Folders  ChangeCounts `json:"folders"`
}

// NotePatch pairs a note id with a partial update for bulk application.
type NotePatch struct {
	ID     string
	Update models.UpdateNoteInput
}

// FolderPatch pairs a folder id with a partial update.
type FolderPatch struct {
	ID     string
	Update models.UpdateFolderInput
}

// Tx exposes entity mutations scoped atomically across notes and
// folders. All-or-nothing atomicity is the only guarantee: Rollback
// exists to make that explicit and always fails with NOT_SUPPORTED.
// Mutations inside a transaction do not emit change events.
type Tx interface {
	CreateNote(ctx context.Context, in models.CreateNoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, in models.UpdateNoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	CreateFolder(ctx context.Context, in models.CreateFolderInput) (*models.Folder, error)
	UpdateFolder(ctx context.Context, id string, in models.UpdateFolderInput) (*models.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
	Rollback() error
}

// Provider is the uniform data-access contract consumed by UI
// collaborators. Get-style operations return nil (not an error) for
// absent records; every failure is a *dberr.Error.
type Provider interface {
	// Lifecycle.
	Initialize(ctx context.Context) error
	Close() error
	IsConnected() bool
	Ping(ctx context.Context) error
	Status() Status
	Info() Info

	// Notes.
	CreateNote(ctx context.Context, in models.CreateNoteInput) (*models.Note, error)
	Note(ctx context.Context, id string) (*models.Note, error)
	Notes(ctx context.Context, f query.NoteFilter) ([]models.Note, error)
	NotesWithMeta(ctx context.Context, f query.NoteFilter) (*query.Result[models.Note], error)
	UpdateNote(ctx context.Context, id string, in models.UpdateNoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	BulkCreateNotes(ctx context.Context, ins []models.CreateNoteInput) ([]models.Note, error)
	BulkUpdateNotes(ctx context.Context, patches []NotePatch) ([]models.Note, error)
	BulkDeleteNotes(ctx context.Context, ids []string) error

	// Folders.
	CreateFolder(ctx context.Context, in models.CreateFolderInput) (*models.Folder, error)
	Folder(ctx context.Context, id string) (*models.Folder, error)
	Folders(ctx context.Context, f query.FolderFilter) ([]models.Folder, error)
	FoldersWithMeta(ctx context.Context, f query.FolderFilter) (*query.Result[models.Folder], error)
	UpdateFolder(ctx context.Context, id string, in models.UpdateFolderInput) (*models.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
	BulkCreateFolders(ctx context.Context, ins []models.CreateFolderInput) ([]models.Folder, error)
	BulkUpdateFolders(ctx context.Context, patches []FolderPatch) ([]models.Folder, error)
	BulkDeleteFolders(ctx context.Context, ids []string) error

	// Recent notes.
	TouchRecentNote(ctx context.Context, note models.Note, userID string) error
	RecentNotes(ctx context.Context, userID string, limit int) ([]models.RecentNote, error)
	RecentNotesWithMeta(ctx context.Context, f query.RecentFilter) (*query.Result[models.RecentNote], error)
	ClearRecentNotes(ctx context.Context, userID string) error

	// Derived queries.
	CountNotes(ctx context.Context, f query.NoteFilter) (int, error)
	CountFolders(ctx context.Context, f query.FolderFilter) (int, error)
	NoteExists(ctx context.Context, id string) (bool, error)
	FolderExists(ctx context.Context, id string) (bool, error)
	SearchNotes(ctx context.Context, text, userID string, limit int) ([]models.Note, error)

	// Transactions.
	Transaction(ctx context.Context, fn func(Tx) error) error

	// Sync seam.
	LastSyncedAt(ctx context.Context) (*time.Time, error)
	SetLastSyncedAt(ctx context.Context, at time.Time) error
	Sync(ctx context.Context) (*SyncResult, error)

	// Change events (check Info().Capabilities.Realtime first).
	SubscribeChanges(l events.Listener, opts ...events.SubscribeOption) (func(), error)

	// Backup (check Info().Capabilities.Backup first). An empty userID
	// exports everything.
	ExportData(ctx context.Context, userID string) (*Backup, error)
	ImportData(ctx context.Context, b *Backup) (*ImportResult, error)

	// Cache management.
	ClearCache(ctx context.Context) error
	CacheSize(ctx context.Context) (int64, error)
}
