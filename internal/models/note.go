// Package models defines the domain types for LightNote.
package models

import "time"

// Note is a single note owned by a user. Ids and timestamps are always
// engine-assigned; Tags is stored as an ordered list but treated as a set.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	IsPinned  bool      `json:"is_pinned"`
	IsShared  bool      `json:"is_shared,omitempty"`
	FolderID  *string   `json:"folder_id,omitempty"` // nil means the note lives at the root
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Folder groups notes and may nest under a parent folder.
//
// The model does not enforce acyclicity of ParentID chains; callers are
// responsible for not creating cycles.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	ParentID  *string   `json:"parent_id,omitempty"` // nil means a top-level folder
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecentNote is one entry of a user's most-recently-accessed list.
// ID equals the referenced note's id; Title is denormalized at access
// time and may go stale relative to the live note.
type RecentNote struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	AccessedAt time.Time `json:"accessed_at"`
}

// RecentNotesLimit is the maximum number of recent entries kept per user.
const RecentNotesLimit = 10
