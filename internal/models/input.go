package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateNoteInput carries the caller-supplied fields of a new note.
// Id and timestamps are assigned by the storage engine.
type CreateNoteInput struct {
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	IsPinned bool     `json:"is_pinned"`
	IsShared bool     `json:"is_shared"`
	FolderID *string  `json:"folder_id"`
}

// Validate enforces the minimum creation rule: a note must have either
// a title or content.
func (in CreateNoteInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.UserID, validation.Required),
	); err != nil {
		return err
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return validation.Errors{"title": validation.NewError(
			"validation_note_empty", "note must have either title or content")}
	}
	return nil
}

// CreateFolderInput carries the caller-supplied fields of a new folder.
type CreateFolderInput struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Color    *string `json:"color"`
	ParentID *string `json:"parent_id"`
}

// Validate requires a display name and an owning user.
func (in CreateFolderInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.Name, validation.Required),
	)
}

// Ref is a tri-state folder reference used in update inputs: the zero
// value leaves the assignment unchanged, Clear moves the record to the
// root, and To assigns a specific id.
type Ref struct {
	set bool
	id  *string
}

// KeepRef leaves the current assignment unchanged.
func KeepRef() Ref { return Ref{} }

// ClearRef detaches the record from its folder or parent.
func ClearRef() Ref { return Ref{set: true} }

// ToRef assigns the record to the given id.
func ToRef(id string) Ref { return Ref{set: true, id: &id} }

// Apply resolves the reference against the current value.
func (r Ref) Apply(current *string) *string {
	if !r.set {
		return current
	}
	return r.id
}

// IsSet reports whether the reference changes the assignment at all.
func (r Ref) IsSet() bool { return r.set }

// UpdateNoteInput is a partial patch: nil fields are left unchanged.
// The folder assignment is tri-state via Folder.
type UpdateNoteInput struct {
	Title    *string
	Content  *string
	Tags     []string
	IsPinned *bool
	IsShared *bool
	Folder   Ref
}

// Apply merges the patch over an existing note, leaving absent fields
// untouched. Id and timestamps are never patched here.
func (in UpdateNoteInput) Apply(n *Note) {
	if in.Title != nil {
		n.Title = *in.Title
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.Tags != nil {
		n.Tags = in.Tags
	}
	if in.IsPinned != nil {
		n.IsPinned = *in.IsPinned
	}
	if in.IsShared != nil {
		n.IsShared = *in.IsShared
	}
	n.FolderID = in.Folder.Apply(n.FolderID)
}

// UpdateFolderInput is a partial patch for folders. Parent is tri-state;
// moving a folder under one of its own descendants is not checked here.
type UpdateFolderInput struct {
	Name   *string
	Color  *string
	Parent Ref
}

// Apply merges the patch over an existing folder.
func (in UpdateFolderInput) Apply(f *Folder) {
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Color != nil {
		f.Color = in.Color
	}
	f.ParentID = in.Parent.Apply(f.ParentID)
}
