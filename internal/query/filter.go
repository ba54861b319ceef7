// Package query defines the declarative filter, sort, and pagination
// contract shared by all storage providers. Every declared predicate
// combines with logical AND; only the tag filter is an OR over its
// own members.
package query

import "time"

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sortable field names accepted by the engines. Unknown fields fall
// back to the per-entity default.
const (
	SortUpdatedAt = "updated_at"
	SortCreatedAt = "created_at"
	SortTitle     = "title"
	SortName      = "name"
)

// Sort selects the ordering of a result set. The zero value means the
// entity default (updated_at desc for notes, name asc for folders).
type Sort struct {
	By    string
	Order Order
}

// Page selects a window of the result set. Zero values mean no limit
// and no offset.
type Page struct {
	Limit  int
	Offset int
}

// Range is a closed interval on a timestamp field.
type Range struct {
	Start time.Time
	End   time.Time
}

// Scope is a tri-state reference filter: the zero value matches any
// assignment, Root matches records with no reference, and ID matches a
// specific reference.
type Scope struct {
	set bool
	id  string
}

// Any matches records regardless of their reference.
func Any() Scope { return Scope{} }

// Root matches records that carry no reference (the explicit-null case).
func Root() Scope { return Scope{set: true} }

// ID matches records referencing the given id.
func ID(id string) Scope { return Scope{set: true, id: id} }

// IsAny reports whether the scope is unset.
func (s Scope) IsAny() bool { return !s.set }

// IsRoot reports whether the scope matches unreferenced records only.
func (s Scope) IsRoot() bool { return s.set && s.id == "" }

// Value returns the referenced id; ok is false unless the scope names
// a specific id.
func (s Scope) Value() (id string, ok bool) {
	if s.set && s.id != "" {
		return s.id, true
	}
	return "", false
}

// NoteFilter selects notes. Tags use OR semantics: a note matches when
// it carries any of the requested tags. Search is a case-insensitive
// substring match over title, content, and tags.
type NoteFilter struct {
	UserID  string
	Folder  Scope
	Tags    []string
	Pinned  *bool
	Shared  *bool
	Search  string
	Updated *Range // closed range on updated_at
	Page    Page
	Sort    Sort
}

// FolderFilter selects folders.
type FolderFilter struct {
	UserID       string
	Parent       Scope
	NameContains string
	Page         Page
	Sort         Sort
}

// RecentFilter selects recent-note entries for one user. Limit is
// capped at the per-user retention bound regardless of the requested
// value; zero means the full retained list.
type RecentFilter struct {
	UserID string
	Limit  int
}
