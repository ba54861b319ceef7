package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/query"
)

// folderRootParam is the query-parameter spelling for "notes outside
// any folder". A specific id selects that folder; an absent parameter
// matches any assignment.
const folderRootParam = "root"

// CreateNoteRequest is the POST /notes body.
type CreateNoteRequest struct {
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	IsPinned bool     `json:"is_pinned"`
	IsShared bool     `json:"is_shared"`
	FolderID *string  `json:"folder_id"`
}

func (r CreateNoteRequest) input() models.CreateNoteInput {
	return models.CreateNoteInput{
		UserID:   r.UserID,
		Title:    r.Title,
		Content:  r.Content,
		Tags:     r.Tags,
		IsPinned: r.IsPinned,
		IsShared: r.IsShared,
		FolderID: r.FolderID,
	}
}

// UpdateNoteRequest is the PUT /notes/{id} body. folder_id is
// tri-state: absent keeps the assignment, null moves the note to the
// root, a string moves it into that folder.
type UpdateNoteRequest struct {
	Title    *string         `json:"title"`
	Content  *string         `json:"content"`
	Tags     []string        `json:"tags"`
	IsPinned *bool           `json:"is_pinned"`
	IsShared *bool           `json:"is_shared"`
	FolderID json.RawMessage `json:"folder_id"`
}

func (r UpdateNoteRequest) input() (models.UpdateNoteInput, error) {
	in := models.UpdateNoteInput{
		Title:    r.Title,
		Content:  r.Content,
		Tags:     r.Tags,
		IsPinned: r.IsPinned,
		IsShared: r.IsShared,
	}
	ref, err := decodeRef(r.FolderID)
	if err != nil {
		return in, err
	}
	in.Folder = ref
	return in, nil
}

// CreateFolderRequest is the POST /folders body.
type CreateFolderRequest struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Color    *string `json:"color"`
	ParentID *string `json:"parent_id"`
}

func (r CreateFolderRequest) input() models.CreateFolderInput {
	return models.CreateFolderInput{
		UserID:   r.UserID,
		Name:     r.Name,
		Color:    r.Color,
		ParentID: r.ParentID,
	}
}

// UpdateFolderRequest is the PUT /folders/{id} body; parent_id follows
// the same tri-state convention as note folder_id.
type UpdateFolderRequest struct {
	Name     *string         `json:"name"`
	Color    *string         `json:"color"`
	ParentID json.RawMessage `json:"parent_id"`
}

func (r UpdateFolderRequest) input() (models.UpdateFolderInput, error) {
	in := models.UpdateFolderInput{
		Name:  r.Name,
		Color: r.Color,
	}
	ref, err := decodeRef(r.ParentID)
	if err != nil {
		return in, err
	}
	in.Parent = ref
	return in, nil
}

// decodeRef maps a raw JSON field onto the tri-state reference.
func decodeRef(raw json.RawMessage) (models.Ref, error) {
	if len(raw) == 0 {
		return models.KeepRef(), nil
	}
	if string(raw) == "null" {
		return models.ClearRef(), nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return models.Ref{}, err
	}
	return models.ToRef(id), nil
}

// BulkIDsRequest carries record ids for bulk deletes.
type BulkIDsRequest struct {
	IDs []string `json:"ids"`
}

// noteFilter builds a note filter from list-endpoint query parameters.
func noteFilter(r *http.Request) query.NoteFilter {
	q := r.URL.Query()
	f := query.NoteFilter{
		UserID: q.Get("user_id"),
		Tags:   q["tag"],
		Search: q.Get("q"),
		Page:   pageParams(r),
		Sort: query.Sort{
			By:    q.Get("sort"),
			Order: query.Order(q.Get("order")),
		},
	}
	switch folder := q.Get("folder"); folder {
	case "":
	case folderRootParam:
		f.Folder = query.Root()
	default:
		f.Folder = query.ID(folder)
	}
	if v := q.Get("pinned"); v != "" {
		pinned := v == "true"
		f.Pinned = &pinned
	}
	if v := q.Get("shared"); v != "" {
		shared := v == "true"
		f.Shared = &shared
	}
	return f
}

// folderFilter builds a folder filter from query parameters.
func folderFilter(r *http.Request) query.FolderFilter {
	q := r.URL.Query()
	f := query.FolderFilter{
		UserID:       q.Get("user_id"),
		NameContains: q.Get("name"),
		Page:         pageParams(r),
		Sort: query.Sort{
			By:    q.Get("sort"),
			Order: query.Order(q.Get("order")),
		},
	}
	switch parent := q.Get("parent"); parent {
	case "":
	case folderRootParam:
		f.Parent = query.Root()
	default:
		f.Parent = query.ID(parent)
	}
	return f
}

func pageParams(r *http.Request) query.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return query.Page{Limit: limit, Offset: offset}
}
