package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lightnote/internal/factory"
	"github.com/starford/lightnote/internal/provider"
)

// Handler holds API route handlers. Every data route resolves the
// active provider through the factory, so a provider switch takes
// effect for in-flight traffic without a restart.
type Handler struct {
	factory *factory.Factory
}

// NewHandler creates a new Handler.
func NewHandler(f *factory.Factory) *Handler {
	return &Handler{factory: f}
}

func (h *Handler) provider(w http.ResponseWriter) (provider.Provider, bool) {
	p := h.factory.Current()
	if p == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("no active storage provider"))
		return nil, false
	}
	return p, true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with filtering and pagination metadata
//	@Tags			notes
//	@Produce		json
//	@Param			user_id	query		string	false	"Owner"
//	@Param			folder	query		string	false	"Folder id, or 'root' for unfiled notes"
//	@Param			tag		query		string	false	"Tag filter, repeatable (OR semantics)"
//	@Param			q		query		string	false	"Substring search over title, content, tags"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	query.Result[models.Note]
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	res, err := p.NotesWithMeta(r.Context(), noteFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	models.Note
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := p.CreateNote(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	note, err := p.Note(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /api/notes/{id}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	in, err := req.input()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("folder_id must be a string or null"))
		return
	}
	note, err := p.UpdateNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	if err := p.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteNotes handles POST /api/notes/bulk-delete.
func (h *Handler) BulkDeleteNotes(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	var req BulkIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := p.BulkDeleteNotes(r.Context(), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	notes, err := p.SearchNotes(r.Context(), text, q.Get("user_id"), pageParams(r).Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"total": len(notes),
	})
}

// ListFolders handles GET /api/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	res, err := p.FoldersWithMeta(r.Context(), folderFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	folder, err := p.CreateFolder(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// GetFolder handles GET /api/folders/{id}.
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	folder, err := p.Folder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if folder == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// UpdateFolder handles PUT /api/folders/{id}.
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	var req UpdateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	in, err := req.input()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("parent_id must be a string or null"))
		return
	}
	folder, err := p.UpdateFolder(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder handles DELETE /api/folders/{id}. Deleting a non-empty
// folder is a conflict.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	if err := p.DeleteFolder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecent handles GET /api/recent.
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("user_id is required"))
		return
	}
	notes, err := p.RecentNotes(r.Context(), userID, pageParams(r).Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recent_notes": notes,
		"total":        len(notes),
	})
}

// TouchRecent handles POST /api/recent/{id}: records an access to the
// note for the given user.
func (h *Handler) TouchRecent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	note, err := p.Note(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = note.UserID
	}
	if err := p.TouchRecentNote(r.Context(), *note, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearRecent handles DELETE /api/recent.
func (h *Handler) ClearRecent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("user_id is required"))
		return
	}
	if err := p.ClearRecentNotes(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProviderInfo handles GET /api/provider.
func (h *Handler) ProviderInfo(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.Info())
}

// SwitchProvider handles POST /api/provider/switch: validates the body
// as a provider configuration and swaps the active provider to it.
func (h *Handler) SwitchProvider(w http.ResponseWriter, r *http.Request) {
	var cfg provider.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.factory.SwitchProvider(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Info())
}

// SyncProvider handles POST /api/provider/sync.
func (h *Handler) SyncProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	res, err := p.Sync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Export handles GET /api/export: returns a versioned snapshot,
// optionally scoped by user_id.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	b, err := p.ExportData(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Import handles POST /api/import: replays a snapshot into the store.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	var b provider.Backup
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := p.ImportData(r.Context(), &b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
