package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lightnote/internal/factory"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(f *factory.Factory, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(f)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/bulk-delete", h.BulkDeleteNotes)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Search.
	r.Get("/search", h.Search)

	// Folders CRUD.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Get("/folders/{id}", h.GetFolder)
	r.Put("/folders/{id}", h.UpdateFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)

	// Recently accessed notes.
	r.Get("/recent", h.ListRecent)
	r.Post("/recent/{id}", h.TouchRecent)
	r.Delete("/recent", h.ClearRecent)

	// Provider management.
	r.Get("/provider", h.ProviderInfo)
	r.Post("/provider/switch", h.SwitchProvider)
	r.Post("/provider/sync", h.SyncProvider)

	// Backup.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
