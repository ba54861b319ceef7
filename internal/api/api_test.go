package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/lightnote/internal/factory"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	f := factory.New(testutil.DiscardLogger())
	t.Cleanup(func() { f.Close() })
	if _, err := f.CreateProvider(context.Background(), testutil.TestConfig(t)); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	srv := httptest.NewServer(NewRouter(f, false, "", nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{
		UserID: "u", Title: "hello", Tags: []string{"t1"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[models.Note](t, resp)
	if created.ID == "" {
		t.Fatal("created note has no id")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/notes/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	// Tri-state folder patch: JSON null moves the note to the root.
	resp = doJSON(t, http.MethodPut, srv.URL+"/notes/"+created.ID,
		map[string]any{"title": "renamed", "folder_id": nil})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decode[models.Note](t, resp)
	if updated.Title != "renamed" {
		t.Errorf("title = %q", updated.Title)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/notes?user_id=u&limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list := decode[struct {
		Data []models.Note `json:"data"`
		Meta struct {
			TotalCount int  `json:"total_count"`
			HasMore    bool `json:"has_more"`
		} `json:"meta"`
	}](t, resp)
	if len(list.Data) != 1 || list.Meta.TotalCount != 1 || list.Meta.HasMore {
		t.Errorf("list = %+v", list)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/notes/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/notes/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// Empty note fails validation.
	resp := doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{UserID: "u"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("validation status = %d, want 400", resp.StatusCode)
	}
	body := decode[errResponse](t, resp)
	if body.Code != "INVALID_INPUT" {
		t.Errorf("code = %q, want INVALID_INPUT", body.Code)
	}

	// Deleting an absent note is a 404.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/notes/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("not-found status = %d, want 404", resp.StatusCode)
	}

	// Deleting a folder that still holds a note is a 409.
	resp = doJSON(t, http.MethodPost, srv.URL+"/folders", CreateFolderRequest{UserID: "u", Name: "Full"})
	folder := decode[models.Folder](t, resp)
	doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{UserID: "u", Title: "inside", FolderID: &folder.ID})
	resp = doJSON(t, http.MethodDelete, srv.URL+"/folders/"+folder.ID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("conflict status = %d, want 409", resp.StatusCode)
	}
}

func TestRecentEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{UserID: "u", Title: "seen"})
	note := decode[models.Note](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/recent/"+note.ID+"?user_id=u", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("touch status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/recent?user_id=u", nil)
	recent := decode[struct {
		RecentNotes []models.RecentNote `json:"recent_notes"`
	}](t, resp)
	if len(recent.RecentNotes) != 1 || recent.RecentNotes[0].ID != note.ID {
		t.Errorf("recent = %+v", recent)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/recent?user_id=u", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
}

func TestProviderEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/provider", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status = %d", resp.StatusCode)
	}
	info := decode[struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}](t, resp)
	if info.Status != "connected" {
		t.Errorf("provider status = %q", info.Status)
	}

	// An invalid switch config is rejected before touching the provider.
	resp = doJSON(t, http.MethodPost, srv.URL+"/provider/switch",
		map[string]any{"kind": "sqlite"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("switch status = %d, want 400", resp.StatusCode)
	}
}

func TestExportImportOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/notes", CreateNoteRequest{UserID: "u", Title: "backed up"})

	resp := doJSON(t, http.MethodGet, srv.URL+"/export?user_id=u", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	var backup map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&backup); err != nil {
		t.Fatalf("decode export: %v", err)
	}

	// Re-importing into the same store collides but still answers 200
	// with per-record results.
	resp = doJSON(t, http.MethodPost, srv.URL+"/import", backup)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	res := decode[struct {
		Success bool `json:"success"`
	}](t, resp)
	if res.Success {
		t.Error("duplicate import should not report success")
	}
}

func TestAuthMiddleware(t *testing.T) {
	f := factory.New(testutil.DiscardLogger())
	t.Cleanup(func() { f.Close() })
	if _, err := f.CreateProvider(context.Background(), testutil.TestConfig(t)); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	srv := httptest.NewServer(NewRouter(f, true, "s3cret", nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/notes?user_id=u")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notes?user_id=u", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("token status = %d, want 200", resp.StatusCode)
	}
}
