package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/query"
)

func TestCreateAndGetNote(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	n := mustCreateNote(t, p, models.CreateNoteInput{
		UserID:  "alice",
		Title:   "Groceries",
		Content: "milk, eggs",
		Tags:    []string{"errands"},
	})
	if n.ID == "" {
		t.Fatal("engine should assign an id")
	}
	if n.CreatedAt.IsZero() || !n.UpdatedAt.Equal(n.CreatedAt) {
		t.Errorf("timestamps = (%v, %v)", n.CreatedAt, n.UpdatedAt)
	}

	got, err := p.Note(ctx, n.ID)
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if got == nil {
		t.Fatal("stored note not found")
	}
	if got.Title != "Groceries" || got.Content != "milk, eggs" || got.UserID != "alice" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "errands" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.FolderID != nil {
		t.Errorf("unfiled note should have nil folder, got %v", got.FolderID)
	}

	absent, err := p.Note(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("Note(absent): %v", err)
	}
	if absent != nil {
		t.Error("absent id should return nil, not an error")
	}
}

func TestCreateNoteNilTagsBecomeEmpty(t *testing.T) {
	p := testProvider(t)
	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "t"})
	if n.Tags == nil || len(n.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil slice", n.Tags)
	}
	got, _ := p.Note(context.Background(), n.ID)
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("stored tags = %#v, want empty non-nil slice", got.Tags)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	_, err := p.CreateNote(ctx, models.CreateNoteInput{UserID: "u"})
	if !dberr.IsCode(err, dberr.CodeInvalidInput) {
		t.Errorf("empty note = %v, want INVALID_INPUT", err)
	}

	_, err = p.CreateNote(ctx, models.CreateNoteInput{Title: "no owner"})
	if !dberr.IsCode(err, dberr.CodeRequiredField) {
		t.Errorf("missing user = %v, want REQUIRED_FIELD", err)
	}
}

func TestUpdateNoteMerge(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	folder, err := p.CreateFolder(ctx, models.CreateFolderInput{UserID: "u", Name: "Work"})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	n := mustCreateNote(t, p, models.CreateNoteInput{
		UserID: "u", Title: "draft", Content: "body", FolderID: &folder.ID,
	})

	title := "final"
	got, err := p.UpdateNote(ctx, n.ID, models.UpdateNoteInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if got.Title != "final" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != "body" {
		t.Errorf("unpatched content changed: %q", got.Content)
	}
	if got.FolderID == nil || *got.FolderID != folder.ID {
		t.Error("unpatched folder assignment changed")
	}
	if !got.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("UpdatedAt must strictly increase: %v -> %v", n.UpdatedAt, got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) {
		t.Error("CreatedAt must never change")
	}

	// Move to root via the explicit-null patch.
	got, err = p.UpdateNote(ctx, n.ID, models.UpdateNoteInput{Folder: models.ClearRef()})
	if err != nil {
		t.Fatalf("UpdateNote(clear folder): %v", err)
	}
	if got.FolderID != nil {
		t.Error("ClearRef should unfile the note")
	}
}

func TestUpdateNoteCannotEmptyOut(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "only title"})

	empty := ""
	_, err := p.UpdateNote(ctx, n.ID, models.UpdateNoteInput{Title: &empty})
	if !dberr.IsCode(err, dberr.CodeInvalidInput) {
		t.Fatalf("emptying update = %v, want INVALID_INPUT", err)
	}

	got, _ := p.Note(ctx, n.ID)
	if got.Title != "only title" {
		t.Error("rejected update must not mutate the record")
	}
}

func TestUpdateNoteNotFound(t *testing.T) {
	title := "x"
	_, err := testProvider(t).UpdateNote(context.Background(), "ghost",
		models.UpdateNoteInput{Title: &title})
	if !dberr.IsNotFound(err) {
		t.Errorf("err = %v, want RECORD_NOT_FOUND", err)
	}
}

func TestDeleteNote(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "bye"})

	if err := p.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	got, _ := p.Note(ctx, n.ID)
	if got != nil {
		t.Error("deleted note still readable")
	}
	if err := p.DeleteNote(ctx, n.ID); !dberr.IsNotFound(err) {
		t.Errorf("second delete = %v, want RECORD_NOT_FOUND", err)
	}
}

// seedNotes loads the shared filtering fixture: two users, a folder,
// pins, tags, and distinctive text.
func seedNotes(t *testing.T, p *Provider) (folderID string, ids map[string]string) {
	t.Helper()
	ctx := context.Background()
	folder, err := p.CreateFolder(ctx, models.CreateFolderInput{UserID: "alice", Name: "Work"})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	pin := true
	ids = make(map[string]string)
	for _, in := range []struct {
		key string
		in  models.CreateNoteInput
	}{
		{"market", models.CreateNoteInput{UserID: "alice", Title: "Market research", Content: "competitor analysis", Tags: []string{"work", "research"}}},
		{"pinned", models.CreateNoteInput{UserID: "alice", Title: "Pinned ideas", Content: "brainstorm", Tags: []string{"ideas"}, IsPinned: pin, FolderID: &folder.ID}},
		{"recipe", models.CreateNoteInput{UserID: "alice", Title: "Pancake recipe", Content: "flour and MILK", Tags: []string{"cooking"}}},
		{"bobs", models.CreateNoteInput{UserID: "bob", Title: "Market shopping", Content: "bread", Tags: []string{"errands"}}},
	} {
		n := mustCreateNote(t, p, in.in)
		ids[in.key] = n.ID
	}
	return folder.ID, ids
}

func TestNoteFilters(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	folderID, ids := seedNotes(t, p)

	t.Run("user scope", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice"})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 3 {
			t.Errorf("alice has %d notes, want 3", len(notes))
		}
	})

	t.Run("folder id", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Folder: query.ID(folderID)})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 1 || notes[0].ID != ids["pinned"] {
			t.Errorf("folder filter returned %d notes", len(notes))
		}
	})

	t.Run("root folder", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Folder: query.Root()})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 2 {
			t.Errorf("root filter returned %d notes, want 2", len(notes))
		}
	})

	t.Run("tags are OR", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{
			UserID: "alice", Tags: []string{"research", "cooking"},
		})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 2 {
			t.Errorf("tag OR filter returned %d notes, want 2", len(notes))
		}
	})

	t.Run("pinned", func(t *testing.T) {
		pinned := true
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Pinned: &pinned})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 1 || notes[0].ID != ids["pinned"] {
			t.Errorf("pinned filter returned %d notes", len(notes))
		}
	})

	t.Run("search is case-insensitive over title and content", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Search: "market"})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 1 || notes[0].ID != ids["market"] {
			t.Errorf("search title returned %d notes", len(notes))
		}
		notes, err = p.Notes(ctx, query.NoteFilter{UserID: "alice", Search: "milk"})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 1 || notes[0].ID != ids["recipe"] {
			t.Errorf("search content returned %d notes", len(notes))
		}
	})

	t.Run("search matches tags", func(t *testing.T) {
		notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Search: "cooking"})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 1 || notes[0].ID != ids["recipe"] {
			t.Errorf("search tag returned %d notes", len(notes))
		}
	})

	t.Run("search ignores tag serialization punctuation", func(t *testing.T) {
		for _, text := range []string{`","`, `"`, "[", "research\",\"cooking"} {
			notes, err := p.Notes(ctx, query.NoteFilter{UserID: "alice", Search: text})
			if err != nil {
				t.Fatalf("Notes(%q): %v", text, err)
			}
			if len(notes) != 0 {
				t.Errorf("search %q returned %d notes, want 0", text, len(notes))
			}
		}
	})

	t.Run("updated range", func(t *testing.T) {
		now := time.Now().UTC()
		notes, err := p.Notes(ctx, query.NoteFilter{
			UserID:  "alice",
			Updated: &query.Range{Start: now.Add(-time.Hour), End: now.Add(time.Hour)},
		})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 3 {
			t.Errorf("wide range returned %d notes, want 3", len(notes))
		}
		notes, err = p.Notes(ctx, query.NoteFilter{
			UserID:  "alice",
			Updated: &query.Range{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)},
		})
		if err != nil {
			t.Fatalf("Notes: %v", err)
		}
		if len(notes) != 0 {
			t.Errorf("future range returned %d notes, want 0", len(notes))
		}
	})
}

func TestNotesPaginationMeta(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	for i := 0; i < 5; i++ {
		mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "note", Content: "x"})
	}

	res, err := p.NotesWithMeta(ctx, query.NoteFilter{UserID: "u", Page: query.Page{Limit: 2}})
	if err != nil {
		t.Fatalf("NotesWithMeta: %v", err)
	}
	if res.Meta.TotalCount != 5 || res.Meta.FilteredCount != 2 || !res.Meta.HasMore {
		t.Errorf("meta = %+v, want total 5, filtered 2, hasMore", res.Meta)
	}

	res, err = p.NotesWithMeta(ctx, query.NoteFilter{UserID: "u", Page: query.Page{Limit: 2, Offset: 4}})
	if err != nil {
		t.Fatalf("NotesWithMeta: %v", err)
	}
	if res.Meta.FilteredCount != 1 || res.Meta.HasMore {
		t.Errorf("last page meta = %+v, want filtered 1, no more", res.Meta)
	}

	// Offset without limit returns the tail and never reports more.
	res, err = p.NotesWithMeta(ctx, query.NoteFilter{UserID: "u", Page: query.Page{Offset: 3}})
	if err != nil {
		t.Fatalf("NotesWithMeta: %v", err)
	}
	if res.Meta.FilteredCount != 2 || res.Meta.HasMore {
		t.Errorf("offset-only meta = %+v, want filtered 2, no more", res.Meta)
	}
}

func TestNotesSort(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	for _, title := range []string{"banana", "apple", "cherry"} {
		mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: title})
	}

	notes, err := p.Notes(ctx, query.NoteFilter{
		UserID: "u",
		Sort:   query.Sort{By: query.SortTitle, Order: query.Asc},
	})
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if notes[0].Title != "apple" || notes[2].Title != "cherry" {
		t.Errorf("title asc order = [%s %s %s]", notes[0].Title, notes[1].Title, notes[2].Title)
	}
}

func TestBulkCreateNotesAtomic(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	_, err := p.BulkCreateNotes(ctx, []models.CreateNoteInput{
		{UserID: "u", Title: "ok"},
		{UserID: "u"}, // invalid: empty note
	})
	if !dberr.IsValidation(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	count, err := p.CountNotes(ctx, query.NoteFilter{UserID: "u"})
	if err != nil {
		t.Fatalf("CountNotes: %v", err)
	}
	if count != 0 {
		t.Errorf("aborted batch left %d notes, want 0", count)
	}

	notes, err := p.BulkCreateNotes(ctx, []models.CreateNoteInput{
		{UserID: "u", Title: "a"},
		{UserID: "u", Title: "b"},
	})
	if err != nil {
		t.Fatalf("BulkCreateNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Errorf("created %d notes, want 2", len(notes))
	}
}

func TestBulkUpdateAndDeleteSkipMissing(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "keep"})

	var bulkEvents []events.Event
	unsub, _ := p.SubscribeChanges(func(e events.Event) { bulkEvents = append(bulkEvents, e) },
		events.ForTypes(events.TypeBulkUpdate, events.TypeBulkDelete))
	defer unsub()

	title := "kept"
	updated, err := p.BulkUpdateNotes(ctx, []provider.NotePatch{
		{ID: n.ID, Update: models.UpdateNoteInput{Title: &title}},
		{ID: "ghost", Update: models.UpdateNoteInput{Title: &title}},
	})
	if err != nil {
		t.Fatalf("BulkUpdateNotes: %v", err)
	}
	if len(updated) != 1 || updated[0].Title != "kept" {
		t.Errorf("updated = %+v", updated)
	}

	if err := p.BulkDeleteNotes(ctx, []string{n.ID, "ghost"}); err != nil {
		t.Fatalf("BulkDeleteNotes: %v", err)
	}
	if got, _ := p.Note(ctx, n.ID); got != nil {
		t.Error("bulk delete missed an existing note")
	}

	if len(bulkEvents) != 2 {
		t.Fatalf("saw %d bulk events, want 2", len(bulkEvents))
	}
	if bulkEvents[0].Type != events.TypeBulkUpdate || bulkEvents[1].Type != events.TypeBulkDelete {
		t.Errorf("event types = %s, %s", bulkEvents[0].Type, bulkEvents[1].Type)
	}
	if len(bulkEvents[1].AffectedIDs) != 1 || bulkEvents[1].AffectedIDs[0] != n.ID {
		t.Errorf("bulk delete affected = %v", bulkEvents[1].AffectedIDs)
	}
}

func TestCountExistsSearch(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "findable gem"})

	count, err := p.CountNotes(ctx, query.NoteFilter{UserID: "u"})
	if err != nil || count != 1 {
		t.Errorf("CountNotes = (%d, %v), want (1, nil)", count, err)
	}

	ok, err := p.NoteExists(ctx, n.ID)
	if err != nil || !ok {
		t.Errorf("NoteExists = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = p.NoteExists(ctx, "ghost")
	if err != nil || ok {
		t.Errorf("NoteExists(ghost) = (%v, %v), want (false, nil)", ok, err)
	}

	notes, err := p.SearchNotes(ctx, "GEM", "u", 10)
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Errorf("search returned %d notes", len(notes))
	}
}
