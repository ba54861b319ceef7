package sqlite

import (
	"context"
	"testing"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/query"
)

func mustCreateFolder(t *testing.T, p *Provider, in models.CreateFolderInput) *models.Folder {
	t.Helper()
	f, err := p.CreateFolder(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	return f
}

func TestFolderCRUD(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	color := "#ff0000"
	f := mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Work", Color: &color})
	if f.ID == "" || f.Color == nil || *f.Color != "#ff0000" {
		t.Fatalf("created folder = %+v", f)
	}

	got, err := p.Folder(ctx, f.ID)
	if err != nil || got == nil {
		t.Fatalf("Folder = (%+v, %v)", got, err)
	}
	if got.Name != "Work" {
		t.Errorf("name = %q", got.Name)
	}

	name := "Projects"
	updated, err := p.UpdateFolder(ctx, f.ID, models.UpdateFolderInput{Name: &name})
	if err != nil {
		t.Fatalf("UpdateFolder: %v", err)
	}
	if updated.Name != "Projects" {
		t.Errorf("updated name = %q", updated.Name)
	}
	if updated.Color == nil || *updated.Color != "#ff0000" {
		t.Error("unpatched color changed")
	}
	if !updated.UpdatedAt.After(f.UpdatedAt) {
		t.Error("UpdatedAt must strictly increase")
	}

	if err := p.DeleteFolder(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if got, _ := p.Folder(ctx, f.ID); got != nil {
		t.Error("deleted folder still readable")
	}
}

func TestFolderCreateValidation(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	if _, err := p.CreateFolder(ctx, models.CreateFolderInput{UserID: "u"}); !dberr.IsCode(err, dberr.CodeRequiredField) {
		t.Errorf("missing name = %v, want REQUIRED_FIELD", err)
	}
}

func TestDeleteFolderGuards(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	t.Run("with notes", func(t *testing.T) {
		f := mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Full"})
		mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "inside", FolderID: &f.ID})

		err := p.DeleteFolder(ctx, f.ID)
		if !dberr.IsCode(err, dberr.CodeForeignKeyViolation) {
			t.Fatalf("err = %v, want FOREIGN_KEY_VIOLATION", err)
		}
		if got, _ := p.Folder(ctx, f.ID); got == nil {
			t.Error("refused delete must not mutate the folder")
		}
	})

	t.Run("with subfolders", func(t *testing.T) {
		parent := mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Parent"})
		mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Child", ParentID: &parent.ID})

		err := p.DeleteFolder(ctx, parent.ID)
		if !dberr.IsCode(err, dberr.CodeForeignKeyViolation) {
			t.Fatalf("err = %v, want FOREIGN_KEY_VIOLATION", err)
		}
		if got, _ := p.Folder(ctx, parent.ID); got == nil {
			t.Error("refused delete must not mutate the folder")
		}
	})

	t.Run("absent", func(t *testing.T) {
		if err := p.DeleteFolder(ctx, "ghost"); !dberr.IsNotFound(err) {
			t.Errorf("err = %v, want RECORD_NOT_FOUND", err)
		}
	})
}

func TestFolderSelfParentRejected(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	f := mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Loop"})

	_, err := p.UpdateFolder(ctx, f.ID, models.UpdateFolderInput{Parent: models.ToRef(f.ID)})
	if !dberr.IsCode(err, dberr.CodeInvalidInput) {
		t.Errorf("self-parent = %v, want INVALID_INPUT", err)
	}
}

func TestFolderFilters(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	top := mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Top"})
	mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Nested work", ParentID: &top.ID})
	mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: "Another top"})
	mustCreateFolder(t, p, models.CreateFolderInput{UserID: "other", Name: "Elsewhere"})

	folders, err := p.Folders(ctx, query.FolderFilter{UserID: "u", Parent: query.Root()})
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 2 {
		t.Errorf("root folders = %d, want 2", len(folders))
	}
	// Default order is name ascending.
	if folders[0].Name != "Another top" || folders[1].Name != "Top" {
		t.Errorf("order = [%s %s]", folders[0].Name, folders[1].Name)
	}

	folders, err = p.Folders(ctx, query.FolderFilter{UserID: "u", Parent: query.ID(top.ID)})
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Nested work" {
		t.Errorf("children = %+v", folders)
	}

	folders, err = p.Folders(ctx, query.FolderFilter{UserID: "u", NameContains: "WORK"})
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Nested work" {
		t.Errorf("name filter = %+v", folders)
	}

	count, err := p.CountFolders(ctx, query.FolderFilter{UserID: "u"})
	if err != nil || count != 3 {
		t.Errorf("CountFolders = (%d, %v), want (3, nil)", count, err)
	}

	ok, err := p.FolderExists(ctx, top.ID)
	if err != nil || !ok {
		t.Errorf("FolderExists = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestFoldersWithMeta(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)
	for _, name := range []string{"a", "b", "c"} {
		mustCreateFolder(t, p, models.CreateFolderInput{UserID: "u", Name: name})
	}

	res, err := p.FoldersWithMeta(ctx, query.FolderFilter{UserID: "u", Page: query.Page{Limit: 2}})
	if err != nil {
		t.Fatalf("FoldersWithMeta: %v", err)
	}
	if res.Meta.TotalCount != 3 || res.Meta.FilteredCount != 2 || !res.Meta.HasMore {
		t.Errorf("meta = %+v", res.Meta)
	}
}
