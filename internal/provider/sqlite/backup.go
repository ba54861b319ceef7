package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/lightnote/internal/checksum"
	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/query"
)

// ExportData produces a versioned snapshot. An empty userID exports
// every user's records.
func (p *Provider) ExportData(ctx context.Context, userID string) (*provider.Backup, error) {
	db, err := p.handle("export_data")
	if err != nil {
		return nil, err
	}

	notes, err := p.listNotes(ctx, db, "export_data", query.NoteFilter{
		UserID: userID,
		Sort:   query.Sort{By: query.SortCreatedAt, Order: query.Asc},
	})
	if err != nil {
		return nil, err
	}
	folders, err := p.listFolders(ctx, db, "export_data", query.FolderFilter{
		UserID: userID,
		Sort:   query.Sort{By: query.SortCreatedAt, Order: query.Asc},
	})
	if err != nil {
		return nil, err
	}
	recent, err := p.listAllRecent(ctx, db, "export_data", userID)
	if err != nil {
		return nil, err
	}

	data := provider.BackupData{Notes: notes, Folders: folders, RecentNotes: recent}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, p.wrap(err, "export_data")
	}
	return &provider.Backup{
		Version:   provider.BackupVersion,
		CreatedAt: time.Now().UTC(),
		UserID:    userID,
		Data:      data,
		Meta: provider.BackupMeta{
			TotalNotes:   len(notes),
			TotalFolders: len(folders),
			SizeBytes:    len(raw),
			Checksum:     checksum.Sum(raw),
		},
	}, nil
}

// listAllRecent ignores the retention bound: a snapshot carries the
// full table, not the display window.
func (p *Provider) listAllRecent(ctx context.Context, q dbtx, op, userID string) ([]models.RecentNote, error) {
	sqlStr := `SELECT ` + recentCols + ` FROM recent_notes ORDER BY accessed_at DESC, rowid DESC`
	args := []any{}
	if userID != "" {
		sqlStr = `SELECT ` + recentCols + ` FROM recent_notes WHERE user_id = ? ORDER BY accessed_at DESC, rowid DESC`
		args = append(args, userID)
	}
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	defer rows.Close()

	entries := make([]models.RecentNote, 0)
	for rows.Next() {
		r, err := scanRecent(rows)
		if err != nil {
			return nil, p.wrap(err, op)
		}
		entries = append(entries, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrap(err, op)
	}
	return entries, nil
}

// ImportData replays a snapshot into the store. Record identities and
// timestamps are preserved so folder references stay intact; folders
// load before the notes that point at them. A record that cannot be
// stored is skipped and reported, never aborting the rest.
func (p *Provider) ImportData(ctx context.Context, b *provider.Backup) (*provider.ImportResult, error) {
	db, err := p.handle("import_data")
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, dberr.Invalid("backup is empty", "", providerName, "import_data")
	}
	if !strings.HasPrefix(b.Version, "1.") {
		return nil, dberr.NotSupported(
			fmt.Sprintf("unsupported backup version %q", b.Version),
			providerName, "import_data")
	}
	if b.Meta.Checksum != "" {
		raw, err := json.Marshal(b.Data)
		if err != nil {
			return nil, p.wrap(err, "import_data")
		}
		if checksum.Sum(raw) != b.Meta.Checksum {
			return nil, dberr.New(dberr.CodeCorruption, providerName, "import_data",
				"backup checksum mismatch")
		}
	}

	res := &provider.ImportResult{ImportedAt: time.Now().UTC()}
	var noteIDs, folderIDs []string

	err = p.withTx(ctx, db, "import_data", func(tx *sql.Tx) error {
		for _, f := range b.Data.Folders {
			if err := p.insertFolderRecord(ctx, tx, f); err != nil {
				res.Skipped.Folders++
				res.Errors = append(res.Errors, fmt.Sprintf("folder %s: %v", f.ID, err))
				continue
			}
			res.Imported.Folders++
			folderIDs = append(folderIDs, f.ID)
		}
		for _, n := range b.Data.Notes {
			if err := p.insertNoteRecord(ctx, tx, n); err != nil {
				res.Skipped.Notes++
				res.Errors = append(res.Errors, fmt.Sprintf("note %s: %v", n.ID, err))
				continue
			}
			res.Imported.Notes++
			noteIDs = append(noteIDs, n.ID)
		}
		for _, r := range b.Data.RecentNotes {
			if err := p.insertRecentRecord(ctx, tx, r); err != nil {
				res.Skipped.RecentNotes++
				res.Errors = append(res.Errors, fmt.Sprintf("recent note %s: %v", r.ID, err))
				continue
			}
			res.Imported.RecentNotes++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Success = len(res.Errors) == 0

	if len(folderIDs) > 0 {
		p.emit(events.TypeBulkCreate, events.TableFolders, nil, nil, folderIDs, b.UserID)
	}
	if len(noteIDs) > 0 {
		p.emit(events.TypeBulkCreate, events.TableNotes, nil, nil, noteIDs, b.UserID)
	}
	return res, nil
}

func (p *Provider) insertNoteRecord(ctx context.Context, q dbtx, n models.Note) error {
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("missing id or user_id")
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	tags, err := json.Marshal(n.Tags)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO notes (`+noteCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Title, n.Content, string(tags),
		n.IsPinned, n.IsShared, nullable(n.FolderID),
		n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	return err
}

func (p *Provider) insertFolderRecord(ctx context.Context, q dbtx, f models.Folder) error {
	if f.ID == "" || f.UserID == "" {
		return fmt.Errorf("missing id or user_id")
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO folders (`+folderCols+`) VALUES (?,?,?,?,?,?,?)`,
		f.ID, f.UserID, f.Name, nullable(f.Color), nullable(f.ParentID),
		f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	return err
}

func (p *Provider) insertRecentRecord(ctx context.Context, q dbtx, r models.RecentNote) error {
	if r.ID == "" || r.UserID == "" {
		return fmt.Errorf("missing id or user_id")
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO recent_notes (`+recentCols+`) VALUES (?,?,?,?)`,
		r.ID, r.UserID, r.Title, r.AccessedAt.UTC())
	return err
}
