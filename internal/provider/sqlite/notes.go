package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/query"
)

const noteCols = "id, user_id, title, content, tags, is_pinned, is_shared, folder_id, created_at, updated_at"

var noteSortCols = map[string]string{
	query.SortUpdatedAt: "updated_at",
	query.SortCreatedAt: "created_at",
	query.SortTitle:     "title",
}

func noteOrder(s query.Sort) string {
	col, ok := noteSortCols[s.By]
	if !ok {
		col = "updated_at"
	}
	return orderClause(col, s.Order)
}

func noteConds(f query.NoteFilter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if f.UserID != "" {
		conds = append(conds, sq.Eq{"user_id": f.UserID})
	}
	if c, ok := scopeCond("folder_id", f.Folder); ok {
		conds = append(conds, c)
	}
	if f.Pinned != nil {
		conds = append(conds, sq.Eq{"is_pinned": *f.Pinned})
	}
	if f.Shared != nil {
		conds = append(conds, sq.Eq{"is_shared": *f.Shared})
	}
	if len(f.Tags) > 0 {
		conds = append(conds, tagsCond(f.Tags))
	}
	if f.Search != "" {
		conds = append(conds, searchCond(f.Search))
	}
	if f.Updated != nil {
		conds = append(conds,
			sq.GtOrEq{"updated_at": f.Updated.Start.UTC()},
			sq.LtOrEq{"updated_at": f.Updated.End.UTC()})
	}
	return conds
}

func scanNote(s scanner) (*models.Note, error) {
	var n models.Note
	var tags string
	var folder sql.NullString
	if err := s.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &tags,
		&n.IsPinned, &n.IsShared, &folder, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, err
	}
	if folder.Valid {
		n.FolderID = &folder.String
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

// createNote validates, assigns identity and timestamps, and inserts.
func (p *Provider) createNote(ctx context.Context, q dbtx, op string, in models.CreateNoteInput) (*models.Note, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err, op)
	}
	now := time.Now().UTC()
	n := &models.Note{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		IsPinned:  in.IsPinned,
		IsShared:  in.IsShared,
		FolderID:  in.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	tags, err := json.Marshal(n.Tags)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO notes (`+noteCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Title, n.Content, string(tags),
		n.IsPinned, n.IsShared, nullable(n.FolderID), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	return n, nil
}

// getNote returns nil for an absent id; absence is not an error here.
func (p *Provider) getNote(ctx context.Context, q dbtx, op, id string) (*models.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteCols+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, p.wrap(err, op)
	}
	return n, nil
}

// updateNote merges a partial patch over the stored record. UpdatedAt
// strictly increases even when the clock has not moved.
func (p *Provider) updateNote(ctx context.Context, q dbtx, op, id string, in models.UpdateNoteInput) (updated, previous *models.Note, err error) {
	prev, err := p.getNote(ctx, q, op, id)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		return nil, nil, dberr.NotFound("notes", id, providerName, op)
	}

	next := *prev
	in.Apply(&next)
	if strings.TrimSpace(next.Title) == "" && strings.TrimSpace(next.Content) == "" {
		e := dberr.Invalid("note must have either title or content", "title", providerName, op)
		return nil, nil, e.In("notes").ForRecord(id)
	}
	now := time.Now().UTC()
	if !now.After(prev.UpdatedAt) {
		now = prev.UpdatedAt.Add(time.Millisecond)
	}
	next.UpdatedAt = now

	tags, err := json.Marshal(next.Tags)
	if err != nil {
		return nil, nil, p.wrap(err, op)
	}
	_, err = q.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, tags = ?, is_pinned = ?, is_shared = ?, folder_id = ?, updated_at = ? WHERE id = ?`,
		next.Title, next.Content, string(tags), next.IsPinned, next.IsShared,
		nullable(next.FolderID), next.UpdatedAt, id)
	if err != nil {
		return nil, nil, p.wrap(err, op)
	}
	return &next, prev, nil
}

// deleteNote removes a record and returns its last state.
func (p *Provider) deleteNote(ctx context.Context, q dbtx, op, id string) (*models.Note, error) {
	prev, err := p.getNote(ctx, q, op, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, dberr.NotFound("notes", id, providerName, op)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return nil, p.wrap(err, op)
	}
	return prev, nil
}

func (p *Provider) listNotes(ctx context.Context, q dbtx, op string, f query.NoteFilter) ([]models.Note, error) {
	b := sq.Select(noteCols).From("notes")
	for _, c := range noteConds(f) {
		b = b.Where(c)
	}
	b = paginate(b.OrderBy(noteOrder(f.Sort)), f.Page)

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, p.wrap(err, op)
	}
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, p.wrap(err, op)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrap(err, op)
	}
	return notes, nil
}

func (p *Provider) countNotes(ctx context.Context, q dbtx, op string, f query.NoteFilter) (int, error) {
	b := sq.Select("COUNT(*)").From("notes")
	for _, c := range noteConds(f) {
		b = b.Where(c)
	}
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return 0, p.wrap(err, op)
	}
	var n int
	if err := q.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, p.wrap(err, op)
	}
	return n, nil
}

// CreateNote stores a new note and emits a create event.
func (p *Provider) CreateNote(ctx context.Context, in models.CreateNoteInput) (*models.Note, error) {
	db, err := p.handle("create_note")
	if err != nil {
		return nil, err
	}
	n, err := p.createNote(ctx, db, "create_note", in)
	if err != nil {
		return nil, err
	}
	p.emit(events.TypeCreate, events.TableNotes, n, nil, []string{n.ID}, n.UserID)
	return n, nil
}

// Note returns the note with the given id, or nil when absent.
func (p *Provider) Note(ctx context.Context, id string) (*models.Note, error) {
	db, err := p.handle("get_note")
	if err != nil {
		return nil, err
	}
	return p.getNote(ctx, db, "get_note", id)
}

// Notes returns the notes matching the filter.
func (p *Provider) Notes(ctx context.Context, f query.NoteFilter) ([]models.Note, error) {
	db, err := p.handle("get_notes")
	if err != nil {
		return nil, err
	}
	return p.listNotes(ctx, db, "get_notes", f)
}

// NotesWithMeta returns matching notes together with pagination
// metadata. The total is counted before the page window is applied.
func (p *Provider) NotesWithMeta(ctx context.Context, f query.NoteFilter) (*query.Result[models.Note], error) {
	db, err := p.handle("get_notes")
	if err != nil {
		return nil, err
	}
	started := time.Now()
	total, err := p.countNotes(ctx, db, "get_notes", f)
	if err != nil {
		return nil, err
	}
	notes, err := p.listNotes(ctx, db, "get_notes", f)
	if err != nil {
		return nil, err
	}
	return &query.Result[models.Note]{
		Data: notes,
		Meta: query.NewMeta(total, len(notes), f.Page, started),
	}, nil
}

// UpdateNote applies a partial patch and emits an update event carrying
// both the new and the previous state.
func (p *Provider) UpdateNote(ctx context.Context, id string, in models.UpdateNoteInput) (*models.Note, error) {
	db, err := p.handle("update_note")
	if err != nil {
		return nil, err
	}
	next, prev, err := p.updateNote(ctx, db, "update_note", id, in)
	if err != nil {
		return nil, err
	}
	p.emit(events.TypeUpdate, events.TableNotes, next, prev, []string{id}, next.UserID)
	return next, nil
}

// DeleteNote removes a note and emits a delete event carrying the last
// state of the record.
func (p *Provider) DeleteNote(ctx context.Context, id string) error {
	db, err := p.handle("delete_note")
	if err != nil {
		return err
	}
	prev, err := p.deleteNote(ctx, db, "delete_note", id)
	if err != nil {
		return err
	}
	p.emit(events.TypeDelete, events.TableNotes, prev, nil, []string{id}, prev.UserID)
	return nil
}

// BulkCreateNotes stores all inputs atomically: one invalid input
// aborts the whole batch. A single bulk event covers the batch.
func (p *Provider) BulkCreateNotes(ctx context.Context, ins []models.CreateNoteInput) ([]models.Note, error) {
	db, err := p.handle("bulk_create_notes")
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return []models.Note{}, nil
	}
	notes := make([]models.Note, 0, len(ins))
	err = p.withTx(ctx, db, "bulk_create_notes", func(tx *sql.Tx) error {
		for _, in := range ins {
			n, err := p.createNote(ctx, tx, "bulk_create_notes", in)
			if err != nil {
				return err
			}
			notes = append(notes, *n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	p.emit(events.TypeBulkCreate, events.TableNotes, notes, nil, ids, notes[0].UserID)
	return notes, nil
}

// BulkUpdateNotes applies patches atomically, silently skipping ids
// that no longer exist.
func (p *Provider) BulkUpdateNotes(ctx context.Context, patches []provider.NotePatch) ([]models.Note, error) {
	db, err := p.handle("bulk_update_notes")
	if err != nil {
		return nil, err
	}
	var updated []models.Note
	var previous []models.Note
	err = p.withTx(ctx, db, "bulk_update_notes", func(tx *sql.Tx) error {
		for _, patch := range patches {
			next, prev, err := p.updateNote(ctx, tx, "bulk_update_notes", patch.ID, patch.Update)
			if dberr.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			updated = append(updated, *next)
			previous = append(previous, *prev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return []models.Note{}, nil
	}
	ids := make([]string, len(updated))
	for i, n := range updated {
		ids[i] = n.ID
	}
	p.emit(events.TypeBulkUpdate, events.TableNotes, updated, previous, ids, updated[0].UserID)
	return updated, nil
}

// BulkDeleteNotes removes the given ids atomically, silently skipping
// ids that no longer exist.
func (p *Provider) BulkDeleteNotes(ctx context.Context, ids []string) error {
	db, err := p.handle("bulk_delete_notes")
	if err != nil {
		return err
	}
	var deleted []models.Note
	err = p.withTx(ctx, db, "bulk_delete_notes", func(tx *sql.Tx) error {
		for _, id := range ids {
			prev, err := p.deleteNote(ctx, tx, "bulk_delete_notes", id)
			if dberr.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			deleted = append(deleted, *prev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return nil
	}
	affected := make([]string, len(deleted))
	for i, n := range deleted {
		affected[i] = n.ID
	}
	p.emit(events.TypeBulkDelete, events.TableNotes, deleted, nil, affected, deleted[0].UserID)
	return nil
}

// CountNotes counts notes matching the filter, ignoring pagination.
func (p *Provider) CountNotes(ctx context.Context, f query.NoteFilter) (int, error) {
	db, err := p.handle("count_notes")
	if err != nil {
		return 0, err
	}
	f.Page = query.Page{}
	return p.countNotes(ctx, db, "count_notes", f)
}

// NoteExists reports whether a note with the given id exists.
func (p *Provider) NoteExists(ctx context.Context, id string) (bool, error) {
	db, err := p.handle("note_exists")
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, p.wrap(err, "note_exists")
	}
	return exists, nil
}

// SearchNotes is a convenience wrapper over the filter engine's
// substring search.
func (p *Provider) SearchNotes(ctx context.Context, text, userID string, limit int) ([]models.Note, error) {
	return p.Notes(ctx, query.NoteFilter{
		UserID: userID,
		Search: text,
		Page:   query.Page{Limit: limit},
	})
}
