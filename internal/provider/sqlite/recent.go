package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/query"
)

const recentCols = "id, user_id, title, accessed_at"

func scanRecent(s scanner) (*models.RecentNote, error) {
	var r models.RecentNote
	if err := s.Scan(&r.ID, &r.UserID, &r.Title, &r.AccessedAt); err != nil {
		return nil, err
	}
	r.AccessedAt = r.AccessedAt.UTC()
	return &r, nil
}

// clampRecentLimit folds non-positive and oversized limits into the
// retention bound.
func clampRecentLimit(limit int) int {
	if limit <= 0 || limit > models.RecentNotesLimit {
		return models.RecentNotesLimit
	}
	return limit
}

// TouchRecentNote records an access to note for userID: any existing
// entry for the same note is replaced, the new entry moves to the
// front, and the list is trimmed to the retention bound. The note's
// title is denormalized into the entry at access time.
func (p *Provider) TouchRecentNote(ctx context.Context, note models.Note, userID string) error {
	db, err := p.handle("touch_recent_note")
	if err != nil {
		return err
	}
	entry := models.RecentNote{
		ID:         note.ID,
		UserID:     userID,
		Title:      note.Title,
		AccessedAt: time.Now().UTC(),
	}
	err = p.withTx(ctx, db, "touch_recent_note", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recent_notes WHERE id = ? AND user_id = ?`,
			entry.ID, entry.UserID); err != nil {
			return p.wrap(err, "touch_recent_note")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recent_notes (`+recentCols+`) VALUES (?,?,?,?)`,
			entry.ID, entry.UserID, entry.Title, entry.AccessedAt); err != nil {
			return p.wrap(err, "touch_recent_note")
		}
		// Trim beyond the retention bound, newest first. Ties on
		// accessed_at break on insertion order.
		_, err := tx.ExecContext(ctx,
			`DELETE FROM recent_notes WHERE user_id = ? AND id NOT IN (
				SELECT id FROM recent_notes WHERE user_id = ?
				ORDER BY accessed_at DESC, rowid DESC LIMIT ?)`,
			entry.UserID, entry.UserID, models.RecentNotesLimit)
		if err != nil {
			return p.wrap(err, "touch_recent_note")
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.emit(events.TypeCreate, events.TableRecentNotes, &entry, nil, []string{entry.ID}, entry.UserID)
	return nil
}

func (p *Provider) listRecent(ctx context.Context, q dbtx, op, userID string, limit int) ([]models.RecentNote, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+recentCols+` FROM recent_notes WHERE user_id = ?
		 ORDER BY accessed_at DESC, rowid DESC LIMIT ?`,
		userID, clampRecentLimit(limit))
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

// RecentNotes returns the user's most recently accessed notes, newest
// first. The limit never exceeds the retention bound.
func (p *Provider) RecentNotes(ctx context.Context, userID string, limit int) ([]models.RecentNote, error) {
	db, err := p.handle("get_recent_notes")
	if err != nil {
		return nil, err
	}
	return p.listRecent(ctx, db, "get_recent_notes", userID, limit)
}

// RecentNotesWithMeta returns recent entries with result metadata.
func (p *Provider) RecentNotesWithMeta(ctx context.Context, f query.RecentFilter) (*query.Result[models.RecentNote], error) {
	db, err := p.handle("get_recent_notes")
	if err != nil {
		return nil, err
	}
	started := time.Now()
	var total int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recent_notes WHERE user_id = ?`, f.UserID).Scan(&total)
	if err != nil {
		return nil, p.wrap(err, "get_recent_notes")
	}
	entries, err := p.listRecent(ctx, db, "get_recent_notes", f.UserID, f.Limit)
	if err != nil {
		return nil, err
	}
	return &query.Result[models.RecentNote]{
		Data: entries,
		Meta: query.NewMeta(total, len(entries), query.Page{Limit: clampRecentLimit(f.Limit)}, started),
	}, nil
}

// ClearRecentNotes drops the user's whole recent list.
func (p *Provider) ClearRecentNotes(ctx context.Context, userID string) error {
	db, err := p.handle("clear_recent_notes")
	if err != nil {
		return err
	}
	var cleared []models.RecentNote
	err = p.withTx(ctx, db, "clear_recent_notes", func(tx *sql.Tx) error {
		var err error
		cleared, err = p.listRecent(ctx, tx, "clear_recent_notes", userID, models.RecentNotesLimit)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recent_notes WHERE user_id = ?`, userID); err != nil {
			return p.wrap(err, "clear_recent_notes")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(cleared) == 0 {
		return nil
	}
	ids := make([]string, len(cleared))
	for i, r := range cleared {
		ids[i] = r.ID
	}
	p.emit(events.TypeBulkDelete, events.TableRecentNotes, cleared, nil, ids, userID)
	return nil
}
