package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const folderCols = "id, user_id, name, color, parent_id, created_at, updated_at"

var folderSortCols = map[string]string{
	query.SortName:      "name",
	query.SortCreatedAt: "created_at",
	query.SortUpdatedAt: "updated_at",
}

func folderOrder(s query.Sort) string {
	col, ok := folderSortCols[s.By]
	if !ok {
		col = "name"
	}
	// Folders default to ascending, unlike notes.
	if s.Order == "" {
		return orderClause(col, query.Asc)
	}
	return orderClause(col, s.Order)
}

func folderConds(f query.FolderFilter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if f.UserID != "" {
		conds = append(conds, sq.Eq{"user_id": f.UserID})
	}
	if c, ok := scopeCond("parent_id", f.Parent); ok {
		conds = append(conds, c)
	}
	if f.NameContains != "" {
		conds = append(conds, sq.Expr("instr(lower(name), ?) > 0", strings.ToLower(f.NameContains)))
	}
	return conds
}

func scanFolder(s scanner) (*models.Folder, error) {
	var f models.Folder
	var color, parent sql.NullString
	if err := s.Scan(&f.ID, &f.UserID, &f.Name, &color, &parent,
		&f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if color.Valid {
		f.Color = &color.String
	}
	if parent.Valid {
		f.ParentID = &parent.String
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func (p *Provider) createFolder(ctx context.Context, q dbtx, op string, in models.CreateFolderInput) (*models.Folder, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err, op)
	}
	now := time.Now().UTC()
	f := &models.Folder{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      in.Name,
		Color:     in.Color,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO folders (`+folderCols+`) VALUES (?,?,?,?,?,?,?)`,
		f.ID, f.UserID, f.Name, nullable(f.Color), nullable(f.ParentID),
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	return f, nil
}

func (p *Provider) getFolder(ctx context.Context, q dbtx, op, id string) (*models.Folder, error) {
	row := q.QueryRowContext(ctx, `SELECT `+folderCols+` FROM folders WHERE id = ?`, id)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, p.wrap(err, op)
	}
	return f, nil
}

func (p *Provider) updateFolder(ctx context.Context, q dbtx, op, id string, in models.UpdateFolderInput) (updated, previous *models.Folder, err error) {
	prev, err := p.getFolder(ctx, q, op, id)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		return nil, nil, dberr.NotFound("folders", id, providerName, op)
	}
	if in.Parent.IsSet() {
		if pid := in.Parent.Apply(nil); pid != nil && *pid == id {
			e := dberr.Invalid("folder cannot be its own parent", "parent_id", providerName, op)
			return nil, nil, e.In("folders").ForRecord(id)
		}
	}

	next := *prev
	in.Apply(&next)
	now := time.Now().UTC()
	if !now.After(prev.UpdatedAt) {
		now = prev.UpdatedAt.Add(time.Millisecond)
	}
	next.UpdatedAt = now

	_, err = q.ExecContext(ctx,
		`UPDATE folders SET name = ?, color = ?, parent_id = ?, updated_at = ? WHERE id = ?`,
		next.Name, nullable(next.Color), nullable(next.ParentID), next.UpdatedAt, id)
	if err != nil {
		return nil, nil, p.wrap(err, op)
	}
	return &next, prev, nil
}

// deleteFolder refuses to remove a folder that still holds notes or
// child folders; nothing is mutated on refusal.
func (p *Provider) deleteFolder(ctx context.Context, q dbtx, op, id string) (*models.Folder, error) {
	prev, err := p.getFolder(ctx, q, op, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, dberr.NotFound("folders", id, providerName, op)
	}

	var notes int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE folder_id = ?`, id).Scan(&notes); err != nil {
		return nil, p.wrap(err, op)
	}
	if notes > 0 {
		return nil, dberr.Conflict(
			fmt.Sprintf("folder still contains %d notes", notes),
			"folders", id, providerName, op)
	}
	var children int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return nil, p.wrap(err, op)
	}
	if children > 0 {
		return nil, dberr.Conflict(
			fmt.Sprintf("folder still contains %d subfolders", children),
			"folders", id, providerName, op)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return nil, p.wrap(err, op)
	}
	return prev, nil
}

func (p *Provider) listFolders(ctx context.Context, q dbtx, op string, f query.FolderFilter) ([]models.Folder, error) {
	b := sq.Select(folderCols).From("folders")
	for _, c := range folderConds(f) {
		b = b.Where(c)
	}
	b = paginate(b.OrderBy(folderOrder(f.Sort)), f.Page)

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, p.wrap(err, op)
	}
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, p.wrap(err, op)
	}
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		fo, err := scanFolder(rows)
		if err != nil {
			return nil, p.wrap(err, op)
		}
		folders = append(folders, *fo)
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrap(err, op)
	}
	return folders, nil
}

func (p *Provider) countFolders(ctx context.Context, q dbtx, op string, f query.FolderFilter) (int, error) {
	b := sq.Select("COUNT(*)").From("folders")
	for _, c := range folderConds(f) {
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

// CreateFolder stores a new folder and emits a create event.
func (p *Provider) CreateFolder(ctx context.Context, in models.CreateFolderInput) (*models.Folder, error) {
	db, err := p.handle("create_folder")
	if err != nil {
		return nil, err
	}
	f, err := p.createFolder(ctx, db, "create_folder", in)
	if err != nil {
		return nil, err
	}
	p.emit(events.TypeCreate, events.TableFolders, f, nil, []string{f.ID}, f.UserID)
	return f, nil
}

// Folder returns the folder with the given id, or nil when absent.
func (p *Provider) Folder(ctx context.Context, id string) (*models.Folder, error) {
	db, err := p.handle("get_folder")
	if err != nil {
		return nil, err
	}
	return p.getFolder(ctx, db, "get_folder", id)
}

// Folders returns the folders matching the filter.
func (p *Provider) Folders(ctx context.Context, f query.FolderFilter) ([]models.Folder, error) {
	db, err := p.handle("get_folders")
	if err != nil {
		return nil, err
	}
	return p.listFolders(ctx, db, "get_folders", f)
}

// FoldersWithMeta returns matching folders with pagination metadata.
func (p *Provider) FoldersWithMeta(ctx context.Context, f query.FolderFilter) (*query.Result[models.Folder], error) {
	db, err := p.handle("get_folders")
	if err != nil {
		return nil, err
	}
	started := time.Now()
	total, err := p.countFolders(ctx, db, "get_folders", f)
	if err != nil {
		return nil, err
	}
	folders, err := p.listFolders(ctx, db, "get_folders", f)
	if err != nil {
		return nil, err
	}
	return &query.Result[models.Folder]{
		Data: folders,
		Meta: query.NewMeta(total, len(folders), f.Page, started),
	}, nil
}

// UpdateFolder applies a partial patch and emits an update event.
func (p *Provider) UpdateFolder(ctx context.Context, id string, in models.UpdateFolderInput) (*models.Folder, error) {
	db, err := p.handle("update_folder")
	if err != nil {
		return nil, err
	}
	next, prev, err := p.updateFolder(ctx, db, "update_folder", id, in)
	if err != nil {
		return nil, err
	}
	p.emit(events.TypeUpdate, events.TableFolders, next, prev, []string{id}, next.UserID)
	return next, nil
}

// DeleteFolder removes an empty folder and emits a delete event.
// Folders that still hold notes or subfolders are refused with a
// conflict error and left untouched.
func (p *Provider) DeleteFolder(ctx context.Context, id string) error {
	db, err := p.handle("delete_folder")
	if err != nil {
		return err
	}
	var prev *models.Folder
	err = p.withTx(ctx, db, "delete_folder", func(tx *sql.Tx) error {
		var err error
		prev, err = p.deleteFolder(ctx, tx, "delete_folder", id)
		return err
	})
	if err != nil {
		return err
	}
	p.emit(events.TypeDelete, events.TableFolders, prev, nil, []string{id}, prev.UserID)
	return nil
}

// BulkCreateFolders stores all inputs atomically.
func (p *Provider) BulkCreateFolders(ctx context.Context, ins []models.CreateFolderInput) ([]models.Folder, error) {
	db, err := p.handle("bulk_create_folders")
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return []models.Folder{}, nil
	}
	folders := make([]models.Folder, 0, len(ins))
	err = p.withTx(ctx, db, "bulk_create_folders", func(tx *sql.Tx) error {
		for _, in := range ins {
			f, err := p.createFolder(ctx, tx, "bulk_create_folders", in)
			if err != nil {
				return err
			}
			folders = append(folders, *f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	p.emit(events.TypeBulkCreate, events.TableFolders, folders, nil, ids, folders[0].UserID)
	return folders, nil
}

// BulkUpdateFolders applies patches atomically, skipping absent ids.
func (p *Provider) BulkUpdateFolders(ctx context.Context, patches []provider.FolderPatch) ([]models.Folder, error) {
	db, err := p.handle("bulk_update_folders")
	if err != nil {
		return nil, err
	}
	var updated []models.Folder
	var previous []models.Folder
	err = p.withTx(ctx, db, "bulk_update_folders", func(tx *sql.Tx) error {
		for _, patch := range patches {
			next, prev, err := p.updateFolder(ctx, tx, "bulk_update_folders", patch.ID, patch.Update)
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
		return []models.Folder{}, nil
	}
	ids := make([]string, len(updated))
	for i, f := range updated {
		ids[i] = f.ID
	}
	p.emit(events.TypeBulkUpdate, events.TableFolders, updated, previous, ids, updated[0].UserID)
	return updated, nil
}

// BulkDeleteFolders removes the given ids atomically. Absent ids are
// skipped; a non-empty folder anywhere in the batch aborts it whole.
func (p *Provider) BulkDeleteFolders(ctx context.Context, ids []string) error {
	db, err := p.handle("bulk_delete_folders")
	if err != nil {
		return err
	}
	var deleted []models.Folder
	err = p.withTx(ctx, db, "bulk_delete_folders", func(tx *sql.Tx) error {
		for _, id := range ids {
			prev, err := p.deleteFolder(ctx, tx, "bulk_delete_folders", id)
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
	for i, f := range deleted {
		affected[i] = f.ID
	}
	p.emit(events.TypeBulkDelete, events.TableFolders, deleted, nil, affected, deleted[0].UserID)
	return nil
}

// CountFolders counts folders matching the filter, ignoring pagination.
func (p *Provider) CountFolders(ctx context.Context, f query.FolderFilter) (int, error) {
	db, err := p.handle("count_folders")
	if err != nil {
		return 0, err
	}
	f.Page = query.Page{}
	return p.countFolders(ctx, db, "count_folders", f)
}

// FolderExists reports whether a folder with the given id exists.
func (p *Provider) FolderExists(ctx context.Context, id string) (bool, error) {
	db, err := p.handle("folder_exists")
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM folders WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, p.wrap(err, "folder_exists")
	}
	return exists, nil
}
