package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/provider"
)

var _ provider.Tx = (*storeTx)(nil)

// storeTx is the transactional mutation surface. It reuses the entity
// helpers against the open *sql.Tx and never emits change events:
// callers observing events would see uncommitted state otherwise.
type storeTx struct {
	p  *Provider
	tx *sql.Tx
}

func (t *storeTx) CreateNote(ctx context.Context, in models.CreateNoteInput) (*models.Note, error) {
	return t.p.createNote(ctx, t.tx, "tx.create_note", in)
}

func (t *storeTx) UpdateNote(ctx context.Context, id string, in models.UpdateNoteInput) (*models.Note, error) {
	next, _, err := t.p.updateNote(ctx, t.tx, "tx.update_note", id, in)
	return next, err
}

func (t *storeTx) DeleteNote(ctx context.Context, id string) error {
	_, err := t.p.deleteNote(ctx, t.tx, "tx.delete_note", id)
	return err
}

func (t *storeTx) CreateFolder(ctx context.Context, in models.CreateFolderInput) (*models.Folder, error) {
	return t.p.createFolder(ctx, t.tx, "tx.create_folder", in)
}

func (t *storeTx) UpdateFolder(ctx context.Context, id string, in models.UpdateFolderInput) (*models.Folder, error) {
	next, _, err := t.p.updateFolder(ctx, t.tx, "tx.update_folder", id, in)
	return next, err
}

func (t *storeTx) DeleteFolder(ctx context.Context, id string) error {
	_, err := t.p.deleteFolder(ctx, t.tx, "tx.delete_folder", id)
	return err
}

// Rollback always fails: the only way to abort is returning an error
// from the transaction function.
func (t *storeTx) Rollback() error {
	return dberr.NotSupported(
		"manual rollback is not supported; return an error from the transaction function to abort",
		providerName, "tx.rollback")
}

// Transaction runs fn atomically: any error returned by fn rolls the
// whole batch back. Errors outside the shared taxonomy are reported as
// transaction failures with the cause preserved.
func (p *Provider) Transaction(ctx context.Context, fn func(provider.Tx) error) error {
	db, err := p.handle("transaction")
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return p.wrap(err, "transaction")
	}
	if err := fn(&storeTx{p: p, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.log.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		var de *dberr.Error
		if errors.As(err, &de) {
			return err
		}
		return dberr.Wrap(err, dberr.CodeTransactionFailed, providerName, "transaction", "transaction aborted")
	}
	if err := tx.Commit(); err != nil {
		return p.wrap(err, "transaction")
	}
	return nil
}
