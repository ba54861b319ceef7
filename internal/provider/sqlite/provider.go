package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

// Provider is the embedded storage engine. A single instance owns one
// database handle and one change bus; it is safe for concurrent use.
type Provider struct {
	cfg provider.Config
	log *slog.Logger
	bus *events.Bus

	mu          sync.RWMutex
	db          *sql.DB
	status      provider.Status
	connectedAt *time.Time
}

// New builds an unconnected provider. Initialize must be called before
// any data operation.
func New(cfg provider.Config, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		cfg:    cfg.Normalized(),
		log:    log.With(slog.String("provider", providerName)),
		bus:    events.NewBus(log),
		status: provider.StatusDisconnected,
	}
}

// Initialize opens the database file and brings the schema up to the
// configured version. Calling it on an already-connected provider is a
// no-op.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}
	p.status = provider.StatusInitializing

	db, err := openDB(p.cfg.Options.DatabasePath)
	if err != nil {
		p.status = provider.StatusError
		return dberr.Wrap(err, dberr.CodeConnectionFailed, providerName, "initialize", "cannot open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		p.status = provider.StatusError
		return dberr.Wrap(err, dberr.CodeConnectionFailed, providerName, "initialize", "cannot reach database")
	}
	if err := migrate(db, p.cfg.Options.SchemaVersion); err != nil {
		db.Close()
		p.status = provider.StatusError
		return dberr.Wrap(err, dberr.CodeConnectionFailed, providerName, "initialize", "schema migration failed")
	}

	p.db = db
	p.status = provider.StatusConnected
	now := time.Now().UTC()
	p.connectedAt = &now

	if p.cfg.Options.EnableLogging {
		p.log.Info("storage initialized",
			slog.String("path", p.cfg.Options.DatabasePath),
			slog.Int("schema_version", p.cfg.Options.SchemaVersion))
	}
	return nil
}

// Close releases the database handle and drops all change listeners.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bus.Clear()
	if p.db == nil {
		p.status = provider.StatusDisconnected
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.status = provider.StatusDisconnected
	p.connectedAt = nil
	if err != nil {
		return dberr.Wrap(err, dberr.CodeConnectionFailed, providerName, "close", "error closing database")
	}
	return nil
}

// IsConnected reports whether the provider is ready for data operations.
func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db != nil && p.status == provider.StatusConnected
}

// Ping verifies the database handle is still usable.
func (p *Provider) Ping(ctx context.Context) error {
	db, err := p.handle("ping")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return dberr.Wrap(err, dberr.CodeConnectionFailed, providerName, "ping", "database unreachable")
	}
	return nil
}

// Status returns the current lifecycle state.
func (p *Provider) Status() provider.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Info describes this instance.
func (p *Provider) Info() provider.Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return provider.Info{
		Name:         "SQLite Provider",
		Version:      "1.0.0",
		Status:       p.status,
		Capabilities: *provider.KindCapabilities(provider.KindSQLite),
		Config:       p.cfg,
		ConnectedAt:  p.connectedAt,
	}
}

// SubscribeChanges registers a change listener. Events are delivered
// synchronously within the mutating call.
func (p *Provider) SubscribeChanges(l events.Listener, opts ...events.SubscribeOption) (func(), error) {
	return p.bus.Subscribe(l, opts...), nil
}

// handle returns the live database handle, or a connection error when
// the provider is not ready.
func (p *Provider) handle(op string) (*sql.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil || p.status != provider.StatusConnected {
		return nil, dberr.New(dberr.CodeConnectionFailed, providerName, op, "provider is not connected")
	}
	return p.db, nil
}

// withTx runs fn inside a transaction, rolling back on any error.
func (p *Provider) withTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return p.wrap(err, op)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.log.Error("rollback failed",
				slog.String("operation", op), slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return p.wrap(err, op)
	}
	return nil
}

// emit publishes a change event to all subscribers before the mutating
// call returns.
func (p *Provider) emit(t events.Type, table events.Table, data, previous any, ids []string, userID string) {
	p.bus.Publish(events.Event{
		Type:        t,
		Table:       table,
		Data:        data,
		Previous:    previous,
		AffectedIDs: ids,
		UserID:      userID,
	})
}

// wrap maps driver-level failures onto the shared error taxonomy.
// Errors already in the taxonomy pass through unchanged.
func (p *Provider) wrap(err error, op string) error {
	var de *dberr.Error
	if errors.As(err, &de) {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return dberr.Wrap(err, dberr.CodeDuplicateKey, providerName, op, "record with this id already exists")
		case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return dberr.Wrap(err, dberr.CodeForeignKeyViolation, providerName, op, "operation violates a relation")
		case se.Code == sqlite3.ErrFull:
			return dberr.Wrap(err, dberr.CodeStorageFull, providerName, op, "storage is full")
		case se.Code == sqlite3.ErrCorrupt || se.Code == sqlite3.ErrNotADB:
			return dberr.Wrap(err, dberr.CodeCorruption, providerName, op, "database file is corrupted")
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return dberr.Wrap(err, dberr.CodeConcurrentModification, providerName, op, "database is locked").
				WithRetry(time.Second)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dberr.Wrap(err, dberr.CodeOperationTimeout, providerName, op, "operation timed out")
	}
	return dberr.Wrap(err, dberr.CodeUnknown, providerName, op, "unexpected storage error")
}

// invalid converts a validation failure into the taxonomy, carrying the
// first offending field in deterministic order.
func invalid(err error, op string) *dberr.Error {
	var ve validation.Errors
	if errors.As(err, &ve) && len(ve) > 0 {
		fields := make([]string, 0, len(ve))
		for f := range ve {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		field := fields[0]

		code := dberr.CodeInvalidInput
		var obj validation.ErrorObject
		if errors.As(ve[field], &obj) && obj.Code() == "validation_required" {
			code = dberr.CodeRequiredField
		}
		e := dberr.New(code, providerName, op, ve.Error())
		e.Field = field
		return e
	}
	return dberr.Invalid(err.Error(), "", providerName, op)
}

const lastSyncKey = "last_synced_at"

// LastSyncedAt returns the recorded sync watermark, or nil when the
// store has never synced.
func (p *Provider) LastSyncedAt(ctx context.Context) (*time.Time, error) {
	db, err := p.handle("last_synced_at")
	if err != nil {
		return nil, err
	}
	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, lastSyncKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, p.wrap(err, "last_synced_at")
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeCorruption, providerName, "last_synced_at", "malformed sync watermark")
	}
	return &at, nil
}

// SetLastSyncedAt records the sync watermark.
func (p *Provider) SetLastSyncedAt(ctx context.Context, at time.Time) error {
	db, err := p.handle("set_last_synced_at")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastSyncKey, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return p.wrap(err, "set_last_synced_at")
	}
	return nil
}

// Sync is a no-op for the embedded engine: there is no remote
// counterpart, so it only advances the watermark and reports zero
// changes.
func (p *Provider) Sync(ctx context.Context) (*provider.SyncResult, error) {
	at := time.Now().UTC()
	if err := p.SetLastSyncedAt(ctx, at); err != nil {
		return nil, err
	}
	return &provider.SyncResult{Success: true, SyncedAt: at}, nil
}

// ClearCache is a no-op: the embedded engine reads straight from disk
// and keeps no record cache.
func (p *Provider) ClearCache(ctx context.Context) error {
	if _, err := p.handle("clear_cache"); err != nil {
		return err
	}
	return nil
}

// CacheSize reports the on-disk footprint of the database file, the
// closest analogue to a cache size for this engine.
func (p *Provider) CacheSize(ctx context.Context) (int64, error) {
	if _, err := p.handle("cache_size"); err != nil {
		return 0, err
	}
	fi, err := os.Stat(p.cfg.Options.DatabasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, p.wrap(err, "cache_size")
	}
	return fi.Size(), nil
}
