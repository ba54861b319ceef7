package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/events"
	"github.com/starford/lightnote/internal/models"
	"github.com/starford/lightnote/internal/provider"
)

func testProviderAt(t *testing.T, path string, version int) *Provider {
	t.Helper()
	cfg := provider.Config{
		Kind: provider.KindSQLite,
		Options: provider.Options{
			DatabasePath:  path,
			SchemaVersion: version,
		},
	}
	p := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func testProvider(t *testing.T) *Provider {
	t.Helper()
	return testProviderAt(t, filepath.Join(t.TempDir(), "lightnote-test.db"), provider.CurrentSchemaVersion)
}

func mustCreateNote(t *testing.T, p *Provider, in models.CreateNoteInput) *models.Note {
	t.Helper()
	n, err := p.CreateNote(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	if !p.IsConnected() {
		t.Error("provider should be connected after Initialize")
	}
	if got := p.Status(); got != provider.StatusConnected {
		t.Errorf("Status = %q, want %q", got, provider.StatusConnected)
	}
	if err := p.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}

	info := p.Info()
	if info.Name != "SQLite Provider" {
		t.Errorf("Info.Name = %q", info.Name)
	}
	if !info.Capabilities.Transactions || !info.Capabilities.Backup {
		t.Error("embedded engine should report transactions and backup capabilities")
	}
	if info.ConnectedAt == nil {
		t.Error("ConnectedAt should be set while connected")
	}

	// Initialize is idempotent.
	if err := p.Initialize(ctx); err != nil {
		t.Errorf("second Initialize: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.IsConnected() {
		t.Error("provider should be disconnected after Close")
	}
	if _, err := p.Note(ctx, "n-1"); !dberr.IsCode(err, dberr.CodeConnectionFailed) {
		t.Errorf("operation after Close = %v, want CONNECTION_FAILED", err)
	}
}

func TestSchemaUpgradePreservesRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upgrade.db")

	p1 := testProviderAt(t, path, 1)
	n := mustCreateNote(t, p1, models.CreateNoteInput{UserID: "u", Title: "survivor"})
	if err := p1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2 := testProviderAt(t, path, 2)
	got, err := p2.Note(ctx, n.ID)
	if err != nil {
		t.Fatalf("Note after upgrade: %v", err)
	}
	if got == nil || got.Title != "survivor" {
		t.Fatalf("note lost across upgrade: %+v", got)
	}

	var version int
	if err := p2.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != 2 {
		t.Errorf("user_version = %d, want 2", version)
	}
}

func TestSchemaDowngradeRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downgrade.db")

	p1 := testProviderAt(t, path, 2)
	if err := p1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg := provider.Config{
		Kind:    provider.KindSQLite,
		Options: provider.Options{DatabasePath: path, SchemaVersion: 1},
	}
	p2 := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := p2.Initialize(context.Background()); err == nil {
		p2.Close()
		t.Fatal("Initialize should refuse a newer on-disk schema")
	}
}

func TestSyncWatermark(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	at, err := p.LastSyncedAt(ctx)
	if err != nil {
		t.Fatalf("LastSyncedAt: %v", err)
	}
	if at != nil {
		t.Errorf("fresh store should have no watermark, got %v", at)
	}

	res, err := p.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Success || res.Notes.Created != 0 {
		t.Errorf("embedded sync should be a zero-change success, got %+v", res)
	}

	at, err = p.LastSyncedAt(ctx)
	if err != nil {
		t.Fatalf("LastSyncedAt: %v", err)
	}
	if at == nil || !at.Equal(res.SyncedAt) {
		t.Errorf("watermark = %v, want %v", at, res.SyncedAt)
	}
}

func TestSubscribeChangesSynchronous(t *testing.T) {
	p := testProvider(t)

	var got []events.Event
	unsub, err := p.SubscribeChanges(func(e events.Event) { got = append(got, e) })
	if err != nil {
		t.Fatalf("SubscribeChanges: %v", err)
	}
	defer unsub()

	n := mustCreateNote(t, p, models.CreateNoteInput{UserID: "u", Title: "hello"})

	if len(got) != 1 {
		t.Fatalf("listener saw %d events, want 1", len(got))
	}
	e := got[0]
	if e.Type != events.TypeCreate || e.Table != events.TableNotes {
		t.Errorf("event = %s/%s, want create/notes", e.Type, e.Table)
	}
	if len(e.AffectedIDs) != 1 || e.AffectedIDs[0] != n.ID {
		t.Errorf("affected ids = %v, want [%s]", e.AffectedIDs, n.ID)
	}
	if e.UserID != "u" || e.Source != events.SourceLocal {
		t.Errorf("event metadata = %+v", e)
	}
}

func TestCacheSize(t *testing.T) {
	p := testProvider(t)
	if err := p.ClearCache(context.Background()); err != nil {
		t.Errorf("ClearCache: %v", err)
	}
	size, err := p.CacheSize(context.Background())
	if err != nil {
		t.Fatalf("CacheSize: %v", err)
	}
	if size <= 0 {
		t.Errorf("database file size = %d, want > 0", size)
	}
}
