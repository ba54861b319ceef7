// Package testutil provides shared test helpers for setting up storage
// providers on temporary databases.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/provider/sqlite"
)

// TestConfig returns an embedded-engine configuration pointing at a
// temporary database file.
func TestConfig(t *testing.T) provider.Config {
	t.Helper()
	return provider.Config{
		Kind: provider.KindSQLite,
		Options: provider.Options{
			DatabasePath: filepath.Join(t.TempDir(), "lightnote-test.db"),
		},
	}
}

// TestProvider creates an initialized embedded provider that is closed
// with the test.
func TestProvider(t *testing.T) *sqlite.Provider {
	t.Helper()
	p := sqlite.New(TestConfig(t), DiscardLogger())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// DiscardLogger returns a logger that swallows all output, keeping test
// logs readable.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
