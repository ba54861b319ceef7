// Package factory constructs, validates, and hot-swaps storage
// providers. A Factory owns at most one live provider at a time.
package factory

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/lightnote/internal/dberr"
	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/provider/sqlite"
)

const factoryName = "factory"

// Factory builds providers and tracks the active one. It is safe for
// concurrent use; at most one switch runs at a time.
type Factory struct {
	log *slog.Logger

	mu      sync.Mutex
	current provider.Provider
	cfg     provider.Config

	switching atomic.Bool

	// newProvider is the constructor seam; tests swap it to observe
	// switch behavior without real engines.
	newProvider func(cfg provider.Config, log *slog.Logger) (provider.Provider, error)
}

// New builds a factory with no active provider.
func New(log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{log: log, newProvider: buildProvider}
}

func buildProvider(cfg provider.Config, log *slog.Logger) (provider.Provider, error) {
	switch cfg.Kind {
	case provider.KindSQLite:
		return sqlite.New(cfg, log), nil
	case provider.KindRemote:
		return nil, dberr.New(dberr.CodeProviderNotSupported, factoryName, "create_provider",
			"remote provider is not available yet")
	default:
		return nil, dberr.New(dberr.CodeProviderNotSupported, factoryName, "create_provider",
			"unknown provider kind "+string(cfg.Kind))
	}
}

// ValidateConfig checks a configuration without side effects.
func (f *Factory) ValidateConfig(cfg provider.Config) error {
	if err := cfg.Validate(); err != nil {
		return dberr.Wrap(err, dberr.CodeInvalidConfig, factoryName, "validate_config", err.Error())
	}
	return nil
}

// CreateProvider builds and initializes a provider for cfg, making it
// the active one. When the active provider already matches cfg and is
// still connected it is reused instead of rebuilt.
func (f *Factory) CreateProvider(ctx context.Context, cfg provider.Config) (provider.Provider, error) {
	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.cfg.Equal(cfg) && f.current.IsConnected() {
		return f.current, nil
	}

	p, err := f.newProvider(cfg, f.log)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	if f.current != nil {
		if err := f.current.Close(); err != nil {
			f.log.Warn("closing previous provider failed", slog.Any("error", err))
		}
	}
	f.current = p
	f.cfg = cfg.Normalized()
	f.log.Info("provider created", slog.String("kind", string(cfg.Kind)))
	return p, nil
}

// SwitchProvider replaces the active provider with one built from cfg.
// Only one switch may run at a time; a concurrent call fails fast with
// a retryable conflict. The previous provider keeps serving until the
// new one has initialized, so a failed switch leaves the old provider
// in place.
func (f *Factory) SwitchProvider(ctx context.Context, cfg provider.Config) (provider.Provider, error) {
	if !f.switching.CompareAndSwap(false, true) {
		return nil, dberr.New(dberr.CodeConcurrentModification, factoryName, "switch_provider",
			"another provider switch is in progress").WithRetry(time.Second)
	}
	defer f.switching.Store(false)

	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	f.mu.Lock()
	old := f.current
	oldCfg := f.cfg
	f.mu.Unlock()

	if old != nil && oldCfg.Equal(cfg) && old.IsConnected() {
		return old, nil
	}

	next, err := f.newProvider(cfg, f.log)
	if err != nil {
		return nil, err
	}
	if err := next.Initialize(ctx); err != nil {
		return nil, err
	}

	if oldCfg.Kind != cfg.Kind {
		f.migrateData(old, next)
	}

	f.mu.Lock()
	f.current = next
	f.cfg = cfg.Normalized()
	f.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			f.log.Warn("closing previous provider failed", slog.Any("error", err))
		}
	}
	f.log.Info("provider switched", slog.String("kind", string(cfg.Kind)))
	return next, nil
}

// migrateData is a placeholder seam, entered only when a switch changes
// the engine kind: data does not move between providers yet. Callers
// wanting migration run an explicit export/import.
func (f *Factory) migrateData(old, next provider.Provider) {
	if old == nil {
		return
	}
	f.log.Info("data migration between providers is not automatic; use export/import")
}

// Current returns the active provider, or nil before the first create.
func (f *Factory) Current() provider.Provider {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// CurrentConfig returns the active configuration; ok is false before
// the first create.
func (f *Factory) CurrentConfig() (provider.Config, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.current != nil
}

// Close shuts the active provider down.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	f.cfg = provider.Config{}
	return err
}

// IsSupported reports whether a kind is constructible today.
func (f *Factory) IsSupported(kind provider.Kind) bool {
	return kind == provider.KindSQLite
}

// SupportedKinds lists the constructible provider kinds.
func (f *Factory) SupportedKinds() []provider.Kind {
	return []provider.Kind{provider.KindSQLite}
}

// CapabilitiesFor returns the capability descriptor for a kind, or nil
// for unknown kinds.
func (f *Factory) CapabilitiesFor(kind provider.Kind) *provider.Capabilities {
	return provider.KindCapabilities(kind)
}

// DefaultConfig picks a configuration from the environment: the remote
// engine in production when its endpoint is configured, the embedded
// engine everywhere else.
func DefaultConfig() provider.Config {
	url := os.Getenv("LIGHTNOTE_REMOTE_URL")
	key := os.Getenv("LIGHTNOTE_REMOTE_API_KEY")
	if os.Getenv("APP_ENV") == "production" && url != "" && key != "" {
		return provider.Config{
			Kind: provider.KindRemote,
			Options: provider.Options{
				URL:         url,
				APIKey:      key,
				EnableSync:  true,
				EnableCache: true,
			},
		}
	}
	return provider.Config{
		Kind: provider.KindSQLite,
		Options: provider.Options{
			DatabasePath:  "lightnote.db",
			SchemaVersion: provider.CurrentSchemaVersion,
			EnableCache:   true,
			EnableLogging: true,
		},
	}
}
