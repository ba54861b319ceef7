package provider

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind names a storage engine.
type Kind string

const (
	// KindSQLite is the embedded, local-first engine.
	KindSQLite Kind = "sqlite"
	// KindRemote is the networked engine seam; reserved, not yet
	// constructible.
	KindRemote Kind = "remote"
)

// CurrentSchemaVersion is the newest embedded-store schema generation.
const CurrentSchemaVersion = 2

// Options carries provider-specific settings. Which fields matter
// depends on the kind.
type Options struct {
	// Embedded engine.
	DatabasePath  string `yaml:"database_path" json:"database_path,omitempty"`
	SchemaVersion int    `yaml:"schema_version" json:"schema_version,omitempty"`

	// Networked engine.
	URL    string `yaml:"url" json:"url,omitempty"`
	APIKey string `yaml:"api_key" json:"-"`

	// Shared toggles.
	EnableSync    bool `yaml:"enable_sync" json:"enable_sync"`
	EnableCache   bool `yaml:"enable_cache" json:"enable_cache"`
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
}

// Config selects and parameterizes a storage engine.
type Config struct {
	Kind    Kind    `yaml:"kind" json:"kind"`
	Options Options `yaml:"options" json:"options"`
}

// Validate checks the configuration before any I/O is attempted.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Kind, validation.Required,
			validation.In(KindSQLite, KindRemote)),
	); err != nil {
		return err
	}

	switch c.Kind {
	case KindSQLite:
		return validation.ValidateStruct(&c.Options,
			validation.Field(&c.Options.DatabasePath, validation.Required),
			validation.Field(&c.Options.SchemaVersion,
				validation.Min(1), validation.Max(CurrentSchemaVersion)),
		)
	case KindRemote:
		if err := validation.ValidateStruct(&c.Options,
			validation.Field(&c.Options.URL, validation.Required),
			validation.Field(&c.Options.APIKey, validation.Required),
		); err != nil {
			return err
		}
		if !strings.HasPrefix(c.Options.URL, "https://") {
			return fmt.Errorf("remote url must use https")
		}
	}
	return nil
}

// Normalized returns a copy with defaults filled in, so configs that
// only differ in omitted defaults compare equal.
func (c Config) Normalized() Config {
	if c.Kind == KindSQLite && c.Options.SchemaVersion == 0 {
		c.Options.SchemaVersion = CurrentSchemaVersion
	}
	return c
}

// Equal reports whether two configurations describe the same provider
// instance.
func (c Config) Equal(other Config) bool {
	return c.Normalized() == other.Normalized()
}
