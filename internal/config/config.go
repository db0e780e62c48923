// Package config loads arcat settings from ARCAT_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MinCommitTimeout = time.Second
	MaxCommitTimeout = 5 * time.Minute
)

// Config holds every setting shared by the CLI and the GUI.
type Config struct {
	Database DatabaseConfig
	Archive  ArchiveConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig selects the entity store.
type DatabaseConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver string `env:"ARCAT_DRIVER" default:"sqlite"`
	// Path is the SQLite file.
	Path string `env:"ARCAT_DB_PATH" default:"arcat.db"`
	// DSN is the Postgres connection string. DATABASE_URL is accepted too.
	DSN string `env:"ARCAT_DSN" envAlt:"DATABASE_URL"`
	// CommitTimeout bounds every store call made by the controllers.
	CommitTimeout time.Duration `env:"ARCAT_COMMIT_TIMEOUT" default:"15s"`
}

// ArchiveConfig locates the media files referenced by path columns.
type ArchiveConfig struct {
	// Root resolves relative paths. Empty disables path checks.
	Root string `env:"ARCAT_ARCHIVE_ROOT"`
	// RequireFiles refuses paths that do not exist under Root.
	RequireFiles bool `env:"ARCAT_REQUIRE_FILES" default:"false"`
	// JournalDir holds abandoned-edit journals. Empty uses the user config dir.
	JournalDir string `env:"ARCAT_JOURNAL_DIR"`
}

type LoggingConfig struct {
	Level string `env:"ARCAT_LOG_LEVEL" default:"info"`
	// File receives JSON lines in addition to the console.
	File string `env:"ARCAT_LOG_FILE"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. 127.0.0.1:9464.
	Addr string `env:"ARCAT_METRICS_ADDR"`
}

// Normalize cleans up values a user may have typed loosely.
func (c *Config) Normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DriverPostgres
	}
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.CommitTimeout < MinCommitTimeout {
		c.Database.CommitTimeout = MinCommitTimeout
	}
	if c.Database.CommitTimeout > MaxCommitTimeout {
		c.Database.CommitTimeout = MaxCommitTimeout
	}
	if root := strings.TrimSpace(c.Archive.Root); root != "" {
		c.Archive.Root = filepath.Clean(root)
	} else {
		c.Archive.Root = ""
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "ARCAT_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "ARCAT_DSN is required for the postgres driver")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("ARCAT_DRIVER (%q) must be one of: sqlite, postgres, memory", c.Database.Driver))
	}
	if c.Database.CommitTimeout <= 0 {
		errs = append(errs, "ARCAT_COMMIT_TIMEOUT must be positive")
	}
	if c.Archive.RequireFiles && c.Archive.Root == "" {
		errs = append(errs, "ARCAT_REQUIRE_FILES needs ARCAT_ARCHIVE_ROOT")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("ARCAT_LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String masks the DSN.
func (c *Config) String() string {
	dsn := ""
	if c.Database.DSN != "" {
		dsn = "[MASKED]"
	}
	return fmt.Sprintf("Config{Driver: %q, Path: %q, DSN: %s, CommitTimeout: %s, ArchiveRoot: %q, LogLevel: %q, MetricsAddr: %q}",
		c.Database.Driver, c.Database.Path, dsn, c.Database.CommitTimeout, c.Archive.Root, c.Logging.Level, c.Metrics.Addr)
}
