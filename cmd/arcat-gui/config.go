package main

import (
	"time"

	"fyne.io/fyne/v2"

	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/logger"
)

// AppConfig is what the settings tab edits. Environment and .env values
// seed the defaults; saved preferences win.
type AppConfig struct {
	Driver        string
	DBPath        string
	DSN           string
	ArchiveRoot   string
	RequireFiles  bool
	JournalDir    string
	CommitTimeout time.Duration
	LogLevel      string
	MetricsAddr   string
	AllowEnv      bool
	LastTable     string
}

func loadConfig(prefs fyne.Preferences, base *config.Config) AppConfig {
	if base == nil {
		base = config.Default()
	}
	c := AppConfig{
		Driver:       prefs.StringWithFallback("Driver", base.Database.Driver),
		DBPath:       prefs.StringWithFallback("DBPath", base.Database.Path),
		DSN:          prefs.StringWithFallback("DSN", base.Database.DSN),
		ArchiveRoot:  prefs.StringWithFallback("ArchiveRoot", base.Archive.Root),
		RequireFiles: prefs.BoolWithFallback("RequireFiles", base.Archive.RequireFiles),
		JournalDir:   prefs.StringWithFallback("JournalDir", base.Archive.JournalDir),
		LogLevel:     prefs.StringWithFallback("LogLevel", base.Logging.Level),
		MetricsAddr:  prefs.StringWithFallback("MetricsAddr", base.Metrics.Addr),
		AllowEnv:     prefs.BoolWithFallback("AllowEnv", false),
		LastTable:    prefs.String("LastTable"),
	}
	seconds := prefs.IntWithFallback("CommitTimeoutSeconds", int(base.Database.CommitTimeout/time.Second))
	c.CommitTimeout = time.Duration(seconds) * time.Second

	cfg := c.toConfig()
	if cfg.Database.CommitTimeout != c.CommitTimeout {
		logger.Warn("Commit timeout clamped", "requested", c.CommitTimeout, "effective", cfg.Database.CommitTimeout)
		c.CommitTimeout = cfg.Database.CommitTimeout
		prefs.SetInt("CommitTimeoutSeconds", int(c.CommitTimeout/time.Second))
	}
	return c
}

func saveConfig(prefs fyne.Preferences, c AppConfig) {
	prefs.SetString("Driver", c.Driver)
	prefs.SetString("DBPath", c.DBPath)
	prefs.SetString("DSN", c.DSN)
	prefs.SetString("ArchiveRoot", c.ArchiveRoot)
	prefs.SetBool("RequireFiles", c.RequireFiles)
	prefs.SetString("JournalDir", c.JournalDir)
	prefs.SetInt("CommitTimeoutSeconds", int(c.CommitTimeout/time.Second))
	prefs.SetString("LogLevel", c.LogLevel)
	prefs.SetString("MetricsAddr", c.MetricsAddr)
	prefs.SetBool("AllowEnv", c.AllowEnv)
	prefs.SetString("LastTable", c.LastTable)
}

// toConfig returns the normalized store configuration. It does not validate.
func (c AppConfig) toConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = c.Driver
	cfg.Database.Path = c.DBPath
	cfg.Database.DSN = c.DSN
	cfg.Database.CommitTimeout = c.CommitTimeout
	cfg.Archive.Root = c.ArchiveRoot
	cfg.Archive.RequireFiles = c.RequireFiles
	cfg.Archive.JournalDir = c.JournalDir
	cfg.Logging.Level = c.LogLevel
	cfg.Metrics.Addr = c.MetricsAddr
	cfg.Normalize()
	return cfg
}
