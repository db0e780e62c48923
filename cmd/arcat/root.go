package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oukeidos/arcat/internal/cleanup"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/logger"
	"github.com/oukeidos/arcat/internal/version"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags; each one overrides its ARCAT_*
// variable when given.
type globalOptions struct {
	envFile     string
	driver      string
	dbPath      string
	dsn         string
	archiveRoot string
	journalDir  string
	logLevel    string
	logFile     string
	timeout     time.Duration
	allowEnv    bool
	yes         bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "arcat",
		Short:         "Archive cataloguer for audio and video recordings",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	f := cmd.PersistentFlags()
	f.StringVar(&g.envFile, "env-file", ".env", "Read ARCAT_* settings from this file when it exists")
	f.StringVar(&g.driver, "driver", "", "Store driver: sqlite, postgres or memory")
	f.StringVar(&g.dbPath, "db", "", "SQLite database file")
	f.StringVar(&g.dsn, "dsn", "", "Postgres connection string")
	f.StringVar(&g.archiveRoot, "archive-root", "", "Folder that media paths are relative to")
	f.StringVar(&g.journalDir, "journal-dir", "", "Folder for abandoned-edit journals")
	f.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this file")
	f.DurationVar(&g.timeout, "timeout", 0, "How long to wait for the store on each save")
	f.BoolVar(&g.allowEnv, "allow-env", false, "Allow ARCAT_DB_PASSWORD when the keychain is empty")
	f.BoolVarP(&g.yes, "yes", "y", false, "Answer yes to confirmations")

	cmd.AddCommand(
		newAboutCmd(),
		newTablesCmd(g),
		newDescribeCmd(g),
		newParentsCmd(g),
		newChildrenCmd(g),
		newSetCmd(g),
		newDeleteCmd(g),
		newInitCmd(g),
		newSidecarsCmd(g),
		newJournalCmd(g),
		newEnvCmd(g),
	)
	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}
	return cmd
}

// load reads the configuration once, applies flag overrides and sets up
// logging.
func (g *globalOptions) load(cmd *cobra.Command) error {
	if g.cfg != nil {
		return nil
	}
	cfg, err := config.Read(g.envFile)
	if err != nil {
		return err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Database.Driver = g.driver
		case "db":
			cfg.Database.Path = g.dbPath
		case "dsn":
			cfg.Database.DSN = g.dsn
		case "archive-root":
			cfg.Archive.Root = g.archiveRoot
		case "journal-dir":
			cfg.Archive.JournalDir = g.journalDir
		case "log-level":
			cfg.Logging.Level = g.logLevel
		case "log-file":
			cfg.Logging.File = g.logFile
		case "timeout":
			cfg.Database.CommitTimeout = g.timeout
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logOut *os.File
	if cfg.Logging.File != "" {
		logOut, err = os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cleanup.Register(logOut.Close)
		logger.Init(logger.ParseLevel(cfg.Logging.Level), logOut)
	} else {
		logger.Init(logger.ParseLevel(cfg.Logging.Level), nil)
	}
	logger.Debug("configuration loaded", "config", cfg.String())
	g.cfg = cfg
	return nil
}
