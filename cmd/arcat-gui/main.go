package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/arcat/internal/auth"
	"github.com/oukeidos/arcat/internal/cleanup"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/grid"
	"github.com/oukeidos/arcat/internal/logger"
	"github.com/oukeidos/arcat/internal/metrics"
	"github.com/oukeidos/arcat/internal/pathcheck"
	"github.com/oukeidos/arcat/internal/recovery"
	"github.com/oukeidos/arcat/internal/schema"
	"github.com/oukeidos/arcat/internal/store"
)

var (
	openStore   = store.Open
	getPassword = auth.Password
)

// compactTheme trims padding so more rows fit in the tables.
type compactTheme struct{ fyne.Theme }

func (m compactTheme) Size(n fyne.ThemeSizeName) float32 {
	if n == theme.SizeNamePadding {
		return 3
	}
	return m.Theme.Size(n)
}

type guiApp struct {
	window fyne.Window
	prefs  fyne.Preferences
	config AppConfig

	ctx    context.Context
	cancel context.CancelFunc

	schema  *schema.Catalog
	backend store.Backend
	metrics *metrics.Recorder
	journal *recovery.Journal
	paths   grid.PathChecker

	editor          *editor
	status          *widget.Label
	metricsStop     context.CancelFunc
	panicNoticeOnce sync.Once
}

func newGUIApp(w fyne.Window, prefs fyne.Preferences) *guiApp {
	base, err := config.Read(".env")
	if err != nil {
		logger.Warn("Ignoring environment configuration", "error", err)
		base = config.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &guiApp{
		window:  w,
		prefs:   prefs,
		config:  loadConfig(prefs, base),
		ctx:     ctx,
		cancel:  cancel,
		schema:  schema.New(),
		metrics: metrics.New(),
		status:  widget.NewLabel(""),
	}
	a.editor = newEditor(a)
	return a
}

func (a *guiApp) setStatus(text string) {
	if a.status != nil {
		a.status.SetText(text)
	}
}

// connect opens the configured store and reloads the editor. The previous
// store stays open if the new one cannot be reached.
func (a *guiApp) connect() error {
	cfg := a.config.toConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(logger.ParseLevel(cfg.Logging.Level), nil)

	password := ""
	if cfg.Database.Driver == config.DriverPostgres {
		password, _ = getPassword(a.config.AllowEnv)
	}
	ctx, cancel := context.WithTimeout(a.ctx, cfg.Database.CommitTimeout)
	defer cancel()
	backend, err := openStore(ctx, cfg, a.schema, password)
	if err != nil {
		return err
	}

	if a.editor.main != nil {
		if err := a.editor.main.LeaveCurrent(); err != nil {
			logger.Warn("Row not saved before reconnect", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			logger.Warn("Closing previous store failed", "error", err)
		}
	}
	a.backend = backend

	dir := cfg.Archive.JournalDir
	if dir == "" {
		if dir, err = recovery.DefaultDir(); err != nil {
			return fmt.Errorf("locate journal: %w", err)
		}
	}
	a.journal = recovery.New(dir)
	a.paths = nil
	if cfg.Archive.Root != "" {
		a.paths = pathcheck.New(cfg.Archive.Root, cfg.Archive.RequireFiles)
	}
	a.startMetrics(cfg.Metrics.Addr)
	logger.Info("Store connected", "config", cfg.String())

	name := a.config.LastTable
	if _, err := a.schema.Table(name); err != nil {
		name = schema.Pieces
	}
	a.editor.selectTable(name)
	return nil
}

func (a *guiApp) startMetrics(addr string) {
	if a.metricsStop != nil {
		a.metricsStop()
		a.metricsStop = nil
	}
	if addr == "" {
		return
	}
	ctx, stop := context.WithCancel(a.ctx)
	a.metricsStop = stop
	a.safeGo("metrics.serve", func() {
		if err := a.metrics.Serve(ctx, addr); err != nil {
			logger.Error("Metrics endpoint stopped", "addr", addr, "error", err)
		}
	})
}

func (a *guiApp) shutdown() {
	if a.editor.main != nil {
		if err := a.editor.main.LeaveCurrent(); err != nil {
			logger.Warn("Row not saved on exit", "error", err)
		}
	}
	a.cancel()
	if a.backend != nil {
		cleanup.Register(a.backend.Close)
	}
	if err := cleanup.RunAll(); err != nil {
		logger.Error("Cleanup failed", "error", err)
	}
}

func (a *guiApp) setupUI() {
	tabs := container.NewAppTabs(
		container.NewTabItemWithIcon("Catalogue", theme.ListIcon(), a.editor.content),
		container.NewTabItemWithIcon("Settings", theme.SettingsIcon(), buildSettingsTab(a)),
		container.NewTabItemWithIcon("About", theme.InfoIcon(), buildAboutTab()),
	)
	a.window.SetContent(container.NewBorder(nil, a.status, nil, nil, tabs))
}

func main() {
	logger.Init(logger.LevelInfo, nil)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Unrecovered GUI panic", "scope", "main", "panic", fmt.Sprint(r))
			os.Exit(1)
		}
	}()

	myApp := app.NewWithID("com.arcat.app")
	myApp.Settings().SetTheme(compactTheme{Theme: theme.DefaultTheme()})
	myApp.SetIcon(appIcon())

	w := myApp.NewWindow("arcat")
	w.SetIcon(appIcon())
	w.SetMaster()
	w.Resize(fyne.NewSize(1180, 760))
	w.CenterOnScreen()

	ga := newGUIApp(w, myApp.Preferences())
	ga.setupUI()
	if err := ga.connect(); err != nil {
		logger.Error("Store unavailable", "error", err)
		ga.setStatus("Not connected: check the Settings tab")
		dialog.ShowError(errors.Join(errors.New("could not open the catalogue"), err), w)
	}

	w.SetCloseIntercept(func() {
		ga.shutdown()
		w.SetCloseIntercept(nil)
		w.Close()
	})
	w.ShowAndRun()
}
