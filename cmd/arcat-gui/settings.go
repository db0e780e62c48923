package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/arcat/internal/auth"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/logger"
)

var (
	savePassword   = auth.SavePassword
	deletePassword = auth.DeletePassword
	passwordStored = auth.Stored
)

func savePasswordToKeychain(password string, saveFn func(string) error) (bool, error) {
	if strings.TrimSpace(password) == "" {
		return false, nil
	}
	if err := saveFn(password); err != nil {
		return false, fmt.Errorf("failed to save database password: %w", err)
	}
	return true, nil
}

func resetPasswordInKeychain(deleteFn func() error) error {
	if err := deleteFn(); err != nil {
		return fmt.Errorf("failed to delete database password: %w", err)
	}
	return nil
}

// settingsForm reads the settings widgets back into an AppConfig.
type settingsForm struct {
	driver       *widget.Select
	dbPath       *widget.Entry
	dsn          *widget.Entry
	archiveRoot  *widget.Entry
	requireFiles *widget.Check
	journalDir   *widget.Entry
	timeout      *widget.Entry
	logLevel     *widget.Select
	metricsAddr  *widget.Entry
	allowEnv     *widget.Check
}

func (f *settingsForm) apply(c AppConfig) (AppConfig, error) {
	seconds, err := strconv.Atoi(strings.TrimSpace(f.timeout.Text))
	if err != nil {
		return c, fmt.Errorf("save timeout %q is not a whole number of seconds", f.timeout.Text)
	}
	c.Driver = f.driver.Selected
	c.DBPath = strings.TrimSpace(f.dbPath.Text)
	c.DSN = strings.TrimSpace(f.dsn.Text)
	c.ArchiveRoot = strings.TrimSpace(f.archiveRoot.Text)
	c.RequireFiles = f.requireFiles.Checked
	c.JournalDir = strings.TrimSpace(f.journalDir.Text)
	c.CommitTimeout = time.Duration(seconds) * time.Second
	c.LogLevel = f.logLevel.Selected
	c.MetricsAddr = strings.TrimSpace(f.metricsAddr.Text)
	c.AllowEnv = f.allowEnv.Checked
	if err := c.toConfig().Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func newSettingsForm(c AppConfig) *settingsForm {
	f := &settingsForm{
		driver:       widget.NewSelect([]string{config.DriverSQLite, config.DriverPostgres, config.DriverMemory}, nil),
		dbPath:       widget.NewEntry(),
		dsn:          widget.NewEntry(),
		archiveRoot:  widget.NewEntry(),
		requireFiles: widget.NewCheck("Refuse paths to missing files", nil),
		journalDir:   widget.NewEntry(),
		timeout:      widget.NewEntry(),
		logLevel:     widget.NewSelect([]string{"debug", "info", "warn", "error"}, nil),
		metricsAddr:  widget.NewEntry(),
		allowEnv:     widget.NewCheck("Use ARCAT_DB_PASSWORD when the keychain is empty", nil),
	}
	f.driver.SetSelected(c.Driver)
	f.dbPath.SetText(c.DBPath)
	f.dsn.SetText(c.DSN)
	f.dsn.SetPlaceHolder("postgres://user@host:5432/archive")
	f.archiveRoot.SetText(c.ArchiveRoot)
	f.requireFiles.SetChecked(c.RequireFiles)
	f.journalDir.SetText(c.JournalDir)
	f.journalDir.SetPlaceHolder("default: user config folder")
	f.timeout.SetText(strconv.Itoa(int(c.CommitTimeout / time.Second)))
	f.logLevel.SetSelected(c.LogLevel)
	f.metricsAddr.SetText(c.MetricsAddr)
	f.metricsAddr.SetPlaceHolder("off, e.g. 127.0.0.1:9464")
	f.allowEnv.SetChecked(c.AllowEnv)
	return f
}

func buildSettingsTab(a *guiApp) fyne.CanvasObject {
	f := newSettingsForm(a.config)

	browse := widget.NewButton("Browse…", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			f.archiveRoot.SetText(uri.Path())
		}, a.window)
	})

	storeForm := widget.NewForm(
		widget.NewFormItem("Driver", f.driver),
		widget.NewFormItem("SQLite file", f.dbPath),
		widget.NewFormItem("Postgres DSN", f.dsn),
		widget.NewFormItem("Save timeout (s)", f.timeout),
	)
	archiveForm := widget.NewForm(
		widget.NewFormItem("Archive root", container.NewBorder(nil, nil, nil, browse, f.archiveRoot)),
		widget.NewFormItem("", f.requireFiles),
		widget.NewFormItem("Journal folder", f.journalDir),
		widget.NewFormItem("Log level", f.logLevel),
		widget.NewFormItem("Metrics address", f.metricsAddr),
	)

	apply := widget.NewButton("Save and reconnect", func() {
		next, err := f.apply(a.config)
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		prev := a.config
		a.config = next
		if err := a.connect(); err != nil {
			a.config = prev
			dialog.ShowError(errors.Join(errors.New("settings not applied"), err), a.window)
			return
		}
		saveConfig(a.prefs, a.config)
		a.setStatus("Settings saved")
	})

	pwStatus := widget.NewLabel("")
	syncStatus := func() {
		if passwordStored() {
			pwStatus.SetText("Saved in keychain")
		} else {
			pwStatus.SetText("Not saved")
		}
	}
	syncStatus()
	pwEntry := widget.NewPasswordEntry()
	pwEntry.SetPlaceHolder("Enter new password")
	savePw := widget.NewButton("Save", func() {
		saved, err := savePasswordToKeychain(pwEntry.Text, savePassword)
		pwEntry.SetText("")
		if err != nil {
			logger.Error("Keychain save failed", "error", err)
			dialog.ShowError(err, a.window)
		} else if saved {
			logger.Info("Database password saved to keychain")
		}
		syncStatus()
	})
	removePw := widget.NewButton("Remove", func() {
		dialog.ShowConfirm("Remove password", "Delete the database password from the keychain?", func(ok bool) {
			if !ok {
				return
			}
			if err := resetPasswordInKeychain(deletePassword); err != nil {
				dialog.ShowError(err, a.window)
			}
			syncStatus()
		}, a.window)
	})
	passwordForm := widget.NewForm(
		widget.NewFormItem("Password", container.NewBorder(nil, nil, nil, container.NewHBox(savePw, removePw), pwEntry)),
		widget.NewFormItem("Status", pwStatus),
		widget.NewFormItem("", f.allowEnv),
	)

	return container.NewPadded(container.NewVScroll(container.NewVBox(
		widget.NewLabelWithStyle("Store", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		storeForm,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Archive", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		archiveForm,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Postgres password", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		passwordForm,
		container.NewHBox(apply),
	)))
}
