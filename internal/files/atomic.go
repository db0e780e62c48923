// Package files holds the file system helpers shared by the journal, the
// logger and the path checker.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oukeidos/arcat/internal/logger"
)

// AtomicWrite replaces path with data via a synced temp file and a rename.
func AtomicWrite(path string, data []byte, perms os.FileMode) error {
	if err := RejectSymlinkPath(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".arcat-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perms); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := writeSynced(tmp, data); err != nil {
		return err
	}
	if err := replaceFile(tmpPath, path); err != nil {
		return fmt.Errorf("move temp file into place: %w", err)
	}
	done = true
	syncDir(dir)
	return nil
}

// WriteNew writes data to path, which must not exist yet. The content
// becomes visible under path only once it is complete.
func WriteNew(path string, data []byte, perms os.FileMode) error {
	if err := RejectSymlinkPath(path); err != nil {
		return err
	}
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	tmpPath := path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perms)
	if err != nil {
		return err
	}
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// Link fails when path appeared meanwhile, which a rename would overwrite.
	if err := os.Link(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Remove(tmpPath)
	syncDir(filepath.Dir(path))
	return nil
}

func writeSynced(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	return f.Close()
}

func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		logger.Debug("directory fsync skipped", "path", dir, "error", err)
		return
	}
	defer func() { _ = f.Close() }()
	if err := f.Sync(); err != nil {
		logger.Warn("directory fsync failed", "path", dir, "error", err)
	}
}
