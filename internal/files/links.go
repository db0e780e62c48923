package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RejectSymlinkPath fails when path or any existing ancestor is a symlink
// or, on Windows, a reparse point.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	vol := filepath.VolumeName(abs)
	current := vol + string(os.PathSeparator)
	rest := strings.TrimLeft(abs[len(vol):], string(os.PathSeparator))
	if rest == "" {
		return nil
	}
	for _, part := range strings.Split(rest, string(os.PathSeparator)) {
		if part == "" {
			continue
		}
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s goes through a symlink at %s", path, current)
		}
		reparse, err := isReparsePoint(current)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", current, err)
		}
		if reparse {
			return fmt.Errorf("%s goes through a reparse point at %s", path, current)
		}
	}
	return nil
}
