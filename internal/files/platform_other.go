//go:build !windows

package files

import "os"

// replaceFile moves tmp over dst; rename is atomic on POSIX filesystems.
func replaceFile(tmp, dst string) error {
	return os.Rename(tmp, dst)
}

// isReparsePoint is always false off Windows; symlinks are caught by Lstat.
func isReparsePoint(string) (bool, error) { return false, nil }
