//go:build windows

package files

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func utf16Path(path string) (*uint16, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("path %q: %w", path, err)
	}
	return p, nil
}

// replaceFile moves tmp over dst and flushes the move to disk.
func replaceFile(tmp, dst string) error {
	from, err := utf16Path(tmp)
	if err != nil {
		return err
	}
	to, err := utf16Path(dst)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

// isReparsePoint reports junctions and other reparse points. Lstat does
// not flag them as symlinks.
func isReparsePoint(path string) (bool, error) {
	p, err := utf16Path(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, err
	}
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0, nil
}
