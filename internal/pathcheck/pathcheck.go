// Package pathcheck vets media paths typed into path columns against the
// archive root and inspects the subtitle and lyrics sidecars next to them.
package pathcheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/oukeidos/arcat/internal/files"
)

// SidecarExtensions are looked for next to every media file, in this order.
var SidecarExtensions = []string{".srt", ".vtt", ".ssa", ".ass", ".stl", ".ttml"}

var openSubtitles = astisub.OpenFile

// Checker resolves catalogue paths under an archive root. Catalogue paths
// are archive-relative; a leading slash is allowed.
type Checker struct {
	root         string
	requireFiles bool
}

// New returns a checker for root. requireFiles refuses paths that do not
// exist yet.
func New(root string, requireFiles bool) *Checker {
	root = filepath.Clean(root)
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	return &Checker{root: root, requireFiles: requireFiles}
}

// Resolve maps a catalogue path to a file system path under the root.
func (c *Checker) Resolve(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", errors.New("path is empty")
	}
	rel := filepath.FromSlash(strings.TrimLeft(p, "/"))
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", fmt.Errorf("%s: drive letters are not allowed, use a path inside the archive", p)
	}
	clean := filepath.Clean(rel)
	if clean == "." {
		return "", fmt.Errorf("%s: names the archive root", p)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: leaves the archive", p)
	}
	return filepath.Join(c.root, clean), nil
}

// Check implements the grid's path check.
func (c *Checker) Check(p string) error {
	full, err := c.Resolve(p)
	if err != nil {
		return err
	}
	if err := files.RejectSymlinkPath(full); err != nil {
		return fmt.Errorf("%s: links are not allowed inside the archive", p)
	}
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if c.requireFiles {
			return fmt.Errorf("%s does not exist in the archive", p)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", p, err)
	case info.IsDir():
		return fmt.Errorf("%s is a folder, not a file", p)
	}
	if isSidecar(full) {
		if _, err := openSubtitles(full); err != nil {
			return fmt.Errorf("%s is not a readable subtitle file: %v", p, err)
		}
	}
	return nil
}

func isSidecar(p string) bool {
	return slices.Contains(SidecarExtensions, strings.ToLower(filepath.Ext(p)))
}

// Sidecar is a subtitle or lyrics file found next to a media file.
type Sidecar struct {
	Path  string
	Items int
	// Err is set when the file exists but cannot be parsed.
	Err error
}

// Sidecars lists the sidecars of the media file at catalogue path p.
func (c *Checker) Sidecars(p string) ([]Sidecar, error) {
	full, err := c.Resolve(p)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(full, filepath.Ext(full))
	var out []Sidecar
	for _, ext := range SidecarExtensions {
		candidate := base + ext
		if candidate == full {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		sc := Sidecar{Path: candidate}
		subs, err := openSubtitles(candidate)
		if err != nil {
			sc.Err = err
		} else {
			sc.Items = len(subs.Items)
		}
		out = append(out, sc)
	}
	return out, nil
}
