// Package recovery keeps a journal of child-row edits that were discarded
// when the selected parent changed, so no typed value is silently lost.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/files"
	"github.com/oukeidos/arcat/internal/grid"
	"github.com/oukeidos/arcat/internal/logger"
)

const CurrentJournalVersion = 1

// Entry is one saved parent switch.
type Entry struct {
	JournalVersion int       `json:"journal_version"`
	Table          string    `json:"table"`
	ParentKey      string    `json:"parent_key"`
	SavedAt        time.Time `json:"saved_at"`
	Columns        []string  `json:"columns"`
	Rows           []Row     `json:"rows"`
}

// Row holds the canonical text of every cell; empty cells are "".
type Row struct {
	Index    int      `json:"index"`
	State    string   `json:"state"`
	Original []string `json:"original,omitempty"`
	Working  []string `json:"working"`
}

// Validate checks that the entry is usable.
func (e *Entry) Validate() error {
	if e.JournalVersion == 0 {
		e.JournalVersion = CurrentJournalVersion
	}
	if e.JournalVersion != CurrentJournalVersion {
		return fmt.Errorf("unsupported journal_version: %d", e.JournalVersion)
	}
	if strings.TrimSpace(e.Table) == "" {
		return errors.New("table is empty")
	}
	if len(e.Columns) == 0 {
		return errors.New("columns are empty")
	}
	if len(e.Rows) == 0 {
		return errors.New("rows are empty")
	}
	for i, r := range e.Rows {
		if len(r.Working) != len(e.Columns) {
			return fmt.Errorf("row %d has %d cells for %d columns", i, len(r.Working), len(e.Columns))
		}
		if r.Original != nil && len(r.Original) != len(e.Columns) {
			return fmt.Errorf("row %d original has %d cells for %d columns", i, len(r.Original), len(e.Columns))
		}
	}
	return nil
}

// NewEntry captures a discarded edit set.
func NewEntry(t catalog.Table, a grid.Abandoned, now time.Time) *Entry {
	e := &Entry{
		JournalVersion: CurrentJournalVersion,
		Table:          a.Table,
		ParentKey:      a.ParentKey.String(),
		SavedAt:        now.UTC(),
	}
	for _, c := range t.Columns {
		e.Columns = append(e.Columns, c.Name)
	}
	for _, r := range a.Rows {
		e.Rows = append(e.Rows, Row{
			Index:    r.Index,
			State:    r.State.String(),
			Original: cells(r.Original, len(t.Columns)),
			Working:  cells(r.Working, len(t.Columns)),
		})
	}
	return e
}

func cells(v catalog.Values, n int) []string {
	if v == nil {
		return nil
	}
	out := make([]string, n)
	for i := 0; i < n && i < len(v); i++ {
		out[i] = catalog.FormatValue(v[i])
	}
	return out
}

// Journal stores entries as JSON files in one directory.
type Journal struct {
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// DefaultDir is <user config dir>/arcat/journal.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "arcat", "journal"), nil
}

func (j *Journal) Dir() string { return j.dir }

// Save writes a new entry file and returns its path.
func (j *Journal) Save(t catalog.Table, a grid.Abandoned) (string, error) {
	if len(a.Rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(j.dir, 0o700); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}
	e := NewEntry(t, a, j.now())
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	base := fmt.Sprintf("%s_%s", e.Table, e.SavedAt.Format("20060102-150405"))
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		path, err := files.UniquePath(j.dir, base, ".json")
		if err != nil {
			return "", err
		}
		err = files.WriteNew(path, data, 0o600)
		if err == nil {
			logger.Info("abandoned edits saved", "table", e.Table, "rows", len(e.Rows), "path", path)
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Summary describes one journal file.
type Summary struct {
	Path      string
	Table     string
	ParentKey string
	SavedAt   time.Time
	Rows      int
}

// List returns the readable entries, newest first. Unreadable files are
// logged and skipped.
func (j *Journal) List() ([]Summary, error) {
	names, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, d := range names {
		if d.IsDir() || filepath.Ext(d.Name()) != ".json" {
			continue
		}
		path := filepath.Join(j.dir, d.Name())
		e, err := Load(path)
		if err != nil {
			logger.Warn("skipping unreadable journal entry", "path", path, "error", err)
			continue
		}
		out = append(out, Summary{Path: path, Table: e.Table, ParentKey: e.ParentKey, SavedAt: e.SavedAt, Rows: len(e.Rows)})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].SavedAt.After(out[b].SavedAt) })
	return out, nil
}

// Resolve accepts a path or a file name inside the journal directory.
func (j *Journal) Resolve(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.Join(j.dir, name)
}

// Load reads and validates one entry.
func Load(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &e, nil
}
