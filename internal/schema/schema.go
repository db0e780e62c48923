// Package schema defines the archive tables and renders their DDL.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oukeidos/arcat/internal/catalog"
)

const (
	Artists      = "artists"
	Performances = "performances"
	Pieces       = "pieces"
	Images       = "images"
	Newsletters  = "newsletters"
)

// Catalog is the fixed set of archive tables. It implements
// catalog.MetadataProvider.
type Catalog struct {
	tables []catalog.Table
	byName map[string]int
}

// New returns the archive catalogue.
func New() *Catalog {
	return FromTables(archiveTables())
}

// FromTables builds a catalogue from explicit table definitions.
func FromTables(tables []catalog.Table) *Catalog {
	c := &Catalog{tables: tables, byName: make(map[string]int, len(tables))}
	for i, t := range tables {
		c.byName[strings.ToLower(t.Name)] = i
	}
	return c
}

func archiveTables() []catalog.Table {
	venue := catalog.Column{Name: "venue", PrimaryKey: true, Kind: catalog.KindForeignKey, ReferencedTable: Performances, ReferencedColumn: "venue"}
	date := catalog.Column{Name: "date", PrimaryKey: true, Kind: catalog.KindDate}
	return []catalog.Table{
		{
			Name: Artists,
			Columns: []catalog.Column{
				{Name: "name", PrimaryKey: true, Visible: true, MaxLength: 120},
				{Name: "sort_name", Visible: true, MaxLength: 120},
				{Name: "country", Visible: true, MaxLength: 60},
				{Name: "comments", Visible: true},
			},
		},
		{
			Name: Performances,
			Columns: []catalog.Column{
				{Name: "venue", PrimaryKey: true, Visible: true, MaxLength: 120},
				{Name: "date", PrimaryKey: true, Kind: catalog.KindDate, Visible: true},
				{Name: "title", Visible: true, MaxLength: 200},
				{Name: "comments", Visible: true},
			},
		},
		{
			Name:       Pieces,
			Parent:     Performances,
			ParentLink: []string{"venue", "date"},
			Columns: []catalog.Column{
				venue,
				date,
				{Name: "piece_no", PrimaryKey: true, Sequence: true, Type: catalog.TypeInteger, Visible: true},
				{Name: "title", Visible: true, Required: true, MaxLength: 200},
				{Name: "artist", Kind: catalog.KindForeignKey, Visible: true, ReferencedTable: Artists, ReferencedColumn: "name"},
				{Name: "audio_path", Kind: catalog.KindPath, Visible: true, Unique: true},
				{Name: "video_path", Kind: catalog.KindPath, Visible: true, Unique: true},
				{Name: "comments", Visible: true},
			},
		},
		{
			Name:       Images,
			Parent:     Performances,
			ParentLink: []string{"venue", "date"},
			Columns: []catalog.Column{
				venue,
				date,
				{Name: "image_no", PrimaryKey: true, Sequence: true, Type: catalog.TypeInteger, Visible: true},
				{Name: "path", Kind: catalog.KindPath, Visible: true, Required: true, Unique: true},
				{Name: "caption", Visible: true, MaxLength: 200},
			},
		},
		{
			Name: Newsletters,
			Columns: []catalog.Column{
				{Name: "issue_no", PrimaryKey: true, Type: catalog.TypeInteger, Visible: true},
				{Name: "published", Kind: catalog.KindDate, Visible: true},
				{Name: "path", Kind: catalog.KindPath, Visible: true, Unique: true},
				{Name: "comments", Visible: true},
			},
		},
	}
}

// Tables returns the table definitions in dependency order.
func (c *Catalog) Tables() []catalog.Table {
	out := make([]catalog.Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Names lists the table names in dependency order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tables))
	for i, t := range c.tables {
		out[i] = t.Name
	}
	return out
}

func (c *Catalog) Table(name string) (catalog.Table, error) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		known := c.Names()
		sort.Strings(known)
		return catalog.Table{}, fmt.Errorf("unknown table %q (known: %s)", name, strings.Join(known, ", "))
	}
	return c.tables[i], nil
}

func (c *Catalog) DescribeColumns(name string) ([]catalog.Column, error) {
	t, err := c.Table(name)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Column, len(t.Columns))
	copy(out, t.Columns)
	return out, nil
}

// Children returns the tables whose parent is name.
func (c *Catalog) Children(name string) []catalog.Table {
	var out []catalog.Table
	for _, t := range c.tables {
		if strings.EqualFold(t.Parent, name) {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks every table and that all references resolve.
func (c *Catalog) Validate() error {
	for _, t := range c.tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if t.Parent != "" {
			p, err := c.Table(t.Parent)
			if err != nil {
				return fmt.Errorf("table %s: %w", t.Name, err)
			}
			if len(p.KeyIndexes()) != len(t.ParentLink) {
				return fmt.Errorf("table %s: link %v does not match key of %s", t.Name, t.ParentLink, p.Name)
			}
		}
		for _, col := range t.Columns {
			if col.Kind != catalog.KindForeignKey {
				continue
			}
			ref, err := c.Table(col.ReferencedTable)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", t.Name, col.Name, err)
			}
			if ref.Index(col.ReferencedColumn) < 0 {
				return fmt.Errorf("table %s column %s: %s has no column %s", t.Name, col.Name, ref.Name, col.ReferencedColumn)
			}
		}
	}
	return nil
}

// Reference is a foreign-key edge from one table to another.
type Reference struct {
	Table   string
	Columns []string
	// Target and TargetColumns name the referenced table and columns.
	Target        string
	TargetColumns []string
}

// References lists the edges that point at table target. The parent link
// of a child table is one edge; other foreign-key columns are one each.
func (c *Catalog) References(target string) []Reference {
	var out []Reference
	for _, t := range c.tables {
		out = append(out, c.outgoing(t)...)
	}
	filtered := out[:0]
	for _, r := range out {
		if strings.EqualFold(r.Target, target) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Outgoing lists the edges that leave table t.
func (c *Catalog) Outgoing(name string) []Reference {
	t, err := c.Table(name)
	if err != nil {
		return nil
	}
	return c.outgoing(t)
}

func (c *Catalog) outgoing(t catalog.Table) []Reference {
	var out []Reference
	link := make(map[string]bool, len(t.ParentLink))
	if t.Parent != "" {
		p, err := c.Table(t.Parent)
		if err == nil {
			var targets []string
			for _, i := range p.KeyIndexes() {
				targets = append(targets, p.Columns[i].Name)
			}
			out = append(out, Reference{Table: t.Name, Columns: t.ParentLink, Target: p.Name, TargetColumns: targets})
		}
		for _, name := range t.ParentLink {
			link[strings.ToLower(name)] = true
		}
	}
	for _, col := range t.Columns {
		if col.Kind != catalog.KindForeignKey || link[strings.ToLower(col.Name)] {
			continue
		}
		out = append(out, Reference{
			Table:         t.Name,
			Columns:       []string{col.Name},
			Target:        col.ReferencedTable,
			TargetColumns: []string{col.ReferencedColumn},
		})
	}
	return out
}
