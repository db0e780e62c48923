// Package catalog holds the archive data model shared by the editing core
// and the entity stores: column metadata, row values, primary-key vectors
// and the rejection record a store returns when it refuses a change.
package catalog

import (
	"fmt"
	"strings"
)

// ColumnKind selects how a column is parsed, rendered and validated.
type ColumnKind int

const (
	KindPlain ColumnKind = iota
	KindForeignKey
	KindDate
	KindPath
)

func (k ColumnKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindForeignKey:
		return "foreignKey"
	case KindDate:
		return "date"
	case KindPath:
		return "path"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DataType is the storage type of a column value.
type DataType int

const (
	TypeText DataType = iota
	TypeInteger
)

// Column describes one column of a table.
type Column struct {
	Name string
	Kind ColumnKind
	Type DataType

	PrimaryKey bool
	// Sequence marks a primary-key component that is drawn from a
	// per-parent sequence when a new row is committed.
	Sequence bool
	Visible  bool
	ReadOnly bool
	Required bool
	Unique   bool
	// MaxLength limits text values, counted in grapheme clusters. Zero is unlimited.
	MaxLength int

	ReferencedTable  string
	ReferencedColumn string
}

// Editable reports whether a user may type into the column.
func (c Column) Editable() bool {
	return c.Visible && !c.ReadOnly
}

// Table describes a catalogue table and, for child tables, how it links to its parent.
type Table struct {
	Name    string
	Columns []Column
	// Parent is the master table name; empty for top-level tables.
	Parent string
	// ParentLink lists the child columns holding the parent's key, in parent key order.
	ParentLink []string
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// KeyIndexes returns the positions of the primary-key columns.
func (t Table) KeyIndexes() []int {
	var out []int
	for i, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, i)
		}
	}
	return out
}

// LinkIndexes returns the positions of the ParentLink columns.
func (t Table) LinkIndexes() ([]int, error) {
	out := make([]int, 0, len(t.ParentLink))
	for _, name := range t.ParentLink {
		idx := t.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("table %s: parent link column %q not found", t.Name, name)
		}
		out = append(out, idx)
	}
	return out, nil
}

// KeyOf extracts the primary-key vector from a row.
func (t Table) KeyOf(v Values) Key {
	idx := t.KeyIndexes()
	key := make(Key, 0, len(idx))
	for _, i := range idx {
		if i < len(v) {
			key = append(key, v[i])
		} else {
			key = append(key, nil)
		}
	}
	return key
}

// Blank returns an empty row for the table.
func (t Table) Blank() Values {
	return make(Values, len(t.Columns))
}

// FirstEditable returns the first visible, writable column, or 0.
func (t Table) FirstEditable() int {
	for i, c := range t.Columns {
		if c.Editable() {
			return i
		}
	}
	return 0
}

// Validate checks the table definition itself.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	if len(t.KeyIndexes()) == 0 {
		return fmt.Errorf("table %s has no primary key", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.ToLower(c.Name)
		if seen[name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[name] = true
		if c.Kind == KindForeignKey && (c.ReferencedTable == "" || c.ReferencedColumn == "") {
			return fmt.Errorf("table %s: foreign key %q has no reference", t.Name, c.Name)
		}
		if c.Sequence && !c.PrimaryKey {
			return fmt.Errorf("table %s: sequence column %q is not part of the primary key", t.Name, c.Name)
		}
	}
	if t.Parent != "" {
		if len(t.ParentLink) == 0 {
			return fmt.Errorf("table %s: parent %s without link columns", t.Name, t.Parent)
		}
		if _, err := t.LinkIndexes(); err != nil {
			return err
		}
	}
	return nil
}
