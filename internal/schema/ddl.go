package schema

import (
	"fmt"
	"strings"

	"github.com/oukeidos/arcat/internal/catalog"
)

// Dialect selects SQL syntax differences between the supported databases.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect maps a driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Placeholder returns the bind marker for the n-th argument, counting from 1.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Quote quotes an identifier.
func (d Dialect) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) columnType(c catalog.Column) string {
	switch {
	case c.Kind == catalog.KindDate && d == Postgres:
		return "DATE"
	case c.Type == catalog.TypeInteger && d == Postgres:
		return "BIGINT"
	case c.Type == catalog.TypeInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// DDL returns the CREATE statements for every table, parents first.
func (c *Catalog) DDL(d Dialect) []string {
	out := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, c.createTable(d, t))
	}
	return out
}

func (c *Catalog) createTable(d Dialect, t catalog.Table) string {
	var lines []string
	var keys []string
	for _, col := range t.Columns {
		line := "  " + d.Quote(col.Name) + " " + d.columnType(col)
		if col.PrimaryKey || col.Required {
			line += " NOT NULL"
		}
		if col.Unique {
			line += " UNIQUE"
		}
		lines = append(lines, line)
		if col.PrimaryKey {
			keys = append(keys, d.Quote(col.Name))
		}
	}
	lines = append(lines, "  PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	for _, ref := range c.outgoing(t) {
		lines = append(lines, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE RESTRICT",
			quoteAll(d, ref.Columns), d.Quote(ref.Target), quoteAll(d, ref.TargetColumns)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", d.Quote(t.Name), strings.Join(lines, ",\n"))
}

func quoteAll(d Dialect, names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return strings.Join(out, ", ")
}
