package sqlstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

type violation int

const (
	violationNone violation = iota
	violationUnique
	violationForeignKey
	violationNotNull
	violationBusy
)

var (
	pgKeyDetail     = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteConstrain = regexp.MustCompile(`(?:UNIQUE|NOT NULL) constraint failed: ([\w"., ]+)`)
)

// classify maps a driver error to a violation and, when the driver names
// it, the offending column.
func classify(err error) (violation, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return violationUnique, lastColumn(pgKeyColumns(pgErr.Detail))
		case "23503":
			return violationForeignKey, lastColumn(pgKeyColumns(pgErr.Detail))
		case "23502":
			return violationNotNull, pgErr.ColumnName
		case "40001", "40P01", "55P03":
			return violationBusy, ""
		}
		return violationNone, ""
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return violationUnique, sqliteColumn(se.Error())
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return violationForeignKey, ""
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return violationNotNull, sqliteColumn(se.Error())
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return violationBusy, ""
		}
	}

	// Drivers that only report the primary result code still carry the text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "duplicate key value"):
		return violationUnique, sqliteColumn(msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"), strings.Contains(msg, "violates foreign key constraint"):
		return violationForeignKey, ""
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return violationNotNull, sqliteColumn(msg)
	case strings.Contains(msg, "database is locked"):
		return violationBusy, ""
	}
	return violationNone, ""
}

func pgKeyColumns(detail string) string {
	m := pgKeyDetail.FindStringSubmatch(detail)
	if m == nil {
		return ""
	}
	return m[1]
}

func sqliteColumn(msg string) string {
	m := sqliteConstrain.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return lastColumn(m[1])
}

// lastColumn picks the last entry of "t.a, t.b" and drops the table prefix.
func lastColumn(list string) string {
	if list == "" {
		return ""
	}
	parts := strings.Split(list, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if i := strings.LastIndex(last, "."); i >= 0 {
		last = last[i+1:]
	}
	return strings.Trim(last, `" `)
}

func columnIndex(t catalog.Table, name string, fallback int) int {
	if name == "" {
		return fallback
	}
	if i := t.Index(name); i >= 0 {
		return i
	}
	return fallback
}

func lastKeyColumn(t catalog.Table) int {
	keys := t.KeyIndexes()
	return keys[len(keys)-1]
}

func commitError(t catalog.Table, values catalog.Values, err error) error {
	kind, col := classify(err)
	switch kind {
	case violationUnique:
		return catalog.Duplicate(t, columnIndex(t, col, lastKeyColumn(t)), values, err)
	case violationForeignKey:
		return catalog.Reject(apperrors.KindConstraintViolation, columnIndex(t, col, t.FirstEditable()), values,
			"a referenced record does not exist", err)
	case violationNotNull:
		idx := columnIndex(t, col, t.FirstEditable())
		return catalog.Reject(apperrors.KindConstraintViolation, idx, values,
			fmt.Sprintf("%s may not be empty", t.Columns[idx].Name), err)
	case violationBusy:
		return apperrors.Transient(fmt.Errorf("commit %s: %w", t.Name, err))
	default:
		return apperrors.Unexpected(fmt.Errorf("commit %s: %w", t.Name, err))
	}
}

func deleteError(t catalog.Table, original catalog.Key, err error) error {
	kind, _ := classify(err)
	switch kind {
	case violationForeignKey:
		return catalog.RejectDelete(apperrors.KindConstraintViolation, len(t.Columns),
			fmt.Sprintf("%s %s is still referenced by other records", t.Name, original), err)
	case violationBusy:
		return apperrors.Transient(fmt.Errorf("delete %s: %w", t.Name, err))
	default:
		return apperrors.Unexpected(fmt.Errorf("delete %s: %w", t.Name, err))
	}
}

func classifyRead(t catalog.Table, err error) error {
	if kind, _ := classify(err); kind == violationBusy {
		return apperrors.Transient(fmt.Errorf("read %s: %w", t.Name, err))
	}
	return apperrors.Unexpected(fmt.Errorf("read %s: %w", t.Name, err))
}
