// Package sqlstore is the entity store over database/sql, backed by
// SQLite (modernc.org/sqlite) or Postgres (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/logger"
	"github.com/oukeidos/arcat/internal/schema"
)

var (
	_ catalog.Store           = (*Store)(nil)
	_ catalog.Sequencer       = (*Store)(nil)
	_ catalog.ReferenceSource = (*Store)(nil)
)

var sqlOpen = sql.Open

// Options selects and locates the database.
type Options struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// Password overrides the DSN password, typically from the keychain.
	Password string
}

// Store maps catalogue tables one-to-one onto SQL tables.
type Store struct {
	db      *sql.DB
	dialect schema.Dialect
	schema  *schema.Catalog
}

// Open connects to the database described by opts.
func Open(ctx context.Context, cat *schema.Catalog, opts Options) (*Store, error) {
	dialect, err := schema.ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	var db *sql.DB
	switch dialect {
	case schema.SQLite:
		db, err = openSQLite(opts.Path)
	case schema.Postgres:
		db, err = openPostgres(opts.DSN, opts.Password)
	}
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	logger.Debug("database opened", "driver", dialect.String())
	return New(db, dialect, cat), nil
}

func openSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = "arcat.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlOpen("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own statements.
	db.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn, password string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, apperrors.Validation("postgres connection string is empty")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if password != "" {
		cfg.Password = password
	}
	cfg.ConnectTimeout = 10 * time.Second
	return stdlib.OpenDB(*cfg), nil
}

// New wraps an open database.
func New(db *sql.DB, dialect schema.Dialect, cat *schema.Catalog) *Store {
	return &Store{db: db, dialect: dialect, schema: cat}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() schema.Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

// Init creates any missing tables.
func (s *Store) Init(ctx context.Context) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range s.schema.DDL(s.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) table(name string) (catalog.Table, error) {
	t, err := s.schema.Table(name)
	if err != nil {
		return catalog.Table{}, apperrors.Unexpected(err)
	}
	return t, nil
}

func (s *Store) columnList(t catalog.Table) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = s.dialect.Quote(c.Name)
	}
	return strings.Join(names, ", ")
}

func (s *Store) keyOrder(t catalog.Table) string {
	var names []string
	for _, i := range t.KeyIndexes() {
		names = append(names, s.dialect.Quote(t.Columns[i].Name))
	}
	return strings.Join(names, ", ")
}

// where renders "a = ? AND b = ?" starting at placeholder n.
func (s *Store) where(t catalog.Table, idx []int, n int) string {
	parts := make([]string, len(idx))
	for j, i := range idx {
		parts[j] = s.dialect.Quote(t.Columns[i].Name) + " = " + s.dialect.Placeholder(n+j)
	}
	return strings.Join(parts, " AND ")
}

func (s *Store) bind(c catalog.Column, v any) (any, error) {
	n, err := catalog.Normalize(c, v)
	if err != nil || n == nil {
		return nil, err
	}
	if t, ok := n.(time.Time); ok && s.dialect == schema.SQLite {
		return t.Format(catalog.DateLayout), nil
	}
	return n, nil
}

func (s *Store) FetchParents(ctx context.Context, table string) ([]catalog.Values, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", s.columnList(t), s.dialect.Quote(t.Name), s.keyOrder(t))
	return s.query(ctx, t, q)
}

func (s *Store) FetchChildren(ctx context.Context, table string, parentKey catalog.Key) ([]catalog.Values, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	links, err := t.LinkIndexes()
	if err != nil {
		return nil, apperrors.Unexpected(err)
	}
	if len(links) != len(parentKey) {
		return nil, apperrors.Unexpected(fmt.Errorf("%s: parent key has %d parts, link has %d", t.Name, len(parentKey), len(links)))
	}
	args := make([]any, len(links))
	for j, i := range links {
		if args[j], err = s.bind(t.Columns[i], parentKey[j]); err != nil {
			return nil, apperrors.Unexpected(err)
		}
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		s.columnList(t), s.dialect.Quote(t.Name), s.where(t, links, 1), s.keyOrder(t))
	return s.query(ctx, t, q, args...)
}

func (s *Store) query(ctx context.Context, t catalog.Table, q string, args ...any) ([]catalog.Values, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classifyRead(t, err)
	}
	defer func() { _ = rows.Close() }()
	var out []catalog.Values
	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.Unexpected(fmt.Errorf("scan %s: %w", t.Name, err))
		}
		v := make(catalog.Values, len(raw))
		for i, c := range t.Columns {
			n, err := catalog.Normalize(c, raw[i])
			if err != nil {
				n = raw[i]
			}
			v[i] = n
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyRead(t, err)
	}
	return out, nil
}

// Commit inserts when original is nil, otherwise updates the row it
// identifies. An update that matches no row is a concurrency conflict.
func (s *Store) Commit(ctx context.Context, table string, values catalog.Values, original catalog.Key) (catalog.Values, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if len(values) != len(t.Columns) {
		return nil, apperrors.Unexpected(fmt.Errorf("%s: got %d values for %d columns", t.Name, len(values), len(t.Columns)))
	}
	args := make([]any, 0, len(values)+len(original))
	committed := make(catalog.Values, len(values))
	for i, c := range t.Columns {
		b, err := s.bind(c, values[i])
		if err != nil {
			return nil, catalog.Reject(apperrors.KindValidation, i, values, err.Error(), err)
		}
		args = append(args, b)
		committed[i], _ = catalog.Normalize(c, values[i])
	}

	var q string
	if original == nil {
		marks := make([]string, len(t.Columns))
		for i := range marks {
			marks[i] = s.dialect.Placeholder(i + 1)
		}
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.dialect.Quote(t.Name), s.columnList(t), strings.Join(marks, ", "))
	} else {
		keys := t.KeyIndexes()
		if len(original) != len(keys) {
			return nil, apperrors.Unexpected(fmt.Errorf("%s: original key has %d parts, want %d", t.Name, len(original), len(keys)))
		}
		sets := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			sets[i] = s.dialect.Quote(c.Name) + " = " + s.dialect.Placeholder(i+1)
		}
		for j, i := range keys {
			b, err := s.bind(t.Columns[i], original[j])
			if err != nil {
				return nil, apperrors.Unexpected(err)
			}
			args = append(args, b)
		}
		q = fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.dialect.Quote(t.Name), strings.Join(sets, ", "), s.where(t, keys, len(t.Columns)+1))
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		logger.Debug("commit refused by database", "table", t.Name, "error", err)
		return nil, commitError(t, values, err)
	}
	if original != nil {
		n, err := res.RowsAffected()
		if err != nil {
			return nil, apperrors.Unexpected(err)
		}
		if n == 0 {
			return nil, catalog.Conflict(t, original, values)
		}
	}
	return committed, nil
}

func (s *Store) Delete(ctx context.Context, table string, original catalog.Key) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	keys := t.KeyIndexes()
	if len(original) != len(keys) {
		return apperrors.Unexpected(fmt.Errorf("%s: original key has %d parts, want %d", t.Name, len(original), len(keys)))
	}
	args := make([]any, len(keys))
	for j, i := range keys {
		if args[j], err = s.bind(t.Columns[i], original[j]); err != nil {
			return apperrors.Unexpected(err)
		}
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s", s.dialect.Quote(t.Name), s.where(t, keys, 1))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		logger.Debug("delete refused by database", "table", t.Name, "error", err)
		return deleteError(t, original, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unexpected(err)
	}
	if n == 0 {
		return catalog.Conflict(t, original, nil)
	}
	return nil
}

// Next returns one more than the highest value of column under parentKey.
func (s *Store) Next(ctx context.Context, table, column string, parentKey catalog.Key) (any, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	col := t.Index(column)
	if col < 0 {
		return nil, apperrors.Unexpected(fmt.Errorf("%s has no column %s", t.Name, column))
	}
	links, err := t.LinkIndexes()
	if err != nil {
		return nil, apperrors.Unexpected(err)
	}
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", s.dialect.Quote(t.Columns[col].Name), s.dialect.Quote(t.Name))
	var args []any
	if len(links) > 0 {
		if len(parentKey) != len(links) {
			return nil, apperrors.Unexpected(fmt.Errorf("%s: parent key has %d parts, link has %d", t.Name, len(parentKey), len(links)))
		}
		for j, i := range links {
			b, err := s.bind(t.Columns[i], parentKey[j])
			if err != nil {
				return nil, apperrors.Unexpected(err)
			}
			args = append(args, b)
		}
		q += " WHERE " + s.where(t, links, 1)
	}
	var next int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&next); err != nil {
		return nil, classifyRead(t, err)
	}
	return next, nil
}

// References lists the distinct non-empty values of table.column.
func (s *Store) References(ctx context.Context, table, column string) ([]any, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	col := t.Index(column)
	if col < 0 {
		return nil, apperrors.Unexpected(fmt.Errorf("%s has no column %s", t.Name, column))
	}
	name := s.dialect.Quote(t.Columns[col].Name)
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s", name, s.dialect.Quote(t.Name), name, name)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classifyRead(t, err)
	}
	defer func() { _ = rows.Close() }()
	var out []any
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.Unexpected(err)
		}
		v, err := catalog.Normalize(t.Columns[col], raw)
		if err != nil || v == nil {
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyRead(t, err)
	}
	return out, nil
}
