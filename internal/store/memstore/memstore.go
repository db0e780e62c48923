// Package memstore is an in-memory entity store that enforces the same
// key, uniqueness and reference rules as the SQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/schema"
)

// Store keeps rows per table, guarded by a mutex.
type Store struct {
	mu     sync.Mutex
	schema *schema.Catalog
	rows   map[string][]catalog.Values
}

var (
	_ catalog.Store           = (*Store)(nil)
	_ catalog.Sequencer       = (*Store)(nil)
	_ catalog.ReferenceSource = (*Store)(nil)
)

func New(s *schema.Catalog) *Store {
	return &Store{schema: s, rows: make(map[string][]catalog.Values)}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) table(name string) (catalog.Table, error) {
	t, err := s.schema.Table(name)
	if err != nil {
		return catalog.Table{}, apperrors.Unexpected(err)
	}
	return t, nil
}

func (s *Store) FetchParents(ctx context.Context, table string) ([]catalog.Values, error) {
	return s.fetch(ctx, table, nil)
}

func (s *Store) FetchChildren(ctx context.Context, table string, parentKey catalog.Key) ([]catalog.Values, error) {
	return s.fetch(ctx, table, parentKey)
}

func (s *Store) fetch(ctx context.Context, name string, parentKey catalog.Key) ([]catalog.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	links, err := t.LinkIndexes()
	if err != nil {
		return nil, apperrors.Unexpected(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Values
	for _, r := range s.rows[t.Name] {
		if parentKey != nil && !matches(r, links, parentKey) {
			continue
		}
		out = append(out, r.Clone())
	}
	sortByKey(t, out)
	return out, nil
}

func matches(r catalog.Values, idx []int, key catalog.Key) bool {
	if len(idx) != len(key) {
		return false
	}
	for j, i := range idx {
		if canon(r[i]) != canon(key[j]) {
			return false
		}
	}
	return true
}

func canon(v any) string {
	return strings.TrimSpace(catalog.FormatValue(v))
}

func sortByKey(t catalog.Table, rows []catalog.Values) {
	idx := t.KeyIndexes()
	sort.SliceStable(rows, func(a, b int) bool {
		for _, i := range idx {
			x, y := rows[a][i], rows[b][i]
			xi, xok := x.(int64)
			yi, yok := y.(int64)
			if xok && yok {
				if xi != yi {
					return xi < yi
				}
				continue
			}
			if cx, cy := canon(x), canon(y); cx != cy {
				return cx < cy
			}
		}
		return false
	})
}

func (s *Store) normalize(t catalog.Table, v catalog.Values) (catalog.Values, error) {
	if len(v) != len(t.Columns) {
		return nil, apperrors.Unexpected(fmt.Errorf("%s: got %d values for %d columns", t.Name, len(v), len(t.Columns)))
	}
	out := make(catalog.Values, len(v))
	for i, c := range t.Columns {
		n, err := catalog.Normalize(c, v[i])
		if err != nil {
			return nil, catalog.Reject(apperrors.KindValidation, i, v, err.Error(), err)
		}
		out[i] = n
	}
	return out, nil
}

func (s *Store) indexOf(t catalog.Table, key catalog.Key) int {
	for i, r := range s.rows[t.Name] {
		if t.KeyOf(r).Equal(key) {
			return i
		}
	}
	return -1
}

// Commit inserts when original is nil, otherwise updates the row it identifies.
func (s *Store) Commit(ctx context.Context, name string, values catalog.Values, original catalog.Key) (catalog.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	v, err := s.normalize(t, values)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := -1
	if original != nil {
		at = s.indexOf(t, original)
		if at < 0 {
			return nil, catalog.Conflict(t, original, values)
		}
	}
	if err := s.checkRow(t, v, at); err != nil {
		return nil, err
	}
	if at >= 0 && !t.KeyOf(v).Equal(original) {
		if n := s.referencing(t, s.rows[t.Name][at]); n != "" {
			return nil, catalog.Reject(apperrors.KindConstraintViolation, t.KeyIndexes()[0], values,
				fmt.Sprintf("the key of this %s row is used by %s", t.Name, n), nil)
		}
	}

	if at >= 0 {
		s.rows[t.Name][at] = v
	} else {
		s.rows[t.Name] = append(s.rows[t.Name], v)
	}
	return v.Clone(), nil
}

// checkRow enforces not-null, key, unique and reference rules. self is
// the index of the row being replaced, or -1.
func (s *Store) checkRow(t catalog.Table, v catalog.Values, self int) error {
	for i, c := range t.Columns {
		if (c.PrimaryKey || c.Required) && canon(v[i]) == "" {
			return catalog.Reject(apperrors.KindConstraintViolation, i, v, fmt.Sprintf("%s may not be empty", c.Name), nil)
		}
	}
	key := t.KeyOf(v)
	for j, r := range s.rows[t.Name] {
		if j == self {
			continue
		}
		if t.KeyOf(r).Equal(key) {
			col := t.KeyIndexes()[len(t.KeyIndexes())-1]
			return catalog.Duplicate(t, col, v, fmt.Errorf("duplicate key %s", key))
		}
		for i, c := range t.Columns {
			if c.Unique && canon(v[i]) != "" && strings.EqualFold(canon(v[i]), canon(r[i])) {
				return catalog.Duplicate(t, i, v, fmt.Errorf("duplicate %s.%s", t.Name, c.Name))
			}
		}
	}
	for _, ref := range s.schema.Outgoing(t.Name) {
		target, err := s.schema.Table(ref.Target)
		if err != nil {
			return apperrors.Unexpected(err)
		}
		from := indexes(t, ref.Columns)
		to := indexes(target, ref.TargetColumns)
		want := make(catalog.Key, len(from))
		empty := true
		for j, i := range from {
			want[j] = v[i]
			if canon(v[i]) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		found := false
		for _, r := range s.rows[target.Name] {
			if matches(r, to, want) {
				found = true
				break
			}
		}
		if !found {
			return catalog.Reject(apperrors.KindConstraintViolation, from[len(from)-1], v,
				fmt.Sprintf("%s %s does not exist", target.Name, want), nil)
		}
	}
	return nil
}

func indexes(t catalog.Table, names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = t.Index(n)
	}
	return out
}

// referencing names a table holding rows that point at r, or "".
func (s *Store) referencing(t catalog.Table, r catalog.Values) string {
	for _, ref := range s.schema.References(t.Name) {
		src, err := s.schema.Table(ref.Table)
		if err != nil {
			continue
		}
		want := make(catalog.Key, len(ref.TargetColumns))
		for j, i := range indexes(t, ref.TargetColumns) {
			want[j] = r[i]
		}
		from := indexes(src, ref.Columns)
		for _, row := range s.rows[src.Name] {
			if matches(row, from, want) {
				return src.Name
			}
		}
	}
	return ""
}

func (s *Store) Delete(ctx context.Context, name string, original catalog.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.table(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.indexOf(t, original)
	if at < 0 {
		return catalog.Conflict(t, original, nil)
	}
	if n := s.referencing(t, s.rows[t.Name][at]); n != "" {
		return catalog.RejectDelete(apperrors.KindConstraintViolation, len(t.Columns),
			fmt.Sprintf("%s %s is still used by %s", t.Name, original, n), nil)
	}
	rows := s.rows[t.Name]
	s.rows[t.Name] = append(rows[:at:at], rows[at+1:]...)
	return nil
}

// Next returns one more than the highest value of column among the
// rows under parentKey.
func (s *Store) Next(ctx context.Context, name, column string, parentKey catalog.Key) (any, error) {
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	col := t.Index(column)
	if col < 0 {
		return nil, apperrors.Unexpected(fmt.Errorf("%s has no column %s", name, column))
	}
	links, err := t.LinkIndexes()
	if err != nil {
		return nil, apperrors.Unexpected(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var high int64
	for _, r := range s.rows[t.Name] {
		if len(links) > 0 && !matches(r, links, parentKey) {
			continue
		}
		if n, ok := r[col].(int64); ok && n > high {
			high = n
		}
	}
	return high + 1, nil
}

// References lists the distinct values of table.column in order.
func (s *Store) References(ctx context.Context, name, column string) ([]any, error) {
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	col := t.Index(column)
	if col < 0 {
		return nil, apperrors.Unexpected(fmt.Errorf("%s has no column %s", name, column))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []any
	for _, r := range s.rows[t.Name] {
		k := canon(r[col])
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r[col])
	}
	sort.SliceStable(out, func(a, b int) bool { return canon(out[a]) < canon(out[b]) })
	return out, nil
}
