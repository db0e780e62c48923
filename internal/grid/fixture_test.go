package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oukeidos/arcat/internal/catalog"
)

const (
	colVenue = iota
	colDate
	colPieceNo
	colTitle
	colAudio
	colComments
)

func performancesTable() catalog.Table {
	return catalog.Table{
		Name: "performances",
		Columns: []catalog.Column{
			{Name: "venue", PrimaryKey: true, Visible: true},
			{Name: "date", PrimaryKey: true, Kind: catalog.KindDate, Visible: true},
		},
	}
}

func piecesTable() catalog.Table {
	return catalog.Table{
		Name:       "pieces",
		Parent:     "performances",
		ParentLink: []string{"venue", "date"},
		Columns: []catalog.Column{
			{Name: "venue", PrimaryKey: true, Kind: catalog.KindForeignKey, ReferencedTable: "performances", ReferencedColumn: "venue"},
			{Name: "date", PrimaryKey: true, Kind: catalog.KindDate},
			{Name: "piece_no", PrimaryKey: true, Sequence: true, Type: catalog.TypeInteger, Visible: true},
			{Name: "title", Visible: true},
			{Name: "audio_path", Kind: catalog.KindPath, Visible: true, Unique: true},
			{Name: "comments", Visible: true},
		},
	}
}

func day(s string) time.Time {
	d, err := time.Parse(catalog.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

type commitCall struct {
	values   catalog.Values
	original catalog.Key
}

// fakeStore keeps children per parent key and records every call.
type fakeStore struct {
	table   catalog.Table
	parents []catalog.Values
	rows    map[string][]catalog.Values

	fetches int
	commits []commitCall
	deletes []catalog.Key

	failCommit func(values catalog.Values, original catalog.Key) error
	failDelete func(key catalog.Key) error
	hang       bool
}

func newFakeStore() *fakeStore {
	a := catalog.Key{"Venue A", day("2020-01-01")}
	b := catalog.Key{"Venue B", day("2021-06-05")}
	return &fakeStore{
		table: piecesTable(),
		parents: []catalog.Values{
			{"Venue A", day("2020-01-01")},
			{"Venue B", day("2021-06-05")},
		},
		rows: map[string][]catalog.Values{
			a.String(): {
				{"Venue A", day("2020-01-01"), int64(1), "Opening", nil, nil},
				{"Venue A", day("2020-01-01"), int64(2), "Encore", "/audio/encore.flac", ""},
			},
			b.String(): {
				{"Venue B", day("2021-06-05"), int64(1), "Prelude", nil, nil},
			},
		},
	}
}

func (s *fakeStore) parentOf(v catalog.Values) string {
	idx, _ := s.table.LinkIndexes()
	k := make(catalog.Key, len(idx))
	for j, i := range idx {
		k[j] = v[i]
	}
	return k.String()
}

func (s *fakeStore) FetchParents(ctx context.Context, table string) ([]catalog.Values, error) {
	out := make([]catalog.Values, len(s.parents))
	for i, v := range s.parents {
		out[i] = v.Clone()
	}
	return out, nil
}

func (s *fakeStore) FetchChildren(ctx context.Context, table string, parentKey catalog.Key) ([]catalog.Values, error) {
	s.fetches++
	var out []catalog.Values
	for _, v := range s.rows[parentKey.String()] {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (s *fakeStore) Commit(ctx context.Context, table string, values catalog.Values, original catalog.Key) (catalog.Values, error) {
	s.commits = append(s.commits, commitCall{values: values.Clone(), original: original})
	if s.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.failCommit != nil {
		if err := s.failCommit(values, original); err != nil {
			return nil, err
		}
	}
	pk := s.parentOf(values)
	if original == nil {
		s.rows[pk] = append(s.rows[pk], values.Clone())
		return values.Clone(), nil
	}
	for i, r := range s.rows[pk] {
		if s.table.KeyOf(r).Equal(original) {
			s.rows[pk][i] = values.Clone()
			return values.Clone(), nil
		}
	}
	return nil, catalog.Conflict(s.table, original, values)
}

func (s *fakeStore) Delete(ctx context.Context, table string, original catalog.Key) error {
	s.deletes = append(s.deletes, original)
	if s.failDelete != nil {
		if err := s.failDelete(original); err != nil {
			return err
		}
	}
	for pk, rows := range s.rows {
		for i, r := range rows {
			if s.table.KeyOf(r).Equal(original) {
				s.rows[pk] = append(rows[:i:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return catalog.Conflict(s.table, original, nil)
}

func (s *fakeStore) Next(ctx context.Context, table, column string, parentKey catalog.Key) (any, error) {
	return int64(len(s.rows[parentKey.String()]) + 1), nil
}

type fakeRefs map[string][]any

func (r fakeRefs) References(ctx context.Context, table, column string) ([]any, error) {
	v, ok := r[table+"."+column]
	if !ok {
		return nil, errors.New("no such reference")
	}
	return v, nil
}

type fixture struct {
	t       *testing.T
	store   *fakeStore
	queue   *Queue
	main    *MainList
	parents *ParentList

	focus     [][2]int
	messages  []string
	failed    []*catalog.Rejection
	committed []int
	promoted  []int
	deleted   []int
}

func newFixture(t *testing.T, opts ...func(*Env)) *fixture {
	t.Helper()
	f := &fixture{t: t, store: newFakeStore(), queue: &Queue{}}
	env := Env{
		Store: f.store,
		Keys:  f.store,
		Defer: f.queue,
		Events: Events{
			RowCommitted:         func(i int) { f.committed = append(f.committed, i) },
			RowCommitFailed:      func(r *catalog.Rejection) { f.failed = append(f.failed, r) },
			FocusRequested:       func(i, c int) { f.focus = append(f.focus, [2]int{i, c}) },
			InsertionRowPromoted: func(i int) { f.promoted = append(f.promoted, i) },
			RowDeleted:           func(i int) { f.deleted = append(f.deleted, i) },
			Message:              func(s string) { f.messages = append(f.messages, s) },
		},
	}
	for _, opt := range opts {
		opt(&env)
	}
	main, err := NewMainList(env, piecesTable())
	if err != nil {
		t.Fatalf("NewMainList: %v", err)
	}
	parents, err := NewParentList(performancesTable(), main)
	if err != nil {
		t.Fatalf("NewParentList: %v", err)
	}
	f.main = main
	f.parents = parents
	if err := parents.Load(context.Background()); err != nil {
		t.Fatalf("Load parents: %v", err)
	}
	if err := parents.SelectParent(context.Background(), 0); err != nil {
		t.Fatalf("SelectParent: %v", err)
	}
	return f
}

func (f *fixture) row(i int) RowView {
	f.t.Helper()
	r, ok := f.main.Row(i)
	if !ok {
		f.t.Fatalf("row %d missing (len %d)", i, f.main.Len())
	}
	return r
}

func (f *fixture) edit(i, col int, v any) {
	f.t.Helper()
	if err := f.main.OnCellEdited(i, col, v); err != nil {
		f.t.Fatalf("OnCellEdited(%d, %d, %v): %v", i, col, v, err)
	}
}

func (f *fixture) lastFocus() [2]int {
	f.t.Helper()
	if len(f.focus) == 0 {
		f.t.Fatalf("no focus request")
	}
	return f.focus[len(f.focus)-1]
}

// assertInsertionRow checks there is exactly one insertion row and it is last.
func (f *fixture) assertInsertionRow() {
	f.t.Helper()
	n := 0
	for i := 0; i < f.main.Len(); i++ {
		r := f.row(i)
		if r.Insertion {
			n++
			if i != f.main.Len()-1 {
				f.t.Fatalf("insertion row at %d, want last (%d)", i, f.main.Len()-1)
			}
			if r.Original != nil {
				f.t.Fatalf("insertion row has a snapshot: %v", r.Original)
			}
		}
	}
	if n != 1 {
		f.t.Fatalf("found %d insertion rows, want 1", n)
	}
}
