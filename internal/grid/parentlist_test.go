package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

func TestSelectSameParentIsNoop(t *testing.T) {
	f := newFixture(t)
	f.edit(0, colTitle, "in progress")
	if err := f.parents.SelectParent(context.Background(), 0); err != nil {
		t.Fatalf("SelectParent: %v", err)
	}
	if f.store.fetches != 1 {
		t.Fatalf("fetches = %d, want 1", f.store.fetches)
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("reselect committed %d rows", len(f.store.commits))
	}
	if got := f.row(0).Values[colTitle]; got != "in progress" {
		t.Fatalf("edit lost: %v", got)
	}
}

func TestSelectParentSavesCurrentRowAndFocusesFirstEditable(t *testing.T) {
	f := newFixture(t)
	f.edit(1, colComments, "saved on switch")
	if err := f.parents.SelectParent(context.Background(), 1); err != nil {
		t.Fatalf("SelectParent: %v", err)
	}
	if len(f.store.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(f.store.commits))
	}
	if f.parents.Selected() != 1 || f.main.Len() != 2 {
		t.Fatalf("selected=%d len=%d", f.parents.Selected(), f.main.Len())
	}
	if got := f.lastFocus(); got != [2]int{0, colPieceNo} {
		t.Fatalf("focus = %v, want [0 %d]", got, colPieceNo)
	}
	if !f.parents.SelectedKey().Equal(catalog.Key{"Venue B", "2021-06-05"}) {
		t.Fatalf("SelectedKey = %v", f.parents.SelectedKey())
	}
	f.assertInsertionRow()
}

func TestSelectParentAsksBeforeAbandoningFailedRow(t *testing.T) {
	var (
		asked     []string
		answer    bool
		abandoned []Abandoned
	)
	f := newFixture(t, func(e *Env) {
		e.ConfirmAbandon = func(msg string, proceed func(bool)) {
			asked = append(asked, msg)
			proceed(answer)
		}
		e.OnAbandon = func(a Abandoned) { abandoned = append(abandoned, a) }
	})
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return apperrors.Conflict(errors.New("gone"))
	}
	ctx := context.Background()
	f.edit(0, colTitle, "unsaved")

	answer = false
	if err := f.parents.SelectParent(ctx, 1); err != nil {
		t.Fatalf("SelectParent: %v", err)
	}
	if len(asked) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(asked))
	}
	if f.parents.Selected() != 0 {
		t.Fatalf("selection moved to %d after decline", f.parents.Selected())
	}
	f.queue.Flush()
	if got := f.row(0).Values[colTitle]; got != "unsaved" {
		t.Fatalf("declined switch lost edit: %v", got)
	}

	answer = true
	if err := f.parents.SelectParent(ctx, 1); err != nil {
		t.Fatalf("SelectParent: %v", err)
	}
	if f.parents.Selected() != 1 {
		t.Fatalf("selection = %d, want 1", f.parents.Selected())
	}
	if len(abandoned) != 1 || len(abandoned[0].Rows) != 1 {
		t.Fatalf("abandoned = %+v", abandoned)
	}
	lost := abandoned[0]
	if lost.Table != "pieces" || lost.Rows[0].Working[colTitle] != "unsaved" || lost.Rows[0].Original[colTitle] != "Opening" {
		t.Fatalf("abandoned row = %+v", lost)
	}
	if f.main.RecoveryInProgress() {
		t.Fatalf("recovery survived parent switch")
	}
}

func TestPendingRecoveryDroppedByLoad(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return catalog.Reject(apperrors.KindConstraintViolation, colTitle, values, "nope", nil)
	}
	f.edit(0, colTitle, "x")
	_ = f.main.OnRowLeft(0)
	focusBefore := len(f.focus)

	f.main.Load(catalog.Key{"Venue B", day("2021-06-05")}, nil)
	f.queue.Flush()
	if len(f.focus) != focusBefore {
		t.Fatalf("stale recovery moved focus: %v", f.focus[focusBefore:])
	}
	if f.main.RecoveryInProgress() {
		t.Fatalf("recovery still in progress")
	}
}

func TestReloadKeepsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := catalog.Key{"Venue A", day("2020-01-01")}
	f.store.rows[a.String()] = append(f.store.rows[a.String()],
		catalog.Values{"Venue A", day("2020-01-01"), int64(3), "Added elsewhere", nil, nil})
	f.store.parents = append([]catalog.Values{{"Venue 0", day("2019-01-01")}}, f.store.parents...)

	if err := f.parents.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if f.parents.Selected() != 1 {
		t.Fatalf("selected = %d, want 1", f.parents.Selected())
	}
	if f.main.Len() != 4 {
		t.Fatalf("Len = %d, want 4", f.main.Len())
	}
}

func TestNewParentListRejectsUnrelatedTable(t *testing.T) {
	f := newFixture(t)
	other := catalog.Table{Name: "artists", Columns: []catalog.Column{{Name: "name", PrimaryKey: true}}}
	if _, err := NewParentList(other, f.main); err == nil {
		t.Fatalf("expected error for unrelated parent table")
	}
}
