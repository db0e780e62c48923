package grid

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

func TestEnterLeaveWithoutEditMakesNoStoreCall(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < f.main.Len(); i++ {
		if err := f.main.OnRowEntered(i); err != nil {
			t.Fatalf("OnRowEntered(%d): %v", i, err)
		}
		if err := f.main.OnRowLeft(i); err != nil {
			t.Fatalf("OnRowLeft(%d): %v", i, err)
		}
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("store commits = %d, want 0", len(f.store.commits))
	}
	for i := 0; i < f.main.Len(); i++ {
		if got := f.row(i).State; got != Clean {
			t.Fatalf("row %d state = %s, want clean", i, got)
		}
	}
}

func TestEditBackToSameValueIsNotACommit(t *testing.T) {
	f := newFixture(t)
	// comments is nil in the store; an empty string is the same value.
	f.edit(1, colComments, "")
	f.edit(1, colTitle, "Encore")
	if got := f.row(1).State; got != Editing {
		t.Fatalf("state after edit = %s, want editing", got)
	}
	if err := f.main.OnRowEntered(0); err != nil {
		t.Fatalf("OnRowEntered: %v", err)
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("store commits = %d, want 0", len(f.store.commits))
	}
	if got := f.row(1).State; got != Clean {
		t.Fatalf("state = %s, want clean", got)
	}
}

func TestCommitOnLeaveSurvivesParentSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.edit(0, colComments, "Great set")
	if err := f.main.OnRowEntered(1); err != nil {
		t.Fatalf("leave R1: %v", err)
	}
	if len(f.store.commits) != 1 {
		t.Fatalf("store commits = %d, want 1", len(f.store.commits))
	}
	r1 := f.row(0)
	if r1.State != Clean || catalog.FormatValue(r1.Original[colComments]) != "Great set" {
		t.Fatalf("R1 after commit = %s %v", r1.State, r1.Original)
	}
	if len(f.committed) != 1 || f.committed[0] != 0 {
		t.Fatalf("RowCommitted events = %v", f.committed)
	}

	if err := f.parents.SelectParent(ctx, 1); err != nil {
		t.Fatalf("select B: %v", err)
	}
	if err := f.parents.SelectParent(ctx, 0); err != nil {
		t.Fatalf("select A: %v", err)
	}
	if f.store.fetches != 3 {
		t.Fatalf("fetches = %d, want 3", f.store.fetches)
	}
	if got := catalog.FormatValue(f.row(0).Values[colComments]); got != "Great set" {
		t.Fatalf("R1 comments after refetch = %q", got)
	}
}

func TestInsertionRowPromotion(t *testing.T) {
	f := newFixture(t)
	ins := f.main.InsertionIndex()
	f.edit(ins, colTitle, "Finale")
	if err := f.main.OnRowEntered(0); err != nil {
		t.Fatalf("leave insertion row: %v", err)
	}
	if len(f.store.commits) != 1 {
		t.Fatalf("store commits = %d, want 1", len(f.store.commits))
	}
	call := f.store.commits[0]
	if call.original != nil {
		t.Fatalf("insert sent original key %v", call.original)
	}
	if call.values[colVenue] != "Venue A" || catalog.FormatValue(call.values[colDate]) != "2020-01-01" {
		t.Fatalf("parent link not filled: %v", call.values)
	}
	if call.values[colPieceNo] != int64(3) {
		t.Fatalf("piece_no = %v, want 3 from sequence", call.values[colPieceNo])
	}

	if f.main.Len() != 4 {
		t.Fatalf("Len = %d, want 4", f.main.Len())
	}
	promoted := f.row(ins)
	if promoted.Insertion || promoted.State != Clean || promoted.Original == nil {
		t.Fatalf("promoted row = %+v", promoted)
	}
	fresh := f.row(f.main.InsertionIndex())
	for i, v := range fresh.Values {
		if v != nil {
			t.Fatalf("fresh insertion row column %d = %v, want empty", i, v)
		}
	}
	if len(f.promoted) != 1 || f.promoted[0] != ins {
		t.Fatalf("InsertionRowPromoted events = %v", f.promoted)
	}
	f.assertInsertionRow()
}

func TestUniqueRejectionClearsOffendingCell(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		if values[colAudio] == "/x.mp3" {
			return catalog.Duplicate(f.store.table, colAudio, values, errors.New("UNIQUE constraint failed: pieces.audio_path"))
		}
		return nil
	}
	ins := f.main.InsertionIndex()
	f.edit(ins, colPieceNo, "1")
	f.edit(ins, colAudio, "/x.mp3")

	err := f.main.OnRowEntered(0)
	var rej *catalog.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("leave error = %v, want rejection", err)
	}
	if rej.Row != ins || rej.Kind != apperrors.KindConstraintViolation {
		t.Fatalf("rejection = %+v", rej)
	}
	if got := f.row(ins).State; got != CommitFailed {
		t.Fatalf("state before recovery = %s, want commit_failed", got)
	}
	if !f.main.RecoveryInProgress() {
		t.Fatalf("recovery not in progress")
	}

	// Leave events while the row settles must not commit anything.
	_ = f.main.OnRowEntered(1)
	_ = f.main.OnRowLeft(1)
	if len(f.store.commits) != 1 {
		t.Fatalf("store commits = %d, want 1", len(f.store.commits))
	}

	if n := f.queue.Flush(); n == 0 {
		t.Fatalf("no recovery was deferred")
	}
	if f.main.RecoveryInProgress() {
		t.Fatalf("recovery still in progress after flush")
	}
	r := f.row(ins)
	if r.State != Editing || !r.Insertion {
		t.Fatalf("row after recovery = %s insertion=%v", r.State, r.Insertion)
	}
	if catalog.FormatValue(r.Values[colPieceNo]) != "1" {
		t.Fatalf("piece_no = %v, want 1", r.Values[colPieceNo])
	}
	if r.Values[colAudio] != nil {
		t.Fatalf("audio_path = %v, want cleared", r.Values[colAudio])
	}
	if got := f.lastFocus(); got != [2]int{ins, colAudio} {
		t.Fatalf("focus = %v, want [%d %d]", got, ins, colAudio)
	}
	if len(f.messages) == 0 || !strings.Contains(f.messages[len(f.messages)-1], "/x.mp3") {
		t.Fatalf("messages = %v", f.messages)
	}
	f.assertInsertionRow()
}

func TestConflictRestoresRejectedValues(t *testing.T) {
	f := newFixture(t)
	// Someone else removed R2.
	a := catalog.Key{"Venue A", day("2020-01-01")}
	f.store.rows[a.String()] = f.store.rows[a.String()][:1]

	f.edit(1, colTitle, "Encore (live)")
	if err := f.main.OnRowLeft(1); err == nil {
		t.Fatalf("expected conflict")
	}
	if len(f.failed) != 1 || f.failed[0].Kind != apperrors.KindConcurrencyConflict {
		t.Fatalf("RowCommitFailed events = %v", f.failed)
	}
	f.queue.Flush()
	r := f.row(1)
	if !SameValues(r.Values, f.failed[0].Values) {
		t.Fatalf("working = %v, want %v", r.Values, f.failed[0].Values)
	}
	if r.State != Editing {
		t.Fatalf("state = %s, want editing", r.State)
	}
	if f.main.Len() != 3 {
		t.Fatalf("row dropped: Len = %d", f.main.Len())
	}
}

func TestHiddenOffendingColumnFallsBackToCurrentColumn(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return catalog.Reject(apperrors.KindConstraintViolation, colVenue, values, "venue is closed", nil)
	}
	if err := f.main.OnCellFocused(0, colComments); err != nil {
		t.Fatalf("OnCellFocused: %v", err)
	}
	f.edit(0, colComments, "x")
	_ = f.main.OnRowLeft(0)
	f.queue.Flush()
	if got := f.lastFocus(); got != [2]int{0, colComments} {
		t.Fatalf("focus = %v, want [0 %d]", got, colComments)
	}
}

func TestValidationNeverReachesStore(t *testing.T) {
	f := newFixture(t, func(e *Env) {})
	tbl := piecesTable()
	tbl.Columns[colTitle].Required = true
	main, err := NewMainList(f.main.env, tbl)
	if err != nil {
		t.Fatalf("NewMainList: %v", err)
	}
	main.Load(catalog.Key{"Venue A", day("2020-01-01")}, nil)

	ins := main.InsertionIndex()
	if err := main.OnCellEdited(ins, colComments, "untitled"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	err = main.OnRowLeft(ins)
	if !apperrors.IsValidation(err) {
		t.Fatalf("leave error = %v, want validation", err)
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("store commits = %d, want 0", len(f.store.commits))
	}
	if got, _ := main.Row(ins); got.State != Editing {
		t.Fatalf("state = %s, want editing", got.State)
	}
	f.queue.Flush()
	if got := f.lastFocus(); got != [2]int{ins, colTitle} {
		t.Fatalf("focus = %v, want [%d %d]", got, ins, colTitle)
	}
}

func TestForeignKeyWithoutReferencesIsValidationError(t *testing.T) {
	refs := fakeRefs{"artists.name": nil}
	f := newFixture(t, func(e *Env) { e.References = refs })
	tbl := piecesTable()
	tbl.Columns = append(tbl.Columns, catalog.Column{
		Name: "artist", Kind: catalog.KindForeignKey, Visible: true, Required: true,
		ReferencedTable: "artists", ReferencedColumn: "name",
	})
	main, err := NewMainList(f.main.env, tbl)
	if err != nil {
		t.Fatalf("NewMainList: %v", err)
	}
	main.Load(catalog.Key{"Venue A", day("2020-01-01")}, nil)
	ins := main.InsertionIndex()
	if err := main.OnCellEdited(ins, colTitle, "Song"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	err = main.OnRowLeft(ins)
	if !apperrors.IsValidation(err) || !strings.Contains(err.Error(), "no artists") {
		t.Fatalf("leave error = %v", err)
	}

	refs["artists.name"] = []any{"Ada"}
	main.CancelEdit(ins)
	f.queue.Flush()
	if err := main.OnCellEdited(ins, colTitle, "Song"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	if err := main.OnCellEdited(ins, len(tbl.Columns)-1, "Bob"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	err = main.OnRowLeft(ins)
	if !apperrors.IsValidation(err) || !strings.Contains(err.Error(), "Bob") {
		t.Fatalf("leave error = %v", err)
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("store commits = %d, want 0", len(f.store.commits))
	}
}

func TestDeleteRow(t *testing.T) {
	f := newFixture(t)
	if err := f.main.OnRowRemoved(0); err != nil {
		t.Fatalf("OnRowRemoved: %v", err)
	}
	if f.main.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.main.Len())
	}
	if got := f.row(0).Values[colTitle]; got != "Encore" {
		t.Fatalf("row 0 title = %v, want Encore", got)
	}
	if len(f.deleted) != 1 || f.deleted[0] != 0 {
		t.Fatalf("RowDeleted events = %v", f.deleted)
	}
	f.assertInsertionRow()
}

func TestDeleteInsertionRowIsNoop(t *testing.T) {
	f := newFixture(t)
	ins := f.main.InsertionIndex()
	f.edit(ins, colTitle, "typed")
	if err := f.main.OnRowRemoved(ins); err != nil {
		t.Fatalf("OnRowRemoved: %v", err)
	}
	if len(f.store.deletes) != 0 || len(f.store.commits) != 0 {
		t.Fatalf("store calls: commits=%d deletes=%d", len(f.store.commits), len(f.store.deletes))
	}
	if f.main.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.main.Len())
	}
	f.assertInsertionRow()
}

func TestRefusedDeleteReinstatesRow(t *testing.T) {
	f := newFixture(t)
	f.store.failDelete = func(key catalog.Key) error {
		return catalog.RejectDelete(apperrors.KindConstraintViolation, len(f.store.table.Columns), "piece has images", nil)
	}
	before := f.row(0)
	err := f.main.OnRowRemoved(0)
	var rej *catalog.Rejection
	if !errors.As(err, &rej) || !rej.DeleteRefused() {
		t.Fatalf("delete error = %v, want refused delete", err)
	}
	if f.main.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.main.Len())
	}
	after := f.row(0)
	if after.State != CommitFailed || !SameValues(after.Values, before.Original) || !SameValues(after.Original, before.Original) {
		t.Fatalf("reinstated row = %+v, want original %v", after, before.Original)
	}
	f.queue.Flush()
	if !SameValues(f.row(0).Values, before.Original) {
		t.Fatalf("recovery changed values of refused delete: %v", f.row(0).Values)
	}
	f.assertInsertionRow()
}

func TestRemoveRowsStopsAtFirstRefusal(t *testing.T) {
	f := newFixture(t)
	f.store.failDelete = func(key catalog.Key) error {
		if catalog.FormatValue(key[2]) == "2" {
			return catalog.RejectDelete(apperrors.KindConstraintViolation, 6, "in use", nil)
		}
		return nil
	}
	err := f.main.RemoveRows(0, 1, 2, 1)
	if err == nil {
		t.Fatalf("expected refusal")
	}
	if len(f.store.deletes) != 1 {
		t.Fatalf("deletes = %d, want 1", len(f.store.deletes))
	}
	if f.main.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.main.Len())
	}
}

func TestDeleteDirtyRowCommitsFirst(t *testing.T) {
	f := newFixture(t)
	f.edit(1, colComments, "last one")
	if err := f.main.OnRowRemoved(1); err != nil {
		t.Fatalf("OnRowRemoved: %v", err)
	}
	if len(f.store.commits) != 1 || len(f.store.deletes) != 1 {
		t.Fatalf("commits=%d deletes=%d, want 1 and 1", len(f.store.commits), len(f.store.deletes))
	}
	if f.main.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.main.Len())
	}
}

func TestDeleteDirtyRowKeepsItWhenCommitFails(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return apperrors.Conflict(errors.New("row version changed"))
	}
	f.edit(1, colComments, "mid edit")
	if err := f.main.OnRowRemoved(1); err == nil {
		t.Fatalf("expected commit failure")
	}
	if len(f.store.deletes) != 0 {
		t.Fatalf("deletes = %d, want 0", len(f.store.deletes))
	}
	f.queue.Flush()
	r := f.row(1)
	if r.State != Editing || r.Values[colComments] != "mid edit" {
		t.Fatalf("row = %s %v", r.State, r.Values)
	}
}

func TestCancelEdit(t *testing.T) {
	f := newFixture(t)
	f.edit(0, colTitle, "changed")
	f.main.CancelEdit(0)
	r := f.row(0)
	if r.State != Clean || r.Values[colTitle] != "Opening" {
		t.Fatalf("row after cancel = %s %v", r.State, r.Values)
	}

	ins := f.main.InsertionIndex()
	f.edit(ins, colTitle, "draft")
	f.main.CancelEdit(ins)
	for i, v := range f.row(ins).Values {
		if v != nil {
			t.Fatalf("insertion column %d = %v after cancel", i, v)
		}
	}
	if len(f.store.commits) != 0 {
		t.Fatalf("store commits = %d, want 0", len(f.store.commits))
	}
	f.assertInsertionRow()
}

func TestCancelDropsPendingRecovery(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return catalog.Reject(apperrors.KindConstraintViolation, colTitle, values, "no", nil)
	}
	f.edit(0, colTitle, "bad")
	_ = f.main.OnRowLeft(0)
	f.main.CancelEdit(0)
	if f.main.RecoveryInProgress() {
		t.Fatalf("recovery still in progress after cancel")
	}
	f.queue.Flush()
	r := f.row(0)
	if r.State != Clean || r.Values[colTitle] != "Opening" {
		t.Fatalf("row = %s %v", r.State, r.Values)
	}
}

func TestCommitTimeoutIsUnexpected(t *testing.T) {
	f := newFixture(t, func(e *Env) { e.Timeout = 20 * time.Millisecond })
	f.store.hang = true
	f.edit(0, colComments, "late")
	err := f.main.OnRowLeft(0)
	var rej *catalog.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("leave error = %v, want rejection", err)
	}
	if rej.Kind != apperrors.KindUnexpected || !strings.Contains(rej.Reason, "in time") {
		t.Fatalf("rejection = %+v", rej)
	}
	f.queue.Flush()
	if got := f.row(0).Values[colComments]; got != "late" {
		t.Fatalf("comments = %v, want late", got)
	}
}

func TestUnexpectedErrorRestoresSubmittedValues(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return errors.New("disk I/O error")
	}
	f.edit(0, colTitle, "typed")
	_ = f.main.OnRowLeft(0)
	if f.failed[0].Kind != apperrors.KindUnexpected {
		t.Fatalf("kind = %q, want unexpected", f.failed[0].Kind)
	}
	f.queue.Flush()
	r := f.row(0)
	if r.State != Editing || r.Values[colTitle] != "typed" {
		t.Fatalf("row = %s %v", r.State, r.Values)
	}
}

func TestRejectionWithoutValuesLeavesRowFailed(t *testing.T) {
	f := newFixture(t)
	f.store.failCommit = func(values catalog.Values, original catalog.Key) error {
		return &catalog.Rejection{Row: -1, Column: colTitle, Reason: "store refused", Kind: apperrors.KindUnexpected}
	}
	f.edit(0, colTitle, "typed")
	_ = f.main.OnRowLeft(0)
	f.queue.Flush()
	if got := f.row(0).State; got != CommitFailed {
		t.Fatalf("state = %s, want commit_failed", got)
	}
	if got := f.lastFocus(); got != [2]int{0, colTitle} {
		t.Fatalf("focus = %v", got)
	}
}

func TestReadOnlyColumnCannotBeEdited(t *testing.T) {
	f := newFixture(t)
	err := f.main.OnCellEdited(0, colVenue, "Elsewhere")
	if !apperrors.IsValidation(err) {
		t.Fatalf("edit hidden column error = %v, want validation", err)
	}
	err = f.main.OnCellEdited(0, colPieceNo, "one")
	if !apperrors.IsValidation(err) {
		t.Fatalf("bad integer error = %v, want validation", err)
	}
	if got := f.row(0).State; got != Clean {
		t.Fatalf("state = %s, want clean", got)
	}
}

func TestEditDuringQueuedRecoveryIsKept(t *testing.T) {
	f := newFixture(t)
	// Someone else removed R2.
	a := catalog.Key{"Venue A", day("2020-01-01")}
	f.store.rows[a.String()] = f.store.rows[a.String()][:1]

	f.edit(1, colTitle, "Encore (live)")
	if err := f.main.OnRowLeft(1); err == nil {
		t.Fatalf("expected conflict")
	}
	// The user keeps typing before the host gets an idle turn.
	f.edit(1, colTitle, "Typed after refusal")
	if f.main.RecoveryInProgress() {
		t.Fatalf("recovery still pending after the row was edited")
	}
	f.queue.Flush()

	r := f.row(1)
	if r.Values[colTitle] != "Typed after refusal" {
		t.Fatalf("title = %v, want the later edit", r.Values[colTitle])
	}
	if r.State != Editing {
		t.Fatalf("state = %s, want editing", r.State)
	}
	if got := f.lastFocus(); got[0] != 1 {
		t.Fatalf("focus = %v, want row 1", got)
	}
}

func TestEditOnOtherRowLeavesRecoveryQueued(t *testing.T) {
	f := newFixture(t)
	a := catalog.Key{"Venue A", day("2020-01-01")}
	f.store.rows[a.String()] = f.store.rows[a.String()][:1]

	f.edit(1, colTitle, "Encore (live)")
	_ = f.main.OnRowLeft(1)
	f.edit(0, colComments, "tuned late")
	if !f.main.RecoveryInProgress() {
		t.Fatalf("recovery applied by an edit on another row")
	}
	f.queue.Flush()
	if got := f.row(1).Values[colTitle]; got != "Encore (live)" {
		t.Fatalf("refused row title = %v", got)
	}
	if got := f.row(0).Values[colComments]; got != "tuned late" {
		t.Fatalf("row 0 comments = %v", got)
	}
}

func TestValidationFailureIsReportedAtOnce(t *testing.T) {
	f := newFixture(t)
	tbl := piecesTable()
	tbl.Columns[colTitle].Required = true
	main, err := NewMainList(f.main.env, tbl)
	if err != nil {
		t.Fatalf("NewMainList: %v", err)
	}
	main.Load(catalog.Key{"Venue A", day("2020-01-01")}, nil)
	f.messages, f.failed = nil, nil

	ins := main.InsertionIndex()
	if err := main.OnCellEdited(ins, colComments, "untitled"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	_ = main.OnRowLeft(ins)
	if len(f.failed) != 1 || f.failed[0].Kind != apperrors.KindValidation || f.failed[0].Column != colTitle {
		t.Fatalf("RowCommitFailed events = %v", f.failed)
	}
	if len(f.messages) != 1 || !strings.Contains(f.messages[0], "title") {
		t.Fatalf("messages before idle turn = %v", f.messages)
	}
	f.queue.Flush()
	if len(f.messages) != 1 {
		t.Fatalf("messages after idle turn = %v, want the reason once", f.messages)
	}
	if got := f.lastFocus(); got != [2]int{ins, colTitle} {
		t.Fatalf("focus = %v, want [%d %d]", got, ins, colTitle)
	}
}

func TestForeignKeyTakesStoredSpelling(t *testing.T) {
	refs := fakeRefs{"artists.name": {"Ada", "Bob"}}
	f := newFixture(t, func(e *Env) { e.References = refs })
	tbl := piecesTable()
	tbl.Columns = append(tbl.Columns, catalog.Column{
		Name: "artist", Kind: catalog.KindForeignKey, Visible: true,
		ReferencedTable: "artists", ReferencedColumn: "name",
	})
	artist := len(tbl.Columns) - 1
	main, err := NewMainList(f.main.env, tbl)
	if err != nil {
		t.Fatalf("NewMainList: %v", err)
	}
	main.Load(catalog.Key{"Venue A", day("2020-01-01")}, nil)

	ins := main.InsertionIndex()
	if err := main.OnCellEdited(ins, colTitle, "Song"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	if err := main.OnCellEdited(ins, artist, "ada"); err != nil {
		t.Fatalf("OnCellEdited: %v", err)
	}
	if err := main.OnRowLeft(ins); err != nil {
		t.Fatalf("OnRowLeft: %v", err)
	}
	if len(f.store.commits) != 1 || f.store.commits[0].values[artist] != "Ada" {
		t.Fatalf("commits = %v, want artist Ada", f.store.commits)
	}
	if got, _ := main.Row(ins); got.Values[artist] != "Ada" {
		t.Fatalf("row artist = %v", got.Values[artist])
	}
}
