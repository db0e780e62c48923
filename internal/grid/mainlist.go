package grid

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

type row struct {
	// original is nil for the insertion row.
	original  catalog.Values
	working   catalog.Values
	key       catalog.Key
	state     RowState
	insertion bool
}

// RowView is a copy of one working row.
type RowView struct {
	State     RowState
	Insertion bool
	Values    catalog.Values
	Original  catalog.Values
	Key       catalog.Key
}

// MainList owns the child rows of the selected parent. The last row is
// always the insertion row.
type MainList struct {
	env       Env
	table     catalog.Table
	links     []int
	parentKey catalog.Key
	rows      []*row

	current    int
	currentCol int

	recovery   *Recovery
	recovering bool
}

// NewMainList returns an empty list for table holding only the insertion row.
func NewMainList(env Env, table catalog.Table) (*MainList, error) {
	if env.Store == nil {
		return nil, errors.New("grid: store is required")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	links, err := table.LinkIndexes()
	if err != nil {
		return nil, err
	}
	m := &MainList{
		env:        env.withDefaults(),
		table:      table,
		links:      links,
		current:    -1,
		currentCol: table.FirstEditable(),
	}
	m.recovery = &Recovery{list: m}
	m.rows = []*row{m.newInsertionRow()}
	return m, nil
}

func (m *MainList) newInsertionRow() *row {
	return &row{working: m.table.Blank(), state: Clean, insertion: true}
}

func (m *MainList) Table() catalog.Table { return m.table }

// SetEvents replaces the host notifications.
func (m *MainList) SetEvents(ev Events) { m.env.Events = ev }

func (m *MainList) ParentKey() catalog.Key { return m.parentKey }

func (m *MainList) Recovery() *Recovery { return m.recovery }

// RecoveryInProgress reports whether a refused change is waiting to be restored.
func (m *MainList) RecoveryInProgress() bool { return m.recovering }

// Len counts rows including the insertion row.
func (m *MainList) Len() int { return len(m.rows) }

// InsertionIndex is the index of the insertion row.
func (m *MainList) InsertionIndex() int { return len(m.rows) - 1 }

// Current returns the focused row and column; row is -1 when no row has focus.
func (m *MainList) Current() (int, int) { return m.current, m.currentCol }

// Row returns a copy of row i.
func (m *MainList) Row(i int) (RowView, bool) {
	if i < 0 || i >= len(m.rows) {
		return RowView{}, false
	}
	r := m.rows[i]
	return RowView{
		State:     r.state,
		Insertion: r.insertion,
		Values:    r.working.Clone(),
		Original:  r.original.Clone(),
		Key:       slices.Clone(r.key),
	}, true
}

// Cell returns the display text of one cell.
func (m *MainList) Cell(i, col, width int) string {
	if i < 0 || i >= len(m.rows) || col < 0 || col >= len(m.table.Columns) {
		return ""
	}
	return Display(m.table.Columns[col], m.rows[i].working[col], width)
}

// Load replaces the working set with the children of parentKey. Pending
// recovery for the previous set is dropped.
func (m *MainList) Load(parentKey catalog.Key, children []catalog.Values) {
	m.recovery.drop()
	m.recovering = false
	m.parentKey = slices.Clone(parentKey)

	rows := make([]*row, 0, len(children)+1)
	for _, v := range children {
		vals := m.normalize(v)
		rows = append(rows, &row{
			original: vals,
			working:  vals.Clone(),
			key:      m.table.KeyOf(vals),
			state:    Clean,
		})
	}
	m.rows = append(rows, m.newInsertionRow())
	m.current = -1
	m.env.Logger.Debug("rows loaded", "table", m.table.Name, "parent", m.parentKey.String(), "count", len(children))
	m.env.Events.changed()
}

func (m *MainList) normalize(v catalog.Values) catalog.Values {
	out := m.table.Blank()
	for i, c := range m.table.Columns {
		if i >= len(v) {
			break
		}
		n, err := catalog.Normalize(c, v[i])
		if err != nil {
			out[i] = v[i]
			continue
		}
		out[i] = n
	}
	return out
}

// dirty compares a row with its snapshot. Link columns of the insertion
// row are ignored since they are filled at commit time.
func (m *MainList) dirty(r *row) bool {
	if !r.insertion {
		return !SameValues(r.working, r.original)
	}
	for i, v := range r.working {
		if slices.Contains(m.links, i) {
			continue
		}
		if strings.TrimSpace(catalog.FormatValue(v)) != "" {
			return true
		}
	}
	return false
}

// Dirty lists rows whose edits have not reached the store.
func (m *MainList) Dirty() []AbandonedRow {
	var out []AbandonedRow
	for i, r := range m.rows {
		if !r.state.Dirty() || !m.dirty(r) {
			continue
		}
		out = append(out, AbandonedRow{
			Index:    i,
			State:    r.state,
			Original: r.original.Clone(),
			Working:  r.working.Clone(),
		})
	}
	return out
}

// OnRowEntered moves focus to row i, leaving the previously focused row.
func (m *MainList) OnRowEntered(i int) error {
	if i < 0 || i >= len(m.rows) || i == m.current {
		return nil
	}
	var err error
	if m.current >= 0 {
		err = m.OnRowLeft(m.current)
	}
	if i < len(m.rows) {
		m.current = i
	}
	return err
}

// OnCellFocused records the focused cell.
func (m *MainList) OnCellFocused(i, col int) error {
	err := m.OnRowEntered(i)
	if col >= 0 && col < len(m.table.Columns) {
		m.currentCol = col
	}
	return err
}

// OnCellEdited applies a value typed into a cell. Text is parsed for the
// column; other values are coerced to the column type.
func (m *MainList) OnCellEdited(i, col int, value any) error {
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("row %d out of range", i)
	}
	if col < 0 || col >= len(m.table.Columns) {
		return fmt.Errorf("column %d out of range", col)
	}
	c := m.table.Columns[col]
	if !c.Editable() {
		return apperrors.Validation(fmt.Sprintf("%s cannot be edited", c.Name))
	}
	if i != m.current {
		if err := m.OnRowEntered(i); err != nil {
			return err
		}
	}
	v, err := parseCell(c, value)
	if err != nil {
		m.env.Events.message(apperrors.PublicMessage(err))
		return err
	}
	// A refused row is restored before it takes new input, so the queued
	// restore cannot overwrite this edit later.
	if m.recovery.pendingFor(i) {
		m.recovery.ApplyRecovery()
	}
	r := m.rows[i]
	switch r.state {
	case PendingCommit, Promoting, PendingDelete, Deleted:
		return fmt.Errorf("row %d is busy (%s)", i, r.state)
	}
	r.working[col] = v
	m.currentCol = col
	if r.state == Clean || r.state == CommitFailed {
		r.state = Editing
	}
	return nil
}

// LeaveCurrent leaves the focused row, as before the list is repopulated.
func (m *MainList) LeaveCurrent() error {
	if m.current < 0 {
		return nil
	}
	return m.OnRowLeft(m.current)
}

// OnRowLeft treats leaving row i as a save request. A row whose values
// match its snapshot is settled without a store call.
func (m *MainList) OnRowLeft(i int) error {
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	if i == m.current {
		m.current = -1
	}
	if m.recovering {
		m.env.Observer.LeaveSuppressed(m.table.Name)
		m.env.Logger.Debug("leave ignored while restoring a refused row", "table", m.table.Name, "row", i)
		return nil
	}
	r := m.rows[i]
	switch r.state {
	case PendingCommit, Promoting, PendingDelete, Deleted:
		return nil
	}
	if !m.dirty(r) {
		m.settle(r)
		return nil
	}
	return m.commit(i)
}

func (m *MainList) settle(r *row) {
	if r.insertion {
		r.working = m.table.Blank()
	} else {
		r.working = r.original.Clone()
	}
	r.state = Clean
}

func (m *MainList) commit(i int) error {
	r := m.rows[i]
	ctx, cancel := m.env.callContext()
	defer cancel()

	values := r.working.Clone()
	auto := make(map[int]bool)
	if r.insertion {
		for j, idx := range m.links {
			auto[idx] = true
			if j < len(m.parentKey) {
				values[idx] = m.parentKey[j]
			}
		}
		for idx, c := range m.table.Columns {
			if c.Sequence && strings.TrimSpace(catalog.FormatValue(values[idx])) == "" {
				auto[idx] = true
			}
		}
	}

	col, err := validateRow(ctx, m.env, rowCheck{table: m.table, values: values, auto: auto})
	if err != nil {
		if apperrors.IsValidation(err) {
			return m.refuseLocally(i, col, err)
		}
		return m.fail(i, m.rejectionFor(err, col, values))
	}

	if r.insertion {
		for idx, c := range m.table.Columns {
			if !c.Sequence || values[idx] != nil {
				continue
			}
			if m.env.Keys == nil {
				return m.fail(i, m.rejectionFor(fmt.Errorf("no sequence source for %s", c.Name), idx, values))
			}
			next, err := m.env.Keys.Next(ctx, m.table.Name, c.Name, m.parentKey)
			if err != nil {
				return m.fail(i, m.rejectionFor(m.timeout(ctx, err), idx, values))
			}
			values[idx] = next
		}
		r.state = Promoting
	} else {
		r.state = PendingCommit
	}

	mode := "update"
	if r.key == nil {
		mode = "insert"
	}
	m.env.Observer.CommitAttempted(m.table.Name)
	committed, err := m.env.Store.Commit(ctx, m.table.Name, values, r.key)
	if err != nil {
		return m.fail(i, m.rejectionFor(m.timeout(ctx, err), m.focusColumn(i), values))
	}
	if committed == nil {
		committed = values
	}
	committed = m.normalize(committed)
	r.original = committed
	r.working = committed.Clone()
	r.key = m.table.KeyOf(committed)
	r.state = Clean
	m.env.Observer.Committed(m.table.Name, r.insertion)
	m.env.Logger.Info("row committed", "table", m.table.Name, "row", i, "commit.mode", mode, "key", r.key.String())
	m.env.Events.committed(i)

	if r.insertion {
		r.insertion = false
		m.rows = append(m.rows, m.newInsertionRow())
		m.env.Events.promoted(i)
	}
	m.env.Events.changed()
	return nil
}

func (m *MainList) timeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.New(apperrors.KindUnexpected, "store did not answer in time", err)
	}
	return err
}

func (m *MainList) focusColumn(i int) int {
	if i == m.current || m.current < 0 {
		return m.currentCol
	}
	return m.table.FirstEditable()
}

// rejectionFor turns a store error into a rejection for the row being
// committed. Errors that are not rejections restore the submitted values.
func (m *MainList) rejectionFor(err error, col int, submitted catalog.Values) *catalog.Rejection {
	var rej *catalog.Rejection
	if errors.As(err, &rej) {
		out := *rej
		out.Values = rej.Values.Clone()
		if out.Kind == "" {
			out.Kind = apperrors.KindUnexpected
		}
		if out.Column < 0 || out.Column >= len(m.table.Columns) {
			out.Column = col
		}
		return &out
	}
	kind, ok := apperrors.KindOf(err)
	switch {
	case !ok:
		kind = apperrors.KindUnexpected
	case kind == apperrors.KindValidation, kind == apperrors.KindConcurrencyConflict, kind == apperrors.KindConstraintViolation:
	default:
		kind = apperrors.KindUnexpected
	}
	return &catalog.Rejection{
		Row:    -1,
		Column: col,
		Values: submitted.Clone(),
		Reason: apperrors.PublicMessage(err),
		Kind:   kind,
		Cause:  err,
	}
}

// fail parks row i in CommitFailed and hands the rejection to recovery.
func (m *MainList) fail(i int, rej *catalog.Rejection) error {
	rej.Row = i
	m.rows[i].state = CommitFailed
	m.env.Observer.Rejected(m.table.Name, rej.Kind)
	m.env.Logger.Warn("change refused",
		"table", m.table.Name,
		"row", i,
		"kind", string(rej.Kind),
		"column", rej.Column,
		"reason", rej.Reason,
	)
	m.env.Events.commitFailed(rej)
	m.recovery.OnCommitRejected(rej)
	return rej
}

// refuseLocally reports a client-side validation failure. The row stays in
// Editing and nothing reaches the store. The reason is shown at once; focus
// moves to the offending cell on the next idle turn.
func (m *MainList) refuseLocally(i, col int, err error) error {
	m.rows[i].state = Editing
	rej := &catalog.Rejection{
		Row:    i,
		Column: col,
		Reason: apperrors.PublicMessage(err),
		Kind:   apperrors.KindValidation,
		Cause:  err,
	}
	m.env.Observer.Rejected(m.table.Name, apperrors.KindValidation)
	m.env.Logger.Debug("row failed validation", "table", m.table.Name, "row", i, "column", col, "error", err)
	m.env.Events.commitFailed(rej)
	m.env.Events.message(rej.Reason)
	m.recovery.schedule(rej, true)
	return err
}

// OnRowRemoved deletes row i. The insertion row cannot be deleted. A row
// with unsaved edits is committed first and deleted only if that succeeds.
func (m *MainList) OnRowRemoved(i int) error {
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	r := m.rows[i]
	if r.insertion {
		return nil
	}
	if m.recovering {
		return apperrors.Validation("finish correcting the refused row first")
	}
	switch r.state {
	case PendingCommit, Promoting, PendingDelete, Deleted:
		return nil
	}
	if r.state.Dirty() && m.dirty(r) {
		if err := m.commit(i); err != nil {
			return err
		}
	}
	return m.delete(i)
}

// RemoveRows deletes several rows, highest index first, stopping at the
// first refusal.
func (m *MainList) RemoveRows(indexes ...int) error {
	sorted := slices.Clone(indexes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	slices.Reverse(sorted)
	for _, i := range sorted {
		if err := m.OnRowRemoved(i); err != nil {
			return err
		}
	}
	return nil
}

func (m *MainList) delete(i int) error {
	r := m.rows[i]
	r.state = PendingDelete
	m.rows = slices.Delete(m.rows, i, i+1)
	switch {
	case m.current == i:
		m.current = -1
	case m.current > i:
		m.current--
	}
	m.env.Events.changed()

	ctx, cancel := m.env.callContext()
	defer cancel()
	err := m.env.Store.Delete(ctx, m.table.Name, r.key)
	if err == nil {
		r.state = Deleted
		m.env.Observer.Deleted(m.table.Name)
		m.env.Logger.Info("row deleted", "table", m.table.Name, "row", i, "key", r.key.String())
		m.env.Events.deleted(i)
		return nil
	}

	r.working = r.original.Clone()
	m.rows = slices.Insert(m.rows, i, r)
	if m.current >= i {
		m.current++
	}
	m.env.Events.changed()
	rej := m.rejectionFor(m.timeout(ctx, err), m.table.FirstEditable(), nil)
	rej.Values = catalog.KeepAll(len(m.table.Columns))
	return m.fail(i, rej)
}

// CancelEdit reverts row i to its snapshot without a store call. The
// insertion row goes back to blank.
func (m *MainList) CancelEdit(i int) {
	if i < 0 || i >= len(m.rows) {
		return
	}
	if m.recovery.pendingFor(i) {
		m.recovery.drop()
		m.recovering = false
	}
	r := m.rows[i]
	switch r.state {
	case PendingCommit, Promoting, PendingDelete, Deleted:
		return
	}
	m.settle(r)
	m.env.Events.changed()
}
