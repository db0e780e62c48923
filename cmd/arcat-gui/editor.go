package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/grid"
	"github.com/oukeidos/arcat/internal/logger"
)

const (
	cellChars   = 40
	stateWidth  = 110
	columnWidth = 170
)

// editor shows a parent table next to the editable rows of one catalogue
// table. Cells are edited in the entry above the rows.
type editor struct {
	app *guiApp

	// deferrer and confirm are replaced in tests.
	deferrer grid.Deferrer
	confirm  func(message string, proceed func(bool))

	table   catalog.Table
	main    *grid.MainList
	parents *grid.ParentList
	cols    []int
	pcols   []int

	tableSelect *widget.Select
	parentTable *widget.Table
	childTable  *widget.Table
	cellLabel   *widget.Label
	cellEntry   *widget.Entry
	parentBox   *fyne.Container
	content     fyne.CanvasObject

	// moving is set while focus is changed programmatically so the
	// resulting selection callbacks are not treated as user input.
	moving bool
}

func newEditor(a *guiApp) *editor {
	e := &editor{app: a}
	e.deferrer = grid.DeferFunc(a.idleDeferrer)
	e.confirm = func(message string, proceed func(bool)) {
		dialog.NewConfirm("Discard unsaved edits?", message, func(ok bool) {
			proceed(ok)
			e.syncParentSelection()
			e.refresh()
		}, a.window).Show()
	}

	e.tableSelect = widget.NewSelect(a.schema.Names(), func(name string) {
		if err := e.open(name); err != nil {
			e.showError(err)
		}
	})

	e.parentTable = widget.NewTable(e.parentLength, newCellLabel, e.updateParentCell)
	e.parentTable.ShowHeaderRow = true
	e.parentTable.CreateHeader = newHeaderLabel
	e.parentTable.UpdateHeader = e.updateParentHeader
	e.parentTable.OnSelected = e.onParentSelected

	e.childTable = widget.NewTable(e.childLength, newCellLabel, e.updateChildCell)
	e.childTable.ShowHeaderRow = true
	e.childTable.CreateHeader = newHeaderLabel
	e.childTable.UpdateHeader = e.updateChildHeader
	e.childTable.OnSelected = e.onChildSelected

	e.cellLabel = widget.NewLabel("")
	e.cellEntry = widget.NewEntry()
	e.cellEntry.SetPlaceHolder("Select a cell to edit it")
	e.cellEntry.OnSubmitted = e.editCell

	saveBtn := widget.NewButtonWithIcon("Save row", theme.DocumentSaveIcon(), e.saveRow)
	cancelBtn := widget.NewButtonWithIcon("Undo row", theme.ContentUndoIcon(), e.cancelRow)
	deleteBtn := widget.NewButtonWithIcon("Delete row", theme.DeleteIcon(), e.confirmDelete)
	reloadBtn := widget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), func() {
		if err := e.reload(); err != nil {
			e.showError(err)
		}
	})

	toolbar := container.NewHBox(widget.NewLabel("Table"), e.tableSelect, saveBtn, cancelBtn, deleteBtn, reloadBtn)
	editBar := container.NewBorder(nil, nil, e.cellLabel, nil, e.cellEntry)
	e.parentBox = container.NewStack(e.parentTable)
	split := container.NewHSplit(e.parentBox, container.NewBorder(editBar, nil, nil, nil, e.childTable))
	split.Offset = 0.3
	e.content = container.NewBorder(toolbar, nil, nil, nil, split)
	return e
}

func newCellLabel() fyne.CanvasObject {
	l := widget.NewLabel("")
	l.Truncation = fyne.TextTruncateEllipsis
	return l
}

func newHeaderLabel() fyne.CanvasObject {
	return widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
}

func visibleColumns(t catalog.Table) []int {
	var out []int
	for i, c := range t.Columns {
		if c.Visible {
			out = append(out, i)
		}
	}
	return out
}

// selectTable switches tables through the selector so it shows the choice.
func (e *editor) selectTable(name string) {
	if e.tableSelect.Selected == name {
		if err := e.open(name); err != nil {
			e.showError(err)
		}
		return
	}
	e.tableSelect.SetSelected(name)
}

// open builds fresh controllers for the named table and loads its rows.
func (e *editor) open(name string) error {
	a := e.app
	if a.backend == nil {
		return errors.New("no store is connected")
	}
	t, err := a.schema.Table(name)
	if err != nil {
		return err
	}
	if e.main != nil {
		if err := e.main.LeaveCurrent(); err != nil {
			logger.Warn("Row not saved before switching tables", "table", e.table.Name, "error", err)
		}
		if dirty := e.main.Dirty(); len(dirty) > 0 {
			e.saveAbandoned(grid.Abandoned{Table: e.table.Name, ParentKey: e.main.ParentKey(), Rows: dirty})
		}
	}

	cfg := a.config.toConfig()
	env := grid.Env{
		Store:          a.backend,
		Keys:           a.backend,
		References:     a.backend,
		Paths:          a.paths,
		Defer:          e.deferrer,
		Logger:         logger.Logger(),
		Events:         e.events(),
		Observer:       a.metrics,
		Context:        a.ctx,
		Timeout:        cfg.Database.CommitTimeout,
		ConfirmAbandon: e.confirm,
		OnAbandon:      e.saveAbandoned,
	}
	m, err := grid.NewMainList(env, t)
	if err != nil {
		return err
	}
	var parents *grid.ParentList
	if t.Parent != "" {
		pt, err := a.schema.Table(t.Parent)
		if err != nil {
			return err
		}
		if parents, err = grid.NewParentList(pt, m); err != nil {
			return err
		}
		if err := parents.Load(a.ctx); err != nil {
			return err
		}
	} else {
		ctx, cancel := context.WithTimeout(a.ctx, cfg.Database.CommitTimeout)
		rows, err := a.backend.FetchParents(ctx, t.Name)
		cancel()
		if err != nil {
			return err
		}
		m.Load(nil, rows)
	}

	e.table, e.main, e.parents = t, m, parents
	e.cols = visibleColumns(t)
	e.pcols = nil
	if parents != nil {
		e.pcols = visibleColumns(parents.Table())
		e.parentBox.Show()
	} else {
		e.parentBox.Hide()
	}
	e.layoutColumns()
	e.cellLabel.SetText("")
	e.cellEntry.SetText("")
	a.config.LastTable = t.Name
	a.prefs.SetString("LastTable", t.Name)

	if parents != nil && parents.Len() > 0 {
		if err := parents.SelectParent(a.ctx, 0); err != nil {
			return err
		}
		e.syncParentSelection()
	}
	e.refresh()
	a.setStatus(fmt.Sprintf("%s: %d rows", t.Name, m.Len()-1))
	return nil
}

func (e *editor) reload() error {
	if e.main == nil {
		return nil
	}
	if e.parents != nil {
		if err := e.parents.Reload(e.app.ctx); err != nil {
			return err
		}
		e.syncParentSelection()
		e.refresh()
		return nil
	}
	return e.open(e.table.Name)
}

func (e *editor) layoutColumns() {
	e.childTable.SetColumnWidth(0, stateWidth)
	for i := range e.cols {
		e.childTable.SetColumnWidth(i+1, columnWidth)
	}
	for i := range e.pcols {
		e.parentTable.SetColumnWidth(i, columnWidth)
	}
}

func (e *editor) events() grid.Events {
	return grid.Events{
		RowCommitted: func(row int) {
			e.app.setStatus(fmt.Sprintf("Saved row %d", row))
		},
		InsertionRowPromoted: func(row int) {
			e.app.setStatus(fmt.Sprintf("Added row %d", row))
		},
		RowCommitFailed: func(rej *catalog.Rejection) {
			e.app.setStatus(fmt.Sprintf("Row %d not saved (%s)", rej.Row, rej.Kind))
		},
		RowDeleted: func(row int) {
			e.app.setStatus(fmt.Sprintf("Deleted row %d", row))
		},
		FocusRequested: e.focusCell,
		Message: func(text string) {
			dialog.ShowInformation("Not saved", text, e.app.window)
		},
		Changed: e.refresh,
	}
}

func (e *editor) refresh() {
	e.childTable.Refresh()
	e.parentTable.Refresh()
	if e.main == nil {
		return
	}
	if row, col := e.main.Current(); row >= 0 && col >= 0 {
		e.showCell(row, col)
	}
}

func (e *editor) parentLength() (int, int) {
	if e.parents == nil {
		return 0, 0
	}
	return e.parents.Len(), len(e.pcols)
}

func (e *editor) updateParentHeader(id widget.TableCellID, o fyne.CanvasObject) {
	if e.parents == nil || id.Col < 0 || id.Col >= len(e.pcols) {
		return
	}
	o.(*widget.Label).SetText(e.parents.Table().Columns[e.pcols[id.Col]].Name)
}

func (e *editor) updateParentCell(id widget.TableCellID, o fyne.CanvasObject) {
	l := o.(*widget.Label)
	if e.parents == nil || id.Col >= len(e.pcols) {
		l.SetText("")
		return
	}
	row, ok := e.parents.Row(id.Row)
	if !ok {
		l.SetText("")
		return
	}
	col := e.pcols[id.Col]
	l.SetText(grid.Display(e.parents.Table().Columns[col], row[col], cellChars))
}

func (e *editor) childLength() (int, int) {
	if e.main == nil {
		return 0, 0
	}
	return e.main.Len(), len(e.cols) + 1
}

func (e *editor) updateChildHeader(id widget.TableCellID, o fyne.CanvasObject) {
	l := o.(*widget.Label)
	if id.Col == 0 {
		l.SetText("state")
		return
	}
	if id.Col-1 < len(e.cols) {
		l.SetText(e.table.Columns[e.cols[id.Col-1]].Name)
	}
}

func (e *editor) updateChildCell(id widget.TableCellID, o fyne.CanvasObject) {
	l := o.(*widget.Label)
	view, ok := e.main.Row(id.Row)
	if !ok {
		l.SetText("")
		return
	}
	if id.Col == 0 {
		l.TextStyle = fyne.TextStyle{Italic: view.Insertion}
		if view.Insertion {
			l.SetText("new")
		} else {
			l.SetText(view.State.String())
		}
		return
	}
	l.TextStyle = fyne.TextStyle{}
	l.SetText(e.main.Cell(id.Row, e.cols[id.Col-1], cellChars))
}

func (e *editor) onParentSelected(id widget.TableCellID) {
	if e.moving || e.parents == nil {
		return
	}
	if err := e.parents.SelectParent(e.app.ctx, id.Row); err != nil {
		e.showError(err)
	}
	e.syncParentSelection()
	e.refresh()
}

// syncParentSelection shows the parent the controller actually selected,
// which differs from the clicked one when a switch was declined.
func (e *editor) syncParentSelection() {
	if e.parents == nil {
		return
	}
	e.moving = true
	defer func() { e.moving = false }()
	if i := e.parents.Selected(); i >= 0 {
		e.parentTable.Select(widget.TableCellID{Row: i, Col: 0})
	} else {
		e.parentTable.UnselectAll()
	}
}

func (e *editor) onChildSelected(id widget.TableCellID) {
	if e.moving || e.main == nil {
		return
	}
	col := e.table.FirstEditable()
	if id.Col > 0 && id.Col-1 < len(e.cols) {
		col = e.cols[id.Col-1]
	}
	e.enterCell(id.Row, col)
}

// enterCell focuses row, col. Moving to another row leaves the current
// one, which saves it; a refusal is reported by recovery, which also moves
// focus back.
func (e *editor) enterCell(row, col int) {
	m := e.main
	if err := m.OnCellFocused(row, col); err != nil {
		if m.RecoveryInProgress() {
			logger.Debug("Row left with error", "table", e.table.Name, "error", err)
			return
		}
		e.showError(err)
		return
	}
	e.showCell(row, col)
}

func (e *editor) focusCell(row, col int) {
	e.moving = true
	defer func() { e.moving = false }()
	for i, c := range e.cols {
		if c == col {
			e.childTable.Select(widget.TableCellID{Row: row, Col: i + 1})
			break
		}
	}
	e.showCell(row, col)
}

func (e *editor) showCell(row, col int) {
	if col < 0 || col >= len(e.table.Columns) {
		return
	}
	c := e.table.Columns[col]
	label := "new"
	if row != e.main.InsertionIndex() {
		label = strconv.Itoa(row)
	}
	e.cellLabel.SetText(fmt.Sprintf("%s [%s]", c.Name, label))
	e.cellEntry.SetText(e.main.Cell(row, col, 0))
	if c.Editable() {
		e.cellEntry.Enable()
	} else {
		e.cellEntry.Disable()
	}
}

func (e *editor) editCell(text string) {
	if e.main == nil {
		return
	}
	row, col := e.main.Current()
	if row < 0 || col < 0 {
		return
	}
	if err := e.main.OnCellEdited(row, col, text); err != nil {
		// Parse failures were already shown through Message.
		if !apperrors.IsValidation(err) {
			e.showError(err)
		}
	} else {
		e.showCell(row, col)
	}
	e.childTable.Refresh()
}

func (e *editor) saveRow() {
	if e.main == nil {
		return
	}
	// Pick up text typed without pressing Enter.
	if row, col := e.main.Current(); row >= 0 && col >= 0 && !e.cellEntry.Disabled() &&
		e.main.Cell(row, col, 0) != e.cellEntry.Text {
		e.editCell(e.cellEntry.Text)
	}
	if err := e.main.LeaveCurrent(); err != nil {
		logger.Debug("Save refused", "table", e.table.Name, "error", err)
	}
	e.refresh()
}

func (e *editor) cancelRow() {
	if e.main == nil {
		return
	}
	if row, _ := e.main.Current(); row >= 0 {
		e.main.CancelEdit(row)
		e.refresh()
	}
}

func (e *editor) confirmDelete() {
	if e.main == nil {
		return
	}
	row, _ := e.main.Current()
	if row < 0 || row == e.main.InsertionIndex() {
		return
	}
	msg := fmt.Sprintf("Delete row %d from %s?", row, e.table.Name)
	dialog.ShowConfirm("Delete row", msg, func(ok bool) {
		if ok {
			e.deleteRow(row)
		}
	}, e.app.window)
}

func (e *editor) deleteRow(row int) {
	err := e.main.RemoveRows(row)
	var rej *catalog.Rejection
	if err != nil && !errors.As(err, &rej) {
		// Rejections are reported by recovery.
		e.showError(err)
	}
	e.refresh()
}

func (e *editor) saveAbandoned(a grid.Abandoned) {
	t, err := e.app.schema.Table(a.Table)
	if err != nil || e.app.journal == nil {
		logger.Error("Abandoned edits not journaled", "table", a.Table, "rows", len(a.Rows))
		return
	}
	path, err := e.app.journal.Save(t, a)
	if err != nil {
		logger.Error("Saving abandoned edits failed", "table", a.Table, "error", err)
		e.showError(fmt.Errorf("unsaved edits could not be kept: %w", err))
		return
	}
	if path != "" {
		e.app.setStatus("Discarded edits kept in " + path)
	}
}

func (e *editor) showError(err error) {
	if e.app.window == nil {
		logger.Error("Editor error", "error", err)
		return
	}
	dialog.ShowError(err, e.app.window)
}
