package grid

import (
	"context"
	"fmt"
	"slices"

	"github.com/oukeidos/arcat/internal/catalog"
)

// ParentList holds the read-only parent rows and keeps the child list in
// step with the selected one.
type ParentList struct {
	env      Env
	table    catalog.Table
	main     *MainList
	rows     []catalog.Values
	selected int
}

// NewParentList ties table to the child list. It shares the child list's
// environment.
func NewParentList(table catalog.Table, main *MainList) (*ParentList, error) {
	if main == nil {
		return nil, fmt.Errorf("grid: child list is required")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if main.table.Parent != table.Name {
		return nil, fmt.Errorf("grid: %s is not the parent of %s", table.Name, main.table.Name)
	}
	return &ParentList{env: main.env, table: table, main: main, selected: -1}, nil
}

func (p *ParentList) Table() catalog.Table { return p.table }

func (p *ParentList) Main() *MainList { return p.main }

func (p *ParentList) Len() int { return len(p.rows) }

// Row returns a copy of parent row i.
func (p *ParentList) Row(i int) (catalog.Values, bool) {
	if i < 0 || i >= len(p.rows) {
		return nil, false
	}
	return p.rows[i].Clone(), true
}

// Selected returns the selected parent index, or -1.
func (p *ParentList) Selected() int { return p.selected }

// SelectedKey returns the key of the selected parent, or nil.
func (p *ParentList) SelectedKey() catalog.Key {
	if p.selected < 0 {
		return nil
	}
	return p.table.KeyOf(p.rows[p.selected])
}

// Load fetches the parent rows. The selection survives when its key is
// still present.
func (p *ParentList) Load(ctx context.Context) error {
	prev := p.SelectedKey()
	cctx, cancel := context.WithTimeout(ctx, p.env.Timeout)
	defer cancel()
	rows, err := p.env.Store.FetchParents(cctx, p.table.Name)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", p.table.Name, err)
	}
	p.rows = rows
	p.selected = -1
	if prev != nil {
		p.selected = p.indexOf(prev)
	}
	p.env.Logger.Debug("parents loaded", "table", p.table.Name, "count", len(rows))
	return nil
}

func (p *ParentList) indexOf(key catalog.Key) int {
	return slices.IndexFunc(p.rows, func(v catalog.Values) bool {
		return p.table.KeyOf(v).Equal(key)
	})
}

// SelectParent shows the children of parent i. The focused child row is
// left first, so pending edits get their save attempt. Edits that are
// still unsaved afterwards are discarded once the user confirms.
// Selecting the current parent again does nothing.
func (p *ParentList) SelectParent(ctx context.Context, i int) error {
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("parent %d out of range", i)
	}
	if i == p.selected {
		return nil
	}
	if err := p.main.LeaveCurrent(); err != nil {
		p.env.Logger.Debug("child row not saved before parent switch", "table", p.main.table.Name, "error", err)
	}
	pending := p.main.Dirty()
	if len(pending) == 0 || p.env.ConfirmAbandon == nil {
		return p.switchTo(ctx, i)
	}

	answered := false
	inline := true
	var result error
	p.env.ConfirmAbandon(abandonMessage(p.main.table.Name, len(pending)), func(ok bool) {
		answered = true
		if !ok {
			p.env.Logger.Debug("parent switch cancelled", "table", p.table.Name, "parent", i)
			return
		}
		result = p.switchTo(ctx, i)
		if result != nil && !inline {
			p.main.env.Events.message(result.Error())
		}
	})
	inline = false
	if answered {
		return result
	}
	return nil
}

func abandonMessage(table string, n int) string {
	if n == 1 {
		return fmt.Sprintf("One %s row has changes that were not saved. Discard them?", table)
	}
	return fmt.Sprintf("%d %s rows have changes that were not saved. Discard them?", n, table)
}

func (p *ParentList) switchTo(ctx context.Context, i int) error {
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("parent %d out of range", i)
	}
	key := p.table.KeyOf(p.rows[i])
	cctx, cancel := context.WithTimeout(ctx, p.env.Timeout)
	defer cancel()
	children, err := p.env.Store.FetchChildren(cctx, p.main.table.Name, key)
	if err != nil {
		return fmt.Errorf("fetch %s for %s: %w", p.main.table.Name, key, err)
	}

	if lost := p.main.Dirty(); len(lost) > 0 {
		p.env.Logger.Warn("unsaved rows discarded", "table", p.main.table.Name, "parent", p.main.parentKey.String(), "count", len(lost))
		if p.env.OnAbandon != nil {
			p.env.OnAbandon(Abandoned{
				Table:     p.main.table.Name,
				ParentKey: slices.Clone(p.main.parentKey),
				Rows:      lost,
			})
		}
	}

	p.selected = i
	p.main.Load(key, children)
	p.main.env.Events.focus(0, p.main.table.FirstEditable())
	return nil
}

// Reload refetches the parents and the children of the selected parent.
func (p *ParentList) Reload(ctx context.Context) error {
	if err := p.main.LeaveCurrent(); err != nil {
		p.env.Logger.Debug("child row not saved before reload", "table", p.main.table.Name, "error", err)
	}
	if err := p.Load(ctx); err != nil {
		return err
	}
	if p.selected < 0 {
		p.main.Load(nil, nil)
		return nil
	}
	i := p.selected
	p.selected = -1
	err := p.SelectParent(ctx, i)
	if p.selected < 0 {
		p.selected = i
	}
	return err
}
