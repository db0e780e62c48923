package grid

import (
	"github.com/oukeidos/arcat/internal/catalog"
)

// Recovery brings a refused row back into edit: it restores the values the
// store rejected, returns focus to the offending cell and reports why.
// The work runs on the host's next idle turn, never inside the event that
// caused the refusal.
type Recovery struct {
	list    *MainList
	pending *catalog.Rejection
	seq     uint64
	// announced is set when the reason was already shown to the user.
	announced bool
}

// OnCommitRejected records rej and schedules ApplyRecovery. Leave events
// are ignored until it has run.
func (rc *Recovery) OnCommitRejected(rej *catalog.Rejection) {
	rc.schedule(rej, false)
}

func (rc *Recovery) schedule(rej *catalog.Rejection, announced bool) {
	if rej == nil {
		return
	}
	m := rc.list
	rc.seq++
	seq := rc.seq
	rc.pending = rej
	rc.announced = announced
	m.recovering = true
	m.env.Defer.Defer(func() {
		if rc.seq != seq {
			return
		}
		rc.ApplyRecovery()
	})
}

// Pending returns the rejection waiting to be applied, if any.
func (rc *Recovery) Pending() *catalog.Rejection {
	return rc.pending
}

func (rc *Recovery) pendingFor(row int) bool {
	return rc.pending != nil && rc.pending.Row == row
}

func (rc *Recovery) drop() {
	rc.pending = nil
	rc.announced = false
	rc.seq++
}

// ApplyRecovery applies the pending rejection. Entries marked Keep are left
// alone; a rejection without values restores nothing and the row keeps
// its state.
func (rc *Recovery) ApplyRecovery() {
	rej := rc.pending
	if rej == nil {
		return
	}
	rc.pending = nil
	announced := rc.announced
	rc.announced = false
	m := rc.list
	defer func() { m.recovering = false }()

	if rej.Row < 0 || rej.Row >= len(m.rows) {
		if !announced {
			m.env.Events.message(rej.Reason)
		}
		return
	}
	r := m.rows[rej.Row]
	if len(rej.Values) > 0 {
		for i, v := range rej.Values {
			if i >= len(r.working) {
				break
			}
			if catalog.IsKeep(v) {
				continue
			}
			r.working[i] = v
		}
		r.state = Editing
	}

	col := rej.Column
	if col < 0 || col >= len(m.table.Columns) || !m.table.Columns[col].Editable() {
		col = m.currentCol
		if col < 0 || col >= len(m.table.Columns) || !m.table.Columns[col].Editable() {
			col = m.table.FirstEditable()
		}
	}
	m.current = rej.Row
	m.currentCol = col
	m.env.Logger.Debug("refused row restored", "table", m.table.Name, "row", rej.Row, "column", col)
	m.env.Events.changed()
	m.env.Events.focus(rej.Row, col)
	if !announced {
		m.env.Events.message(rej.Reason)
	}
}
