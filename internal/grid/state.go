// Package grid is the master-detail editing core: the child list with its
// row lifecycle and insertion row, the parent list that feeds it, and the
// recovery coordinator that brings a refused row back into edit.
//
// Controllers are not safe for concurrent use. The host calls them from
// its UI goroutine and store calls block until they answer or time out.
package grid

import "fmt"

// RowState is the lifecycle state of one working row.
type RowState int

const (
	Clean RowState = iota
	Editing
	PendingCommit
	CommitFailed
	PendingDelete
	Deleted
	// Promoting is the insertion row while its own commit is in flight.
	Promoting
)

func (s RowState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Editing:
		return "editing"
	case PendingCommit:
		return "pending_commit"
	case CommitFailed:
		return "commit_failed"
	case PendingDelete:
		return "pending_delete"
	case Deleted:
		return "deleted"
	case Promoting:
		return "promoting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dirty reports whether the state may hold values that differ from the store.
func (s RowState) Dirty() bool {
	return s == Editing || s == CommitFailed
}
