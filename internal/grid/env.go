package grid

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

// DefaultTimeout bounds every store call when Env.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Events are the notifications the core raises towards the host. Any
// field may be nil.
type Events struct {
	RowCommitted         func(row int)
	RowCommitFailed      func(rej *catalog.Rejection)
	FocusRequested       func(row, column int)
	InsertionRowPromoted func(row int)
	RowDeleted           func(row int)
	Message              func(text string)
	// Changed fires whenever rows were added, removed or repopulated.
	Changed func()
}

// PathChecker vets the value of a Path column before it is committed.
type PathChecker interface {
	Check(path string) error
}

// Observer receives controller counters.
type Observer interface {
	CommitAttempted(table string)
	Committed(table string, insert bool)
	Rejected(table string, kind apperrors.Kind)
	Deleted(table string)
	LeaveSuppressed(table string)
}

// AbandonedRow is a child row whose edit was discarded by a parent switch.
type AbandonedRow struct {
	Index    int
	State    RowState
	Original catalog.Values
	Working  catalog.Values
}

// Abandoned describes the edits lost when the selected parent changed.
type Abandoned struct {
	Table     string
	ParentKey catalog.Key
	Rows      []AbandonedRow
}

// Env carries everything the controllers need from their host.
type Env struct {
	Store      catalog.Store
	Keys       catalog.Sequencer
	References catalog.ReferenceSource
	Paths      PathChecker
	Defer      Deferrer
	Logger     *slog.Logger
	Events     Events
	Observer   Observer
	// Context is the parent of every store call; nil means context.Background.
	Context context.Context
	Timeout time.Duration

	// ConfirmAbandon asks the user whether unsaved child edits may be
	// discarded. It may answer later; nil always proceeds.
	ConfirmAbandon func(message string, proceed func(ok bool))
	// OnAbandon is told about edits discarded by a parent switch.
	OnAbandon func(Abandoned)
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.Defer == nil {
		e.Defer = &Queue{}
	}
	if e.Observer == nil {
		e.Observer = nopObserver{}
	}
	if e.Context == nil {
		e.Context = context.Background()
	}
	if e.Timeout <= 0 {
		e.Timeout = DefaultTimeout
	}
	return e
}

func (e Env) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.Context, e.Timeout)
}

type nopObserver struct{}

func (nopObserver) CommitAttempted(string) {}
func (nopObserver) Committed(string, bool) {}
func (nopObserver) Rejected(string, apperrors.Kind) {}
func (nopObserver) Deleted(string) {}
func (nopObserver) LeaveSuppressed(string) {}

func (ev Events) committed(row int) {
	if ev.RowCommitted != nil {
		ev.RowCommitted(row)
	}
}

func (ev Events) commitFailed(rej *catalog.Rejection) {
	if ev.RowCommitFailed != nil {
		ev.RowCommitFailed(rej)
	}
}

func (ev Events) focus(row, column int) {
	if ev.FocusRequested != nil {
		ev.FocusRequested(row, column)
	}
}

func (ev Events) promoted(row int) {
	if ev.InsertionRowPromoted != nil {
		ev.InsertionRowPromoted(row)
	}
}

func (ev Events) deleted(row int) {
	if ev.RowDeleted != nil {
		ev.RowDeleted(row)
	}
}

func (ev Events) message(text string) {
	if ev.Message != nil && text != "" {
		ev.Message(text)
	}
}

func (ev Events) changed() {
	if ev.Changed != nil {
		ev.Changed()
	}
}
