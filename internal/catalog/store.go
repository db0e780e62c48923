package catalog

import "context"

// Store is the backing entity store.
//
// Commit inserts when original is nil and otherwise updates the record
// identified by original, returning the values as committed. A refusal is
// reported as a *Rejection; any other error is treated as unexpected.
type Store interface {
	FetchParents(ctx context.Context, table string) ([]Values, error)
	FetchChildren(ctx context.Context, table string, parentKey Key) ([]Values, error)
	Commit(ctx context.Context, table string, values Values, original Key) (Values, error)
	Delete(ctx context.Context, table string, original Key) error
}

// Sequencer hands out the next value of a per-parent sequence column.
type Sequencer interface {
	Next(ctx context.Context, table, column string, parentKey Key) (any, error)
}

// ReferenceSource lists the values a foreign-key column may take.
type ReferenceSource interface {
	References(ctx context.Context, table, column string) ([]any, error)
}

// MetadataProvider describes the catalogue tables.
type MetadataProvider interface {
	DescribeColumns(table string) ([]Column, error)
	Table(name string) (Table, error)
}
