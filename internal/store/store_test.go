package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/schema"
)

func TestOpenSQLiteCreatesTables(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()
	b, err := Open(ctx, cfg, schema.New(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = b.Close() }()
	if _, err := b.Commit(ctx, schema.Artists, catalog.Values{"Ada", nil, nil, nil}, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rows, err := b.FetchParents(ctx, schema.Artists)
	if err != nil || len(rows) != 1 {
		t.Fatalf("FetchParents = %v, %v", rows, err)
	}
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory
	b, err := Open(context.Background(), cfg, schema.New(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "oracle"
	if _, err := Open(context.Background(), cfg, schema.New(), ""); err == nil {
		t.Fatalf("expected error")
	}
}
