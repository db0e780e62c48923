// Package store opens the entity store selected by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/oukeidos/arcat/internal/catalog"
	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/logger"
	"github.com/oukeidos/arcat/internal/schema"
	"github.com/oukeidos/arcat/internal/store/memstore"
	"github.com/oukeidos/arcat/internal/store/sqlstore"
)

// Backend is everything the controllers need from a store.
type Backend interface {
	catalog.Store
	catalog.Sequencer
	catalog.ReferenceSource
	Close() error
}

var (
	_ Backend = (*memstore.Store)(nil)
	_ Backend = (*sqlstore.Store)(nil)
)

// Open connects the configured store and creates missing tables.
// password, when set, overrides the one in the Postgres DSN.
func Open(ctx context.Context, cfg *config.Config, cat *schema.Catalog, password string) (Backend, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using the in-memory store; nothing will be saved")
		return memstore.New(cat), nil
	case config.DriverSQLite, config.DriverPostgres:
		s, err := sqlstore.Open(ctx, cat, sqlstore.Options{
			Driver:   cfg.Database.Driver,
			Path:     cfg.Database.Path,
			DSN:      cfg.Database.DSN,
			Password: password,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Database.Driver)
	}
}
