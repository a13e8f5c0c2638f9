package config

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/rgehrsitz/lrcm/internal/store/memory"
	"github.com/rgehrsitz/lrcm/internal/store/postgres"
	"github.com/rgehrsitz/lrcm/internal/store/sqlite"
)

// Store drivers accepted in settings
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the full set of ports a backend serves
type Store interface {
	store.Source
	store.ClaimSource
	store.ResultWriter
}

// Backend is an opened store together with its loader and cleanup
type Backend struct {
	Store  Store
	Driver string

	load  func(ctx context.Context, p *domain.Portfolio) error
	close func()
}

// OpenBackend opens the store selected by settings. Postgres schemas are migrated on open.
func OpenBackend(ctx context.Context, s domain.StoreSettings) (*Backend, error) {
	switch s.Driver {
	case "", DriverMemory:
		st := memory.New()
		return &Backend{
			Store:  st,
			Driver: DriverMemory,
			load: func(_ context.Context, p *domain.Portfolio) error {
				st.Load(p)
				return nil
			},
			close: func() {},
		}, nil

	case DriverSQLite:
		st, err := sqlite.New(s.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &Backend{
			Store:  st,
			Driver: DriverSQLite,
			load:   st.Load,
			close:  func() { st.Close() },
		}, nil

	case DriverPostgres:
		pool, err := postgres.Connect(ctx, s.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		repo := postgres.NewRepo(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Store:  repo,
			Driver: DriverPostgres,
			load:   repo.Load,
			close:  pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", s.Driver)
}

// Load writes a portfolio into the backend
func (b *Backend) Load(ctx context.Context, p *domain.Portfolio) error {
	if p == nil {
		return nil
	}
	return b.load(ctx, p)
}

// Close releases the backend's connections
func (b *Backend) Close() {
	b.close()
}
