// Package postgres provides local persistence of character sheets in
// PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/aionia-sheet/internal/config"
)

// ErrSchemaMissing is returned by Health when the database is reachable but
// the sheets table has not been migrated.
var ErrSchemaMissing = errors.New("sheets table missing; run migrations")

// Pool is the connection pool shared by the sheet repository and the
// server's health endpoint.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the sheet database.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a Pool that has answered one ping, or a non-nil
// error with no connections left open.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing sheet database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to sheet database %s: %w", cfg.Name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging sheet database %s: %w", cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Health reports whether sheets can be stored: the database must answer
// within timeout and the sheets table must exist.
//
// Postcondition: Returns nil, ErrSchemaMissing, or the connection error.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var migrated bool
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('sheets') IS NOT NULL`).Scan(&migrated); err != nil {
		return fmt.Errorf("checking sheet database: %w", err)
	}
	if !migrated {
		return ErrSchemaMissing
	}
	return nil
}

// Close releases every connection.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgx pool for the sheet repository.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
