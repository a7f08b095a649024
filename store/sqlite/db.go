// Package sqlitestore implements store.Store on zombiezen.com/go/sqlite,
// pooled with sqlitex.Pool exactly like the teacher's db/zombiezen package.
package sqlitestore

import (
	"context"
	"fmt"
	"io/fs"
	"runtime"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/QuyenFunc/vietcmc/migrations"
	"github.com/QuyenFunc/vietcmc/store"
)

// DB implements store.Store on a pooled sqlite connection.
type DB struct {
	pool *sqlitex.Pool
}

var _ store.Store = (*DB)(nil)

// New opens (or creates) the sqlite file at path, applies every embedded
// schema file in order, and returns a pooled store.Store.
func New(ctx context.Context, path string) (*DB, error) {
	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	if path == ":memory:" {
		// A bare in-memory DSN gives every pooled connection its own
		// private database; one connection keeps them consistent, the
		// way the teacher's migration tests use PoolSize: 1.
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(fmt.Sprintf("file:%s", path), sqlitex.PoolOptions{
		PoolSize: poolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open pool: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.applyMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) applyMigrations(ctx context.Context) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: take conn for migrations: %w", err)
	}
	defer d.pool.Put(conn)

	schemaFS := migrations.Schema()
	names := []string{"0001_tenant.sql", "0002_job.sql", "0003_webhook_attempt.sql"}
	for _, name := range names {
		sqlBytes, err := fs.ReadFile(schemaFS, name)
		if err != nil {
			return fmt.Errorf("sqlitestore: read migration %s: %w", name, err)
		}
		if err := sqlitex.ExecuteScript(conn, string(sqlBytes), nil); err != nil {
			return fmt.Errorf("sqlitestore: apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Ping verifies the pool can still hand out a usable connection.
func (d *DB) Ping(ctx context.Context) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: ping: %w", err)
	}
	defer d.pool.Put(conn)
	return nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.pool.Close()
}
