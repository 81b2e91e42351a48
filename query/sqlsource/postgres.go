package sqlsource

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresAdapter implements Adapter for PostgreSQL.
type PostgresAdapter struct {
	conn
	config Config
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(config Config) *PostgresAdapter {
	return &PostgresAdapter{config: config}
}

// Connect establishes a connection to the PostgreSQL database.
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	return a.open(ctx, "postgres", a.config, pool(a.config))
}

// Dialect returns PostgreSQL.
func (a *PostgresAdapter) Dialect() Dialect { return PostgreSQL }

// pool applies the connection pool settings of config.
func pool(config Config) func(*sql.DB) {
	return func(db *sql.DB) {
		db.SetMaxOpenConns(config.MaxConnections)
		db.SetMaxIdleConns(config.MaxConnections / 2)
		db.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Second)
	}
}

var _ Adapter = (*PostgresAdapter)(nil)
