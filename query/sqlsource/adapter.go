// Package sqlsource implements query.Source over database/sql.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Connect establishes a database connection.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// Execute executes a SQL statement.
	Execute(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Dialect returns the SQL dialect.
	Dialect() Dialect
}

// Dialect represents a SQL dialect.
type Dialect string

const (
	// PostgreSQL dialect.
	PostgreSQL Dialect = "postgres"
	// MySQL dialect.
	MySQL Dialect = "mysql"
	// SQLite dialect.
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a provider name to its dialect.
func ParseDialect(provider string) (Dialect, error) {
	switch provider {
	case "postgres", "postgresql":
		return PostgreSQL, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported provider %q (expected postgres, mysql or sqlite)", provider)
}

// Config holds database connection configuration.
type Config struct {
	Provider       string
	URL            string
	MaxConnections int
	MaxIdleTime    int // seconds
	ConnectTimeout int // seconds, 10 when unset
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeout) * time.Second
}

// NewAdapter creates the adapter for config.Provider without connecting.
func NewAdapter(config Config) (Adapter, error) {
	dialect, err := ParseDialect(config.Provider)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case PostgreSQL:
		return NewPostgresAdapter(config), nil
	case MySQL:
		return NewMySQLAdapter(config), nil
	default:
		return NewSQLiteAdapter(config), nil
	}
}

// conn holds the pool shared by the dialect adapters.
type conn struct {
	db *sql.DB
}

// open opens and pings the pool; configure adjusts it before the ping.
func (c *conn) open(ctx context.Context, driver string, config Config, configure func(*sql.DB)) error {
	db, err := sql.Open(driver, config.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	configure(db)

	ctx, cancel := context.WithTimeout(ctx, config.connectTimeout())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *conn) Disconnect(ctx context.Context) error {
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// Execute executes a statement without returning rows.
func (c *conn) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return c.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (c *conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return c.db.QueryContext(ctx, query, args...)
}

// Ping checks if the database connection is alive.
func (c *conn) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not connected")
	}
	return c.db.PingContext(ctx)
}
