package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteAdapter implements Adapter for SQLite.
type SQLiteAdapter struct {
	conn
	config Config
}

// NewSQLiteAdapter creates a new SQLite adapter. The URL is a file path or
// ":memory:".
func NewSQLiteAdapter(config Config) *SQLiteAdapter {
	return &SQLiteAdapter{config: config}
}

// Connect opens the database with a single connection, so an in-memory
// database is shared by every query.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	err := a.open(ctx, "sqlite3", a.config, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxIdleTime(time.Duration(a.config.MaxIdleTime) * time.Second)
	})
	if err != nil {
		return err
	}

	if _, err := a.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		a.db.Close()
		a.db = nil
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

// Dialect returns SQLite.
func (a *SQLiteAdapter) Dialect() Dialect { return SQLite }

var _ Adapter = (*SQLiteAdapter)(nil)
