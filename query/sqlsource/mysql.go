package sqlsource

import (
	"context"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLAdapter implements Adapter for MySQL.
type MySQLAdapter struct {
	conn
	config Config
}

// NewMySQLAdapter creates a new MySQL adapter. The URL is a driver DSN such
// as user:pass@tcp(host:3306)/db?parseTime=true.
func NewMySQLAdapter(config Config) *MySQLAdapter {
	return &MySQLAdapter{config: config}
}

// Connect establishes a connection to the MySQL database.
func (a *MySQLAdapter) Connect(ctx context.Context) error {
	return a.open(ctx, "mysql", a.config, pool(a.config))
}

// Dialect returns MySQL.
func (a *MySQLAdapter) Dialect() Dialect { return MySQL }

var _ Adapter = (*MySQLAdapter)(nil)
