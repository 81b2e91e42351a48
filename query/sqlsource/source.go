package sqlsource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/query/sqlgen"
)

// Source executes fetches as SELECT statements through an Adapter.
type Source struct {
	adapter   Adapter
	generator sqlgen.Generator
}

// New creates a source over a connected adapter.
func New(adapter Adapter) *Source {
	return &Source{
		adapter:   adapter,
		generator: sqlgen.NewGenerator(string(adapter.Dialect())),
	}
}

// Open creates the adapter for config, connects it and wraps it in a Source.
func Open(ctx context.Context, config Config) (*Source, error) {
	adapter, err := NewAdapter(config)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	return New(adapter), nil
}

// Adapter returns the underlying adapter.
func (s *Source) Adapter() Adapter {
	return s.adapter
}

// Close disconnects the adapter.
func (s *Source) Close(ctx context.Context) error {
	return s.adapter.Disconnect(ctx)
}

// Fetch implements query.Source.
func (s *Source) Fetch(ctx context.Context, f *query.Fetch) ([]*query.Row, error) {
	q, err := s.generator.GenerateFetch(f)
	if err != nil {
		return nil, fmt.Errorf("failed to build query for %s: %w", f.Table, err)
	}

	rows, err := s.adapter.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.Table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows reads every row into a column map. []byte values are copied into
// strings so keys compare equal across drivers.
func scanRows(rows *sql.Rows) ([]*query.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []*query.Row
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		out = append(out, query.NewRow(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

var _ query.Source = (*Source)(nil)
