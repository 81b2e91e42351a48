// Package sqlgen generates SQL for eager-load fetches on different database providers.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-go-relations/query"
)

// Query represents a SQL query with arguments
type Query struct {
	SQL  string
	Args []any
}

// Generator generates SQL for a specific provider
type Generator interface {
	GenerateFetch(f *query.Fetch) (*Query, error)
	Provider() string
}

// NewGenerator creates a new SQL generator for the given provider
func NewGenerator(provider string) Generator {
	switch provider {
	case "postgresql", "postgres":
		return &PostgresGenerator{}
	case "mysql":
		return &MySQLGenerator{}
	case "sqlite", "sqlite3":
		return &SQLiteGenerator{}
	default:
		return &PostgresGenerator{} // default to postgres
	}
}

// dialect captures what differs between providers.
type dialect struct {
	placeholder func(int) string
	quote       func(string) string
	// rowValues enables (a, b) IN ((?, ?), ...) for composite keys.
	rowValues bool
}

// PostgresGenerator generates PostgreSQL SQL
type PostgresGenerator struct{}

// Provider returns the provider name.
func (g *PostgresGenerator) Provider() string { return "postgresql" }

// GenerateFetch generates a SELECT for the fetch.
func (g *PostgresGenerator) GenerateFetch(f *query.Fetch) (*Query, error) {
	return generateSelect(f, dialect{
		placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		quote:       quoteIdentifier,
		rowValues:   true,
	})
}

// quoteIdentifier quotes an identifier for PostgreSQL
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MySQLGenerator generates MySQL SQL
type MySQLGenerator struct{}

// Provider returns the provider name.
func (g *MySQLGenerator) Provider() string { return "mysql" }

// GenerateFetch generates a SELECT for the fetch.
func (g *MySQLGenerator) GenerateFetch(f *query.Fetch) (*Query, error) {
	return generateSelect(f, dialect{
		placeholder: func(int) string { return "?" },
		quote:       quoteIdentifierMySQL,
		rowValues:   true,
	})
}

func quoteIdentifierMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SQLiteGenerator generates SQLite SQL
type SQLiteGenerator struct{}

// Provider returns the provider name.
func (g *SQLiteGenerator) Provider() string { return "sqlite" }

// GenerateFetch generates a SELECT for the fetch.
func (g *SQLiteGenerator) GenerateFetch(f *query.Fetch) (*Query, error) {
	return generateSelect(f, dialect{
		placeholder: func(int) string { return "?" },
		quote:       quoteIdentifierSQLite,
	})
}

func quoteIdentifierSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func generateSelect(f *query.Fetch, d dialect) (*Query, error) {
	if f == nil || f.Table == "" {
		return nil, fmt.Errorf("fetch requires a table")
	}

	var parts []string
	var args []any
	argIndex := 1

	parts = append(parts, "SELECT *")
	parts = append(parts, fmt.Sprintf("FROM %s", d.quote(f.Table)))

	// WHERE: key filter AND caller filter
	var where []string
	if f.Keys != nil {
		keySQL, keyArgs, err := buildKeyFilter(f.Keys, &argIndex, d)
		if err != nil {
			return nil, err
		}
		where = append(where, keySQL)
		args = append(args, keyArgs...)
	}
	if !f.Where.IsEmpty() {
		whereSQL, whereArgs, err := buildWhereRecursive(f.Where, &argIndex, d.placeholder, d.quote)
		if err != nil {
			return nil, err
		}
		if whereSQL != "" {
			if len(where) > 0 {
				whereSQL = "(" + whereSQL + ")"
			}
			where = append(where, whereSQL)
			args = append(args, whereArgs...)
		}
	}
	if len(where) > 0 {
		parts = append(parts, "WHERE "+strings.Join(where, " AND "))
	}

	// ORDER BY
	if len(f.OrderBy) > 0 {
		orderParts := make([]string, len(f.OrderBy))
		for i, ob := range f.OrderBy {
			if ob.Field == "" {
				return nil, fmt.Errorf("order by requires a field")
			}
			direction := "ASC"
			if ob.Descending() {
				direction = "DESC"
			}
			orderParts[i] = fmt.Sprintf("%s %s", d.quote(ob.Field), direction)
		}
		parts = append(parts, "ORDER BY "+strings.Join(orderParts, ", "))
	}

	// LIMIT
	if f.Limit != nil && *f.Limit >= 0 {
		parts = append(parts, "LIMIT "+d.placeholder(argIndex))
		args = append(args, *f.Limit)
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}, nil
}

// buildKeyFilter renders a tuple IN filter.
func buildKeyFilter(k *query.KeyFilter, argIndex *int, d dialect) (string, []any, error) {
	if len(k.Columns) == 0 {
		return "", nil, fmt.Errorf("key filter requires at least one column")
	}
	if len(k.Tuples) == 0 {
		return "1=0", nil, nil
	}

	var args []any
	if len(k.Columns) == 1 {
		placeholders := make([]string, len(k.Tuples))
		for i, t := range k.Tuples {
			placeholders[i] = d.placeholder(*argIndex)
			args = append(args, t[0])
			(*argIndex)++
		}
		return fmt.Sprintf("%s IN (%s)", d.quote(k.Columns[0]), strings.Join(placeholders, ", ")), args, nil
	}

	quoted := make([]string, len(k.Columns))
	for i, col := range k.Columns {
		quoted[i] = d.quote(col)
	}

	groups := make([]string, len(k.Tuples))
	for i, t := range k.Tuples {
		if len(t) != len(k.Columns) {
			return "", nil, fmt.Errorf("key tuple %d has %d values, expected %d", i, len(t), len(k.Columns))
		}
		items := make([]string, len(t))
		for j, v := range t {
			if d.rowValues {
				items[j] = d.placeholder(*argIndex)
			} else {
				items[j] = fmt.Sprintf("%s = %s", quoted[j], d.placeholder(*argIndex))
			}
			args = append(args, v)
			(*argIndex)++
		}
		if d.rowValues {
			groups[i] = "(" + strings.Join(items, ", ") + ")"
		} else {
			groups[i] = "(" + strings.Join(items, " AND ") + ")"
		}
	}

	if d.rowValues {
		return fmt.Sprintf("(%s) IN (%s)", strings.Join(quoted, ", "), strings.Join(groups, ", ")), args, nil
	}
	return "(" + strings.Join(groups, " OR ") + ")", args, nil
}
