// Package sqlgen provides WHERE clause building logic.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-go-relations/query"
)

// buildWhereRecursive builds a WHERE clause with support for nested conditions
func buildWhereRecursive(where *query.Filter, argIndex *int, placeholder func(int) string, quoter func(string) string) (string, []any, error) {
	if where.IsEmpty() {
		return "", nil, nil
	}

	var parts []string
	var args []any

	// Process direct conditions
	for _, cond := range where.Conditions {
		condSQL, condArgs, err := buildCondition(cond, argIndex, placeholder, quoter)
		if err != nil {
			return "", nil, err
		}
		if condSQL != "" {
			parts = append(parts, condSQL)
			args = append(args, condArgs...)
		}
	}

	// Process nested groups (recursive)
	for i := range where.NestedFilters {
		groupSQL, groupArgs, err := buildWhereRecursive(&where.NestedFilters[i], argIndex, placeholder, quoter)
		if err != nil {
			return "", nil, err
		}
		if groupSQL != "" {
			parts = append(parts, fmt.Sprintf("(%s)", groupSQL))
			args = append(args, groupArgs...)
		}
	}

	if len(parts) == 0 {
		return "", nil, nil
	}

	op := "AND"
	if where.Operator == query.OR {
		op = "OR"
	}

	result := strings.Join(parts, " "+op+" ")
	if where.Operator == query.NOT {
		result = "NOT (" + result + ")"
	}

	return result, args, nil
}

// buildCondition builds a single condition
func buildCondition(cond query.Condition, argIndex *int, placeholder func(int) string, quoter func(string) string) (string, []any, error) {
	var args []any
	var sql string
	field := quoter(cond.Field)

	bind := func(v any) string {
		p := placeholder(*argIndex)
		args = append(args, v)
		(*argIndex)++
		return p
	}

	switch cond.Operator {
	case query.Equals:
		if cond.Value == nil {
			sql = fmt.Sprintf("%s IS NULL", field)
		} else {
			sql = fmt.Sprintf("%s = %s", field, bind(cond.Value))
		}

	case query.NotEquals:
		if cond.Value == nil {
			sql = fmt.Sprintf("%s IS NOT NULL", field)
		} else {
			sql = fmt.Sprintf("%s != %s", field, bind(cond.Value))
		}

	case query.Lt, query.Lte, query.Gt, query.Gte:
		ops := map[query.ComparisonOperator]string{query.Lt: "<", query.Lte: "<=", query.Gt: ">", query.Gte: ">="}
		sql = fmt.Sprintf("%s %s %s", field, ops[cond.Operator], bind(cond.Value))

	case query.In, query.NotIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("operator %s on %s expects []any, got %T", cond.Operator, cond.Field, cond.Value)
		}
		if len(values) == 0 {
			// Empty IN matches nothing, empty NOT IN matches everything
			if cond.Operator == query.In {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = bind(v)
		}
		keyword := "IN"
		if cond.Operator == query.NotIn {
			keyword = "NOT IN"
		}
		sql = fmt.Sprintf("%s %s (%s)", field, keyword, strings.Join(placeholders, ", "))

	case query.Contains:
		sql = fmt.Sprintf("%s LIKE %s", field, bind(fmt.Sprintf("%%%v%%", cond.Value)))

	case query.StartsWith:
		sql = fmt.Sprintf("%s LIKE %s", field, bind(fmt.Sprintf("%v%%", cond.Value)))

	case query.EndsWith:
		sql = fmt.Sprintf("%s LIKE %s", field, bind(fmt.Sprintf("%%%v", cond.Value)))

	case query.IsNull:
		if b, ok := cond.Value.(bool); ok && !b {
			sql = fmt.Sprintf("%s IS NOT NULL", field)
		} else {
			sql = fmt.Sprintf("%s IS NULL", field)
		}

	default:
		return "", nil, fmt.Errorf("unsupported operator %q on %s", cond.Operator, cond.Field)
	}

	return sql, args, nil
}
