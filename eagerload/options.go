package eagerload

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/spf13/cast"
)

// WithSpec is a nested eager-load request keyed by alias or "alias:relation".
//
// Values are true (load with defaults), a Load or *Load, a nested WithSpec
// (defaults plus nested loads), or a map[string]any of options with the keys
// where, order_by (or orderBy), limit and with (or nested). false and nil
// skip the key.
type WithSpec map[string]any

// Load holds the options of one eager-loaded relation.
type Load struct {
	// Relation is the registered name; it defaults to the key.
	Relation string
	// Alias is where results are attached; it is always taken from the key.
	Alias   string
	Where   *query.Filter
	OrderBy []query.OrderBy
	// Limit caps each parent's plural result after ordering.
	Limit *int
	With  WithSpec
}

// Limit returns a pointer to n, for Load.Limit.
func Limit(n int) *int {
	return &n
}

// splitKey separates "alias:relation"; a plain key is both. explicit
// reports whether the key had a colon.
func splitKey(key string) (alias, relationName string, explicit bool) {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i], key[i+1:], true
	}
	return key, "", false
}

// wholeNumber converts v to an int. Bools, fractions and infinities are
// rejected instead of truncated.
func wholeNumber(v any) (int, error) {
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("expected a number, got %v", v)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || math.Trunc(f) != f {
		return 0, fmt.Errorf("expected a whole number, got %v", v)
	}
	return int(f), nil
}

// sortedKeys returns spec keys in issue order.
func sortedKeys(spec WithSpec) []string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseLoad normalizes one with-spec entry. skip is true for false/nil values.
func parseLoad(key string, value any) (load Load, skip bool, err error) {
	switch v := value.(type) {
	case nil:
		return Load{}, true, nil
	case bool:
		if !v {
			return Load{}, true, nil
		}
	case Load:
		load = v
	case *Load:
		if v == nil {
			return Load{}, true, nil
		}
		load = *v
	case WithSpec:
		load.With = v
	case map[string]any:
		load, err = parseOptionMap(key, v)
	default:
		return Load{}, false, invalidOptions(key, "unsupported value %T", value)
	}
	if err != nil {
		return Load{}, false, err
	}

	alias, name, explicit := splitKey(key)
	if alias == "" {
		return Load{}, false, invalidOptions(key, "empty alias")
	}
	if explicit && name == "" {
		return Load{}, false, invalidOptions(key, "empty relation name after ':'")
	}
	switch {
	case name != "":
		load.Relation = name
	case load.Relation == "":
		load.Relation = alias
	}
	load.Alias = alias

	if load.Limit != nil && *load.Limit < 0 {
		return Load{}, false, invalidOptions(key, "limit must not be negative, got %d", *load.Limit)
	}
	if err := load.Where.Validate(); err != nil {
		return Load{}, false, invalidOptions(key, "%v", err)
	}
	return load, false, nil
}

func parseOptionMap(key string, opts map[string]any) (Load, error) {
	var load Load
	for _, name := range sortedKeys(opts) {
		value := opts[name]
		switch name {
		case "where":
			where, err := parseWhere(key, value)
			if err != nil {
				return Load{}, err
			}
			load.Where = where
		case "order_by", "orderBy":
			orderBy, err := parseOrder(key, value)
			if err != nil {
				return Load{}, err
			}
			load.OrderBy = orderBy
		case "limit":
			if value == nil {
				continue
			}
			n, err := wholeNumber(value)
			if err != nil {
				return Load{}, invalidOptions(key, "limit: %v", err)
			}
			load.Limit = Limit(n)
		case "with", "nested":
			nested, err := parseNested(key, value)
			if err != nil {
				return Load{}, err
			}
			load.With = nested
		case "relation":
			load.Relation = cast.ToString(value)
		default:
			return Load{}, invalidOptions(key, "unknown option %q", name)
		}
	}
	return load, nil
}

func parseWhere(key string, value any) (*query.Filter, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *query.Filter:
		return v, nil
	case query.Filter:
		return &v, nil
	case map[string]any:
		fields := make([]string, 0, len(v))
		for f := range v {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		conds := make([]query.Condition, len(fields))
		for i, f := range fields {
			conds[i] = query.Eq(f, v[f])
		}
		return query.Where(conds...), nil
	}
	return nil, invalidOptions(key, "where: unsupported value %T", value)
}

func parseOrder(key string, value any) ([]query.OrderBy, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []query.OrderBy:
		return v, nil
	case query.OrderBy:
		return []query.OrderBy{v}, nil
	case string:
		orderBy, err := query.ParseOrderBy(v)
		if err != nil {
			return nil, invalidOptions(key, "order_by: %v", err)
		}
		return orderBy, nil
	case []string:
		orderBy, err := query.ParseOrderBy(strings.Join(v, ","))
		if err != nil {
			return nil, invalidOptions(key, "order_by: %v", err)
		}
		return orderBy, nil
	}
	return nil, invalidOptions(key, "order_by: unsupported value %T", value)
}

func parseNested(key string, value any) (WithSpec, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case WithSpec:
		return v, nil
	case map[string]any:
		return WithSpec(v), nil
	case []string:
		spec := make(WithSpec, len(v))
		for _, name := range v {
			spec[name] = true
		}
		return spec, nil
	case string:
		return WithSpec{v: true}, nil
	}
	return nil, invalidOptions(key, "with: unsupported value %T", value)
}
