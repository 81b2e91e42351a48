package query

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Canonical returns the string form used to compare key values across
// driver types: []byte becomes string and numbers their decimal form, so
// int64(7), "7" and []byte("7") compare equal. ok is false for NULL.
func Canonical(v any) (string, bool) {
	v = resolve(v)
	if v == nil {
		return "", false
	}
	switch t := v.(type) {
	case []byte:
		return string(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v), true
	}
	return s, true
}

// resolve dereferences pointers and driver.Valuer values such as
// sql.NullInt64, returning nil for NULL.
func resolve(v any) any {
	if v == nil {
		return nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		resolved, err := valuer.Value()
		if err != nil {
			return nil
		}
		return resolved
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// Equal reports whether two column values are equal after canonicalization.
// NULL is never equal to anything.
func Equal(a, b any) bool {
	ca, okA := Canonical(a)
	cb, okB := Canonical(b)
	return okA && okB && ca == cb
}

// Compare orders two column values: numbers numerically, times
// chronologically, everything else by canonical string. NULL sorts first.
func Compare(a, b any) int {
	a, b = resolve(a), resolve(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if c, ok := compareIntegers(a, b); ok {
		return c
	}
	if isNumber(a) && isNumber(b) {
		fa, fb := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	sa, _ := Canonical(a)
	sb, _ := Canonical(b)
	return strings.Compare(sa, sb)
}

// compareIntegers orders a and b exactly when both are integers, so values
// above 2^53 do not collapse as they would through float64.
func compareIntegers(a, b any) (int, bool) {
	negA, magA, okA := integer(a)
	negB, magB, okB := integer(b)
	if !okA || !okB {
		return 0, false
	}
	switch {
	case negA != negB:
		if negA {
			return -1, true
		}
		return 1, true
	case magA == magB:
		return 0, true
	case (magA < magB) != negA:
		return -1, true
	}
	return 1, true
}

// integer splits an integer value into sign and magnitude.
func integer(v any) (negative bool, magnitude uint64, ok bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return true, uint64(-(i + 1)) + 1, true
		}
		return false, uint64(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return false, rv.Uint(), true
	}
	return false, 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// SortRows stably sorts rows by the given orderings.
func SortRows(rows []*Row, orderBy []OrderBy) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			c := Compare(rows[i].Get(ob.Field), rows[j].Get(ob.Field))
			if c == 0 {
				continue
			}
			if ob.Descending() {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
