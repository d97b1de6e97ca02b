package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// EntityPrefix is the shared prefix of every cache key belonging to one
// entity type; RemoveByPrefix(EntityPrefix(table)) flushes the type.
func EntityPrefix(table string) string {
	return table + KeySeparator
}

// Key builds a deterministic cache key from a table, a method name and the
// arguments that affect the result. The caller remains responsible for
// passing every such argument - the cache cannot infer them.
func Key(table, method string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, table, method)
	for _, arg := range args {
		parts = append(parts, serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

// serializeValue renders one argument deterministically: scalars via fmt,
// slices element-wise, maps with sorted keys, everything else as JSON.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = serializeValue(rv.Index(i).Interface())
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ","))
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]string, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := serializeValue(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = serializeValue(iter.Value().Interface())
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + byKey[k]
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ","))
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}
