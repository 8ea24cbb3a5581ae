package util

import (
	"fmt"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// LookupPath resolves a jsonpath expression against a document. A bare key is
// treated as "$.<key>".
func LookupPath(data map[string]any, path string) (any, bool) {
	expr := path
	if !strings.HasPrefix(expr, "$") {
		expr = "$." + expr
	}
	value, err := jsonpath.JsonPathLookup(data, expr)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// ToFloat converts the numeric shapes produced by the json and msgpack codecs.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v of type %T is not numeric", v, v)
	}
}
