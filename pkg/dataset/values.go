// pkg/dataset/values.go
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// AsFloat converts a value of a numeric Go type to float64. Strings are not
// accepted; use CoerceFloat when parsing mixed representations.
func AsFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// CoerceFloat converts mixed representations (numbers, numeric strings) to
// float64. Unparseable values report ok=false and become missing cells.
func CoerceFloat(v any) (float64, bool) {
	if f, ok := AsFloat(v); ok {
		return f, true
	}
	switch val := v.(type) {
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []byte:
		return CoerceFloat(string(val))
	default:
		return 0, false
	}
}

// AsString reports the value as a string if it is one.
func AsString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return "", false
	}
}

// ToString renders any cell value for logs and reports.
func ToString(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
