package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type value struct {
	key string
	v   any
}

func field(m map[string]any, key string) value {
	if m == nil {
		return value{key: key}
	}
	return value{key: key, v: m[key]}
}

func object(m map[string]any, key string) (map[string]any, error) {
	switch o := m[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return o, nil
	default:
		return nil, fmt.Errorf("%w: %s must be an object, got %T", ErrMalformedRecord, key, o)
	}
}

// firstString returns the first non-empty string among vals. Numbers are
// accepted in their literal form.
func firstString(vals ...value) (string, error) {
	for _, val := range vals {
		switch v := val.v.(type) {
		case nil:
		case string:
			if v != "" {
				return v, nil
			}
		case json.Number:
			return v.String(), nil
		default:
			return "", fmt.Errorf("%s: unexpected type %T", val.key, v)
		}
	}
	return "", nil
}

// firstInt returns the first non-zero integer among vals. Numeric strings are
// accepted; fractional values are truncated.
func firstInt(vals ...value) (int64, error) {
	for _, val := range vals {
		n, err := toInt(val.v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", val.key, err)
		}
		if n != 0 {
			return n, nil
		}
	}
	return 0, nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return parseInt(n.String())
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, nil
		}
		return parseInt(s)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func parseInt(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("out of range: %v", f)
	}
	return int64(f), nil
}

// identifier reads a numeric identifier. A string that is not a number is an
// opaque reference and reads as absent; other non-numeric types are errors.
func identifier(val value) (int64, error) {
	if s, ok := val.v.(string); ok {
		n, err := parseInt(strings.TrimSpace(s))
		if err != nil {
			return 0, nil
		}
		return n, nil
	}
	return firstInt(val)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
