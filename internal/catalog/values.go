package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of date values.
const DateLayout = "2006-01-02"

// Values is one row, one entry per column in table order.
// Entries are nil, string, int64 or time.Time.
type Values []any

// Clone returns an independent copy.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	copy(out, v)
	return out
}

// Key is a primary-key vector in key-column order.
type Key []any

// String renders the key for logs and journals.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = FormatValue(v)
	}
	return strings.Join(parts, "|")
}

// Equal compares keys by their canonical text form.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if FormatValue(k[i]) != FormatValue(other[i]) {
			return false
		}
	}
	return true
}

type keep struct{}

func (keep) String() string { return "<keep>" }

// Keep marks a rejected-values entry that carries no replacement:
// recovery leaves that cell untouched. A rejection for a refused delete
// is all Keep.
var Keep any = keep{}

// IsKeep reports whether v is the Keep sentinel.
func IsKeep(v any) bool {
	_, ok := v.(keep)
	return ok
}

// KeepAll returns n Keep entries.
func KeepAll(n int) Values {
	out := make(Values, n)
	for i := range out {
		out[i] = Keep
	}
	return out
}

// FormatValue renders a value in its canonical text form. Absent values
// and zero dates both render as the empty string.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(DateLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return FormatValue(*t)
	default:
		if IsKeep(v) {
			return ""
		}
		return fmt.Sprint(v)
	}
}

// ParseValue converts text into the dynamic type a column stores.
// Empty text is nil for every column.
func ParseValue(c Column, text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if c.Kind == KindDate {
		for _, layout := range []string{DateLayout, "2006/01/02", "02.01.2006"} {
			if d, err := time.Parse(layout, text); err == nil {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%s: %q is not a date (use YYYY-MM-DD)", c.Name, text)
	}
	if c.Type == TypeInteger {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a whole number", c.Name, text)
		}
		return n, nil
	}
	return text, nil
}

// Normalize coerces a loosely typed value (for example a driver scan
// result) into the type the column stores.
func Normalize(c Column, v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseValue(c, t)
	case []byte:
		return ParseValue(c, string(t))
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		if c.Kind == KindDate {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		return ParseValue(c, FormatValue(t))
	case int:
		return normalizeInt(c, int64(t))
	case int32:
		return normalizeInt(c, int64(t))
	case int64:
		return normalizeInt(c, t)
	case float64:
		return ParseValue(c, FormatValue(t))
	default:
		return ParseValue(c, FormatValue(v))
	}
}

func normalizeInt(c Column, n int64) (any, error) {
	if c.Type == TypeInteger {
		return n, nil
	}
	return ParseValue(c, strconv.FormatInt(n, 10))
}
