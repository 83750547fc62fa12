package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLiteTimeLayout is the fixed-width text layout timestamps are stored
// and compared in when the source is SQLite.
const SQLiteTimeLayout = "2006-01-02 15:04:05.000000"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ConvertDateTime turns a driver value (time.Time, text or bytes) into a
// UTC time. Text without a zone is read as UTC.
func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("unable to parse datetime: nil")
		}
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, f := range dateTimeLayouts {
			if t, err := time.Parse(f, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %q", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

// ConvertToFloat returns nil for SQL NULL.
func ConvertToFloat(val interface{}) (*float64, error) {
	var f float64
	switch v := val.(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float: %w", v, err)
		}
		f = parsed
	case []byte:
		return ConvertToFloat(string(v))
	default:
		return nil, fmt.Errorf("cannot convert %T to float", val)
	}
	return &f, nil
}

// ConvertToString returns nil for SQL NULL.
func ConvertToString(val interface{}) *string {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

var emptyLike = map[string]struct{}{
	"":     {},
	"n/a":  {},
	"na":   {},
	"none": {},
}

// IsEmptyLike reports whether s is one of the placeholder tokens the
// source uses instead of NULL.
func IsEmptyLike(s string) bool {
	_, ok := emptyLike[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// CleanString maps nil and empty-like placeholders to nil and returns
// other values unchanged.
func CleanString(s *string) *string {
	if s == nil || IsEmptyLike(*s) {
		return nil
	}
	return s
}

// FloatOrZero applies the default used for rating-like fields.
func FloatOrZero(f *float64) float64 {
	if f == nil {
		return 0.0
	}
	return *f
}
