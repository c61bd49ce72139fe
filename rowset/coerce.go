// Package rowset turns flattened rows into typed Arrow record batches.
package rowset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/mapping"
)

// ErrUnsupportedValue is wrapped by conversion errors for values whose Go
// type has no conversion to the column type.
var ErrUnsupportedValue = errors.New("unsupported value")

// ConversionError reports a source value that cannot be converted to the
// scalar type of its column.
type ConversionError struct {
	Column string
	Type   mapping.ScalarType
	Value  any
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("column %s: cannot convert %v (%T) to %s: %v", e.Column, e.Value, e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Coerce converts a flattened value to the Go representation of a scalar
// type:
//
//	long      int64
//	int       int32
//	float     float32
//	double    float64
//	timestamp time.Time (UTC)
//	date      time.Time (UTC midnight)
//	time      time.Duration since midnight
//	uuid      string (canonical form)
//	byte      []byte
//	string    string
//	boolean   bool
//	geometry  []byte (WKB)
//
// nil converts to nil for every type.
func Coerce(v any, t mapping.ScalarType) (any, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := coercers[t]
	if !ok {
		c = coerceString
	}
	return c(v)
}

type coerceFunc func(v any) (any, error)

var coercers = map[mapping.ScalarType]coerceFunc{
	mapping.TypeLong:      coerceLong,
	mapping.TypeInt:       coerceInt,
	mapping.TypeFloat:     coerceFloat,
	mapping.TypeDouble:    coerceDouble,
	mapping.TypeTimestamp: coerceTimestamp,
	mapping.TypeDate:      coerceDate,
	mapping.TypeTime:      coerceTime,
	mapping.TypeUUID:      coerceUUID,
	mapping.TypeByte:      coerceBytes,
	mapping.TypeString:    coerceString,
	mapping.TypeBoolean:   coerceBool,
	mapping.TypeGeometry:  coerceGeometry,
}

func unsupported(v any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return wholeFloat(float64(x))
	case float64:
		return wholeFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return wholeFloat(f)
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return wholeFloat(f)
	}
	return 0, unsupported(v)
}

func wholeFloat(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, unsupported(v)
}

func coerceLong(v any) (any, error) {
	return toInt64(v)
}

func coerceInt(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("%d overflows int32", n)
	}
	return int32(n), nil
}

func coerceFloat(v any) (any, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	return float32(f), nil
}

func coerceDouble(v any) (any, error) {
	return toFloat64(v)
}

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

func coerceTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		return parseTimestamp(x)
	}
	// Numbers are unix seconds.
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func coerceDate(v any) (any, error) {
	var t time.Time
	switch x := v.(type) {
	case string:
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(x))
		if err == nil {
			return d, nil
		}
		if t, err = parseTimestamp(x); err != nil {
			return nil, fmt.Errorf("unrecognized date %q", x)
		}
	default:
		ts, err := coerceTimestamp(v)
		if err != nil {
			return nil, err
		}
		t = ts.(time.Time)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

var timeLayouts = []string{
	"15:04:05.999999999",
	"15:04:05.999999999Z07:00",
	"15:04",
}

func coerceTime(v any) (any, error) {
	var t time.Time
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case time.Time:
		t = x
	case string:
		s := strings.TrimSpace(x)
		var err error
		for _, layout := range timeLayouts {
			if t, err = time.Parse(layout, s); err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("unrecognized time %q", x)
		}
	default:
		return nil, unsupported(v)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()), nil
}

func coerceUUID(v any) (any, error) {
	switch x := v.(type) {
	case string:
		u, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case []byte:
		u, err := uuid.FromBytes(x)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	}
	return nil, unsupported(v)
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func coerceBytes(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		var err error
		for _, enc := range base64Encodings {
			var b []byte
			if b, err = enc.DecodeString(s); err == nil {
				return b, nil
			}
		}
		return nil, err
	}
	return nil, unsupported(v)
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return nil, unsupported(v)
}

func coerceBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	case json.Number:
		return strconv.ParseBool(x.String())
	}
	return nil, unsupported(v)
}

func coerceGeometry(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return catalog.ParseGeometry(x)
	}
	return nil, unsupported(v)
}
