package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/relfilter/internal/ir"
)

// Canonical layouts for values that are kept as strings.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05.000"
)

// UntypedPassThrough is the policy applied to attributes whose type the schema
// does not declare: the value is returned unchanged.
func UntypedPassThrough(v any) (any, error) {
	return v, nil
}

// Coerce converts a raw value into the form required by an attribute of type
// t, given the operator it is compared with.
//
// A null-check always yields a boolean regardless of t. Re-coercing a value
// Coerce already produced returns it unchanged.
func Coerce(t ir.AttrType, v any, op ir.Operator) (any, error) {
	if op == ir.OpNull {
		return parseBoolean(v)
	}

	switch t {
	case ir.TypeUntyped:
		return UntypedPassThrough(v)
	case ir.TypeString, ir.TypeText, ir.TypeRichText, ir.TypeEmail, ir.TypePassword,
		ir.TypeUID, ir.TypeEnumeration:
		return v, nil
	case ir.TypeInteger:
		return parseInteger(t, v)
	case ir.TypeBigInteger:
		return parseBigInteger(v)
	case ir.TypeFloat:
		return parseFloat(v)
	case ir.TypeDecimal:
		return parseDecimal(v)
	case ir.TypeBoolean:
		return parseBoolean(v)
	case ir.TypeDate:
		return parseDate(v)
	case ir.TypeTime:
		return parseTime(v)
	case ir.TypeDateTime, ir.TypeTimestamp:
		return parseDateTime(t, v)
	case ir.TypeJSON:
		return parseJSON(v)
	case ir.TypeComponent, ir.TypeDynamicZone, ir.TypeMedia, ir.TypeRelation:
		return v, nil
	}
	return nil, &Error{Type: t, Value: v, Err: fmt.Errorf("unsupported attribute type")}
}

// CoerceMany applies Coerce to every element, preserving order and length.
// The first failing element aborts the whole conversion.
func CoerceMany(t ir.AttrType, values []any, op ir.Operator) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		c, err := Coerce(t, v, op)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Input coerces v element-wise when it is a sequence and as a single value
// otherwise.
func Input(t ir.AttrType, v any, op ir.Operator) (any, error) {
	if values, ok := AsSequence(v); ok {
		return CoerceMany(t, values, op)
	}
	return Coerce(t, v, op)
}

// AsSequence reports whether v is an ordered sequence and returns its
// elements. Byte slices are treated as scalars.
func AsSequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []byte, json.RawMessage:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func parseInteger(t ir.AttrType, v any) (any, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil, &Error{Type: t, Value: v, Err: err}
		}
		return n, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, &Error{Type: t, Value: v, Err: err}
		}
		return n, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, &Error{Type: t, Value: v, Err: fmt.Errorf("out of range")}
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, &Error{Type: t, Value: v, Err: fmt.Errorf("not a whole number")}
		}
		return int64(f), nil
	}
	return nil, &Error{Type: t, Value: v, Err: fmt.Errorf("unsupported input %T", v)}
}

// parseBigInteger keeps the value as a decimal digit string, which every
// connector can bind without loss.
func parseBigInteger(v any) (any, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	case *big.Int:
		if val == nil {
			return nil, &Error{Type: ir.TypeBigInteger, Value: v, Err: fmt.Errorf("nil value")}
		}
		return val.String(), nil
	default:
		n, err := parseInteger(ir.TypeBigInteger, v)
		if err != nil {
			return nil, err
		}
		return strconv.FormatInt(n.(int64), 10), nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &Error{Type: ir.TypeBigInteger, Value: v, Err: fmt.Errorf("invalid integer syntax")}
	}
	return n.String(), nil
}

func parseFloat(v any) (any, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, &Error{Type: ir.TypeFloat, Value: v, Err: err}
		}
		f = parsed
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil, &Error{Type: ir.TypeFloat, Value: v, Err: err}
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32:
			f = rv.Float()
		default:
			return nil, &Error{Type: ir.TypeFloat, Value: v, Err: fmt.Errorf("unsupported input %T", v)}
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &Error{Type: ir.TypeFloat, Value: v, Err: fmt.Errorf("not a finite number")}
	}
	return f, nil
}

func parseDecimal(v any) (any, error) {
	var d *apd.Decimal
	switch val := v.(type) {
	case *apd.Decimal:
		if val == nil {
			return nil, &Error{Type: ir.TypeDecimal, Value: v, Err: fmt.Errorf("nil value")}
		}
		d = val
	case string:
		parsed, _, err := apd.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return nil, &Error{Type: ir.TypeDecimal, Value: v, Err: err}
		}
		d = parsed
	case json.Number:
		parsed, _, err := apd.NewFromString(val.String())
		if err != nil {
			return nil, &Error{Type: ir.TypeDecimal, Value: v, Err: err}
		}
		d = parsed
	case float64:
		parsed, err := new(apd.Decimal).SetFloat64(val)
		if err != nil {
			return nil, &Error{Type: ir.TypeDecimal, Value: v, Err: err}
		}
		d = parsed
	default:
		n, err := parseInteger(ir.TypeDecimal, v)
		if err != nil {
			return nil, err
		}
		d = apd.New(n.(int64), 0)
	}
	if d.Form != apd.Finite {
		return nil, &Error{Type: ir.TypeDecimal, Value: v, Err: fmt.Errorf("not a finite number")}
	}
	return d, nil
}

var (
	truthy = map[string]bool{"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true}
	falsy  = map[string]bool{"false": true, "f": true, "0": true, "no": true, "n": true, "off": true}
)

func parseBoolean(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
	case json.Number:
		return parseBoolean(val.String())
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			switch rv.Int() {
			case 1:
				return true, nil
			case 0:
				return false, nil
			}
		case reflect.Float32, reflect.Float64:
			switch rv.Float() {
			case 1:
				return true, nil
			case 0:
				return false, nil
			}
		}
	}
	return nil, &Error{Type: ir.TypeBoolean, Value: v, Err: fmt.Errorf("not a boolean")}
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"20060102T150405Z07:00",
	DateLayout,
	"20060102",
	"2006-01",
	"2006",
}

// parseTimestamp accepts time.Time, the layouts above, and Unix milliseconds
// given as a number or a digit string. Layouts win over milliseconds, so
// "2024" is a year and not two seconds past the epoch.
func parseTimestamp(t ir.AttrType, v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateTimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, &Error{Type: t, Value: v, Err: fmt.Errorf("unrecognized date format")}
	}

	n, err := parseInteger(t, v)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(n.(int64)).UTC(), nil
}

func parseDateTime(t ir.AttrType, v any) (any, error) {
	ts, err := parseTimestamp(t, v)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func parseDate(v any) (any, error) {
	if s, ok := v.(string); ok {
		// A plain date must not shift through a timezone.
		if d, err := time.Parse(DateLayout, strings.TrimSpace(s)); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	ts, err := parseTimestamp(ir.TypeDate, v)
	if err != nil {
		return nil, err
	}
	return ts.Format(DateLayout), nil
}

var timeLayouts = []string{"15:04:05.999999999", "15:04"}

func parseTime(v any) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return val.Format(TimeLayout), nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.Format(TimeLayout), nil
			}
		}
	}
	return nil, &Error{Type: ir.TypeTime, Value: v, Err: fmt.Errorf("expected HH:mm[:ss[.SSS]]")}
}

// parseJSON decodes strings holding a JSON object or array. Any other value,
// including a bare string, is already a JSON value and passes through.
func parseJSON(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return v, nil
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, &Error{Type: ir.TypeJSON, Value: v, Err: err}
	}
	if dec.More() {
		return nil, &Error{Type: ir.TypeJSON, Value: v, Err: fmt.Errorf("trailing data after JSON value")}
	}
	return out, nil
}
