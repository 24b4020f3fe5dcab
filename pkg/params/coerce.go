package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CoercionError reports a raw value that cannot be converted to its declared type.
type CoercionError struct {
	Type  Type
	Value any
	Err   error
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", fmt.Sprint(e.Value), e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %q to %s", fmt.Sprint(e.Value), e.Type)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Coerce converts a raw form value to the canonical in-memory value of the
// type named by typeToken:
//
//   - Date and DateTime: the ISO string, unchanged (time.Time values are formatted)
//   - Integer: int64, parsed base 10
//   - Boolean: bool
//   - String: the raw value, unchanged
//
// Unknown type tokens pass the raw value through. Empty input to Date,
// DateTime and Integer coerces to nil so the required rule can see it.
func Coerce(typeToken string, raw any) (any, error) {
	typ, ok := ParseType(typeToken)
	if !ok || raw == nil {
		return raw, nil
	}

	switch typ {
	case TypeInteger:
		return coerceInteger(raw)
	case TypeBoolean:
		return coerceBoolean(raw), nil
	case TypeDate, TypeDateTime:
		return coerceTemporal(typ, raw)
	default:
		return raw, nil
	}
}

func coerceInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, &CoercionError{Type: TypeInteger, Value: raw}
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &CoercionError{Type: TypeInteger, Value: raw, Err: numError(err)}
		}
		return n, nil
	default:
		return nil, &CoercionError{Type: TypeInteger, Value: raw}
	}
}

func numError(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}

// falsy lists the strings that coerce to false. Any other non-empty string is true.
var falsy = map[string]bool{
	"":      true,
	"false": true,
	"0":     true,
	"no":    true,
	"n":     true,
	"off":   true,
	"null":  true,
}

func coerceBoolean(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return !falsy[strings.ToLower(strings.TrimSpace(v))]
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

func coerceTemporal(typ Type, raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		if typ == TypeDate {
			return v.Format(DateLayout), nil
		}
		return v.Format(DateTimeLayout), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if _, err := dateparse.ParseIn(v, time.UTC); err != nil {
			return nil, &CoercionError{Type: typ, Value: raw, Err: err}
		}
		return v, nil
	default:
		return nil, &CoercionError{Type: typ, Value: raw}
	}
}
