package query

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrIncomparable    = errors.New("values are not comparable")
	ErrUnsupportedNode = errors.New("unsupported predicate")
)

// Getter はレコードからフィールドの値を取り出します。存在しないフィールドはfalseを返します
type Getter func(field string) (any, bool)

// Match はレコードが条件を満たすかを評価します。nilの条件は常に真です
func Match(p Predicate, get Getter) (bool, error) {
	switch v := p.(type) {
	case nil:
		return true, nil
	case Compare:
		actual, ok := get(v.Field)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownField, v.Field)
		}
		nullTest, err := v.IsNullTest()
		if err != nil {
			return false, err
		}
		if nullTest {
			return isNil(actual) == (v.Op == OpEq), nil
		}
		return compareOp(actual, v.Op, v.Value)
	case And:
		for _, c := range v {
			ok, err := Match(c, get)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range v {
			ok, err := Match(c, get)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrUnsupportedNode, p)
	}
}

func compareOp(actual any, op Op, expected any) (bool, error) {
	// NULLとの比較はSQLと同様に常に偽
	if isNil(actual) || isNil(expected) {
		return false, nil
	}

	c, err := CompareValues(actual, expected)
	if err != nil {
		return false, err
	}

	switch op {
	case OpEq:
		return c == 0, nil
	case OpNeq:
		return c != 0, nil
	case OpGt:
		return c > 0, nil
	case OpGte:
		return c >= 0, nil
	case OpLt:
		return c < 0, nil
	case OpLte:
		return c <= 0, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

// CompareValues はaとbを比較し、a<bなら負、a==bなら0、a>bなら正を返します
// 時刻は文字列(RFC3339または日付のみ)とも比較できます
func CompareValues(a, b any) (int, error) {
	a, b = Deref(a), Deref(b)

	if ta, ok := a.(time.Time); ok {
		tb, err := asTime(b)
		if err != nil {
			return 0, err
		}
		return ta.Compare(tb), nil
	}
	if tb, ok := b.(time.Time); ok {
		ta, err := asTime(a)
		if err != nil {
			return 0, err
		}
		return ta.Compare(tb), nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	// REST APIのフィルタと同様に、文字列で渡された数値や真偽値も比較できるようにする
	if s, ok := a.(string); ok && vb.Kind() != reflect.String {
		if parsed, ok := coerce(s, vb); ok {
			va = parsed
		}
	}
	if s, ok := b.(string); ok && va.Kind() != reflect.String {
		if parsed, ok := coerce(s, va); ok {
			vb = parsed
		}
	}

	switch {
	case isNumber(va) && isNumber(vb):
		fa, fb := toFloat(va), toFloat(vb)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	case va.Kind() == reflect.String && vb.Kind() == reflect.String:
		sa, sb := va.String(), vb.String()
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		}
		return 0, nil
	case va.Kind() == reflect.Bool && vb.Kind() == reflect.Bool:
		ba, bb := va.Bool(), vb.Bool()
		switch {
		case ba == bb:
			return 0, nil
		case !ba:
			return -1, nil
		}
		return 1, nil
	}

	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

// ParseTime は文字列をRFC3339または日付のみの形式として解釈します
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func coerce(s string, like reflect.Value) (reflect.Value, bool) {
	switch {
	case isNumber(like):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(f), true
	case like.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b), true
	}
	return reflect.Value{}, false
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrIncomparable, err)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: time and %T", ErrIncomparable, v)
}

// Deref はポインタを辿った値を返します。nilポインタはnilになります
func Deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isNil(v any) bool {
	return Deref(v) == nil
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	}
	return v.Float()
}
